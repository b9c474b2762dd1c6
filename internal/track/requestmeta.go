package track

import (
	"net"
	"net/http"
	"strings"

	"tiktok-relay/internal/models"
)

// UnknownIP is the sentinel sent upstream when no client address can be
// derived at all.
const UnknownIP = "unknown"

const defaultUserAgent = "TikTok-Diagnostic-Relay/1.0"

// ClientIP derives the effective end-user address. The service runs behind
// a reverse proxy in production, so forwarded headers win over the transport
// peer, which would otherwise be the proxy itself.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	if xrip := strings.TrimSpace(r.Header.Get("X-Real-IP")); xrip != "" {
		return xrip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return UnknownIP
}

// UserAgent prefers the value captured by the calling browser context over
// the relay request's own header; the two legitimately differ when the
// caller relays on behalf of a browser.
func UserAgent(r *http.Request, browser *models.BrowserContext) string {
	if browser != nil && browser.UserAgent != "" {
		return browser.UserAgent
	}
	if ua := r.UserAgent(); ua != "" {
		return ua
	}
	return defaultUserAgent
}
