package handlers

import (
	"encoding/json"
	"net/http"

	"tiktok-relay/internal/probe"
	"tiktok-relay/pkg/metrics"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ProbeHandler struct {
	logger       *zap.Logger
	prober       *probe.Prober
	geoProviders []probe.Endpoint
	businessURL  string
	eventsURL    string
}

func NewProbeHandler(logger *zap.Logger, prober *probe.Prober, geoProviders []probe.Endpoint, businessURL, eventsURL string) *ProbeHandler {
	return &ProbeHandler{
		logger:       logger,
		prober:       prober,
		geoProviders: geoProviders,
		businessURL:  businessURL,
		eventsURL:    eventsURL,
	}
}

// HandleIPCheck walks the geolocation providers in order and relays the
// first answer received.
func (h *ProbeHandler) HandleIPCheck(c *gin.Context) {
	result, failures := h.prober.Probe(c.Request.Context(), h.geoProviders)
	if result == nil {
		metrics.ProbeExhausted.WithLabelValues("ip_geolocation").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "All IP geolocation providers failed",
			"hint":    "Outbound network access from this host may be blocked",
			"details": failures,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"provider": result.Provider,
		"data":     rawOrString(result.Body),
	})
}

// HandleBusinessTest probes the TikTok business API list endpoint. No
// credentials are sent, so an auth rejection is the healthy signal.
func (h *ProbeHandler) HandleBusinessTest(c *gin.Context) {
	h.probeTikTok(c, "tiktok-business-api", http.MethodGet, h.businessURL)
}

// HandleEventsTest probes the event-track endpoint with an empty body; no
// real event is sent.
func (h *ProbeHandler) HandleEventsTest(c *gin.Context) {
	h.probeTikTok(c, "tiktok-events-api", http.MethodPost, h.eventsURL)
}

func (h *ProbeHandler) probeTikTok(c *gin.Context, name, method, url string) {
	endpoints := []probe.Endpoint{{Name: name, Method: method, URL: url}}
	result, failures := h.prober.Probe(c.Request.Context(), endpoints)
	if result == nil {
		metrics.ProbeExhausted.WithLabelValues(name).Inc()
		c.JSON(http.StatusOK, gin.H{
			"reachable":      false,
			"interpretation": "Unreachable: no HTTP response received",
			"details":        failures,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reachable":      true,
		"httpStatus":     result.Status,
		"interpretation": interpretTikTokStatus(result.Status),
	})
}

// interpretTikTokStatus translates the probe status for operators. 401/403
// proves the network path and TLS handshake worked, which is the point of
// the check when no real credentials are sent.
func interpretTikTokStatus(status int) string {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return "Reachable: authentication rejected as expected without credentials"
	case status >= 200 && status < 300:
		return "Reachable: endpoint responded successfully"
	case status >= 500:
		return "Reachable but unexpected: server-side error from TikTok"
	default:
		return "Reachable but unexpected: unanticipated HTTP status"
	}
}

// rawOrString keeps valid JSON bodies structured in the reply and falls
// back to a plain string otherwise.
func rawOrString(body []byte) interface{} {
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	return string(body)
}
