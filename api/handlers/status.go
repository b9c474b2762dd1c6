package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const ServiceName = "TikTok Events Diagnostic Relay"

// EndpointCatalog lists every API route; returned by the status endpoints
// and echoed on 404s so operators can discover the surface with curl.
func EndpointCatalog() gin.H {
	return gin.H{
		"GET /api":                  "Service status and endpoint catalog",
		"GET /health":               "Liveness check",
		"GET /ip-check":             "Outbound reachability via IP-geolocation providers",
		"GET /tiktok-business-test": "Reachability of the TikTok business API",
		"GET /tiktok-events-test":   "Reachability of the TikTok events endpoint",
		"POST /test-track-tiktok":   "Forward one synthetic conversion event",
	}
}

type StatusHandler struct{}

func NewStatusHandler() *StatusHandler { return &StatusHandler{} }

func (h *StatusHandler) HandleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":   ServiceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"endpoints": EndpointCatalog(),
	})
}
