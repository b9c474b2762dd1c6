package router

import (
	"net/http"
	"strings"

	"tiktok-relay/api/handlers"
	"tiktok-relay/api/middleware"
	"tiktok-relay/config"
	"tiktok-relay/internal/assets"
	"tiktok-relay/internal/probe"
	"tiktok-relay/internal/tiktok"
	"tiktok-relay/internal/track"
	"tiktok-relay/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func Setup(log *logger.Logger, cfg *config.Config) *gin.Engine {
	zl := log.Desugar()

	router := gin.New()

	security := middleware.NewSecurityMiddleware(zl)
	router.Use(security.Recovery())
	router.Use(security.CORS())

	// Shared outbound pieces; every request gets the same timeouts and base
	// URLs from config.
	prober := probe.New(cfg.Probe.Timeout(), zl)
	client := tiktok.NewClient(cfg.TikTok, zl)
	builder := track.NewBuilder(cfg.TikTok.DefaultEvent, zl)

	geoProviders := make([]probe.Endpoint, 0, len(cfg.Probe.GeoProviders))
	for _, p := range cfg.Probe.GeoProviders {
		geoProviders = append(geoProviders, probe.Endpoint{Name: p.Name, URL: p.URL})
	}

	statusHandler := handlers.NewStatusHandler()
	probeHandler := handlers.NewProbeHandler(zl, prober, geoProviders, client.PixelListURL(), client.TrackURL())
	trackHandler := handlers.NewTrackHandler(zl, builder, client)

	router.GET("/", statusHandler.HandleStatus)
	router.GET("/api", statusHandler.HandleStatus)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/ip-check", probeHandler.HandleIPCheck)
	router.GET("/tiktok-business-test", probeHandler.HandleBusinessTest)
	router.GET("/tiktok-events-test", probeHandler.HandleEventsTest)
	router.POST("/test-track-tiktok", trackHandler.HandleTrack)

	// API-style requests get a JSON 404 with the catalog; everything else
	// falls back to the bundled SPA shell.
	router.NoRoute(func(c *gin.Context) {
		if wantsJSON(c) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":     "Endpoint not found",
				"path":      c.Request.URL.Path,
				"endpoints": handlers.EndpointCatalog(),
			})
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", assets.IndexHTML)
	})

	zl.Info("Router configured",
		zap.Int("geo_providers", len(geoProviders)),
		zap.String("tiktok_base_url", cfg.TikTok.BaseURL))

	return router
}

func wantsJSON(c *gin.Context) bool {
	if strings.HasPrefix(c.Request.URL.Path, "/api") {
		return true
	}
	return strings.Contains(c.GetHeader("Accept"), "application/json")
}
