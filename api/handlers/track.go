package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"tiktok-relay/internal/models"
	"tiktok-relay/internal/tiktok"
	"tiktok-relay/internal/track"
	"tiktok-relay/pkg/metrics"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type TrackHandler struct {
	logger  *zap.Logger
	builder *track.Builder
	sender  tiktok.Sender
}

func NewTrackHandler(logger *zap.Logger, builder *track.Builder, sender tiktok.Sender) *TrackHandler {
	return &TrackHandler{
		logger:  logger,
		builder: builder,
		sender:  sender,
	}
}

// HandleTrack validates the request, assembles one conversion event, sends
// it, and relays an interpreted result. Validation failures never reach the
// network.
func (h *TrackHandler) HandleTrack(c *gin.Context) {
	var req models.TrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Failed to parse track payload", zap.Error(err))
		metrics.ValidationFailures.WithLabelValues("invalid_json").Inc()
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "ValidationFailed",
			"message": "Invalid JSON payload",
		})
		return
	}

	if verr := h.builder.Validate(&req); verr != nil {
		reason := "missing_credentials"
		if len(verr.Fields) == 0 {
			reason = "event_not_allowed"
		}
		metrics.ValidationFailures.WithLabelValues(reason).Inc()
		body := gin.H{
			"error":   "ValidationFailed",
			"message": verr.Message,
		}
		if len(verr.Fields) > 0 {
			body["fields"] = verr.Fields
		}
		if len(verr.Allowed) > 0 {
			body["allowedEvents"] = verr.Allowed
		}
		c.JSON(http.StatusBadRequest, body)
		return
	}

	payload, sent, warnings := h.builder.Build(&req, c.Request)

	// Full payload and credentials surface at debug level only.
	if h.logger.Core().Enabled(zap.DebugLevel) {
		raw, _ := json.Marshal(payload)
		h.logger.Debug("Forwarding conversion event",
			zap.String("pixel_id", req.PixelID),
			zap.String("access_token", req.AccessToken),
			zap.ByteString("payload", raw))
	}

	resp, err := h.sender.SendEvent(c.Request.Context(), req.AccessToken, payload)
	if err != nil {
		metrics.EventsForwarded.WithLabelValues(sent.Event, "failed").Inc()
		h.logger.Error("Upstream event send failed",
			zap.String("event_id", sent.EventID),
			zap.Error(err))

		body := gin.H{
			"error":   "UpstreamRequestFailed",
			"message": err.Error(),
			"eventId": sent.EventID,
		}
		var uerr *tiktok.UpstreamError
		if errors.As(err, &uerr) && uerr.HTTPStatus != 0 {
			body["upstreamStatus"] = uerr.HTTPStatus
			body["upstreamBody"] = uerr.Body
		}
		c.JSON(http.StatusBadGateway, body)
		return
	}

	success := resp.Code == tiktok.CodeOK
	status := "accepted"
	if !success {
		status = "rejected"
	}
	metrics.EventsForwarded.WithLabelValues(sent.Event, status).Inc()

	h.logger.Info("Conversion event forwarded",
		zap.String("event", sent.Event),
		zap.String("event_id", sent.EventID),
		zap.Bool("success", success),
		zap.Int64("tiktok_code", resp.Code))

	body := gin.H{
		"success":        success,
		"eventId":        sent.EventID,
		"sentData":       sent,
		"tiktokResponse": json.RawMessage(resp.Raw),
	}
	if len(warnings) > 0 {
		body["warnings"] = warnings
	}
	c.JSON(http.StatusOK, body)
}
