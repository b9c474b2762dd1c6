package track

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"tiktok-relay/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultContentType = "product"

// FieldErrors maps every required field to "Required" or "OK" so the caller
// sees the full picture in one reply.
type FieldErrors map[string]string

// ValidationError is resolved locally; no outbound call is made when one is
// returned.
type ValidationError struct {
	Message string      `json:"message"`
	Fields  FieldErrors `json:"fields,omitempty"`
	Allowed []string    `json:"allowedEvents,omitempty"`
}

func (e *ValidationError) Error() string { return e.Message }

// Builder assembles outbound conversion events. Defaults come from config,
// not package globals, so tests can substitute their own.
type Builder struct {
	defaultEvent string
	logger       *zap.Logger
}

func NewBuilder(defaultEvent string, logger *zap.Logger) *Builder {
	if defaultEvent == "" {
		defaultEvent = "PageView"
	}
	return &Builder{defaultEvent: defaultEvent, logger: logger}
}

// Validate checks credentials and the event allowlist. It never touches the
// network.
func (b *Builder) Validate(req *models.TrackRequest) *ValidationError {
	fields := FieldErrors{"pixelId": "OK", "accessToken": "OK"}
	missing := false
	if strings.TrimSpace(req.PixelID) == "" {
		fields["pixelId"] = "Required"
		missing = true
	}
	if strings.TrimSpace(req.AccessToken) == "" {
		fields["accessToken"] = "Required"
		missing = true
	}
	if missing {
		return &ValidationError{
			Message: "pixelId and accessToken are required",
			Fields:  fields,
		}
	}

	event := req.Event
	if event == "" {
		event = b.defaultEvent
	}
	if !models.IsAllowedEvent(event) {
		return &ValidationError{
			Message: fmt.Sprintf("event %q is not supported", event),
			Allowed: models.AllowedEvents,
		}
	}

	return nil
}

// Build assembles the sparse outbound payload, its redacted echo, and any
// advisory warnings. Callers must Validate first.
func (b *Builder) Build(req *models.TrackRequest, r *http.Request) (models.TrackPayload, models.SentData, []string) {
	event := req.Event
	if event == "" {
		event = b.defaultEvent
	}

	eventID := req.EventID
	if eventID == "" {
		eventID = newEventID()
	}

	user := models.EventUser{
		IP:        ClientIP(r),
		UserAgent: UserAgent(r, req.Browser),
	}

	if req.Email != "" {
		user.Email = HashIdentifier(req.Email)
		user.ExternalID = user.Email
	} else {
		user.ExternalID = HashIdentifier(uuid.NewString())
	}
	if req.Phone != "" {
		user.Phone = HashIdentifier(req.Phone)
	}
	if req.TTCLID != "" {
		user.TTCLID = req.TTCLID
	}
	if req.TTP != "" {
		user.TTP = req.TTP
	}
	if req.Browser != nil && req.Browser.Language != "" {
		user.Locale = req.Browser.Language
	}

	page := models.EventPage{URL: req.URL}
	if page.URL == "" {
		page.URL = "https://localhost/diagnostic"
	}
	if req.Referrer != "" {
		page.Referrer = req.Referrer
	}

	props := &models.EventProperties{ContentType: defaultContentType}
	if req.Currency != "" {
		props.Currency = strings.ToUpper(req.Currency)
	}
	if req.Value != "" {
		if v, err := req.Value.Float64(); err == nil {
			props.Value = &v
		} else {
			b.logger.Warn("Ignoring non-numeric value field", zap.String("value", string(req.Value)))
		}
	}

	ev := models.ConversionEvent{
		Event:      event,
		EventTime:  time.Now().Unix(),
		EventID:    eventID,
		User:       user,
		Page:       page,
		Properties: props,
	}

	payload := models.TrackPayload{
		EventSource:   "web",
		EventSourceID: req.PixelID,
		TestEventCode: req.TestEventCode,
		Data:          []models.ConversionEvent{ev},
	}

	var warnings []string
	if req.TTP == "" {
		warnings = append(warnings, "ttp (browser cookie id) is missing: event match quality will be reduced")
	}
	if req.Email == "" && req.Phone == "" {
		warnings = append(warnings, "neither email nor phone supplied: user matching falls back to ip and user agent only")
	}

	sent := models.SentData{
		Event:     event,
		EventID:   eventID,
		PixelID:   req.PixelID,
		HasEmail:  req.Email != "",
		HasPhone:  req.Phone != "",
		HasTTCLID: req.TTCLID != "",
		HasTTP:    req.TTP != "",
		IP:        user.IP,
		UserAgent: truncate(user.UserAgent, 80),
		URL:       truncate(page.URL, 120),
	}

	return payload, sent, warnings
}

// HashIdentifier normalizes and one-way hashes a personally identifying
// value. The clear value never leaves the process.
func HashIdentifier(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// newEventID is unique per call; callers that fire the same logical event
// from a client-side pixel supply their own ID for deduplication instead.
func newEventID() string {
	return fmt.Sprintf("evt_%d_%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
