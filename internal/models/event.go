package models

import (
	"encoding/json"
	"strconv"
)

// FlexValue accepts a numeric value sent either as a JSON number or as a
// numeric string, the way pixel snippets tend to serialize it.
type FlexValue string

func (v *FlexValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = FlexValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*v = FlexValue(n.String())
	return nil
}

func (v FlexValue) Float64() (float64, error) {
	return strconv.ParseFloat(string(v), 64)
}

// TrackRequest is the inbound body of POST /test-track-tiktok. Credentials
// are supplied per request and never persisted.
type TrackRequest struct {
	PixelID       string          `json:"pixelId"`
	AccessToken   string          `json:"accessToken"`
	TestEventCode string          `json:"testEventCode,omitempty"`
	Event         string          `json:"event,omitempty"`
	EventID       string          `json:"eventId,omitempty"`
	URL           string          `json:"url,omitempty"`
	Referrer      string          `json:"referrer,omitempty"`
	Email         string          `json:"email,omitempty"`
	Phone         string          `json:"phone,omitempty"`
	Value         FlexValue       `json:"value,omitempty"`
	Currency      string          `json:"currency,omitempty"`
	TTCLID        string          `json:"ttclid,omitempty"`
	TTP           string          `json:"ttp,omitempty"`
	Browser       *BrowserContext `json:"browser,omitempty"`
}

// BrowserContext carries fields captured by the calling browser when the
// caller is itself relaying on behalf of one. They take precedence over the
// relay request's own headers.
type BrowserContext struct {
	UserAgent string `json:"userAgent,omitempty"`
	Language  string `json:"language,omitempty"`
}

// ConversionEvent is the outbound payload unit sent to the TikTok Events
// API. Optional fields are omitted when empty so absent inputs never show up
// as null/empty keys upstream.
type ConversionEvent struct {
	Event      string           `json:"event"`
	EventTime  int64            `json:"event_time"`
	EventID    string           `json:"event_id"`
	User       EventUser        `json:"user"`
	Page       EventPage        `json:"page"`
	Properties *EventProperties `json:"properties,omitempty"`
}

// EventUser identifies the end user for server-side event matching. Email
// and phone hold sha256 digests, never clear values.
type EventUser struct {
	ExternalID string `json:"external_id"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	TTCLID     string `json:"ttclid,omitempty"`
	TTP        string `json:"ttp,omitempty"`
	IP         string `json:"ip"`
	UserAgent  string `json:"user_agent"`
	Locale     string `json:"locale,omitempty"`
}

type EventPage struct {
	URL      string `json:"url"`
	Referrer string `json:"referrer,omitempty"`
}

type EventProperties struct {
	Currency    string   `json:"currency,omitempty"`
	Value       *float64 `json:"value,omitempty"`
	ContentType string   `json:"content_type"`
}

// TrackPayload is the envelope POSTed to the event-track endpoint.
type TrackPayload struct {
	EventSource   string            `json:"event_source"`
	EventSourceID string            `json:"event_source_id"`
	TestEventCode string            `json:"test_event_code,omitempty"`
	Data          []ConversionEvent `json:"data"`
}

// SentData is the redacted echo of the forwarded event returned to the
// caller: presence flags and truncated strings only, never raw PII or the
// access token.
type SentData struct {
	Event     string `json:"event"`
	EventID   string `json:"eventId"`
	PixelID   string `json:"pixelId"`
	HasEmail  bool   `json:"hasEmail"`
	HasPhone  bool   `json:"hasPhone"`
	HasTTCLID bool   `json:"hasTtclid"`
	HasTTP    bool   `json:"hasTtp"`
	IP        string `json:"ip"`
	UserAgent string `json:"userAgent"`
	URL       string `json:"url"`
}

// AllowedEvents is the fixed allowlist of event kinds the relay will
// forward.
var AllowedEvents = []string{
	"PageView",
	"ViewContent",
	"ClickButton",
	"Search",
	"AddToCart",
	"InitiateCheckout",
	"AddPaymentInfo",
	"CompletePayment",
	"PlaceAnOrder",
	"CompleteRegistration",
}

func IsAllowedEvent(event string) bool {
	for _, e := range AllowedEvents {
		if e == event {
			return true
		}
	}
	return false
}
