package tiktok

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"tiktok-relay/config"
	"tiktok-relay/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testClient(baseURL string) *Client {
	return NewClient(config.TikTokConfig{BaseURL: baseURL, TimeoutSeconds: 2}, zap.NewNop())
}

func testPayload() models.TrackPayload {
	return models.TrackPayload{
		EventSource:   "web",
		EventSourceID: "p1",
		Data: []models.ConversionEvent{{
			Event:   "PageView",
			EventID: "evt_1",
			User:    models.EventUser{ExternalID: "ext", IP: "1.2.3.4", UserAgent: "ua"},
			Page:    models.EventPage{URL: "https://example.com"},
		}},
	}
}

func TestSendEventSuccess(t *testing.T) {
	var gotToken string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("Access-Token")
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &gotBody)
		w.Write([]byte(`{"code":0,"message":"OK","request_id":"req-1"}`))
	}))
	defer srv.Close()

	resp, err := testClient(srv.URL).SendEvent(context.Background(), "token-1", testPayload())
	require.NoError(t, err)
	assert.Equal(t, int64(0), resp.Code)
	assert.Equal(t, "OK", resp.Message)
	assert.Equal(t, "req-1", resp.RequestID)
	assert.JSONEq(t, `{"code":0,"message":"OK","request_id":"req-1"}`, string(resp.Raw))

	assert.Equal(t, "token-1", gotToken)
	assert.Equal(t, "p1", gotBody["event_source_id"])
}

func TestSendEventNonErrorCodePassesThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":40001,"message":"invalid pixel"}`))
	}))
	defer srv.Close()

	// A rejected event with 2xx transport is not a client error; the caller
	// inspects the nested code.
	resp, err := testClient(srv.URL).SendEvent(context.Background(), "t", testPayload())
	require.NoError(t, err)
	assert.Equal(t, int64(40001), resp.Code)
	assert.NotEqual(t, int64(CodeOK), resp.Code)
}

func TestSendEventHTTPRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code":40100,"message":"no auth"}`))
	}))
	defer srv.Close()

	resp, err := testClient(srv.URL).SendEvent(context.Background(), "t", testPayload())
	assert.Nil(t, resp)
	require.Error(t, err)

	uerr, ok := err.(*UpstreamError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, uerr.HTTPStatus)
	assert.Contains(t, uerr.Body, "no auth")
}

func TestSendEventTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	resp, err := testClient(srv.URL).SendEvent(context.Background(), "t", testPayload())
	assert.Nil(t, resp)
	require.Error(t, err)

	uerr, ok := err.(*UpstreamError)
	require.True(t, ok)
	// No response received at all
	assert.Zero(t, uerr.HTTPStatus)
	assert.Error(t, uerr.Unwrap())
}
