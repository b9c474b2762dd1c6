package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"tiktok-relay/internal/models"
	"tiktok-relay/internal/tiktok"
	"tiktok-relay/internal/track"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) SendEvent(ctx context.Context, accessToken string, payload models.TrackPayload) (*tiktok.Response, error) {
	args := m.Called(ctx, accessToken, payload)
	if resp := args.Get(0); resp != nil {
		return resp.(*tiktok.Response), args.Error(1)
	}
	return nil, args.Error(1)
}

func newTrackContext(t *testing.T, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/test-track-tiktok", bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	return c, w
}

func okResponse() *tiktok.Response {
	raw := []byte(`{"code":0,"message":"OK"}`)
	return &tiktok.Response{Code: 0, Message: "OK", Raw: raw}
}

func TestHandleTrackValidation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	tests := []struct {
		name       string
		payload    interface{}
		wantStatus int
		check      func(t *testing.T, body map[string]interface{})
	}{
		{
			name:       "missing credentials",
			payload:    map[string]string{"event": "PageView"},
			wantStatus: http.StatusBadRequest,
			check: func(t *testing.T, body map[string]interface{}) {
				fields := body["fields"].(map[string]interface{})
				assert.Equal(t, "Required", fields["pixelId"])
				assert.Equal(t, "Required", fields["accessToken"])
			},
		},
		{
			name:       "missing access token only",
			payload:    map[string]string{"pixelId": "p1"},
			wantStatus: http.StatusBadRequest,
			check: func(t *testing.T, body map[string]interface{}) {
				fields := body["fields"].(map[string]interface{})
				assert.Equal(t, "OK", fields["pixelId"])
				assert.Equal(t, "Required", fields["accessToken"])
			},
		},
		{
			name:       "event outside allowlist",
			payload:    map[string]string{"pixelId": "p1", "accessToken": "t1", "event": "Nope"},
			wantStatus: http.StatusBadRequest,
			check: func(t *testing.T, body map[string]interface{}) {
				allowed := body["allowedEvents"].([]interface{})
				assert.Len(t, allowed, 10)
			},
		},
		{
			name:       "invalid json",
			payload:    "not-an-object",
			wantStatus: http.StatusBadRequest,
			check:      func(t *testing.T, body map[string]interface{}) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSender := new(MockSender)
			handler := NewTrackHandler(logger, track.NewBuilder("PageView", logger), mockSender)

			c, w := newTrackContext(t, tt.payload)
			handler.HandleTrack(c)

			assert.Equal(t, tt.wantStatus, w.Code)
			// Local failures must never reach the network
			mockSender.AssertNotCalled(t, "SendEvent", mock.Anything, mock.Anything, mock.Anything)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, "ValidationFailed", body["error"])
			tt.check(t, body)
		})
	}
}

func TestHandleTrackSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	mockSender := new(MockSender)
	mockSender.On("SendEvent", mock.Anything, "t1", mock.Anything).Return(okResponse(), nil)
	handler := NewTrackHandler(logger, track.NewBuilder("PageView", logger), mockSender)

	c, w := newTrackContext(t, map[string]string{
		"pixelId":     "p1",
		"accessToken": "t1",
		"event":       "PageView",
		"email":       "A@B.com",
	})
	handler.HandleTrack(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["eventId"])

	sent := body["sentData"].(map[string]interface{})
	assert.Equal(t, true, sent["hasEmail"])
	assert.Equal(t, "p1", sent["pixelId"])

	upstream := body["tiktokResponse"].(map[string]interface{})
	assert.Equal(t, float64(0), upstream["code"])

	mockSender.AssertExpectations(t)
}

func TestHandleTrackSuccessRedactsPII(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	mockSender := new(MockSender)
	mockSender.On("SendEvent", mock.Anything, "secret-token", mock.Anything).Return(okResponse(), nil)
	handler := NewTrackHandler(logger, track.NewBuilder("PageView", logger), mockSender)

	c, w := newTrackContext(t, map[string]string{
		"pixelId":     "p1",
		"accessToken": "secret-token",
		"email":       "someone@example.com",
	})
	handler.HandleTrack(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "secret-token")
	assert.NotContains(t, w.Body.String(), "someone@example.com")
}

func TestHandleTrackProviderRejection(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	// 2xx transport but nested code != 0 means the event was not accepted
	raw := []byte(`{"code":40001,"message":"invalid access token"}`)
	mockSender := new(MockSender)
	mockSender.On("SendEvent", mock.Anything, "t1", mock.Anything).
		Return(&tiktok.Response{Code: 40001, Message: "invalid access token", Raw: raw}, nil)
	handler := NewTrackHandler(logger, track.NewBuilder("PageView", logger), mockSender)

	c, w := newTrackContext(t, map[string]string{"pixelId": "p1", "accessToken": "t1"})
	handler.HandleTrack(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
}

func TestHandleTrackUpstreamFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	mockSender := new(MockSender)
	mockSender.On("SendEvent", mock.Anything, "t1", mock.Anything).
		Return(nil, &tiktok.UpstreamError{HTTPStatus: http.StatusServiceUnavailable, Body: "upstream down"})
	handler := NewTrackHandler(logger, track.NewBuilder("PageView", logger), mockSender)

	c, w := newTrackContext(t, map[string]string{"pixelId": "p1", "accessToken": "t1"})
	handler.HandleTrack(c)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "UpstreamRequestFailed", body["error"])
	assert.Equal(t, float64(http.StatusServiceUnavailable), body["upstreamStatus"])
}

func TestHandleTrackWarnings(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	mockSender := new(MockSender)
	mockSender.On("SendEvent", mock.Anything, mock.Anything, mock.Anything).Return(okResponse(), nil)
	handler := NewTrackHandler(logger, track.NewBuilder("PageView", logger), mockSender)

	c, w := newTrackContext(t, map[string]string{"pixelId": "p1", "accessToken": "t1"})
	handler.HandleTrack(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	warnings := body["warnings"].([]interface{})
	assert.Len(t, warnings, 2)
}
