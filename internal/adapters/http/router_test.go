package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avdeenkov/pairchat/internal/app"
	"github.com/avdeenkov/pairchat/internal/config"
	"github.com/avdeenkov/pairchat/internal/domain"
)

func newTestRouter(createLimit int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Mode:         "release",
		StaticPath:   "./public",
		ReadLimit:    32768,
		PingPeriod:   54 * time.Second,
		JoinLimit:    10,
		JoinWindow:   time.Minute,
		CreateLimit:  createLimit,
		CreateWindow: time.Hour,
	}
	reg := app.NewRegistry()
	gw := app.NewGateway(reg, app.NewAttemptLimiter(cfg.JoinLimit, cfg.JoinWindow))
	return SetupRouter(context.Background(), cfg, reg, gw)
}

type createResponse struct {
	RoomID    string    `json:"roomId"`
	Codes     [2]string `json:"codes"`
	TTL       int       `json:"ttl"`
	ExpiresAt int64     `json:"expiresAt"`
}

func doCreate(t *testing.T, r *gin.Engine, method, target, body string) (*httptest.ResponseRecorder, createResponse) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp createResponse
	if w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func TestCreateRoomPost(t *testing.T) {
	r := newTestRouter(30)

	w, resp := doCreate(t, r, http.MethodPost, "/create-room", `{"ttl":120}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, resp.RoomID)
	assert.NotEmpty(t, resp.Codes[0])
	assert.NotEmpty(t, resp.Codes[1])
	assert.Equal(t, 120, resp.TTL)
	assert.Greater(t, resp.ExpiresAt, time.Now().UnixMilli())
}

func TestCreateRoomTTLHandling(t *testing.T) {
	r := newTestRouter(30)

	tests := []struct {
		name    string
		method  string
		target  string
		body    string
		wantTTL int
	}{
		{"query ttl clamped up", http.MethodGet, "/create-room?ttl=30", "", domain.MinTTLSeconds},
		{"query ttl clamped down", http.MethodGet, "/create-room?ttl=999999", "", domain.MaxTTLSeconds},
		{"query ttl non-numeric defaults", http.MethodGet, "/create-room?ttl=soon", "", domain.DefaultTTLSeconds},
		{"query ttl absent defaults", http.MethodGet, "/create-room", "", domain.DefaultTTLSeconds},
		{"body ttl passes through", http.MethodPost, "/create-room", `{"ttl":7200}`, 7200},
		{"body ttl non-numeric defaults", http.MethodPost, "/create-room", `{"ttl":"soon"}`, domain.DefaultTTLSeconds},
		{"body absent defaults", http.MethodPost, "/create-room", "", domain.DefaultTTLSeconds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := doCreate(t, r, tt.method, tt.target, tt.body)
			require.Equal(t, http.StatusOK, w.Code, "creation never rejects a ttl")
			assert.Equal(t, tt.wantTTL, resp.TTL)
		})
	}
}

func TestCreateRoomRateLimit(t *testing.T) {
	r := newTestRouter(2)

	for i := 0; i < 2; i++ {
		w, _ := doCreate(t, r, http.MethodGet, "/create-room", "")
		require.Equal(t, http.StatusOK, w.Code)
	}

	w, _ := doCreate(t, r, http.MethodGet, "/create-room", "")
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, "Too many rooms created from this IP. Try again later.", payload["error"])
}
