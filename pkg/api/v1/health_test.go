package apiv1

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/beam-cloud/gmail2tg/pkg/relay"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticStatus struct {
	status relay.Status
}

func (s staticStatus) Status() relay.Status { return s.status }

func newTestEcho(provider StatusProvider) *echo.Echo {
	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	RegisterRoot(e)
	NewHealthGroup(e.Group("/health"))
	NewStatusGroup(e.Group(HttpServerBaseRoute+"/status"), provider)
	return e
}

func serve(e *echo.Echo, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHealthCheck(t *testing.T) {
	e := newTestEcho(nil)

	rec := serve(e, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), echo.MIMETextPlain)

	rec = serve(e, http.MethodGet, "/health/")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(e, http.MethodHead, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRoot(t *testing.T) {
	rec := serve(newTestEcho(nil), http.MethodGet, "/")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, RootBanner, rec.Body.String())
}

func TestGetStatus(t *testing.T) {
	wm := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	provider := staticStatus{status: relay.Status{
		Started:       true,
		Watermark:     &wm,
		MarkerLabelID: "Label_7",
		Processed:     3,
		Ticks:         5,
		Forwarded:     3,
	}}

	rec := serve(newTestEcho(provider), http.MethodGet, "/api/v1/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool         `json:"success"`
		Data    relay.Status `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.True(t, body.Data.Started)
	assert.Equal(t, "Label_7", body.Data.MarkerLabelID)
	assert.Equal(t, 3, body.Data.Processed)
	require.NotNil(t, body.Data.Watermark)
	assert.True(t, wm.Equal(*body.Data.Watermark))
}

func TestGetStatus_NoPoller(t *testing.T) {
	rec := serve(newTestEcho(nil), http.MethodGet, "/api/v1/status")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
