package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/janwychowaniak/flowbridge/internal/config"
	"github.com/janwychowaniak/flowbridge/internal/filtering"
	"github.com/janwychowaniak/flowbridge/internal/forwarding"
	"github.com/janwychowaniak/flowbridge/internal/jsonpath"
	"github.com/janwychowaniak/flowbridge/internal/logging"
	"github.com/janwychowaniak/flowbridge/internal/pipeline"
	"github.com/janwychowaniak/flowbridge/internal/routing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	l, err := logging.New(logging.ErrorLevel, os.Stderr)
	require.NoError(t, err)
	return l
}

func testConfig(t *testing.T, destURL string) *config.Config {
	t.Helper()
	u, err := url.Parse(destURL)
	require.NoError(t, err)
	field, err := jsonpath.Parse("objectType")
	require.NoError(t, err)
	return &config.Config{
		General: config.GeneralConfig{RouteTimeout: 2, LogRotation: "10mb"},
		Server:  config.ServerConfig{Host: "localhost", Port: 8080, Workers: 1, LogLevel: "info"},
		Filtering: filtering.Config{
			DefaultAction: filtering.ActionPass,
			Conditions: filtering.Conditions{
				Logic: filtering.LogicAND,
				Rules: []filtering.Rule{
					{Field: field, Operator: filtering.OpEquals, Value: "alert"},
				},
			},
		},
		Routes: []routing.RouteMapping{
			{Field: field, Mappings: []routing.MappingEntry{{Key: "alert", URL: u}}},
		},
	}
}

func newHandlers(t *testing.T, destURL string) *Handlers {
	t.Helper()
	cfg := testConfig(t, destURL)
	p := pipeline.New(cfg, forwarding.NewForwarder(), testLogger(t))
	return New(p, cfg, testLogger(t))
}

func TestHandleWebhook_RoutesRequest(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"accepted":true}`))
	}))
	defer upstream.Close()

	h := newHandlers(t, upstream.URL)

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"objectType":"alert"}`))
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "routed", body["status"])
}

func TestHandleWebhook_InvalidJSONBody(t *testing.T) {
	h := newHandlers(t, "http://unused/")

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleWebhook_BodyTooLarge(t *testing.T) {
	h := newHandlers(t, "http://unused/")

	oversized := strings.Repeat("a", maxBodyBytes+1)
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(oversized))
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	h := newHandlers(t, "http://unused/")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.HandleHealth(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.NotEmpty(t, body["request_id"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestHandleConfig(t *testing.T) {
	h := newHandlers(t, "http://unused/")

	req := httptest.NewRequest(http.MethodGet, "/config", nil)
	rec := httptest.NewRecorder()
	h.HandleConfig(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "general")
	assert.Contains(t, body, "routes")
}
