package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintools/internal/config"
	apierrors "fintools/internal/errors"
	"fintools/internal/services"
	"fintools/internal/tools"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func echoOperation() tools.Operation {
	return tools.Operation{
		Name:        "echo",
		Description: "echoes its arguments",
		InputSchema: tools.InputSchema{Type: "object"},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return map[string]any{"symbol": args["symbol"]}, nil
		},
	}
}

func boomOperation() tools.Operation {
	return tools.Operation{
		Name: "boom",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return nil, errors.New("symbol not found")
		},
	}
}

func newTestServer(t *testing.T, ops ...tools.Operation) *httptest.Server {
	t.Helper()

	registry := tools.NewRegistry()
	for _, op := range ops {
		require.NoError(t, registry.Register(op))
	}

	logger := testLogger()
	errs := apierrors.NewErrorHandler(logger)
	cfg := config.Default()
	cfg.Security.RateLimit.Enabled = false

	router := NewRouter(RouterDeps{
		Config: cfg,
		Logger: logger,
		Tools: NewToolsHandler(registry,
			tools.NewDispatcher(registry, time.Second, logger, nil), errs, logger),
		Stream: NewStreamHandler(
			tools.NewStreamer(registry, time.Second, logger, nil), errs, logger),
		Health: NewHealthHandler(services.NewHealthService(registry, cfg)),
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestListNativeFormat(t *testing.T) {
	server := newTestServer(t, echoOperation())

	resp, err := http.Get(server.URL + "/api/tools")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Tools []tools.Descriptor `json:"tools"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Tools, 1)
	assert.Equal(t, "echo", body.Tools[0].Name)
	assert.Equal(t, "object", body.Tools[0].InputSchema.Type)
}

func TestListAdapterFormat(t *testing.T) {
	server := newTestServer(t, echoOperation())

	resp, err := http.Get(server.URL + "/api/tools?format=adapter")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Tools []tools.AdapterDescriptor `json:"tools"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Tools, 1)
	assert.Equal(t, "function", body.Tools[0].Type)
	assert.Equal(t, "echo", body.Tools[0].Function.Name)
}

func TestListRejectsUnknownFormat(t *testing.T) {
	server := newTestServer(t, echoOperation())

	resp, err := http.Get(server.URL + "/api/tools?format=xml")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestInvokeSuccess(t *testing.T) {
	server := newTestServer(t, echoOperation())

	resp := postJSON(t, server.URL+"/api/tools/invoke",
		`{"name":"echo","arguments":{"symbol":"AAPL"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var env tools.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	require.Len(t, env.Content, 1)
	assert.Equal(t, "text", env.Content[0].Type)
	assert.False(t, env.Faulted())
	assert.JSONEq(t, `{"symbol":"AAPL"}`, env.Content[0].Text)
}

func TestInvokeHandlerFailureReturns500WithEnvelope(t *testing.T) {
	server := newTestServer(t, boomOperation())

	resp := postJSON(t, server.URL+"/api/tools/invoke",
		`{"name":"boom","arguments":{}}`)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var env tools.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	require.Len(t, env.Content, 1)
	assert.True(t, env.Content[0].IsError)
	assert.Equal(t, "Error executing 'boom': symbol not found", env.Content[0].Text)
}

func TestInvokeValidation(t *testing.T) {
	server := newTestServer(t, echoOperation())

	resp := postJSON(t, server.URL+"/api/tools/invoke", `{"arguments":{}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, server.URL+"/api/tools/invoke", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestInvokeUnknownOperationListsRegistered(t *testing.T) {
	server := newTestServer(t, echoOperation())

	resp := postJSON(t, server.URL+"/api/tools/invoke",
		`{"name":"missing","arguments":{}}`)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var apiErr apierrors.APIError
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&apiErr))
	assert.Equal(t, "UNKNOWN_OPERATION", apiErr.ErrorCode)

	details, ok := apiErr.Details.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, details["registered_operations"], "echo")
}

func TestStreamSuccessWireFormat(t *testing.T) {
	server := newTestServer(t, echoOperation())

	resp := postJSON(t, server.URL+"/api/tools/stream",
		`{"name":"echo","arguments":{"symbol":"AAPL"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))
	assert.Equal(t, "no", resp.Header.Get("X-Accel-Buffering"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(body)

	for _, name := range []string{"start", "arguments_received", "processing", "data", "complete"} {
		assert.Contains(t, text, "event: "+name+"\n")
	}
	assert.True(t, strings.HasSuffix(text, "event: complete\ndata: "+
		completeLine(t, text)+"\n\n:\n\n"), "stream must end with complete then terminator")
	assert.Less(t, strings.Index(text, "event: start"), strings.Index(text, "event: complete"))
}

// completeLine pulls the data line of the complete event back out of the
// stream body.
func completeLine(t *testing.T, body string) string {
	t.Helper()
	idx := strings.LastIndex(body, "event: complete\ndata: ")
	require.GreaterOrEqual(t, idx, 0)
	rest := body[idx+len("event: complete\ndata: "):]
	end := strings.Index(rest, "\n")
	require.GreaterOrEqual(t, end, 0)
	return rest[:end]
}

func TestStreamHandlerFailureStays200(t *testing.T) {
	server := newTestServer(t, boomOperation())

	resp := postJSON(t, server.URL+"/api/tools/stream",
		`{"name":"boom","arguments":{}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(body)

	assert.Contains(t, text, "event: error\n")
	assert.Contains(t, text, `"message":"symbol not found"`)
	assert.Contains(t, text, `"status":"failure"`)
	assert.NotContains(t, text, "event: data\n")
}

func TestStreamPreflightRejectionIsJSON(t *testing.T) {
	server := newTestServer(t, echoOperation())

	resp := postJSON(t, server.URL+"/api/tools/stream",
		`{"name":"missing","arguments":{}}`)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")

	var apiErr apierrors.APIError
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&apiErr))
	assert.Equal(t, "UNKNOWN_OPERATION", apiErr.ErrorCode)
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t, echoOperation())

	resp, err := http.Get(server.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status services.HealthStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, 1, status.OperationCount)
	assert.Equal(t, []string{"echo"}, status.Operations)
}
