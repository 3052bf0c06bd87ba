package diagnostics

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/opera/internal/metrics"
	"github.com/aretw0/opera/pkg/adapters/chesscore"
	"github.com/aretw0/opera/pkg/domain"
	"github.com/aretw0/opera/pkg/engine"
	"github.com/aretw0/opera/pkg/runner"
)

func newEngine(t *testing.T, opts ...engine.Option) *engine.Engine {
	t.Helper()
	eng := engine.New(chesscore.New(), opts...)
	t.Cleanup(eng.Close)
	require.NoError(t, eng.Initialize(context.Background()))
	return eng
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	eng := newEngine(t)
	h := NewHandler(eng, nil, nil, nil)

	w := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, healthResponse{Status: "ok", State: "Ready"}, body)
}

func TestHealthz_Stopping(t *testing.T) {
	eng := newEngine(t)
	require.NoError(t, eng.Handle(context.Background(), "quit"))

	w := get(t, NewHandler(eng, nil, nil, nil), "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"state":"Stopping"`)
}

func TestStatz(t *testing.T) {
	eng := newEngine(t, engine.WithIdentification(engine.Identification{Name: "Opera", Author: "Opera Team", Version: "v1.2.3"}))
	ctx := context.Background()
	require.NoError(t, eng.Handle(ctx, "setoption name Hash value 32"))
	require.NoError(t, eng.Handle(ctx, "position startpos moves e2e4 e7e5"))

	loop := func() runner.Stats {
		return runner.Stats{CommandsProcessed: 2, AvgCommandTime: 1500 * time.Microsecond, Uptime: 3 * time.Second}
	}
	w := get(t, NewHandler(eng, loop, nil, nil), "/statz")
	require.Equal(t, http.StatusOK, w.Code)

	var body Statz
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Opera", body.Name)
	assert.Equal(t, "v1.2.3", body.Version)
	assert.Equal(t, "Ready", body.State)
	assert.Equal(t, 32, body.Config.HashMB)
	assert.Equal(t, "startpos", body.Position.Base)
	assert.Equal(t, []string{"e2e4", "e7e5"}, body.Position.Moves)
	assert.GreaterOrEqual(t, body.Parser.CommandsParsed, uint64(2))
	require.NotNil(t, body.Loop)
	assert.Equal(t, uint64(2), body.Loop.CommandsProcessed)
	assert.InDelta(t, 1.5, body.Loop.AvgCommandMS, 1e-9)
	assert.InDelta(t, 3.0, body.Loop.UptimeSeconds, 1e-9)
}

func TestStatz_WithoutLoop(t *testing.T) {
	w := get(t, NewHandler(newEngine(t), nil, nil, nil), "/statz")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), `"loop"`)
	assert.Contains(t, w.Body.String(), `"moves":[]`)
}

func TestLifecycle(t *testing.T) {
	w := get(t, NewHandler(newEngine(t), nil, nil, nil), "/lifecycle")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "graph TD")
	assert.Contains(t, w.Body.String(), "class ready current;")
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	eng := newEngine(t, engine.WithLifecycleHooks(m.Hooks(domain.LifecycleHooks{})))
	require.NoError(t, eng.Handle(context.Background(), "isready"))

	w := get(t, NewHandler(eng, nil, m.Registry(), nil), "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `opera_commands_total{command="isready",status="ok"} 1`)
	assert.Contains(t, w.Body.String(), "opera_engine_state 1")
}

func TestMetricsEndpoint_NotMountedWithoutGatherer(t *testing.T) {
	w := get(t, NewHandler(newEngine(t), nil, nil, nil), "/metrics")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_ServeAndShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := NewServer(ln.Addr().String(), NewHandler(newEngine(t), nil, nil, nil), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Get("http://" + ln.Addr().String() + "/healthz")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status":"ok"`)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
