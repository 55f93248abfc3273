package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/pxseu/flipper-pc-monitor-backend/internal/config"
	"github.com/pxseu/flipper-pc-monitor-backend/internal/sampler"
	"github.com/pxseu/flipper-pc-monitor-backend/internal/snapshot"
	"github.com/pxseu/flipper-pc-monitor-backend/internal/units"
	"github.com/pxseu/flipper-pc-monitor-backend/internal/version"
)

func TestHealthzOK(t *testing.T) {
	t.Parallel()

	_, ts := newTestHTTPServer(t, defaultTestConfig(), nil, nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	if strings.TrimSpace(string(body)) != `{"status":"ok"}` {
		t.Fatalf("unexpected body %q", string(body))
	}

	// Prefixed path serves the same handler.
	respAPI, err := http.Get(ts.URL + "/api/healthz")
	if err != nil {
		t.Fatalf("GET /api/healthz failed: %v", err)
	}
	respAPI.Body.Close()
	if respAPI.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200 for /api/healthz, got %d", respAPI.StatusCode)
	}
}

func TestReadyzStates(t *testing.T) {
	t.Parallel()

	cfg := defaultTestConfig()
	probes := []string{"nvidia", "intel"}

	// Sampler not configured -> degraded.
	_, ts := newTestHTTPServer(t, cfg, probes, nil)
	defer ts.Close()

	assertReadyz(t, ts.URL+"/readyz", http.StatusServiceUnavailable, "degraded", "sampler_not_configured")
	assertReadyz(t, ts.URL+"/api/readyz", http.StatusServiceUnavailable, "degraded", "sampler_not_configured")

	// Sampler configured but not started -> initializing.
	manager := newManager(t, 1*time.Hour)

	_, tsInit := newTestHTTPServer(t, cfg, probes, manager)
	defer tsInit.Close()

	assertReadyz(t, tsInit.URL+"/readyz", http.StatusServiceUnavailable, "initializing", "waiting_for_samples")

	// Now run the sampler and expect ready.
	startManager(t, manager)
	waitFor(t, 2*time.Second, manager.Ready)
	assertReadyz(t, tsInit.URL+"/readyz", http.StatusOK, "ok", "")
}

func TestVersionEndpoint(t *testing.T) {
	t.Parallel()

	version.Set(version.Info{Version: "v0.0.1", Commit: "abc123", BuildTime: "now"})

	_, ts := newTestHTTPServer(t, defaultTestConfig(), nil, nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/version")
	if err != nil {
		t.Fatalf("GET /api/version failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	var info version.Info
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if info.Version != "v0.0.1" || info.Commit != "abc123" || info.BuildTime != "now" {
		t.Fatalf("unexpected version payload %+v", info)
	}
}

func TestAPIProbes(t *testing.T) {
	t.Parallel()

	probes := []string{"apple-silicon", "apple-intel", "nvidia"}
	_, ts := newTestHTTPServer(t, defaultTestConfig(), probes, nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/probes")
	if err != nil {
		t.Fatalf("GET /api/probes failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	var payload []string
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload) != 3 || payload[0] != "apple-silicon" {
		t.Fatalf("unexpected probe payload %+v", payload)
	}
}

func TestAPISnapshot(t *testing.T) {
	t.Parallel()

	manager := newManager(t, 1*time.Hour)
	probes := []string{"nvidia"}

	_, ts := newTestHTTPServer(t, defaultTestConfig(), probes, manager)
	defer ts.Close()

	// No sample yet.
	resp, err := http.Get(ts.URL + "/api/snapshot")
	if err != nil {
		t.Fatalf("GET /api/snapshot failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before first sample, got %d", resp.StatusCode)
	}

	startManager(t, manager)
	waitFor(t, 2*time.Second, manager.Ready)

	resp2, err := http.Get(ts.URL + "/api/snapshot")
	if err != nil {
		t.Fatalf("GET /api/snapshot failed: %v", err)
	}
	defer resp2.Body.Close()

	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp2.StatusCode)
	}

	var snap snapshot.Snapshot
	if err := json.NewDecoder(resp2.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.CPUUsage != 42 {
		t.Fatalf("unexpected cpu usage %d", snap.CPUUsage)
	}
	if snap.GPUName != "Test GPU" {
		t.Fatalf("unexpected gpu name %q", snap.GPUName)
	}
}

func TestAPISnapshotRaw(t *testing.T) {
	t.Parallel()

	manager := newManager(t, 1*time.Hour)
	startManager(t, manager)
	waitFor(t, 2*time.Second, manager.Ready)

	_, ts := newTestHTTPServer(t, defaultTestConfig(), nil, manager)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/snapshot/raw")
	if err != nil {
		t.Fatalf("GET /api/snapshot/raw failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/octet-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if len(body) != snapshot.PackedSize {
		t.Fatalf("expected %d bytes, got %d", snapshot.PackedSize, len(body))
	}
	if body[0] != 42 {
		t.Fatalf("expected cpu usage byte 42, got %d", body[0])
	}
}

func TestWebSocketHelloAndStats(t *testing.T) {
	t.Parallel()

	manager := newManager(t, 5*time.Millisecond)
	startManager(t, manager)
	waitFor(t, 2*time.Second, manager.Ready)

	cfg := defaultTestConfig()
	cfg.SampleInterval = 5 * time.Millisecond

	_, ts := newTestHTTPServer(t, cfg, []string{"nvidia"}, manager)
	defer ts.Close()

	cctx, ccancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer ccancel()

	conn, _, err := websocket.Dial(cctx, toWebsocketURL(ts.URL+"/ws"), nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	helloType, helloData, err := conn.Read(cctx)
	if err != nil {
		t.Fatalf("read hello: %v", err)
	}
	if helloType != websocket.MessageText {
		t.Fatalf("unexpected hello type %v", helloType)
	}

	var helloMsg map[string]interface{}
	if err := json.Unmarshal(helloData, &helloMsg); err != nil {
		t.Fatalf("decode hello: %v", err)
	}
	if helloMsg["type"] != "hello" {
		t.Fatalf("expected hello message, got %q", helloMsg["type"])
	}

	statsType, statsData, err := conn.Read(cctx)
	if err != nil {
		t.Fatalf("read stats: %v", err)
	}
	if statsType != websocket.MessageText {
		t.Fatalf("unexpected stats type %v", statsType)
	}

	var statsMsg map[string]interface{}
	if err := json.Unmarshal(statsData, &statsMsg); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if statsMsg["type"] != "stats" {
		t.Fatalf("expected stats message, got %q", statsMsg["type"])
	}

	payload, ok := statsMsg["snapshot"].(map[string]interface{})
	if !ok {
		t.Fatalf("snapshot payload missing or wrong type")
	}
	if _, ok := payload["cpu_usage"]; !ok {
		t.Fatalf("expected cpu_usage value in stats")
	}
}

func TestWebSocketBinaryStream(t *testing.T) {
	t.Parallel()

	manager := newManager(t, 5*time.Millisecond)
	startManager(t, manager)
	waitFor(t, 2*time.Second, manager.Ready)

	_, ts := newTestHTTPServer(t, defaultTestConfig(), nil, manager)
	defer ts.Close()

	cctx, ccancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer ccancel()

	conn, _, err := websocket.Dial(cctx, toWebsocketURL(ts.URL+"/ws?format=binary"), nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	msgType, data, err := conn.Read(cctx)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if msgType != websocket.MessageBinary {
		t.Fatalf("unexpected frame type %v", msgType)
	}
	if len(data) != snapshot.PackedSize {
		t.Fatalf("expected %d byte record, got %d", snapshot.PackedSize, len(data))
	}
	if data[0] != 42 {
		t.Fatalf("expected cpu usage byte 42, got %d", data[0])
	}
}

func TestWebSocketRejectsUnknownFormat(t *testing.T) {
	t.Parallel()

	manager := newManager(t, 1*time.Hour)
	_, ts := newTestHTTPServer(t, defaultTestConfig(), nil, manager)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/ws?format=yaml")
	if err != nil {
		t.Fatalf("GET /ws failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown format, got %d", resp.StatusCode)
	}
}

func TestWebSocketCapacityLimit(t *testing.T) {
	t.Parallel()

	manager := newManager(t, 1*time.Hour)
	startManager(t, manager)
	waitFor(t, 2*time.Second, manager.Ready)

	cfg := defaultTestConfig()
	cfg.WS.MaxClients = 1

	_, ts := newTestHTTPServer(t, cfg, nil, manager)
	defer ts.Close()

	cctx, ccancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer ccancel()

	conn, _, err := websocket.Dial(cctx, toWebsocketURL(ts.URL+"/ws"), nil)
	if err != nil {
		t.Fatalf("first websocket dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Drain the hello frame so the connection is fully established.
	if _, _, err := conn.Read(cctx); err != nil {
		t.Fatalf("read hello: %v", err)
	}

	if _, _, err := websocket.Dial(cctx, toWebsocketURL(ts.URL+"/ws"), nil); err == nil {
		t.Fatalf("expected second dial to be rejected")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	manager := newManager(t, 1*time.Hour)
	startManager(t, manager)
	waitFor(t, 2*time.Second, manager.Ready)

	cfg := defaultTestConfig()
	cfg.EnablePrometheus = true

	_, ts := newTestHTTPServer(t, cfg, []string{"nvidia"}, manager)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	text := string(body)
	for _, metric := range []string{
		"pcmonitor_cpu_usage_percent",
		"pcmonitor_ram_total_bytes",
		"pcmonitor_vram_usage_percent",
		"pcmonitor_gpu_info",
		"pcmonitor_ws_active_connections",
	} {
		if !strings.Contains(text, metric) {
			t.Fatalf("expected %s in metrics output", metric)
		}
	}
}

type stubBuilder struct {
	snap snapshot.Snapshot
}

func (b stubBuilder) Build(ctx context.Context) (snapshot.Snapshot, error) {
	snap := b.snap
	snap.Timestamp = time.Now()
	return snap, nil
}

func testSnapshot() snapshot.Snapshot {
	return snapshot.Snapshot{
		CPUUsage:  42,
		RAMMax:    160,
		RAMUsage:  50,
		RAMUnit:   units.Pack("GB"),
		GPUUsage:  50,
		VRAMMax:   80,
		VRAMUsage: 50,
		VRAMUnit:  units.Pack("GB"),
		GPUName:   "Test GPU",
	}
}

func newManager(t *testing.T, interval time.Duration) *sampler.Manager {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	manager, err := sampler.NewManager(interval, stubBuilder{snap: testSnapshot()}, logger)
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}
	return manager
}

func startManager(t *testing.T, manager *sampler.Manager) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = manager.Run(ctx) }()
}

func newTestHTTPServer(t *testing.T, cfg config.Config, probes []string, samplerManager *sampler.Manager) (*Server, *httptest.Server) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(cfg, logger, probes, samplerManager)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return srv, ts
}

func assertReadyz(t *testing.T, url string, expectedStatus int, expected string, reason string) {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != expectedStatus {
		t.Fatalf("expected status %d for %s, got %d", expectedStatus, url, resp.StatusCode)
	}

	var payload readyResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode readyz response: %v", err)
	}

	if payload.Status != expected {
		t.Fatalf("expected status %q, got %q", expected, payload.Status)
	}
	if reason == "" {
		if payload.Reason != "" {
			t.Fatalf("expected empty reason, got %q", payload.Reason)
		}
	} else if payload.Reason != reason {
		t.Fatalf("expected reason %q, got %q", reason, payload.Reason)
	}
}

func waitFor(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not satisfied within %s", timeout)
}

func defaultTestConfig() config.Config {
	return config.Config{
		ListenAddr:     ":0",
		SampleInterval: 250 * time.Millisecond,
		AllowedOrigins: []string{"*"},
		WS: config.WebsocketConfig{
			MaxClients:   1024,
			WriteTimeout: 3 * time.Second,
			ReadTimeout:  30 * time.Second,
		},
	}
}

func toWebsocketURL(httpURL string) string {
	u, err := url.Parse(httpURL)
	if err != nil {
		return httpURL
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	return u.String()
}
