package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/safedispatch/relay/internal/app"
	"github.com/safedispatch/relay/internal/config"
	"github.com/safedispatch/relay/internal/domain"
)

func newTestServer(t *testing.T) (*httptest.Server, *app.CallStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Mode:       "test",
		StaticPath: t.TempDir(),
		ReadLimit:  32768,
		WriteWait:  2 * time.Second,
		CallTTL:    time.Minute,
		JoinLimit:  8,
		JoinWindow: 10 * time.Second,
		Secret:     "test-secret",
	}
	calls := app.NewCallStore(cfg.CallTTL)
	hub := app.NewHub(calls)
	r := SetupRouter(context.Background(), cfg, calls, hub)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, calls
}

func postJSON(t *testing.T, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	var m map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp, m
}

func getJSON(t *testing.T, url string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	var m map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp, m
}

func TestStartCall(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := postJSON(t, srv.URL+"/api/call/start", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	callID, _ := body["callId"].(string)
	token, _ := body["callerToken"].(string)
	responderURL, _ := body["responderUrl"].(string)
	if callID == "" || token == "" {
		t.Fatalf("incomplete response: %v", body)
	}
	if !strings.Contains(responderURL, "callId="+callID) || !strings.Contains(responderURL, "role=responder") {
		t.Fatalf("responderUrl = %q", responderURL)
	}
	if strings.Contains(responderURL, token) {
		t.Fatal("responderUrl leaks the caller token")
	}
	if exp, ok := body["expiresAt"].(float64); !ok || int64(exp) <= time.Now().Unix() {
		t.Fatalf("expiresAt = %v", body["expiresAt"])
	}
}

func TestStartCallAnnouncesNewCall(t *testing.T) {
	srv, _ := newTestServer(t)

	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/signal"
	ws, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	// A ping round-trip guarantees the connection is registered with the
	// hub before the announcement fires.
	if err := ws.WriteJSON(map[string]string{"type": "ping"}); err != nil {
		t.Fatalf("ping: %v", err)
	}
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var pong map[string]any
	if err := ws.ReadJSON(&pong); err != nil || pong["type"] != "pong" {
		t.Fatalf("pong: %v %v", pong, err)
	}

	_, body := postJSON(t, srv.URL+"/api/call/start", nil)

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev map[string]any
	if err := ws.ReadJSON(&ev); err != nil {
		t.Fatalf("read announcement: %v", err)
	}
	if ev["type"] != "new-call" || ev["callId"] != body["callId"] {
		t.Fatalf("got %v, want new-call for %v", ev, body["callId"])
	}
	if _, ok := ev["expiresAt"].(float64); !ok {
		t.Fatalf("announcement missing expiresAt: %v", ev)
	}
}

func TestEndCall(t *testing.T) {
	srv, calls := newTestServer(t)

	_, started := postJSON(t, srv.URL+"/api/call/start", nil)
	callID := started["callId"].(string)

	resp, body := postJSON(t, srv.URL+"/api/call/end", map[string]string{"callId": callID})
	if resp.StatusCode != http.StatusOK || body["status"] != "ended" {
		t.Fatalf("end: %d %v", resp.StatusCode, body)
	}
	if calls.IsLive(domain.CallID(callID), time.Now()) {
		t.Fatal("call still live after end")
	}

	resp, body = postJSON(t, srv.URL+"/api/call/end", map[string]string{"callId": "missing"})
	if resp.StatusCode != http.StatusNotFound || body["error"] != "Call not found" {
		t.Fatalf("end missing: %d %v", resp.StatusCode, body)
	}
}

func TestLatestCall(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := getJSON(t, srv.URL+"/api/call/latest")
	if resp.StatusCode != http.StatusNotFound || body["error"] != "No active calls" {
		t.Fatalf("latest on empty: %d %v", resp.StatusCode, body)
	}

	_, first := postJSON(t, srv.URL+"/api/call/start", nil)
	_, second := postJSON(t, srv.URL+"/api/call/start", nil)

	resp, body = getJSON(t, srv.URL+"/api/call/latest")
	if resp.StatusCode != http.StatusOK || body["callId"] != second["callId"] {
		t.Fatalf("latest = %v, want %v", body["callId"], second["callId"])
	}

	postJSON(t, srv.URL+"/api/call/end", map[string]string{"callId": second["callId"].(string)})

	_, body = getJSON(t, srv.URL+"/api/call/latest")
	if body["callId"] != first["callId"] {
		t.Fatalf("latest after end = %v, want %v", body["callId"], first["callId"])
	}

	postJSON(t, srv.URL+"/api/call/end", map[string]string{"callId": first["callId"].(string)})

	resp, _ = getJSON(t, srv.URL+"/api/call/latest")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("latest with all ended: %d", resp.StatusCode)
	}
}
