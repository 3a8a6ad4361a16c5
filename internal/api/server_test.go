package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"autokey/internal/config"
	"autokey/internal/input"
	"autokey/internal/protocol"
	"autokey/internal/runner"
)

func newTestServer(t *testing.T, token string) (*Server, *httptest.Server) {
	t.Helper()

	mgr, err := config.NewManager(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	cfg := config.DefaultConfig()
	cfg.General.APIToken = token
	mgr.Set(cfg)

	r := runner.New(context.Background(), input.NewLogInjector(800, 600))
	s := NewServer(mgr, r)
	r.SetOnMessage(s.Broadcast)
	go s.hub.start()

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		r.Stop()
		ts.Close()
		s.hub.stop()
	})
	return s, ts
}

func post(t *testing.T, url, token string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// TestHealthSkipsAuth tests that /health is reachable without a token
func TestHealthSkipsAuth(t *testing.T) {
	_, ts := newTestServer(t, "secret")

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}

	resp2, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", resp2.StatusCode)
	}
}

// TestAuthToken tests bearer and query tokens against the configured one
func TestAuthToken(t *testing.T) {
	_, ts := newTestServer(t, "secret")

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"none", "", "", http.StatusUnauthorized},
		{"bearer", "Bearer secret", "", http.StatusOK},
		{"wrong bearer", "Bearer secre", "", http.StatusUnauthorized},
		{"longer bearer", "Bearer secret2", "", http.StatusUnauthorized},
		{"no scheme", "secret", "", http.StatusUnauthorized},
		{"query", "", "secret", http.StatusOK},
		{"wrong query", "", "nope", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		url := ts.URL + "/api/status"
		if tt.query != "" {
			url += "?token=" + tt.query
		}
		req, err := http.NewRequest(http.MethodGet, url, nil)
		if err != nil {
			t.Fatal(err)
		}
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != tt.want {
			t.Errorf("%s: expected %d, got %d", tt.name, tt.want, resp.StatusCode)
		}
	}
}

// TestCompile tests the compile endpoint and its policy overrides
func TestCompile(t *testing.T) {
	_, ts := newTestServer(t, "")

	resp := post(t, ts.URL+"/api/compile", "", protocol.CompileRequest{
		Script: "left_click 0\nbogus line\nleft_click 5\n",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var out protocol.CompileResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Events) != 1 {
		t.Errorf("Expected 1 event, got %v", out.Events)
	}
	if out.Stats.Dropped != 1 || out.Stats.Malformed != 1 || out.Stats.LinesRead != 3 {
		t.Errorf("Unexpected stats %+v", out.Stats)
	}
	if len(out.Errors) != 1 || !strings.Contains(out.Errors[0], "line 2") {
		t.Errorf("Expected one error for line 2, got %v", out.Errors)
	}

	resp = post(t, ts.URL+"/api/compile", "", protocol.CompileRequest{
		Script:      "bogus line\n",
		OnMalformed: "abort",
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422 under abort, got %d", resp.StatusCode)
	}

	resp = post(t, ts.URL+"/api/compile", "", protocol.CompileRequest{OnMalformed: "retry"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown policy, got %d", resp.StatusCode)
	}
}

// TestPlayBusyStop tests that a second play is refused until the first is stopped
func TestPlayBusyStop(t *testing.T) {
	_, ts := newTestServer(t, "secret")
	long := protocol.CompileRequest{Script: "key shift down 0\nkey shift up 600000\n"}

	resp := post(t, ts.URL+"/api/play", "secret", long)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", resp.StatusCode)
	}
	var play protocol.PlayResponse
	if err := json.NewDecoder(resp.Body).Decode(&play); err != nil {
		t.Fatal(err)
	}
	if play.RunID == "" || play.Stats.Accepted != 2 {
		t.Errorf("Unexpected play response %+v", play)
	}

	resp = post(t, ts.URL+"/api/play", "secret", long)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409 while busy, got %d", resp.StatusCode)
	}

	resp = post(t, ts.URL+"/api/stop", "secret", struct{}{})
	var stop protocol.StopResponse
	if err := json.NewDecoder(resp.Body).Decode(&stop); err != nil {
		t.Fatal(err)
	}
	if !stop.Stopped {
		t.Error("Expected stop to cancel the active run")
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	statusResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer statusResp.Body.Close()
	var st runner.Status
	if err := json.NewDecoder(statusResp.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if st.ActiveRun != "" || st.Last == nil || st.Last.RunID != play.RunID || !st.Last.Cancelled {
		t.Errorf("Unexpected status %+v", st)
	}
}

// TestWebSocketStream tests that run events reach WebSocket clients
func TestWebSocketStream(t *testing.T) {
	s, ts := newTestServer(t, "secret")

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?token=secret"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for {
		s.hub.clientsMu.Lock()
		n := len(s.hub.clients)
		s.hub.clientsMu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	resp := post(t, ts.URL+"/api/play", "secret", protocol.CompileRequest{Script: "key a 0\n"})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", resp.StatusCode)
	}

	var got []protocol.MessageType
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg protocol.Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("ReadJSON after %v: %v", got, err)
		}
		got = append(got, msg.Type)
		if msg.Type == protocol.TypeRunFinished {
			break
		}
	}

	want := []protocol.MessageType{protocol.TypeRunStarted, protocol.TypeProgress, protocol.TypeRunFinished}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Message %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}
