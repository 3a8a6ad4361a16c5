package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/websocket"

	"autokey/internal/protocol"
	"autokey/internal/runner"
)

// fakeServer answers like the control server
func fakeServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/api/play", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(protocol.ErrorResponse{Error: "unauthorized"})
			return
		}
		var req protocol.CompileRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Script == "busy" {
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(protocol.ErrorResponse{Error: "a playback run is already active"})
			return
		}
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(protocol.PlayResponse{RunID: "run-1"})
	})
	mux.HandleFunc("/api/stop", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(protocol.StopResponse{Stopped: true})
	})
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(runner.Status{ActiveRun: "run-1", Source: "api"})
	})
	mux.HandleFunc("/api/compile", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(protocol.ErrorResponse{Error: "line 1: bad"})
	})

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := websocket.Upgrade(w, r, nil, 1024, 1024)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteJSON(protocol.Message{Type: protocol.TypeRunStarted, RunID: "run-1"})
		conn.WriteJSON(protocol.Message{Type: protocol.TypeProgress, RunID: "run-1"})
		conn.WriteJSON(protocol.Message{Type: protocol.TypeRunFinished, RunID: "run-1"})
		conn.ReadMessage()
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

// TestPlay tests a started run and the busy and unauthorized errors
func TestPlay(t *testing.T) {
	ts := fakeServer(t)
	ctx := context.Background()

	c := New(ts.URL, "secret")
	resp, err := c.Play(ctx, protocol.CompileRequest{Script: "key a 0"})
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if resp.RunID != "run-1" {
		t.Errorf("Expected run id 'run-1', got '%s'", resp.RunID)
	}

	if _, err := c.Play(ctx, protocol.CompileRequest{Script: "busy"}); !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy, got %v", err)
	}

	_, err = New(ts.URL, "").Play(ctx, protocol.CompileRequest{Script: "key a 0"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Errorf("Expected 401 APIError, got %v", err)
	}
}

// TestStopAndStatus tests the stop and status calls
func TestStopAndStatus(t *testing.T) {
	ts := fakeServer(t)
	ctx := context.Background()
	c := New(ts.URL, "")

	stopped, err := c.Stop(ctx)
	if err != nil || !stopped {
		t.Errorf("Expected stopped, got %v (%v)", stopped, err)
	}

	st, err := c.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.ActiveRun != "run-1" || st.Source != "api" {
		t.Errorf("Unexpected status %+v", st)
	}
}

// TestCompileError tests that the server's error message is surfaced
func TestCompileError(t *testing.T) {
	ts := fakeServer(t)

	_, err := New(ts.URL, "").Compile(context.Background(), protocol.CompileRequest{Script: "bad"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnprocessableEntity || apiErr.Message != "line 1: bad" {
		t.Errorf("Unexpected error %+v", apiErr)
	}
}

// TestWatch tests streaming run events until the caller stops
func TestWatch(t *testing.T) {
	ts := fakeServer(t)

	var got []protocol.MessageType
	err := New(ts.URL, "secret").Watch(context.Background(), func(msg protocol.Message) bool {
		got = append(got, msg.Type)
		return msg.Type != protocol.TypeRunFinished
	})
	if err != nil {
		t.Fatalf("Watch: %v", err)
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

	if err := New(ts.URL, "").Watch(context.Background(), func(protocol.Message) bool { return true }); err == nil {
		t.Error("Expected dial error without token")
	}
}
