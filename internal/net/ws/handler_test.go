package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"spectate/server"
	"spectate/server/internal/telemetry"
)

func newTestHub(t *testing.T, names ...string) *server.Hub {
	t.Helper()
	cfg := server.DefaultHubConfig()
	cfg.Logger = telemetry.Discard
	hub, err := server.NewHubWithConfig(cfg)
	if err != nil {
		t.Fatalf("failed to construct hub: %v", err)
	}
	for _, name := range names {
		if _, err := hub.Join(context.Background(), server.JoinRequest{Name: name}); err != nil {
			t.Fatalf("join %s: %v", name, err)
		}
	}
	return hub
}

func newTestServer(t *testing.T, hub *server.Hub) *httptest.Server {
	t.Helper()
	handler := NewHandler(hub, HandlerConfig{Logger: telemetry.Discard})
	srv := httptest.NewServer(http.HandlerFunc(handler.Handle))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, baseURL, viewerID string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(websocketURL(t, baseURL, viewerID), nil)
	if resp != nil {
		resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("failed to open websocket connection: %v", err)
	}
	t.Cleanup(func() {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	})
	return conn
}

func websocketURL(t *testing.T, baseURL, viewerID string) string {
	t.Helper()

	parsed, err := url.Parse(baseURL)
	if err != nil {
		t.Fatalf("failed to parse test server url: %v", err)
	}
	parsed.Scheme = "ws"
	parsed.Path = "/"
	query := parsed.Query()
	query.Set("id", viewerID)
	parsed.RawQuery = query.Encode()
	return parsed.String()
}

// readFrame returns the next frame of the wanted type, skipping others.
func readFrame(t *testing.T, conn *websocket.Conn, wanted string) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("failed waiting for %s frame: %v", wanted, err)
		}
		var frame map[string]any
		if err := json.Unmarshal(payload, &frame); err != nil {
			t.Fatalf("failed to decode websocket payload: %v", err)
		}
		if frame["type"] == wanted {
			return frame
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, raw string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
		t.Fatalf("failed to send %s: %v", raw, err)
	}
}

func TestHandleSendsInitialStateAndAcksCommands(t *testing.T) {
	hub := newTestHub(t, "ada")
	srv := newTestServer(t, hub)
	conn := dial(t, srv.URL, "ada")

	state := readFrame(t, conn, "state")
	viewers, ok := state["viewers"].([]any)
	if !ok || len(viewers) != 1 {
		t.Fatalf("expected one viewer in initial state, got %v", state["viewers"])
	}

	send(t, conn, `{"type":"spectate","target":"tower","seq":1}`)
	ack := readFrame(t, conn, "commandAck")
	if ack["seq"].(float64) != 1 {
		t.Fatalf("expected ack for seq 1, got %v", ack)
	}

	// A replayed sequence is acknowledged again but not re-queued.
	send(t, conn, `{"type":"spectate","target":"tower","seq":1}`)
	readFrame(t, conn, "commandAck")

	hub.Advance(time.Now(), 0.05)
	result := readFrame(t, conn, "commandResult")
	if result["seq"].(float64) != 1 || result["code"] != server.ResultUnknownPoint {
		t.Fatalf("unexpected command result: %v", result)
	}
	if pending := hub.DiagnosticsSnapshot().Pending; pending != 0 {
		t.Fatalf("expected duplicate to be dropped, %d commands pending", pending)
	}
}

func TestHandleRejectsInvalidCommands(t *testing.T) {
	hub := newTestHub(t, "ada")
	srv := newTestServer(t, hub)
	conn := dial(t, srv.URL, "ada")
	readFrame(t, conn, "state")

	send(t, conn, `{"type":"spectate","target":"tower","mode":"upside_down","seq":4}`)
	reject := readFrame(t, conn, "commandReject")
	if reject["reason"] != server.CommandRejectInvalidCommand {
		t.Fatalf("expected invalid_command reject, got %v", reject)
	}
	if _, retry := reject["retry"]; retry {
		t.Fatalf("expected invalid command not to be retryable: %v", reject)
	}
}

func TestHandleHeartbeatEchoesClientTime(t *testing.T) {
	hub := newTestHub(t, "ada")
	srv := newTestServer(t, hub)
	conn := dial(t, srv.URL, "ada")
	readFrame(t, conn, "state")

	sent := time.Now().Add(-20 * time.Millisecond).UnixMilli()
	send(t, conn, `{"type":"heartbeat","sentAt":`+jsonNumber(sent)+`}`)
	beat := readFrame(t, conn, "heartbeat")
	if int64(beat["clientTime"].(float64)) != sent {
		t.Fatalf("expected client time %d echoed, got %v", sent, beat["clientTime"])
	}
	if beat["rtt"].(float64) < 0 {
		t.Fatalf("expected non-negative rtt, got %v", beat["rtt"])
	}
}

func TestHandleRefusesUnknownViewer(t *testing.T) {
	hub := newTestHub(t)
	srv := newTestServer(t, hub)

	_, resp, err := websocket.DefaultDialer.Dial(websocketURL(t, srv.URL, "ghost"), nil)
	if err == nil {
		t.Fatalf("expected dial to fail for unknown viewer")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 response, got %v", resp)
	}
	resp.Body.Close()
}

func TestReconnectKeepsViewerJoined(t *testing.T) {
	hub := newTestHub(t, "ada")
	srv := newTestServer(t, hub)

	first := dial(t, srv.URL, "ada")
	readFrame(t, first, "state")
	second := dial(t, srv.URL, "ada")
	readFrame(t, second, "state")

	// The hub closes the replaced connection; its read loop must not tear
	// down the viewer.
	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := first.ReadMessage(); err != nil {
			break
		}
	}
	time.Sleep(50 * time.Millisecond)
	hub.Advance(time.Now(), 0.05)

	if !hub.HasViewer("ada") {
		t.Fatalf("expected viewer to remain joined after reconnect")
	}
	readFrame(t, second, "state")
}

func jsonNumber(v int64) string {
	data, _ := json.Marshal(v)
	return string(data)
}
