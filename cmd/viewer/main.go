// Command viewer is a terminal spectator client. It joins a spectate server,
// declares itself a networked renderer and draws the camera pose it computes
// from the session messages it receives.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"

	"spectate/server/internal/camera"
	"spectate/server/internal/netsync"
	"spectate/server/internal/render"
)

type joinResponse struct {
	ID        string            `json:"id"`
	Camera    camera.Parameters `json:"camera"`
	Resume    string            `json:"resume"`
	Heartbeat int64             `json:"heartbeatMillis"`
}

func main() {
	var (
		serverURL string
		name      string
		locale    string
	)
	flag.StringVar(&serverURL, "server", "http://localhost:8080", "spectate server base URL")
	flag.StringVar(&name, "name", "", "viewer name")
	flag.StringVar(&locale, "locale", "", "notice locale, e.g. de")
	flag.Parse()

	if name == "" {
		fmt.Fprintln(os.Stderr, "--name is required")
		os.Exit(1)
	}

	if err := run(serverURL, name, locale); err != nil {
		fmt.Fprintf(os.Stderr, "viewer: %v\n", err)
		os.Exit(1)
	}
}

func run(serverURL, name, locale string) error {
	join, err := joinServer(serverURL, name, locale)
	if err != nil {
		return err
	}

	wsURL, err := socketURL(serverURL, join.ID)
	if err != nil {
		return err
	}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if resp != nil {
		resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}
	defer conn.Close()

	send := func(payload []byte) error {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		return conn.WriteMessage(websocket.TextMessage, payload)
	}

	declaration, err := netsync.Encode(render.New(join.Camera).Declaration(nil))
	if err != nil {
		return err
	}
	if err := send(declaration); err != nil {
		return fmt.Errorf("declare capability: %w", err)
	}

	heartbeat := time.Duration(join.Heartbeat) * time.Millisecond
	if heartbeat <= 0 {
		heartbeat = 2 * time.Second
	}
	m := newModel(join.ID, send, join.Camera, heartbeat)
	if join.Resume != "" {
		m = m.note("resuming " + join.Resume)
	}

	program := tea.NewProgram(m, tea.WithAltScreen())
	go func() {
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				program.Send(disconnectedMsg{err: err})
				return
			}
			program.Send(frameMsg{payload: payload, received: time.Now()})
		}
	}()

	final, err := program.Run()
	if err != nil {
		return err
	}
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if fm, ok := final.(model); ok && fm.err != nil && !websocket.IsCloseError(fm.err, websocket.CloseNormalClosure) {
		return fm.err
	}
	return nil
}

func joinServer(serverURL, name, locale string) (joinResponse, error) {
	body, err := json.Marshal(map[string]string{"name": name, "locale": locale})
	if err != nil {
		return joinResponse{}, err
	}
	resp, err := http.Post(strings.TrimRight(serverURL, "/")+"/join", "application/json", bytes.NewReader(body))
	if err != nil {
		return joinResponse{}, fmt.Errorf("join: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return joinResponse{}, fmt.Errorf("join: server answered %s", resp.Status)
	}
	var join joinResponse
	if err := json.NewDecoder(resp.Body).Decode(&join); err != nil {
		return joinResponse{}, fmt.Errorf("decode join: %w", err)
	}
	return join, nil
}

func socketURL(serverURL, id string) (string, error) {
	parsed, err := url.Parse(serverURL)
	if err != nil {
		return "", err
	}
	switch parsed.Scheme {
	case "https":
		parsed.Scheme = "wss"
	default:
		parsed.Scheme = "ws"
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/") + "/ws"
	query := parsed.Query()
	query.Set("id", id)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
