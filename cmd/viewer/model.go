package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"spectate/server/internal/camera"
	"spectate/server/internal/net/proto"
	"spectate/server/internal/netsync"
	"spectate/server/internal/render"
)

const (
	// The camera is recomputed every computeInterval and drawn twice as often,
	// interpolated between the last two computed poses.
	computeInterval = 50 * time.Millisecond
	frameInterval   = computeInterval / 2
	maxLogLines     = 8
)

// sender writes one frame upstream.
type sender func(payload []byte) error

type frameMsg struct {
	payload  []byte
	received time.Time
}

type disconnectedMsg struct{ err error }

type frameTickMsg time.Time

type heartbeatTickMsg time.Time

type model struct {
	name      string
	send      sender
	renderer  *render.Renderer
	heartbeat time.Duration

	input   string
	log     []string
	pose    camera.Pose
	posed   bool
	viewers int
	seq     uint64
	last    time.Time
	rtt     int64
	err     error
}

func newModel(name string, send sender, defaults camera.Parameters, heartbeat time.Duration) model {
	return model{
		name:      name,
		send:      send,
		renderer:  render.New(defaults),
		heartbeat: heartbeat,
	}
}

func frameTick() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg { return frameTickMsg(t) })
}

func heartbeatTick(every time.Duration) tea.Cmd {
	return tea.Tick(every, func(t time.Time) tea.Msg { return heartbeatTickMsg(t) })
}

func (m model) Init() tea.Cmd {
	return tea.Batch(frameTick(), heartbeatTick(m.heartbeat))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyEnter:
			m = m.submit()
		case tea.KeyEsc:
			m.input = ""
		case tea.KeyBackspace:
			if len(m.input) > 0 {
				m.input = m.input[:len(m.input)-1]
			}
		case tea.KeySpace:
			m.input += " "
		case tea.KeyRunes:
			m.input += string(msg.Runes)
		}
	case frameMsg:
		m = m.receive(msg)
	case frameTickMsg:
		now := time.Time(msg)
		if m.last.IsZero() || now.Sub(m.last) >= computeInterval {
			dt := computeInterval.Seconds()
			if !m.last.IsZero() {
				dt = now.Sub(m.last).Seconds()
			}
			m.last = now
			m.renderer.Frame(now, dt)
		}
		frac := float64(now.Sub(m.last)) / float64(computeInterval)
		m.pose, m.posed = m.renderer.Pose(frac)
		return m, frameTick()
	case heartbeatTickMsg:
		data, _ := json.Marshal(map[string]any{"type": proto.TypeHeartbeat, "sentAt": time.Time(msg).UnixMilli()})
		if err := m.send(data); err != nil {
			m.err = err
			return m, tea.Quit
		}
		return m, heartbeatTick(m.heartbeat)
	case disconnectedMsg:
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m model) submit() model {
	line := strings.TrimSpace(m.input)
	m.input = ""
	if line == "" {
		return m
	}
	if line == "help" {
		m = m.note(helpText)
		return m
	}
	msg, err := parseLine(line)
	if err != nil {
		return m.note(err.Error())
	}
	m.seq++
	seq := m.seq
	msg.CommandSeq = &seq
	data, err := json.Marshal(msg)
	if err != nil {
		return m.note(err.Error())
	}
	if err := m.send(data); err != nil {
		return m.note("send failed: " + err.Error())
	}
	return m.note(fmt.Sprintf("> %s (#%d)", line, seq))
}

func (m model) receive(frame frameMsg) model {
	var head struct {
		Type    string `json:"type"`
		Seq     uint64 `json:"seq"`
		Code    string `json:"code"`
		Message string `json:"message"`
		Reason  string `json:"reason"`
		Text    string `json:"text"`
		RTT     int64  `json:"rtt"`
		Viewers []any  `json:"viewers"`
	}
	if err := json.Unmarshal(frame.payload, &head); err != nil {
		return m.note("bad frame: " + err.Error())
	}
	switch head.Type {
	case "state":
		m.viewers = len(head.Viewers)
	case "notice":
		m = m.note(head.Text)
	case "commandResult":
		if head.Code != "ok" {
			m = m.note(fmt.Sprintf("#%d %s: %s", head.Seq, head.Code, head.Message))
		}
	case "commandReject":
		m = m.note(fmt.Sprintf("#%d rejected: %s", head.Seq, head.Reason))
	case "heartbeat":
		m.rtt = head.RTT
	case netsync.TypeSessionState, netsync.TypeParameters, netsync.TypeTargetUpdate:
		decoded, err := netsync.Decode(frame.payload)
		if err != nil {
			return m.note(err.Error())
		}
		m.renderer.Handle(decoded, frame.received)
	}
	return m
}

func (m model) note(line string) model {
	m.log = append(m.log, strings.Split(line, "\n")...)
	if len(m.log) > maxLogLines {
		m.log = m.log[len(m.log)-maxLogLines:]
	}
	return m
}

func (m model) View() string {
	var b strings.Builder
	fmt.Fprintf(&b, "spectate viewer: %s  (%d online, rtt %dms)\n\n", m.name, m.viewers, m.rtt)
	if m.renderer.Active() {
		state := m.renderer.Session()
		target := state.TargetName
		if target == "" {
			target = state.TargetID
		}
		fmt.Fprintf(&b, "watching %s in %s\n", target, state.Mode)
		if m.posed {
			p := m.pose.Position
			fmt.Fprintf(&b, "camera  x=%8.2f y=%8.2f z=%8.2f  yaw=%7.2f pitch=%6.2f\n", p.X(), p.Y(), p.Z(), m.pose.Yaw, m.pose.Pitch)
		}
	} else {
		b.WriteString("not spectating\n")
	}
	b.WriteString("\n")
	for _, line := range m.log {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\nspectate> ")
	b.WriteString(m.input)
	b.WriteString("\n\n(type help for commands, Ctrl+C to quit)")
	return b.String()
}
