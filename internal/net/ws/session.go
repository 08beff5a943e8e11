package ws

import (
	"github.com/gorilla/websocket"

	"spectate/server"
	"spectate/server/internal/net/intake"
	"spectate/server/internal/net/proto"
	"spectate/server/internal/sim"
)

type subscription interface {
	WriteMessage(messageType int, data []byte) error
	LastCommandSeq() uint64
	StoreLastCommandSeq(seq uint64)
}

// Serve orchestrates a websocket session for the provided viewer connection.
// It returns when the connection closes.
func (h *Handler) Serve(viewerID string, conn *websocket.Conn) {
	if h == nil || h.hub == nil || conn == nil {
		return
	}

	sub, ok := h.hub.Subscribe(viewerID, conn)
	if !ok {
		message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unknown viewer")
		conn.WriteMessage(websocket.CloseMessage, message)
		conn.Close()
		return
	}
	session := subscription(sub)
	disconnect := func(reason string) {
		h.hub.Release(viewerID, sub, reason)
	}

	data, err := h.hub.MarshalState()
	if err != nil {
		h.logger.Printf("failed to marshal initial state for %s: %v", viewerID, err)
		disconnect("marshal_failed")
		return
	}
	if err := session.WriteMessage(websocket.TextMessage, data); err != nil {
		disconnect("write_failed")
		return
	}

	stage := intake.CommandContext{
		Engine:    h.hub,
		HasViewer: h.hub.HasViewer,
		Tick:      h.hub.Tick,
		Now:       h.now,
	}

	write := func(data []byte, err error) bool {
		if err != nil {
			h.logger.Printf("failed to marshal response for %s: %v", viewerID, err)
			return true
		}
		if err := session.WriteMessage(websocket.TextMessage, data); err != nil {
			disconnect("write_failed")
			return false
		}
		return true
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			disconnect("closed")
			return
		}

		msg, err := proto.DecodeClientMessage(payload)
		if err != nil {
			h.logger.Printf("discarding malformed message from %s: %v", viewerID, err)
			continue
		}

		if msg.Type == proto.TypeHeartbeat {
			now := h.now()
			rtt, ok := h.hub.UpdateHeartbeat(viewerID, now, msg.SentAt)
			if !ok {
				continue
			}
			if !write(proto.EncodeHeartbeat(proto.Heartbeat{
				ServerTime: now.UnixMilli(),
				ClientTime: msg.SentAt,
				RTTMillis:  rtt.Milliseconds(),
			})) {
				return
			}
			continue
		}

		seq := msg.Seq()
		if seq > 0 {
			if last := session.LastCommandSeq(); last > 0 && seq <= last {
				if !write(proto.EncodeCommandAck(proto.CommandAck{Seq: seq})) {
					return
				}
				continue
			}
		}

		cmd, ok, reason := intake.StageClientCommand(stage, viewerID, msg)
		if !ok {
			switch reason {
			case server.CommandRejectInvalidCommand:
				h.logger.Printf("invalid %q command from %s", msg.Type, viewerID)
			case server.CommandRejectUnknownActor:
				h.logger.Printf("%s ignored for unknown viewer %s", msg.Type, viewerID)
			}
			if seq == 0 {
				continue
			}
			if !write(proto.EncodeCommandReject(proto.CommandReject{
				Seq:    seq,
				Reason: reason,
				Retry:  reason == sim.CommandRejectQueueLimit,
			})) {
				return
			}
			continue
		}
		if seq == 0 {
			continue
		}
		if !write(proto.EncodeCommandAck(proto.CommandAck{Seq: seq, Tick: cmd.OriginTick})) {
			return
		}
		session.StoreLastCommandSeq(seq)
	}
}
