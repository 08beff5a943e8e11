package ws

import (
	"log"
	nethttp "net/http"
	"time"

	"github.com/gorilla/websocket"

	"spectate/server"
	"spectate/server/internal/telemetry"
)

type HandlerConfig struct {
	Logger telemetry.Logger
	// Now overrides the clock used for heartbeat replies and command stamps.
	Now func() time.Time
}

// Handler upgrades spectator connections and runs their read loops.
type Handler struct {
	hub      *server.Hub
	logger   telemetry.Logger
	now      func() time.Time
	upgrader websocket.Upgrader
}

func NewHandler(hub *server.Hub, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}
	logger = telemetry.WithScope(logger, "ws")
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	return &Handler{
		hub:      hub,
		logger:   logger,
		now:      now,
		upgrader: upgrader,
	}
}

func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	viewerID := r.URL.Query().Get("id")
	if viewerID == "" {
		nethttp.Error(w, "missing id", nethttp.StatusBadRequest)
		return
	}
	if !h.hub.HasViewer(viewerID) {
		nethttp.Error(w, "unknown viewer", nethttp.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed for %s: %v", viewerID, err)
		return
	}

	h.Serve(viewerID, conn)
}
