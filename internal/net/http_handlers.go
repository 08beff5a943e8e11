package net

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	nethttp "net/http"
	"net/http/pprof"
	"time"

	"spectate/server"
	"spectate/server/internal/net/ws"
	"spectate/server/internal/store/sqlite"
	"spectate/server/internal/telemetry"
)

type HTTPHandlerConfig struct {
	ClientDir   string
	Logger      telemetry.Logger
	EnablePprof bool
}

const maxJoinBody = 4 << 10

func NewHTTPHandler(hub *server.Hub, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}
	logger = telemetry.WithScope(logger, "http")

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		payload := struct {
			Status     string             `json:"status"`
			ServerTime int64              `json:"serverTime"`
			TickRate   int                `json:"tickRate"`
			Heartbeat  int64              `json:"heartbeatMillis"`
			Hub        server.Diagnostics `json:"hub"`
		}{
			Status:     "ok",
			ServerTime: time.Now().UnixMilli(),
			TickRate:   server.TickRate(),
			Heartbeat:  server.HeartbeatInterval().Milliseconds(),
			Hub:        hub.DiagnosticsSnapshot(),
		}
		writeJSON(w, nethttp.StatusOK, payload)
	})

	mux.HandleFunc("/join", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}

		var req server.JoinRequest
		if r.Body != nil {
			defer r.Body.Close()
			decoder := json.NewDecoder(io.LimitReader(r.Body, maxJoinBody))
			if err := decoder.Decode(&req); err != nil && err != io.EOF {
				httpError(w, "invalid payload", nethttp.StatusBadRequest)
				return
			}
		}
		if req.Name == "" {
			req.Name = r.URL.Query().Get("name")
		}

		join, err := hub.Join(r.Context(), req)
		switch {
		case errors.Is(err, server.ErrInvalidName):
			httpError(w, "invalid name", nethttp.StatusBadRequest)
			return
		case errors.Is(err, server.ErrNameTaken):
			httpError(w, "name in use", nethttp.StatusConflict)
			return
		case err != nil:
			logger.Printf("join %q failed: %v", req.Name, err)
			httpError(w, "join failed", nethttp.StatusInternalServerError)
			return
		}
		writeJSON(w, nethttp.StatusOK, join)
	})

	mux.HandleFunc("/points", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		payload := struct {
			Points any `json:"points"`
		}{Points: hub.Points()}
		writeJSON(w, nethttp.StatusOK, payload)
	})

	mux.HandleFunc("/usage", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		viewer := r.URL.Query().Get("viewer")
		if viewer == "" {
			httpError(w, "missing viewer", nethttp.StatusBadRequest)
			return
		}
		usage, err := hub.Usage(r.Context(), viewer)
		if errors.Is(err, sqlite.ErrNotConfigured) {
			httpError(w, "usage history disabled", nethttp.StatusServiceUnavailable)
			return
		}
		if err != nil {
			logger.Printf("usage lookup for %s failed: %v", viewer, err)
			httpError(w, "usage lookup failed", nethttp.StatusInternalServerError)
			return
		}
		if usage == nil {
			usage = []sqlite.Usage{}
		}
		payload := struct {
			Viewer string         `json:"viewer"`
			Usage  []sqlite.Usage `json:"usage"`
		}{Viewer: viewer, Usage: usage}
		writeJSON(w, nethttp.StatusOK, payload)
	})

	socket := ws.NewHandler(hub, ws.HandlerConfig{Logger: logger})
	mux.HandleFunc("/ws", socket.Handle)

	if cfg.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	if cfg.ClientDir != "" {
		fs := nethttp.FileServer(nethttp.Dir(cfg.ClientDir))
		mux.Handle("/", fs)
	}

	return mux
}

func writeJSON(w nethttp.ResponseWriter, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
