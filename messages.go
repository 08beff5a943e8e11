package server

import (
	"spectate/server/internal/camera"
	"spectate/server/internal/cycle"
	"spectate/server/internal/session"
	"spectate/server/internal/telemetry"
	"spectate/server/internal/world"
)

// JoinRequest is the body accepted by the join endpoint.
type JoinRequest struct {
	Name   string `json:"name"`
	Locale string `json:"locale,omitempty"`
}

type joinResponse struct {
	Ver       int               `json:"ver"`
	ID        string            `json:"id"`
	World     world.Config      `json:"world"`
	Points    []session.Point   `json:"points"`
	Modes     []camera.ViewMode `json:"modes"`
	Camera    camera.Parameters `json:"camera"`
	Resume    string            `json:"resume,omitempty"`
	TickRate  int               `json:"tickRate"`
	Heartbeat int64             `json:"heartbeatMillis"`
}

type viewerView struct {
	ID      string              `json:"id"`
	Name    string              `json:"name"`
	Mode    session.ControlMode `json:"mode"`
	Pose    camera.Pose         `json:"pose"`
	Subject string              `json:"subject,omitempty"`
}

type entityView struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Position [3]float64 `json:"position"`
	Velocity [3]float64 `json:"velocity"`
	Avatar   bool       `json:"avatar,omitempty"`
}

type stateMessage struct {
	Ver        int          `json:"ver"`
	Type       string       `json:"type"`
	Tick       uint64       `json:"t"`
	ServerTime int64        `json:"serverTime"`
	World      string       `json:"world"`
	Viewers    []viewerView `json:"viewers"`
	Entities   []entityView `json:"entities"`
}

type commandResultMessage struct {
	Ver     int    `json:"ver"`
	Type    string `json:"type"`
	Seq     uint64 `json:"seq"`
	Tick    uint64 `json:"tick"`
	Command string `json:"command"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

type noticeMessage struct {
	Ver  int    `json:"ver"`
	Type string `json:"type"`
	Key  string `json:"key"`
	Text string `json:"text"`
}

type diagnosticsViewer struct {
	ID            string              `json:"id"`
	Mode          session.ControlMode `json:"mode"`
	Connected     bool                `json:"connected"`
	Networked     bool                `json:"networked"`
	LastHeartbeat int64               `json:"lastHeartbeat"`
	RTTMillis     int64               `json:"rttMillis"`
	Locale        string              `json:"locale"`
}

// Diagnostics is the payload of the diagnostics endpoint.
type Diagnostics struct {
	Tick      uint64                `json:"tick"`
	Viewers   []diagnosticsViewer   `json:"viewers"`
	Sessions  []session.Info        `json:"sessions"`
	Playlists []cycle.Status        `json:"playlists"`
	Points    int                   `json:"points"`
	Pending   int                   `json:"pendingCommands"`
	Dropped   map[string]uint64     `json:"droppedCommands,omitempty"`
	Ticks     telemetry.TickSummary `json:"ticks"`
	Metrics   map[string]uint64     `json:"metrics"`
}
