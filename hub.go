package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/gorilla/websocket"

	"spectate/server/internal/camera"
	"spectate/server/internal/cycle"
	"spectate/server/internal/netsync"
	"spectate/server/internal/notify"
	"spectate/server/internal/session"
	"spectate/server/internal/sim"
	"spectate/server/internal/store/sqlite"
	"spectate/server/internal/telemetry"
	"spectate/server/internal/world"
	"spectate/server/logging"
	loggingLifecycle "spectate/server/logging/lifecycle"
	loggingNetwork "spectate/server/logging/network"
	loggingSimulation "spectate/server/logging/simulation"
)

var (
	// ErrInvalidName is returned by Join for empty or malformed names.
	ErrInvalidName = errors.New("hub: invalid viewer name")
	// ErrNameTaken is returned by Join when the name is connected already.
	ErrNameTaken = errors.New("hub: viewer name in use")
)

// wsConn is the slice of *websocket.Conn the hub writes through.
type wsConn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type subscriber struct {
	conn           wsConn
	mu             sync.Mutex
	lastCommandSeq atomic.Uint64
}

// WriteMessage serializes writes to the underlying connection.
func (s *subscriber) WriteMessage(messageType int, data []byte) error {
	if s == nil || s.conn == nil {
		return errors.New("subscriber closed")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(messageType, data)
}

func (s *subscriber) LastCommandSeq() uint64 {
	return s.lastCommandSeq.Load()
}

func (s *subscriber) StoreLastCommandSeq(seq uint64) {
	s.lastCommandSeq.Store(seq)
}

type viewerState struct {
	locale        string
	params        camera.Parameters
	connected     bool
	lastHeartbeat time.Time
	lastRTT       time.Duration
	resume        *session.Descriptor
	resumeAt      time.Time
}

type outbound struct {
	viewer  string
	payload []byte
}

// Hub owns the authoritative spectating state. Producers only enqueue
// commands; the loop applies them and advances sessions and cycles while
// holding mu.
type Hub struct {
	mu sync.Mutex

	config    HubConfig
	world     *world.World
	sessions  *session.Manager
	cycles    *cycle.Scheduler
	registry  *netsync.Registry
	emitter   *netsync.Emitter
	notices   *notify.Catalog
	store     Persistence
	engine    *sim.Loop
	telemetry *tickTelemetry

	logger    telemetry.Logger
	counters  *logging.Metrics
	metrics   telemetry.Metrics
	publisher logging.Publisher
	clock     logging.Clock

	viewers     map[string]*viewerState
	subscribers map[string]*subscriber
	outbox      []outbound
	tick        uint64
}

// NewHub constructs a hub with the default configuration.
func NewHub() (*Hub, error) {
	return NewHubWithConfig(DefaultHubConfig())
}

// NewHubWithConfig constructs a hub using the provided configuration.
func NewHubWithConfig(cfg HubConfig) (*Hub, error) {
	defaults := DefaultHubConfig()
	if cfg.Loop.TickRate <= 0 {
		cfg.Loop = defaults.Loop
	}
	if cfg.Camera == (camera.Parameters{}) {
		cfg.Camera = defaults.Camera
	}
	if err := cfg.Camera.Validate(); err != nil {
		return nil, fmt.Errorf("camera defaults: %w", err)
	}
	if cfg.Locale == "" {
		cfg.Locale = defaults.Locale
	}
	if cfg.Logger == nil {
		cfg.Logger = telemetry.WrapLogger(log.Default())
	}
	if cfg.Metrics == nil {
		cfg.Metrics = &logging.Metrics{}
	}
	if cfg.Publisher == nil {
		cfg.Publisher = logging.NopPublisher()
	}
	if cfg.Clock == nil {
		cfg.Clock = logging.SystemClock{}
	}
	if cfg.Store == nil {
		cfg.Store = nopPersistence{}
	}
	if cfg.Notices == nil {
		catalog, err := notify.New()
		if err != nil {
			return nil, fmt.Errorf("notice catalog: %w", err)
		}
		cfg.Notices = catalog
	}

	h := &Hub{
		config:      cfg,
		notices:     cfg.Notices,
		store:       cfg.Store,
		telemetry:   newTickTelemetry(cfg.TickWindow),
		logger:      cfg.Logger,
		counters:    cfg.Metrics,
		metrics:     telemetry.WrapMetrics(cfg.Metrics),
		publisher:   cfg.Publisher,
		clock:       cfg.Clock,
		viewers:     make(map[string]*viewerState),
		subscribers: make(map[string]*subscriber),
	}

	h.world = world.New(cfg.World, world.Deps{Clock: cfg.Clock, Publisher: cfg.Publisher})
	h.registry = netsync.NewRegistry()
	h.emitter = netsync.NewEmitter(netsync.TransportFunc(h.queueLocked), h.registry, cfg.SyncRate, h.metrics)
	h.sessions = session.NewManager(session.Config{
		Viewers:        h.world,
		Entities:       h.world,
		Sync:           h.emitter,
		Clock:          cfg.Clock,
		Publisher:      cfg.Publisher,
		Logger:         cfg.Logger,
		Metrics:        h.metrics,
		UpdateInterval: cfg.UpdateInterval,
		OnTargetLost:   h.onTargetLostLocked,
	})
	h.cycles = cycle.NewScheduler(cycle.Config{
		Sessions:     h.sessions,
		Params:       h.paramsLocked,
		Notifier:     cycle.NotifierFunc(h.onCycleProgressLocked),
		Clock:        cfg.Clock,
		Publisher:    cfg.Publisher,
		Logger:       cfg.Logger,
		DefaultDwell: cfg.DefaultDwell,
	})

	engine, err := sim.NewEngine(h,
		sim.WithLoopConfig(cfg.Loop),
		sim.WithLoopHooks(sim.LoopHooks{
			AfterStep:      h.afterStep,
			OnQueueWarning: h.onQueueWarning,
			OnCommandDrop:  h.onCommandDrop,
		}),
	)
	if err != nil {
		return nil, err
	}
	h.engine = engine
	return h, nil
}

// Deps implements sim.EngineCore.
func (h *Hub) Deps() sim.Deps {
	return sim.Deps{Logger: h.logger, Metrics: h.metrics, Clock: h.clock}
}

// LoadPoints restores persisted named points into the point book.
func (h *Hub) LoadPoints(ctx context.Context) (int, error) {
	points, err := h.store.LoadPoints(ctx)
	if err != nil {
		return 0, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.world.Points().Load(points), nil
}

// ValidViewerName reports whether name can be used to join.
func ValidViewerName(name string) bool {
	if name == "" || len(name) > maxNameBytes {
		return false
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-' && r != '.' {
			return false
		}
	}
	return true
}

// Join registers a new viewer. A descriptor left behind by the viewer's
// previous connection is consumed here and resumed once the viewer subscribes.
func (h *Hub) Join(ctx context.Context, req JoinRequest) (joinResponse, error) {
	if !ValidViewerName(req.Name) {
		return joinResponse{}, fmt.Errorf("%w: %q", ErrInvalidName, req.Name)
	}

	desc, found, err := h.store.TakeDescriptor(ctx, req.Name)
	if err != nil {
		h.logger.Printf("resume lookup for %s failed: %v", req.Name, err)
		found = false
	}

	h.mu.Lock()
	now := h.clock.Now()
	if _, err := h.world.AddViewer(req.Name, req.Name); err != nil {
		h.mu.Unlock()
		if found {
			h.store.SaveDescriptor(req.Name, desc)
		}
		if errors.Is(err, world.ErrDuplicateViewer) || errors.Is(err, world.ErrDuplicateEntity) {
			return joinResponse{}, fmt.Errorf("%w: %s", ErrNameTaken, req.Name)
		}
		return joinResponse{}, err
	}
	locale := req.Locale
	if locale == "" {
		locale = h.config.Locale
	}
	state := &viewerState{
		locale:        locale,
		params:        h.config.Camera,
		lastHeartbeat: now,
	}
	resp := joinResponse{
		Ver:       ProtocolVersion,
		ID:        req.Name,
		World:     h.world.Config(),
		Points:    h.world.Points().All(),
		Modes:     camera.Modes(),
		Camera:    state.params,
		TickRate:  h.config.Loop.TickRate,
		Heartbeat: heartbeatInterval.Milliseconds(),
	}
	if found {
		d := desc
		state.resume = &d
		resp.Resume = desc.String()
	}
	h.viewers[req.Name] = state
	tick := h.tick
	h.mu.Unlock()

	loggingLifecycle.ViewerJoined(ctx, h.publisher, tick, viewerRef(req.Name), loggingLifecycle.ViewerJoinedPayload{
		World:  h.world.ID(),
		Avatar: req.Name,
	}, nil)
	return resp, nil
}

// Subscribe attaches a websocket connection to a joined viewer and queues the
// connect command that makes the viewer visible to auto-membership cycles.
func (h *Hub) Subscribe(viewer string, conn *websocket.Conn) (*subscriber, bool) {
	return h.attach(viewer, conn)
}

func (h *Hub) attach(viewer string, conn wsConn) (*subscriber, bool) {
	h.mu.Lock()
	state, ok := h.viewers[viewer]
	if !ok {
		h.mu.Unlock()
		return nil, false
	}
	state.lastHeartbeat = h.clock.Now()
	previous := h.subscribers[viewer]
	sub := &subscriber{conn: conn}
	h.subscribers[viewer] = sub
	h.mu.Unlock()

	if previous != nil && previous.conn != nil {
		previous.conn.Close()
	}
	h.enqueue(sim.Command{ActorID: viewer, Type: sim.CommandConnect})
	return sub, true
}

// Disconnect closes the viewer's connection and queues the teardown. The
// viewer's session and playlist are suspended on the next tick.
func (h *Hub) Disconnect(viewer, reason string) {
	h.mu.Lock()
	sub, ok := h.subscribers[viewer]
	if ok {
		delete(h.subscribers, viewer)
	}
	h.mu.Unlock()
	if ok && sub.conn != nil {
		sub.conn.Close()
	}
	h.enqueue(sim.Command{
		ActorID:    viewer,
		Type:       sim.CommandDisconnect,
		Disconnect: &sim.DisconnectCommand{Reason: reason},
	})
}

// Shutdown suspends every viewer as though it had disconnected and closes
// the connections, so resume descriptors reach the store. Call it once the
// tick loop has stopped.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	subs := h.subscribers
	h.subscribers = make(map[string]*subscriber)
	ids := make([]string, 0, len(h.viewers))
	for id := range h.viewers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		h.disconnectLocked(id, "shutdown")
	}
	h.outbox = nil
	h.mu.Unlock()

	for _, sub := range subs {
		if sub.conn != nil {
			sub.conn.Close()
		}
	}
}

// Release disconnects viewer only while sub is still its active connection.
// A read loop whose connection was replaced by a reconnect leaves the viewer
// alone.
func (h *Hub) Release(viewer string, sub *subscriber, reason string) bool {
	h.mu.Lock()
	current, ok := h.subscribers[viewer]
	h.mu.Unlock()
	if !ok || current != sub {
		return false
	}
	h.Disconnect(viewer, reason)
	return true
}

// UpdateHeartbeat records liveness and returns the measured round trip.
func (h *Hub) UpdateHeartbeat(viewer string, received time.Time, clientSent int64) (time.Duration, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	state, ok := h.viewers[viewer]
	if !ok {
		return 0, false
	}
	state.lastHeartbeat = received
	if clientSent > 0 {
		rtt := received.Sub(time.UnixMilli(clientSent))
		if rtt >= 0 {
			state.lastRTT = rtt
		}
	}
	return state.lastRTT, true
}

// HasViewer reports whether viewer has joined.
func (h *Hub) HasViewer(viewer string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.viewers[viewer]
	return ok
}

// Enqueue stages a command for the next tick.
func (h *Hub) Enqueue(cmd sim.Command) (bool, string) {
	return h.enqueue(cmd)
}

func (h *Hub) enqueue(cmd sim.Command) (bool, string) {
	if cmd.IssuedAt.IsZero() {
		cmd.IssuedAt = h.clock.Now()
	}
	if cmd.OriginTick == 0 {
		cmd.OriginTick = h.engine.Tick()
	}
	return h.engine.Enqueue(cmd)
}

// Tick returns the last advanced tick.
func (h *Hub) Tick() uint64 {
	return h.engine.Tick()
}

// RunSimulation drives the fixed-rate tick loop until the stop channel closes.
func (h *Hub) RunSimulation(stop <-chan struct{}) {
	h.engine.Run(stop)
}

// Advance runs a single tick outside the ticker.
func (h *Hub) Advance(now time.Time, dt float64) sim.LoopStepResult {
	start := time.Now()
	result := h.engine.Advance(sim.LoopTickContext{Tick: h.engine.Tick() + 1, Now: now, Delta: dt})
	result.Duration = time.Since(start)
	h.afterStep(result)
	return result
}

// Step implements sim.EngineCore: movement, due resumes, heartbeat expiry,
// session and cycle tables, then the state broadcast.
func (h *Hub) Step(ctx sim.LoopTickContext) {
	h.mu.Lock()
	h.tick = ctx.Tick
	h.world.Step(ctx.Delta)
	h.expireLocked(ctx.Now)
	h.resumeDueLocked(ctx.Now)
	h.sessions.Tick(ctx.Tick, ctx.Now)
	h.cycles.Tick(ctx.Tick, ctx.Now)
	state := h.stateLocked(ctx.Tick, ctx.Now)
	h.mu.Unlock()

	h.flush()
	h.broadcastState(state)
}

func (h *Hub) expireLocked(now time.Time) {
	var stale []string
	for id, state := range h.viewers {
		if now.Sub(state.lastHeartbeat) > disconnectAfter {
			stale = append(stale, id)
		}
	}
	sort.Strings(stale)
	for _, id := range stale {
		h.logger.Printf("disconnecting %s due to heartbeat timeout", id)
		if sub, ok := h.subscribers[id]; ok {
			delete(h.subscribers, id)
			if sub.conn != nil {
				sub.conn.Close()
			}
		}
		h.disconnectLocked(id, "timeout")
	}
}

// disconnectLocked tears a viewer down within the current tick: its playlist
// is parked, its session stopped, and what it was watching persisted.
func (h *Hub) disconnectLocked(viewer, reason string) {
	state, ok := h.viewers[viewer]
	if !ok {
		return
	}
	running := h.cycles.Suspend(viewer)
	desc, watching := h.sessions.Suspend(viewer)
	if running {
		mode, ok := h.cycles.PreferredMode(viewer)
		if !ok {
			mode = desc.Mode
		}
		desc, watching = session.CycleDescriptor(mode), true
	} else if !watching && state.resume != nil {
		// Never resumed; keep the old descriptor for the next connection.
		desc, watching = *state.resume, true
	}
	payload := loggingLifecycle.ViewerDisconnectedPayload{Reason: reason}
	if watching {
		if h.store.SaveDescriptor(viewer, desc) {
			payload.Descriptor = desc.String()
		} else {
			h.logger.Printf("descriptor for %s dropped", viewer)
		}
	}
	h.cycles.PeerDisconnected(viewer)
	h.world.RemoveViewer(viewer)
	h.registry.Forget(viewer)
	h.emitter.Forget(viewer)
	delete(h.viewers, viewer)
	loggingLifecycle.ViewerDisconnected(context.Background(), h.publisher, h.tick, viewerRef(viewer), payload, nil)
}

func (h *Hub) resumeDueLocked(now time.Time) {
	var due []string
	for id, state := range h.viewers {
		if state.resume != nil && state.connected && !now.Before(state.resumeAt) {
			due = append(due, id)
		}
	}
	sort.Strings(due)
	for _, id := range due {
		h.resumeLocked(id, now)
	}
}

// resumeLocked restores what the viewer was watching before it disconnected.
func (h *Hub) resumeLocked(viewer string, now time.Time) {
	state, ok := h.viewers[viewer]
	if !ok || state.resume == nil {
		return
	}
	desc := *state.resume
	state.resume = nil

	var err error
	switch desc.Kind {
	case session.DescriptorCycle:
		err = h.cycles.Resume(viewer, true)
	case session.DescriptorPoint:
		p, ok := h.world.Points().LookupPoint(desc.Ref)
		if !ok {
			err = fmt.Errorf("%w: %s", session.ErrUnknownPoint, desc.Ref)
			break
		}
		err = h.startLocked(viewer, session.PointTarget(p), desc.Mode, now)
	case session.DescriptorEntity:
		e, ok := h.world.Entity(desc.Ref)
		if !ok {
			err = fmt.Errorf("%w: %s", session.ErrTargetUnresolvable, desc.Ref)
			break
		}
		err = h.startLocked(viewer, session.EntityTarget(e.ID, e.Name), desc.Mode, now)
	default:
		err = session.ErrInvalidDescriptor
	}

	label := desc.Ref
	if label == "" {
		label = string(desc.Kind)
	}
	if err != nil {
		h.logger.Printf("resume %s for %s failed: %v", desc, viewer, err)
		h.noticeLocked(viewer, notify.KeyResumeFailed, label)
	} else {
		h.noticeLocked(viewer, notify.KeyResumed, label)
	}
	loggingLifecycle.ViewerResumed(context.Background(), h.publisher, h.tick, viewerRef(viewer), loggingLifecycle.ViewerResumedPayload{
		Descriptor: desc.String(),
		Resumed:    err == nil,
	}, nil)
}

// startLocked starts or switches a session and records usage.
func (h *Hub) startLocked(viewer string, target session.Target, mode camera.ViewMode, now time.Time) error {
	info, err := h.sessions.Start(viewer, target, mode, h.paramsLocked(viewer), session.StartOptions{Force: true})
	if err != nil {
		return err
	}
	h.store.RecordUsage(viewer, target, info.Mode, now)
	return nil
}

// paramsLocked returns the camera parameters the viewer's next session uses.
func (h *Hub) paramsLocked(viewer string) camera.Parameters {
	if state, ok := h.viewers[viewer]; ok {
		return state.params
	}
	return h.config.Camera
}

func (h *Hub) onTargetLostLocked(viewer string, target session.Target) {
	h.cycles.TargetLost(viewer, target)
	h.noticeLocked(viewer, notify.KeyTargetLost, target.Name)
}

func (h *Hub) onCycleProgressLocked(viewer string, progress cycle.Progress) {
	h.noticeLocked(viewer, notify.KeyCycleProgress, progress.Target, progress.Index+1, progress.Total)
}

func (h *Hub) noticeLocked(viewer string, key notify.Key, args ...any) {
	locale := h.config.Locale
	if state, ok := h.viewers[viewer]; ok {
		locale = state.locale
	}
	h.sendLocked(viewer, noticeMessage{
		Ver:  ProtocolVersion,
		Type: "notice",
		Key:  string(key),
		Text: h.notices.Format(locale, key, args...),
	})
}

func (h *Hub) sendLocked(viewer string, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Printf("failed to marshal %T for %s: %v", msg, viewer, err)
		return
	}
	h.queueLocked(viewer, data)
}

// queueLocked buffers a payload until the tick releases the lock. It is also
// the transport the session emitter writes through.
func (h *Hub) queueLocked(viewer string, payload []byte) error {
	h.outbox = append(h.outbox, outbound{viewer: viewer, payload: payload})
	return nil
}

// flush delivers buffered payloads outside the lock. A failed write
// disconnects the viewer.
func (h *Hub) flush() {
	h.mu.Lock()
	pending := h.outbox
	h.outbox = nil
	subs := make(map[string]*subscriber, len(pending))
	for _, out := range pending {
		if sub, ok := h.subscribers[out.viewer]; ok {
			subs[out.viewer] = sub
		}
	}
	h.mu.Unlock()

	failed := make(map[string]bool)
	for _, out := range pending {
		sub, ok := subs[out.viewer]
		if !ok || failed[out.viewer] {
			continue
		}
		if err := sub.WriteMessage(websocket.TextMessage, out.payload); err != nil {
			h.logger.Printf("failed to send update to %s: %v", out.viewer, err)
			h.metrics.Add(metricSendFailures, 1)
			failed[out.viewer] = true
		}
	}
	for viewer := range failed {
		h.Disconnect(viewer, "write_failed")
	}
}

func (h *Hub) stateLocked(tick uint64, now time.Time) stateMessage {
	viewers := h.world.Viewers()
	entities := h.world.Entities()
	msg := stateMessage{
		Ver:        ProtocolVersion,
		Type:       "state",
		Tick:       tick,
		ServerTime: now.UnixMilli(),
		World:      h.world.ID(),
		Viewers:    make([]viewerView, 0, len(viewers)),
		Entities:   make([]entityView, 0, len(entities)),
	}
	for _, v := range viewers {
		msg.Viewers = append(msg.Viewers, viewerView{ID: v.ID, Name: v.Name, Mode: v.Mode, Pose: v.Pose, Subject: v.Subject})
	}
	for _, e := range entities {
		msg.Entities = append(msg.Entities, entityView{
			ID:       e.ID,
			Name:     e.Name,
			Position: [3]float64(e.Position),
			Velocity: [3]float64(e.Velocity),
			Avatar:   e.Avatar,
		})
	}
	return msg
}

// MarshalState renders the current world snapshot.
func (h *Hub) MarshalState() ([]byte, error) {
	h.mu.Lock()
	state := h.stateLocked(h.tick, h.clock.Now())
	h.mu.Unlock()
	return json.Marshal(state)
}

// broadcastState sends the latest world snapshot to every subscriber.
func (h *Hub) broadcastState(msg stateMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Printf("failed to marshal state message: %v", err)
		return
	}

	h.mu.Lock()
	subs := make(map[string]*subscriber, len(h.subscribers))
	for id, sub := range h.subscribers {
		subs[id] = sub
	}
	h.mu.Unlock()

	for id, sub := range subs {
		if err := sub.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Printf("failed to send state to %s: %v", id, err)
			h.metrics.Add(metricSendFailures, 1)
			h.Disconnect(id, "write_failed")
			continue
		}
		h.telemetry.recordBroadcast(len(data))
	}
	h.metrics.Store(metricBroadcastBytes, h.telemetry.bytesSent.Load())
}

func (h *Hub) afterStep(result sim.LoopStepResult) {
	if result.Err != nil {
		h.logger.Printf("tick %d: %v", result.Tick, result.Err)
	}
	streak := h.telemetry.observe(result.Duration, result.Budget)
	h.metrics.Store(metricTickDuration, uint64(result.Duration.Milliseconds()))
	if streak == 0 {
		return
	}
	h.metrics.Add(metricTickOverruns, 1)
	summary := h.telemetry.stats.Summary()
	h.mu.Lock()
	sessions := h.sessions.ActiveCount()
	h.mu.Unlock()
	loggingSimulation.TickBudgetOverrun(context.Background(), h.publisher, result.Tick, loggingSimulation.TickBudgetOverrunPayload{
		DurationMillis: result.Duration.Milliseconds(),
		BudgetMillis:   result.Budget.Milliseconds(),
		Ratio:          float64(result.Duration) / float64(result.Budget),
		Streak:         streak,
		MeanMillis:     summary.MeanMillis,
		P95Millis:      summary.P95Millis,
		Sessions:       sessions,
	}, nil)
}

func (h *Hub) onQueueWarning(length int) {
	h.logger.Printf("[backpressure] command queue length=%d", length)
}

func (h *Hub) onCommandDrop(reason string, cmd sim.Command) {
	h.metrics.Add(metricCommandsDrop, 1)
	loggingNetwork.CommandRejected(context.Background(), h.publisher, h.engine.Tick(), viewerRef(cmd.ActorID), loggingNetwork.CommandRejectedPayload{
		Command: string(cmd.Type),
		Reason:  reason,
	}, nil)
}

// Points lists the named points.
func (h *Hub) Points() []session.Point {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.world.Points().All()
}

// Usage reports how often viewer watched each target.
func (h *Hub) Usage(ctx context.Context, viewer string) ([]sqlite.Usage, error) {
	return h.store.Usage(ctx, viewer)
}

// DiagnosticsSnapshot exposes sessions, playlists and tick timing.
func (h *Hub) DiagnosticsSnapshot() Diagnostics {
	h.mu.Lock()
	out := Diagnostics{
		Tick:      h.tick,
		Viewers:   make([]diagnosticsViewer, 0, len(h.viewers)),
		Sessions:  h.sessions.Sessions(),
		Playlists: h.cycles.Statuses(),
		Points:    h.world.Points().Len(),
	}
	for id, state := range h.viewers {
		out.Viewers = append(out.Viewers, diagnosticsViewer{
			ID:            id,
			Mode:          h.world.ControlMode(id),
			Connected:     state.connected,
			Networked:     h.registry.Supports(id),
			LastHeartbeat: state.lastHeartbeat.UnixMilli(),
			RTTMillis:     state.lastRTT.Milliseconds(),
			Locale:        state.locale,
		})
	}
	h.mu.Unlock()

	sort.Slice(out.Viewers, func(i, j int) bool { return out.Viewers[i].ID < out.Viewers[j].ID })
	out.Pending = h.engine.Pending()
	for kind, n := range h.engine.Dropped() {
		if out.Dropped == nil {
			out.Dropped = make(map[string]uint64)
		}
		out.Dropped[string(kind)] = n
	}
	out.Ticks = h.telemetry.stats.Summary()
	out.Metrics = h.counters.Snapshot()
	return out
}

func viewerRef(viewer string) logging.EntityRef {
	return logging.EntityRef{ID: viewer, Kind: logging.EntityKindViewer}
}
