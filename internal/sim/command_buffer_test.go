package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spectate/server/internal/camera"
)

type gaugeRecorder struct {
	added  map[string]uint64
	stored map[string]uint64
}

func newGaugeRecorder() *gaugeRecorder {
	return &gaugeRecorder{added: map[string]uint64{}, stored: map[string]uint64{}}
}

func (g *gaugeRecorder) Add(key string, delta uint64) {
	g.added[key] += delta
}

func (g *gaugeRecorder) Store(key string, value uint64) {
	g.stored[key] = value
}

func spectateAt(viewer, target string) Command {
	return Command{
		ActorID:  viewer,
		Type:     CommandSpectate,
		Spectate: &SpectateCommand{Kind: TargetPoint, Target: target, Mode: camera.ModeOrbit},
	}
}

func TestCommandBufferKeepsPayloadsAcrossWrap(t *testing.T) {
	buffer := NewCommandBuffer(3, nil)
	require.True(t, buffer.Push(spectateAt("alice", "tower")))
	require.True(t, buffer.Push(Command{ActorID: "bob", Type: CommandMove, Move: &MoveCommand{DX: 1}}))
	first := buffer.Drain()
	require.Len(t, first, 2)
	assert.Equal(t, "tower", first[0].Spectate.Target)

	// head now sits mid-ring; the next batch wraps past the end.
	require.True(t, buffer.Push(Command{ActorID: "alice", Type: CommandCycle, Cycle: &CycleCommand{Op: CycleStart}}))
	require.True(t, buffer.Push(Command{ActorID: "alice", Type: CommandSetParam, Param: &ParamCommand{Field: "orbitRadius", Value: 0}}))
	require.True(t, buffer.Push(Command{ActorID: "bob", Type: CommandDisconnect, Disconnect: &DisconnectCommand{Reason: "closed"}}))

	second := buffer.Drain()
	require.Len(t, second, 3)
	assert.Equal(t, CycleStart, second[0].Cycle.Op)
	assert.Equal(t, "orbitRadius", second[1].Param.Field)
	assert.Equal(t, "closed", second[2].Disconnect.Reason)
	assert.Nil(t, buffer.Drain())
	assert.Zero(t, buffer.Len())
}

func TestCommandBufferHoldsRoomForLifecycle(t *testing.T) {
	metrics := newGaugeRecorder()
	buffer := NewCommandBuffer(32, metrics)
	require.Equal(t, 2, buffer.Reserve())

	accepted := 0
	for buffer.Push(spectateAt("alice", "tower")) {
		accepted++
	}
	assert.Equal(t, 30, accepted)
	assert.False(t, buffer.Push(Command{ActorID: "bob", Type: CommandMove, Move: &MoveCommand{}}))

	assert.True(t, buffer.Push(Command{ActorID: "alice", Type: CommandDisconnect}))
	assert.True(t, buffer.Push(Command{ActorID: "carol", Type: CommandConnect}))
	assert.False(t, buffer.Push(Command{ActorID: "dave", Type: CommandConnect}))

	assert.Equal(t, map[CommandType]uint64{
		CommandSpectate: 1,
		CommandMove:     1,
		CommandConnect:  1,
	}, buffer.Dropped())
	assert.Equal(t, uint64(3), metrics.added[commandQueueOverflowMetricKey])
	assert.Equal(t, uint64(32), metrics.stored[commandQueueDepthMetricKey])

	drained := buffer.Drain()
	require.Len(t, drained, 32)
	assert.Equal(t, CommandDisconnect, drained[30].Type)
	assert.Equal(t, "carol", drained[31].ActorID)
	assert.Zero(t, metrics.stored[commandQueueDepthMetricKey])
}

func TestCommandBufferSingleSlotHasNoReserve(t *testing.T) {
	buffer := NewCommandBuffer(0, nil)
	assert.Equal(t, 1, buffer.Capacity())
	assert.Zero(t, buffer.Reserve())
	assert.True(t, buffer.Push(spectateAt("alice", "tower")))
	assert.False(t, buffer.Push(Command{ActorID: "alice", Type: CommandDisconnect}))
}

func TestLoopReportsDroppedByType(t *testing.T) {
	cfg := DefaultLoopConfig()
	cfg.CommandCapacity = 1
	cfg.PerActorLimit = 0
	loop := NewLoop(&recordingCore{}, cfg, LoopHooks{})
	ok, _ := loop.Enqueue(spectateAt("alice", "tower"))
	require.True(t, ok)
	ok, reason := loop.Enqueue(spectateAt("bob", "gate"))
	require.False(t, ok)
	assert.Equal(t, CommandRejectQueueFull, reason)
	assert.Equal(t, map[CommandType]uint64{CommandSpectate: 1}, loop.Dropped())
}
