package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spectate/server/internal/camera"
	"spectate/server/internal/session"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "spectate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenAppliesMigrations(t *testing.T) {
	store := openTestStore(t)
	version, err := store.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spectate.db")
	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.SavePoint(context.Background(), session.Point{Name: "spawn", World: "overworld"}, "alice"))
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	defer second.Close()
	points, err := second.LoadPoints(context.Background())
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "spawn", points[0].Name)
}

func TestPointsRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	tower := session.Point{Name: "tower", World: "overworld", Position: mgl64.Vec3{1, 2, 3}, Yaw: 90, Pitch: -15, Group: "tour"}
	require.NoError(t, store.SavePoint(ctx, tower, "alice"))
	require.NoError(t, store.SavePoint(ctx, session.Point{Name: "bridge", World: "overworld"}, "bob"))

	tower.Position = mgl64.Vec3{4, 5, 6}
	require.NoError(t, store.SavePoint(ctx, tower, "alice"))

	points, err := store.LoadPoints(ctx)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, "bridge", points[0].Name)
	assert.Equal(t, tower, points[1])

	removed, err := store.DeletePoint(ctx, "bridge")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = store.DeletePoint(ctx, "bridge")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestDescriptorIsConsumedOnce(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, found, err := store.TakeDescriptor(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.SaveDescriptor(ctx, "alice", session.Descriptor{Kind: session.DescriptorPoint, Ref: "a", Mode: camera.ModeFollow}))
	want := session.CycleDescriptor(camera.ModeSpiralUp)
	require.NoError(t, store.SaveDescriptor(ctx, "alice", want))

	got, found, err := store.TakeDescriptor(ctx, "alice")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, want, got)

	_, found, err = store.TakeDescriptor(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSaveDescriptorRejectsInvalid(t *testing.T) {
	store := openTestStore(t)
	err := store.SaveDescriptor(context.Background(), "alice", session.Descriptor{Kind: session.DescriptorPoint})
	assert.ErrorIs(t, err, session.ErrInvalidDescriptor)
}

func TestUsageAggregates(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000).UTC()

	a := session.PointTarget(session.Point{Name: "a"})
	b := session.EntityTarget("bob", "bob")
	require.NoError(t, store.RecordUsage(ctx, "alice", a, camera.ModeOrbit, base))
	require.NoError(t, store.RecordUsage(ctx, "alice", b, camera.ModeFollow, base.Add(time.Second)))
	require.NoError(t, store.RecordUsage(ctx, "alice", b, camera.ModeFollow, base.Add(2*time.Second)))
	require.NoError(t, store.RecordUsage(ctx, "carol", a, camera.ModeOrbit, base))

	usage, err := store.Usage(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, usage, 2)
	assert.Equal(t, Usage{Target: "bob", Kind: "entity", Count: 2, LastUsed: base.Add(2 * time.Second)}, usage[0])
	assert.Equal(t, "a", usage[1].Target)
	assert.Equal(t, 1, usage[1].Count)
}

func TestWriterAppliesQueuedWrites(t *testing.T) {
	store := openTestStore(t)
	writer := NewWriter(store, 8, nil, nil)

	d := session.DescriptorOf(session.EntityTarget("bob", "bob"), camera.ModeFollow)
	require.True(t, writer.SaveDescriptor("alice", d))
	require.True(t, writer.SavePoint(session.Point{Name: "spawn", World: "overworld"}, "alice"))

	got, found, err := writer.TakeDescriptor(context.Background(), "alice")
	require.NoError(t, err)
	require.True(t, found, "a queued descriptor must be visible before it is written")
	assert.Equal(t, d, got)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, writer.Run(ctx))
	writer.Wait()

	points, err := store.LoadPoints(context.Background())
	require.NoError(t, err)
	assert.Len(t, points, 1)

	_, found, err = store.TakeDescriptor(context.Background(), "alice")
	require.NoError(t, err)
	assert.False(t, found, "a descriptor taken while queued must not be written later")

	assert.False(t, writer.SavePoint(session.Point{Name: "late"}, "alice"), "writes after shutdown are refused")
}
