package sim

import (
	"sync"

	"spectate/server/internal/telemetry"
)

const (
	commandQueueDepthMetricKey    = "spectate_command_queue_depth"
	commandQueueOverflowMetricKey = "spectate_command_queue_overflow_total"
)

// lifecycleReserveDivisor sizes the slice of the ring that only Connect and
// Disconnect may use: one slot in sixteen, at least one.
const lifecycleReserveDivisor = 16

// CommandBuffer stages viewer commands between network goroutines and the
// loop. A small tail of the ring is held back for connection lifecycle
// commands so a flood of spectate traffic can never strand a session whose
// viewer already left.
type CommandBuffer struct {
	mu      sync.Mutex
	data    []Command
	head    int
	count   int
	reserve int
	dropped map[CommandType]uint64
	metrics telemetry.Metrics
}

// NewCommandBuffer constructs a ring buffer with the provided capacity.
func NewCommandBuffer(capacity int, metrics telemetry.Metrics) *CommandBuffer {
	if capacity < 1 {
		capacity = 1
	}
	reserve := 0
	if capacity > 1 {
		reserve = max(1, capacity/lifecycleReserveDivisor)
	}
	return &CommandBuffer{
		data:    make([]Command, capacity),
		reserve: reserve,
		dropped: make(map[CommandType]uint64),
		metrics: metrics,
	}
}

// Capacity reports the total number of slots, lifecycle reserve included.
func (b *CommandBuffer) Capacity() int {
	if b == nil {
		return 0
	}
	return len(b.data)
}

// Reserve reports how many slots are held back for Connect and Disconnect.
func (b *CommandBuffer) Reserve() int {
	if b == nil {
		return 0
	}
	return b.reserve
}

func isLifecycle(t CommandType) bool {
	return t == CommandConnect || t == CommandDisconnect
}

// Push stages a command, returning false when no slot is available to it.
func (b *CommandBuffer) Push(cmd Command) bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	limit := len(b.data)
	if !isLifecycle(cmd.Type) {
		limit -= b.reserve
	}
	if b.count >= limit {
		b.dropped[cmd.Type]++
		if b.metrics != nil {
			b.metrics.Add(commandQueueOverflowMetricKey, 1)
		}
		return false
	}
	b.data[(b.head+b.count)%len(b.data)] = cmd
	b.count++
	b.storeDepthLocked()
	return true
}

// Drain returns all staged commands in FIFO order and clears the buffer.
func (b *CommandBuffer) Drain() []Command {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == 0 {
		return nil
	}
	commands := make([]Command, b.count)
	for i := range commands {
		idx := (b.head + i) % len(b.data)
		commands[i] = b.data[idx]
		b.data[idx] = Command{}
	}
	b.head = (b.head + b.count) % len(b.data)
	b.count = 0
	b.storeDepthLocked()
	return commands
}

// Len reports the number of staged commands.
func (b *CommandBuffer) Len() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Dropped returns how many commands of each type were refused for lack of
// room since the buffer was created.
func (b *CommandBuffer) Dropped() map[CommandType]uint64 {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[CommandType]uint64, len(b.dropped))
	for k, v := range b.dropped {
		out[k] = v
	}
	return out
}

func (b *CommandBuffer) storeDepthLocked() {
	if b.metrics == nil {
		return
	}
	b.metrics.Store(commandQueueDepthMetricKey, uint64(b.count))
}
