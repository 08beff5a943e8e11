// Package sched keeps recurring tasks in a handle-indexed table that is
// advanced by the authoritative tick loop. Tasks never run on a timer
// goroutine; RunDue is called from the loop and runs every due task inline.
package sched

import "time"

// Handle identifies one scheduled task. The zero Handle is never live.
type Handle struct {
	index uint32
	gen   uint32
}

// Valid reports whether h was issued by a table (it may since have been cancelled).
func (h Handle) Valid() bool {
	return h.gen != 0
}

type slot struct {
	gen      uint32
	live     bool
	next     time.Time
	interval time.Duration
	fn       func(now time.Time)
}

// Table is not safe for concurrent use; it belongs to the authoritative context.
type Table struct {
	slots []slot
	free  []uint32
	live  int
}

// NewTable constructs an empty table.
func NewTable() *Table {
	return &Table{}
}

// Schedule registers fn to run first at first and then every interval.
// A non-positive interval makes the task one-shot.
func (t *Table) Schedule(first time.Time, interval time.Duration, fn func(now time.Time)) Handle {
	if fn == nil {
		return Handle{}
	}
	var index uint32
	if n := len(t.free); n > 0 {
		index = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		t.slots = append(t.slots, slot{})
		index = uint32(len(t.slots) - 1)
	}
	s := &t.slots[index]
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	s.live = true
	s.next = first
	s.interval = interval
	s.fn = fn
	t.live++
	return Handle{index: index, gen: s.gen}
}

// Cancel removes the task. It reports whether the handle was live. Cancelling
// from inside a running task, including the task itself, is allowed and takes
// effect immediately.
func (t *Table) Cancel(h Handle) bool {
	if !t.Live(h) {
		return false
	}
	s := &t.slots[h.index]
	s.live = false
	s.fn = nil
	t.free = append(t.free, h.index)
	t.live--
	return true
}

// Live reports whether h still refers to a scheduled task.
func (t *Table) Live(h Handle) bool {
	if t == nil || !h.Valid() || int(h.index) >= len(t.slots) {
		return false
	}
	s := t.slots[h.index]
	return s.live && s.gen == h.gen
}

// Next reports when h will next fire.
func (t *Table) Next(h Handle) (time.Time, bool) {
	if !t.Live(h) {
		return time.Time{}, false
	}
	return t.slots[h.index].next, true
}

// Len reports the number of live tasks.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return t.live
}

// RunDue runs every task whose next fire time is at or before now, at most
// once per task per call. A task that fell behind is rescheduled relative to
// now instead of firing repeatedly to catch up.
func (t *Table) RunDue(now time.Time) int {
	if t == nil {
		return 0
	}
	ran := 0
	count := len(t.slots)
	for i := 0; i < count; i++ {
		s := t.slots[i]
		if !s.live || s.next.After(now) {
			continue
		}
		h := Handle{index: uint32(i), gen: s.gen}
		s.fn(now)
		ran++
		if !t.Live(h) {
			continue
		}
		cur := &t.slots[i]
		if cur.interval <= 0 {
			t.Cancel(h)
			continue
		}
		cur.next = cur.next.Add(cur.interval)
		if !cur.next.After(now) {
			cur.next = now.Add(cur.interval)
		}
	}
	return ran
}
