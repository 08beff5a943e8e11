package sched

import (
	"testing"
	"time"
)

func TestTableRunsAtInterval(t *testing.T) {
	table := NewTable()
	base := time.Unix(0, 0)
	var fired []time.Time
	table.Schedule(base, 50*time.Millisecond, func(now time.Time) { fired = append(fired, now) })

	for i := 0; i <= 4; i++ {
		table.RunDue(base.Add(time.Duration(i) * 25 * time.Millisecond))
	}
	if len(fired) != 3 {
		t.Fatalf("expected 3 firings at 0/50/100ms, got %d", len(fired))
	}
}

func TestTableCancelStopsFutureRuns(t *testing.T) {
	table := NewTable()
	base := time.Unix(0, 0)
	count := 0
	h := table.Schedule(base, time.Second, func(time.Time) { count++ })
	table.RunDue(base)
	if !table.Cancel(h) {
		t.Fatalf("expected first cancel to report live handle")
	}
	if table.Cancel(h) {
		t.Fatalf("expected second cancel to be a no-op")
	}
	table.RunDue(base.Add(5 * time.Second))
	if count != 1 {
		t.Fatalf("expected cancelled task to stay silent, ran %d times", count)
	}
	if table.Len() != 0 {
		t.Fatalf("expected empty table, got %d", table.Len())
	}
}

func TestTableStaleHandleAfterSlotReuse(t *testing.T) {
	table := NewTable()
	base := time.Unix(0, 0)
	old := table.Schedule(base, time.Second, func(time.Time) {})
	table.Cancel(old)
	fresh := table.Schedule(base, time.Second, func(time.Time) {})
	if table.Live(old) {
		t.Fatalf("expected stale handle to be dead after slot reuse")
	}
	if !table.Live(fresh) {
		t.Fatalf("expected fresh handle to be live")
	}
	if table.Cancel(old) {
		t.Fatalf("cancelling a stale handle must not cancel the slot's new task")
	}
	if !table.Live(fresh) {
		t.Fatalf("fresh task was cancelled through a stale handle")
	}
}

func TestTableCancelFromInsideAnotherTask(t *testing.T) {
	table := NewTable()
	base := time.Unix(0, 0)
	var victim Handle
	victimRan := false
	table.Schedule(base, time.Second, func(time.Time) { table.Cancel(victim) })
	victim = table.Schedule(base, time.Second, func(time.Time) { victimRan = true })

	table.RunDue(base)
	if victimRan {
		t.Fatalf("task cancelled earlier in the same pass must not run")
	}
}

func TestTableOneShot(t *testing.T) {
	table := NewTable()
	base := time.Unix(0, 0)
	count := 0
	h := table.Schedule(base.Add(time.Second), 0, func(time.Time) { count++ })
	table.RunDue(base)
	table.RunDue(base.Add(time.Second))
	table.RunDue(base.Add(2 * time.Second))
	if count != 1 {
		t.Fatalf("expected one-shot task to run once, ran %d", count)
	}
	if table.Live(h) {
		t.Fatalf("expected one-shot handle to be released")
	}
}

func TestTableSkipsMissedIntervals(t *testing.T) {
	table := NewTable()
	base := time.Unix(0, 0)
	count := 0
	h := table.Schedule(base, 100*time.Millisecond, func(time.Time) { count++ })
	table.RunDue(base.Add(time.Second))
	if count != 1 {
		t.Fatalf("expected a single catch-up run, got %d", count)
	}
	next, ok := table.Next(h)
	if !ok || !next.Equal(base.Add(1100*time.Millisecond)) {
		t.Fatalf("expected next run relative to now, got %v", next)
	}
}
