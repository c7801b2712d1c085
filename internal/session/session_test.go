package session

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedule_Runs(t *testing.T) {
	t.Parallel()
	m := NewManager()
	defer m.Close()

	done := make(chan struct{})
	if !m.Schedule(1, time.Millisecond, func() { close(done) }) {
		t.Fatal("Schedule refused")
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}
	// the job is removed before fn runs
	if n := m.Pending(1); n != 0 {
		t.Fatalf("Pending() = %d, want 0", n)
	}
}

func TestCancel_DropsOnlyThatChat(t *testing.T) {
	t.Parallel()
	m := NewManager()

	var ran atomic.Int32
	m.Schedule(1, time.Hour, func() { ran.Add(1) })
	m.Schedule(1, time.Hour, func() { ran.Add(1) })
	m.Schedule(2, time.Hour, func() { ran.Add(1) })

	if n := m.Cancel(1); n != 2 {
		t.Fatalf("Cancel() = %d, want 2", n)
	}
	if m.Pending(1) != 0 || m.Pending(2) != 1 {
		t.Fatalf("pending: chat1=%d chat2=%d", m.Pending(1), m.Pending(2))
	}
	m.Close()
	if ran.Load() != 0 {
		t.Fatalf("%d cancelled jobs ran", ran.Load())
	}
}

func TestClose_WaitsAndRefuses(t *testing.T) {
	t.Parallel()
	m := NewManager()

	started := make(chan struct{})
	var finished atomic.Bool
	m.Schedule(1, 0, func() {
		close(started)
		time.Sleep(20 * time.Millisecond)
		finished.Store(true)
	})
	<-started
	m.Close()
	if !finished.Load() {
		t.Fatal("Close returned before the running job finished")
	}
	if m.Schedule(1, 0, func() {}) {
		t.Fatal("Schedule accepted after Close")
	}
}

func TestAcquireRelease(t *testing.T) {
	t.Parallel()
	m := NewManager()
	defer m.Close()

	if !m.Acquire(7) {
		t.Fatal("first Acquire failed")
	}
	if m.Acquire(7) {
		t.Fatal("second Acquire succeeded")
	}
	if !m.Acquire(8) {
		t.Fatal("other chat is not independent")
	}
	m.Release(7)
	if !m.Acquire(7) {
		t.Fatal("Acquire after Release failed")
	}
	m.Cancel(7)
	if !m.Acquire(7) {
		t.Fatal("Cancel did not clear busy")
	}
}
