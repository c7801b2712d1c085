// Package session keeps the in-process runtime state of each chat: deferred jobs
// such as closing a collection window or ending a speaker's turn, and a busy flag
// for multi-step sequences. Durable game state lives in the store, not here.
package session

import (
	"sync"
	"time"
)

type job struct {
	timer *time.Timer
}

type Session struct {
	jobs map[*job]struct{}
	busy bool
}

type Manager struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	wg       sync.WaitGroup
	closed   bool
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[int64]*Session),
	}
}

func (m *Manager) get(chatID int64) *Session {
	s := m.sessions[chatID]
	if s == nil {
		s = &Session{jobs: make(map[*job]struct{})}
		m.sessions[chatID] = s
	}
	return s
}

// Schedule runs fn after d unless the chat's jobs are cancelled first. It returns
// false once the manager is closed.
func (m *Manager) Schedule(chatID int64, d time.Duration, fn func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}

	j := &job{}
	m.get(chatID).jobs[j] = struct{}{}
	m.wg.Add(1)
	j.timer = time.AfterFunc(d, func() {
		defer m.wg.Done()
		if !m.take(chatID, j) {
			return
		}
		fn()
	})
	return true
}

// take removes j from the chat's pending set; false means it was cancelled.
func (m *Manager) take(chatID int64, j *job) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[chatID]
	if s == nil {
		return false
	}
	if _, ok := s.jobs[j]; !ok {
		return false
	}
	delete(s.jobs, j)
	m.gc(chatID, s)
	return true
}

// Cancel drops every pending job of the chat and clears its busy flag.
func (m *Manager) Cancel(chatID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[chatID]
	if s == nil {
		return 0
	}
	n := m.cancelLocked(s)
	s.busy = false
	m.gc(chatID, s)
	return n
}

func (m *Manager) cancelLocked(s *Session) int {
	n := 0
	for j := range s.jobs {
		// a timer that already fired finishes on its own and sees it was cancelled
		if j.timer.Stop() {
			m.wg.Done()
		}
		delete(s.jobs, j)
		n++
	}
	return n
}

// Pending returns how many jobs of the chat have not run yet.
func (m *Manager) Pending(chatID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.sessions[chatID]; s != nil {
		return len(s.jobs)
	}
	return 0
}

// Acquire marks the chat busy; false if it already was.
func (m *Manager) Acquire(chatID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.get(chatID)
	if s.busy {
		return false
	}
	s.busy = true
	return true
}

func (m *Manager) Release(chatID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.sessions[chatID]; s != nil {
		s.busy = false
		m.gc(chatID, s)
	}
}

func (m *Manager) gc(chatID int64, s *Session) {
	if len(s.jobs) == 0 && !s.busy {
		delete(m.sessions, chatID)
	}
}

// Close cancels all pending jobs and waits for the running ones to return.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	for chatID, s := range m.sessions {
		m.cancelLocked(s)
		delete(m.sessions, chatID)
	}
	m.mu.Unlock()
	m.wg.Wait()
}
