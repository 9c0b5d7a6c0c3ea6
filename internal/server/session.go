package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session holds per-connection state.
type Session struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
	Requests     int       `json:"requests"`
}

// NewSession creates a session with a fresh id.
func NewSession() *Session {
	now := time.Now()
	return &Session{
		ID:           uuid.New().String(),
		CreatedAt:    now,
		LastActiveAt: now,
	}
}

// Touch records one request.
func (s *Session) Touch() {
	s.LastActiveAt = time.Now()
	s.Requests++
}

// Sessions tracks the open websocket sessions. Only one UI is expected to
// edit at a time; several sessions see the same state.
type Sessions struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessions() *Sessions {
	return &Sessions{sessions: make(map[string]*Session)}
}

// Create creates a new session and returns it.
func (m *Sessions) Create() *Session {
	s := NewSession()
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// Get retrieves a session by ID. Returns nil if not found.
func (m *Sessions) Get(id string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// Remove deletes a session.
func (m *Sessions) Remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

func (m *Sessions) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
