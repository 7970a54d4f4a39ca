package services

import (
	"context"
	"sync"
	"time"

	"github.com/agentdock/backend/internal/config"
	"github.com/agentdock/backend/internal/domain"
	"github.com/agentdock/backend/internal/infrastructure/metrics"
	"github.com/google/uuid"
)

// SessionStore holds fan-out session records in process memory. Records are
// lost on restart and reaped once untouched for the configured TTL.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.SessionRecord
	ttl      time.Duration
	interval time.Duration
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewSessionStore(cfg config.SessionConfig, m *metrics.Metrics) *SessionStore {
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	if cfg.ReapInterval <= 0 {
		cfg.ReapInterval = time.Minute
	}
	return &SessionStore{
		sessions: make(map[string]*domain.SessionRecord),
		ttl:      cfg.TTL,
		interval: cfg.ReapInterval,
		metrics:  m,
		now:      time.Now,
	}
}

func (s *SessionStore) Create(task, userName string) *domain.SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	rec := &domain.SessionRecord{
		SessionID: uuid.NewString(),
		Status:    domain.SessionStatusStarting,
		Task:      task,
		UserName:  userName,
		Browsers:  make(map[string]*domain.BrowserState),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions[rec.SessionID] = rec
	s.metrics.SetActiveSessions(len(s.sessions))
	return rec.Clone()
}

// Get returns a deep copy of the record.
func (s *SessionStore) Get(id string) (*domain.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return rec.Clone(), nil
}

// Update applies fn to the stored record under the write lock.
func (s *SessionStore) Update(id string, fn func(*domain.SessionRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	fn(rec)
	rec.UpdatedAt = s.now()
	return nil
}

func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	s.metrics.SetActiveSessions(len(s.sessions))
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Run reaps expired records until ctx is cancelled.
func (s *SessionStore) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ReapExpired()
		}
	}
}

// ReapExpired drops records not updated within the TTL and reports how
// many were removed.
func (s *SessionStore) ReapExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.ttl)
	removed := 0
	for id, rec := range s.sessions {
		if rec.UpdatedAt.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	s.metrics.SetActiveSessions(len(s.sessions))
	return removed
}
