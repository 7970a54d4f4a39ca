package services

import (
	"sync"
	"testing"
	"time"

	"github.com/agentdock/backend/internal/config"
	"github.com/agentdock/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStoreCreateGetUpdate(t *testing.T) {
	s := NewSessionStore(config.SessionConfig{}, nil)
	rec := s.Create("learn go", "alice")
	assert.Equal(t, domain.SessionStatusStarting, rec.Status)

	require.NoError(t, s.Update(rec.SessionID, func(r *domain.SessionRecord) {
		r.Browsers[domain.BrowserKey(0)] = &domain.BrowserState{BrowserIndex: 0, Status: domain.SessionStatusRunning}
	}))

	got, err := s.Get(rec.SessionID)
	require.NoError(t, err)
	require.Contains(t, got.Browsers, "browser_0")

	got.Browsers["browser_0"].Status = domain.SessionStatusFailed
	again, _ := s.Get(rec.SessionID)
	assert.Equal(t, domain.SessionStatusRunning, again.Browsers["browser_0"].Status)

	_, err = s.Get("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, s.Update("missing", func(*domain.SessionRecord) {}), ErrSessionNotFound)
}

func TestSessionStoreConcurrentUpdates(t *testing.T) {
	s := NewSessionStore(config.SessionConfig{}, nil)
	rec := s.Create("t", "u")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Update(rec.SessionID, func(r *domain.SessionRecord) {
				r.Browsers[domain.BrowserKey(i)] = &domain.BrowserState{BrowserIndex: i}
			})
			_, _ = s.Get(rec.SessionID)
		}(i)
	}
	wg.Wait()

	got, err := s.Get(rec.SessionID)
	require.NoError(t, err)
	assert.Len(t, got.Browsers, 50)
}

func TestSessionStoreReapsExpired(t *testing.T) {
	now := time.Unix(10_000, 0)
	s := NewSessionStore(config.SessionConfig{TTL: time.Hour}, nil)
	s.now = func() time.Time { return now }

	old := s.Create("old", "u")
	now = now.Add(30 * time.Minute)
	fresh := s.Create("fresh", "u")
	now = now.Add(31 * time.Minute)

	assert.Equal(t, 1, s.ReapExpired())
	_, err := s.Get(old.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = s.Get(fresh.SessionID)
	assert.NoError(t, err)
	assert.Equal(t, 1, s.Len())

	s.Delete(fresh.SessionID)
	assert.Equal(t, 0, s.Len())
}
