package services

import (
	"sync"

	"github.com/agentdock/backend/internal/core/ports"
	"github.com/agentdock/backend/internal/infrastructure/logger"
	"github.com/agentdock/backend/internal/infrastructure/metrics"
)

// streamingRelay forwards step messages to at most one live listener per
// session. Nothing is buffered; a message with no listener is dropped.
type streamingRelay struct {
	mu        sync.RWMutex
	listeners map[string]ports.Listener
	logger    *logger.Logger
	metrics   *metrics.Metrics
}

func NewStreamingRelay(log *logger.Logger, m *metrics.Metrics) ports.StreamingRelay {
	return &streamingRelay{
		listeners: make(map[string]ports.Listener),
		logger:    log,
		metrics:   m,
	}
}

// Register makes l the listener of sessionID, replacing any previous one.
func (r *streamingRelay) Register(sessionID string, l ports.Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners[sessionID] = l
	r.logger.Debugw("relay listener registered", "session_id", sessionID)
}

// Deregister removes l if it is still the session's listener.
func (r *streamingRelay) Deregister(sessionID string, l ports.Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.listeners[sessionID]; ok && cur == l {
		delete(r.listeners, sessionID)
	}
}

func (r *streamingRelay) Listening(sessionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.listeners[sessionID]
	return ok
}

func (r *streamingRelay) Publish(sessionID, message string) {
	r.mu.RLock()
	l, ok := r.listeners[sessionID]
	r.mu.RUnlock()
	if !ok {
		return
	}

	if err := l.Send(message); err != nil {
		r.Deregister(sessionID, l)
		r.metrics.IncRelayDrop()
		r.logger.Debugw("relay listener dropped", "session_id", sessionID, "error", err)
	}
}
