package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agentdock/backend/internal/config"
	"github.com/agentdock/backend/internal/core/ports"
	"github.com/agentdock/backend/internal/domain"
	"github.com/agentdock/backend/internal/infrastructure/logger"
	"github.com/agentdock/backend/internal/infrastructure/metrics"
	"golang.org/x/sync/errgroup"
)

const DefaultUserName = "Anonymous User"

type fanOutManager struct {
	store     ports.SessionStore
	provider  ports.BrowserProvider
	collector ports.DocumentationCollector
	relay     ports.StepPublisher
	cfg       config.BrowserConfig
	logger    *logger.Logger
	metrics   *metrics.Metrics

	// background collections outlive the request that started them
	baseCtx context.Context
	wg      sync.WaitGroup
}

// FanOutManager also exposes Wait so shutdown can drain background work.
type FanOutManager interface {
	ports.FanOutManager
	Wait()
}

func NewFanOutManager(baseCtx context.Context, store ports.SessionStore, provider ports.BrowserProvider, collector ports.DocumentationCollector, relay ports.StepPublisher, cfg config.BrowserConfig, log *logger.Logger, m *metrics.Metrics) FanOutManager {
	if cfg.DefaultBrowser <= 0 {
		cfg.DefaultBrowser = 1
	}
	if cfg.DefaultUser == "" {
		cfg.DefaultUser = DefaultUserName
	}
	return &fanOutManager{
		store:     store,
		provider:  provider,
		collector: collector,
		relay:     relay,
		cfg:       cfg,
		logger:    log,
		metrics:   m,
		baseCtx:   baseCtx,
	}
}

type acquired struct {
	index   int
	browser *domain.RemoteBrowser
	subtask string
}

// StartSessions acquires the browsers concurrently, then runs collection in
// the background (async) or waits for it (sync).
func (m *fanOutManager) StartSessions(ctx context.Context, input ports.StartSessionsInput) (*domain.FanOutResult, error) {
	if input.Task == "" {
		return nil, ErrEmptyTask
	}
	count := input.BrowserCount
	switch {
	case count < 0:
		return nil, ErrInvalidBrowserCount
	case count == 0:
		count = m.cfg.DefaultBrowser
	}
	userName := input.UserName
	if userName == "" {
		userName = m.cfg.DefaultUser
	}

	rec := m.store.Create(input.Task, userName)
	sessionID := rec.SessionID
	log := m.logger.With("session_id", sessionID)
	log.Infow("starting browser sessions", "browser_count", count, "task", input.Task)

	results := make([]*acquired, count)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < count; i++ {
		i := i
		g.Go(func() error {
			subtask := Subtask(input.Task, i, count)
			browser, err := m.provider.StartSession(gctx, i)
			if err != nil {
				log.Errorw("failed to start browser", "browser_index", i, "error", err)
				m.metrics.IncBrowser(string(domain.SessionStatusFailed))
				m.setBrowser(sessionID, &domain.BrowserState{
					BrowserIndex: i,
					SessionID:    sessionID,
					Subtask:      subtask,
					Status:       domain.SessionStatusFailed,
					Error:        err.Error(),
				})
				return nil
			}
			results[i] = &acquired{index: i, browser: browser, subtask: subtask}
			m.setBrowser(sessionID, &domain.BrowserState{
				BrowserIndex:     i,
				BrowserSessionID: browser.ID,
				SessionID:        sessionID,
				LiveViewURL:      browser.LiveViewURL,
				CDPURL:           browser.CDPURL,
				Subtask:          subtask,
				Status:           domain.SessionStatusRunning,
			})
			log.Infow("browser started", "browser_index", i, "browser_session_id", browser.ID)
			return nil
		})
	}
	_ = g.Wait()

	out := &domain.FanOutResult{
		SessionID:     sessionID,
		Browsers:      make(map[string]domain.BrowserLink),
		Documentation: make(map[string]domain.Documentation),
	}
	var running []*acquired
	for _, a := range results {
		if a == nil {
			continue
		}
		running = append(running, a)
		out.Browsers[domain.BrowserKey(a.index)] = domain.BrowserLink{
			LiveViewURL: a.browser.LiveViewURL,
			SessionID:   sessionID,
			Subtask:     a.subtask,
			Status:      domain.SessionStatusRunning,
		}
	}

	if len(running) == 0 {
		m.setStatus(sessionID, domain.SessionStatusFailed)
		out.Status = domain.SessionStatusFailed
		return out, fmt.Errorf("%w: session %s", ErrAllBrowsersFailed, sessionID)
	}
	m.setStatus(sessionID, domain.SessionStatusRunning)
	out.Status = domain.SessionStatusRunning

	if input.Mode == domain.FanOutSync {
		out.Documentation = m.collectAll(ctx, sessionID, userName, running)
		out.Status = m.finalStatus(sessionID)
		for key, link := range out.Browsers {
			link.Status, link.Error = m.browserOutcome(sessionID, key)
			out.Browsers[key] = link
		}
		return out, nil
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.collectAll(m.baseCtx, sessionID, userName, running)
	}()
	return out, nil
}

// collectAll runs one collection agent per browser and returns the
// documentation of the ones that succeeded.
func (m *fanOutManager) collectAll(ctx context.Context, sessionID, userName string, browsers []*acquired) map[string]domain.Documentation {
	var mu sync.Mutex
	docs := make(map[string]domain.Documentation)

	var g errgroup.Group
	for _, a := range browsers {
		a := a
		g.Go(func() error {
			key := domain.BrowserKey(a.index)
			doc, err := m.collector.Collect(ctx, ports.CollectRequest{
				SessionID:    sessionID,
				BrowserIndex: a.index,
				Subtask:      a.subtask,
				CDPURL:       a.browser.CDPURL,
				UserName:     userName,
			}, m.relay)

			if err != nil {
				m.metrics.IncBrowser(string(domain.SessionStatusFailed))
				m.updateBrowser(sessionID, key, func(b *domain.BrowserState) {
					b.Status = domain.SessionStatusFailed
					b.Error = err.Error()
				})
			} else {
				m.metrics.IncBrowser(string(domain.SessionStatusCompleted))
				m.updateBrowser(sessionID, key, func(b *domain.BrowserState) {
					b.Status = domain.SessionStatusCompleted
					b.Documentation = doc
				})
				mu.Lock()
				docs[key] = *doc
				mu.Unlock()
			}

			if m.cfg.EndOnComplete {
				// best effort; the browser is idle either way
				endCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
				if err := m.provider.EndSession(endCtx, a.browser.ID); err != nil {
					m.logger.Warnw("failed to end browser session", "session_id", sessionID, "browser_session_id", a.browser.ID, "error", err)
				}
				cancel()
			}
			return nil
		})
	}
	_ = g.Wait()

	status := domain.SessionStatusFailed
	if len(docs) > 0 {
		status = domain.SessionStatusCompleted
	}
	m.setStatus(sessionID, status)
	m.logger.Infow("documentation collection finished", "session_id", sessionID, "status", status, "collected", len(docs), "browsers", len(browsers))
	return docs
}

func (m *fanOutManager) GetSession(id string) (*domain.SessionRecord, error) {
	return m.store.Get(id)
}

func (m *fanOutManager) EndAllSessions(ctx context.Context) error {
	return m.provider.EndAllSessions(ctx)
}

func (m *fanOutManager) Wait() {
	m.wg.Wait()
}

func (m *fanOutManager) setBrowser(sessionID string, state *domain.BrowserState) {
	key := domain.BrowserKey(state.BrowserIndex)
	m.write(sessionID, func(r *domain.SessionRecord) {
		r.Browsers[key] = state
	})
}

func (m *fanOutManager) updateBrowser(sessionID, key string, fn func(*domain.BrowserState)) {
	m.write(sessionID, func(r *domain.SessionRecord) {
		if b, ok := r.Browsers[key]; ok {
			fn(b)
		}
	})
}

func (m *fanOutManager) setStatus(sessionID string, status domain.SessionStatus) {
	m.write(sessionID, func(r *domain.SessionRecord) {
		r.Status = status
	})
}

// write drops updates for records that were reaped meanwhile.
func (m *fanOutManager) write(sessionID string, fn func(*domain.SessionRecord)) {
	if err := m.store.Update(sessionID, fn); err != nil {
		m.logger.Debugw("session record gone, update dropped", "session_id", sessionID, "error", err)
	}
}

func (m *fanOutManager) finalStatus(sessionID string) domain.SessionStatus {
	rec, err := m.store.Get(sessionID)
	if err != nil {
		return domain.SessionStatusFailed
	}
	return rec.Status
}

func (m *fanOutManager) browserOutcome(sessionID, key string) (domain.SessionStatus, string) {
	rec, err := m.store.Get(sessionID)
	if err != nil {
		return domain.SessionStatusFailed, err.Error()
	}
	b, ok := rec.Browsers[key]
	if !ok {
		return domain.SessionStatusFailed, "browser not found"
	}
	return b.Status, b.Error
}
