package domain

import (
	"fmt"
	"time"
)

type SessionStatus string

const (
	SessionStatusStarting  SessionStatus = "starting"
	SessionStatusRunning   SessionStatus = "running"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusFailed    SessionStatus = "failed"
)

// BrowserKey is the map key of a browser inside a session record.
func BrowserKey(index int) string {
	return fmt.Sprintf("browser_%d", index)
}

// Documentation is what one collection agent produced.
type Documentation struct {
	Response  string    `json:"response"`
	Sources   []string  `json:"sources,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// BrowserState tracks one remote browser inside a fan-out session.
type BrowserState struct {
	BrowserIndex     int            `json:"browser_index"`
	BrowserSessionID string         `json:"browser_session_id,omitempty"`
	SessionID        string         `json:"session_id"`
	LiveViewURL      string         `json:"live_view_url,omitempty"`
	CDPURL           string         `json:"cdp_url,omitempty"`
	Subtask          string         `json:"subtask"`
	Status           SessionStatus  `json:"status"`
	Documentation    *Documentation `json:"documentation,omitempty"`
	Error            string         `json:"error,omitempty"`
}

// SessionRecord is the in-memory bookkeeping for one fan-out request.
type SessionRecord struct {
	SessionID string                   `json:"session_id"`
	Status    SessionStatus            `json:"status"`
	Task      string                   `json:"task"`
	UserName  string                   `json:"user_name"`
	Browsers  map[string]*BrowserState `json:"browsers"`
	CreatedAt time.Time                `json:"created_at"`
	UpdatedAt time.Time                `json:"updated_at"`
}

// Clone deep-copies the record so readers never share state with writers.
func (r *SessionRecord) Clone() *SessionRecord {
	out := *r
	out.Browsers = make(map[string]*BrowserState, len(r.Browsers))
	for k, b := range r.Browsers {
		bc := *b
		if b.Documentation != nil {
			doc := *b.Documentation
			doc.Sources = append([]string(nil), b.Documentation.Sources...)
			bc.Documentation = &doc
		}
		out.Browsers[k] = &bc
	}
	return &out
}

// RemoteBrowser is an acquired remote browser session.
type RemoteBrowser struct {
	ID          string `json:"id"`
	CDPURL      string `json:"cdp_url"`
	LiveViewURL string `json:"live_view_url"`
}

// FanOutMode selects whether StartSessions waits for collection.
type FanOutMode int

const (
	FanOutAsync FanOutMode = iota
	FanOutSync
)

// BrowserLink is the per-browser part of a fan-out response.
type BrowserLink struct {
	LiveViewURL string        `json:"live_view_url"`
	SessionID   string        `json:"session_id"`
	Subtask     string        `json:"subtask"`
	Status      SessionStatus `json:"status"`
	Error       string        `json:"error,omitempty"`
}

// FanOutResult is returned to the caller of StartSessions.
type FanOutResult struct {
	SessionID     string                   `json:"session_id"`
	Status        SessionStatus            `json:"status"`
	Browsers      map[string]BrowserLink   `json:"browsers"`
	Documentation map[string]Documentation `json:"documentation"`
}
