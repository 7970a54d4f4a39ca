package browser

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agentdock/backend/internal/config"
	"github.com/agentdock/backend/internal/core/ports"
	"github.com/agentdock/backend/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<html><head><title> Go Docs </title><script>var x = 1;</script></head>
<body>
<h1>Getting started</h1>
<p>Install   the toolchain.</p>
<ul><li>Step one</li><li>Step two</li></ul>
<a href="/doc/tutorial">Tutorial</a>
<a href="https://pkg.go.dev/std#top">Std</a>
<a href="#anchor">skip</a>
<a href="mailto:a@b.c">mail</a>
<a href="/doc/tutorial">dup</a>
</body></html>`

func TestExtract(t *testing.T) {
	got, err := Extract(samplePage, "https://go.dev/learn/", 0)
	require.NoError(t, err)

	assert.Equal(t, "Go Docs", got.Title)
	assert.Contains(t, got.Text, "Getting started\n")
	assert.Contains(t, got.Text, "Install the toolchain.\n")
	assert.Contains(t, got.Text, "Step two\n")
	assert.NotContains(t, got.Text, "var x")

	require.Len(t, got.Links, 2)
	assert.Equal(t, "https://go.dev/doc/tutorial", got.Links[0].Href)
	assert.Equal(t, "Tutorial", got.Links[0].Text)
	assert.Equal(t, "https://pkg.go.dev/std", got.Links[1].Href)
}

func TestExtractTruncates(t *testing.T) {
	got, err := Extract(samplePage, "", 10)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(got.Text, "[Content truncated...]"))
}

func TestParseAction(t *testing.T) {
	t.Run("fenced", func(t *testing.T) {
		a, err := ParseAction("```json\n{\"thought\":\"look\",\"action\":\"navigate\",\"url\":\"https://go.dev\"}\n```")
		require.NoError(t, err)
		assert.Equal(t, ActionNavigate, a.Action)
		assert.Equal(t, "https://go.dev", a.URL)
		assert.Equal(t, "look", a.Thought)
	})
	t.Run("repaired", func(t *testing.T) {
		a, err := ParseAction(`{'thought': 'enough', 'action': 'DONE',}`)
		require.NoError(t, err)
		assert.Equal(t, ActionDone, a.Action)
	})
	t.Run("url in params", func(t *testing.T) {
		a, err := ParseAction(`{"action":"navigate","params":{"url":"https://x.dev"}}`)
		require.NoError(t, err)
		assert.Equal(t, "https://x.dev", a.URL)
	})
	t.Run("no object", func(t *testing.T) {
		_, err := ParseAction("I think we are done")
		assert.ErrorIs(t, err, ErrNoAction)
	})
	t.Run("unknown action", func(t *testing.T) {
		_, err := ParseAction(`{"action":"click"}`)
		assert.ErrorIs(t, err, ErrNoAction)
	})
}

func TestFormatStep(t *testing.T) {
	at := time.Date(2025, 1, 2, 9, 4, 5, 0, time.UTC)
	msg := FormatStep(at, 2, "https://go.dev", &Action{Thought: "read docs", Action: "navigate", URL: "https://go.dev/doc"})

	lines := strings.Split(msg, "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "🔄 [09:04:05] Step 2", lines[0])
	assert.Equal(t, "🌐 URL: https://go.dev", lines[1])
	assert.Equal(t, "💭 Thought: read docs", lines[2])
	assert.Equal(t, "⚡ Action: navigate", lines[3])
	assert.Equal(t, `📝 Params: {"url":"https://go.dev/doc"}`, lines[4])
	assert.Equal(t, strings.Repeat("-", 60), lines[5])
}

type fakeDriver struct {
	mu      sync.Mutex
	current string
	visits  []string
	navErr  error
	closed  bool
}

func (d *fakeDriver) Navigate(_ context.Context, u string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.navErr != nil {
		return d.navErr
	}
	d.current = u
	d.visits = append(d.visits, u)
	return nil
}

func (d *fakeDriver) Snapshot(context.Context) (*Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return &Page{URL: d.current, Title: "t", HTML: samplePage}, nil
}

func (d *fakeDriver) Close() { d.closed = true }

type scriptedModel struct {
	mu      sync.Mutex
	replies []string
	calls   int
}

func (m *scriptedModel) Complete(_ context.Context, _ ports.ChatRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls >= len(m.replies) {
		return "", errors.New("no more replies")
	}
	r := m.replies[m.calls]
	m.calls++
	return r, nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []string
}

func (p *recordingPublisher) Publish(_ string, msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
}

func newTestCollector(drv *fakeDriver, model ports.ChatModel) *Collector {
	dial := func(context.Context, string) (Driver, error) { return drv, nil }
	return NewCollector(dial, model, "gpt-4o", config.BrowserConfig{
		MaxSteps:    3,
		StartURL:    "https://search.test/?q=",
		StepTimeout: time.Second,
	}, logger.NewNop())
}

func TestCollectorRunsStepsAndSummarizes(t *testing.T) {
	drv := &fakeDriver{}
	model := &scriptedModel{replies: []string{
		`{"thought":"open tutorial","action":"navigate","url":"https://go.dev/doc/tutorial"}`,
		`{"thought":"enough","action":"done"}`,
		"# Docs\nuse go mod init",
	}}
	pub := &recordingPublisher{}

	doc, err := newTestCollector(drv, model).Collect(context.Background(), ports.CollectRequest{
		SessionID: "s1",
		Subtask:   "learn go",
		CDPURL:    "wss://cdp",
	}, pub)
	require.NoError(t, err)

	assert.Equal(t, "# Docs\nuse go mod init", doc.Response)
	assert.Equal(t, []string{"https://search.test/?q=learn+go", "https://go.dev/doc/tutorial"}, doc.Sources)
	require.Len(t, pub.messages, 2)
	assert.Contains(t, pub.messages[0], "Step 1")
	assert.Contains(t, pub.messages[1], "⚡ Action: done")
	assert.True(t, drv.closed)
}

func TestCollectorPublishesErrors(t *testing.T) {
	drv := &fakeDriver{navErr: errors.New("tab crashed")}
	pub := &recordingPublisher{}

	_, err := newTestCollector(drv, &scriptedModel{}).Collect(context.Background(), ports.CollectRequest{
		SessionID: "s1",
		Subtask:   "x",
		CDPURL:    "wss://cdp",
	}, pub)
	require.Error(t, err)
	require.Len(t, pub.messages, 1)
	assert.True(t, strings.HasPrefix(pub.messages[0], "Error: "))
	assert.Contains(t, pub.messages[0], "tab crashed")
}

func TestCollectorTestingMarker(t *testing.T) {
	drv := &fakeDriver{}
	doc, err := newTestCollector(drv, &scriptedModel{}).Collect(context.Background(), ports.CollectRequest{
		Subtask: "anything --testing",
	}, nil)
	require.NoError(t, err)
	assert.Contains(t, doc.Response, "Gotham")
	assert.Empty(t, drv.visits)
}
