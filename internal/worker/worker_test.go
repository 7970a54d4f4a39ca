package worker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/agentdock/backend/internal/core/ports"
	"github.com/agentdock/backend/internal/domain"
	"github.com/agentdock/backend/internal/infrastructure/logger"
	"github.com/agentdock/backend/internal/infrastructure/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	workdir string
	result  domain.CommandResult
}

func (r *stubRunner) Run(_ context.Context, _ string, workdir string) domain.CommandResult {
	r.workdir = workdir
	return r.result
}

func newTestWorker(runner ports.CommandRunner) (*Worker, *queue.MemoryQueue, *queue.MemoryQueue) {
	commands := queue.NewMemoryQueue("commands")
	responses := queue.NewMemoryQueue("responses")
	p := NewProcessor(runner, "/projects", logger.NewNop())
	return New(commands, responses, p, Config{}, logger.NewNop()), commands, responses
}

func sendCommand(t *testing.T, q ports.MessageQueue, msg domain.CommandMessage) {
	t.Helper()
	body, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, q.Send(context.Background(), string(body)))
}

func readResponse(t *testing.T, q ports.MessageQueue) domain.ResponseMessage {
	t.Helper()
	msgs, err := q.Receive(context.Background(), 1, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	var resp domain.ResponseMessage
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Body), &resp))
	return resp
}

func TestPollOnceAnswersAndDeletes(t *testing.T) {
	runner := &stubRunner{result: domain.CommandResult{Success: true, Stdout: "hello\n"}}
	w, commands, responses := newTestWorker(runner)

	sendCommand(t, commands, domain.NewCommandMessage("m1", "echo hello", "demo"))
	require.NoError(t, w.PollOnce(context.Background()))

	assert.Equal(t, "/projects/demo", runner.workdir)
	assert.Equal(t, 0, commands.Len())
	resp := readResponse(t, responses)
	assert.Equal(t, "m1", resp.MessageID)
	require.NotNil(t, resp.Success)
	assert.True(t, *resp.Success)
	assert.Equal(t, "hello\n", resp.Stdout)
	assert.EqualValues(t, 1, w.Processed())
}

func TestPollOnceReportsFailureWithStderr(t *testing.T) {
	runner := &stubRunner{result: domain.CommandResult{Stderr: "ls: no such file\n", ExitCode: 2, Error: "command exited with status 2"}}
	w, commands, responses := newTestWorker(runner)

	sendCommand(t, commands, domain.NewCommandMessage("m2", "ls nope", "/abs/dir"))
	require.NoError(t, w.PollOnce(context.Background()))

	assert.Equal(t, "/abs/dir", runner.workdir)
	resp := readResponse(t, responses)
	require.NotNil(t, resp.Success)
	assert.False(t, *resp.Success)
	assert.Equal(t, "ls: no such file", resp.Error)
}

func TestPollOnceDropsUncorrelatableMessages(t *testing.T) {
	w, commands, responses := newTestWorker(&stubRunner{})
	require.NoError(t, commands.Send(context.Background(), "not json"))
	require.NoError(t, commands.Send(context.Background(), `{"command":"ls"}`))

	require.NoError(t, w.PollOnce(context.Background()))
	require.NoError(t, w.PollOnce(context.Background()))

	assert.Equal(t, 0, commands.Len())
	assert.Equal(t, 0, responses.Len())
}

type brokenQueue struct{ ports.MessageQueue }

func (brokenQueue) Receive(context.Context, int, time.Duration) ([]ports.QueueMessage, error) {
	return nil, errors.New("network down")
}

func TestPollOnceSurfacesReceiveErrors(t *testing.T) {
	p := NewProcessor(&stubRunner{}, "/projects", logger.NewNop())
	w := New(brokenQueue{queue.NewMemoryQueue("c")}, queue.NewMemoryQueue("r"), p, Config{}, logger.NewNop())
	assert.ErrorContains(t, w.PollOnce(context.Background()), "network down")
}

func TestErrorBackoffSchedule(t *testing.T) {
	b := newErrorBackoff()
	var got []time.Duration
	for i := 0; i < 5; i++ {
		got = append(got, b.NextBackOff())
	}
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second, 40 * time.Second, 40 * time.Second}, got)
}

func TestServerExecute(t *testing.T) {
	runner := &stubRunner{result: domain.CommandResult{Success: true, Stdout: "ok"}}
	w, _, _ := newTestWorker(runner)
	app := NewServer(w, w.processor, "bash")

	req := httptest.NewRequest("POST", "/execute", strings.NewReader(`{"command":"true","projectName":"demo"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "/projects/demo", runner.workdir)

	req = httptest.NewRequest("POST", "/execute", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestConfigDefaultsAndValidation(t *testing.T) {
	cfg := Config{QueueBackend: "memory"}
	cfg.SetDefaults()
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 30*time.Second, cfg.VisibilityTimeout)
	assert.NoError(t, cfg.Validate())

	assert.Error(t, (&Config{QueueBackend: "azure"}).Validate())
	assert.Error(t, (&Config{QueueBackend: "kafka"}).Validate())
}
