package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseMessageDecodesMissingFields(t *testing.T) {
	var r ResponseMessage
	require.NoError(t, json.Unmarshal([]byte(`{"message_id":"x","stdout":"hi","extra":1}`), &r))
	assert.Equal(t, "x", r.MessageID)
	assert.Equal(t, "hi", r.Stdout)
	assert.Empty(t, r.Stderr)
	assert.True(t, r.Succeeded())
}

func TestResponseMessageSucceeded(t *testing.T) {
	no := false
	yes := true
	cases := []struct {
		name string
		resp ResponseMessage
		want bool
	}{
		{"explicit false", ResponseMessage{Success: &no}, false},
		{"explicit true wins over error", ResponseMessage{Success: &yes, Error: "warn"}, true},
		{"status success", ResponseMessage{Status: "success"}, true},
		{"status failed", ResponseMessage{Status: "failed"}, false},
		{"task completed", ResponseMessage{TaskCompleted: true}, true},
		{"error only", ResponseMessage{Error: "boom"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.resp.Succeeded())
		})
	}
}

func TestResultFromResponseFillsError(t *testing.T) {
	res := ResultFromResponse(&ResponseMessage{Status: "failed"})
	assert.False(t, res.Success)
	assert.Equal(t, "command failed with status failed", res.Error)

	res = ResultFromResponse(&ResponseMessage{Stdout: "a", Stderr: "b"})
	assert.True(t, res.Success)
	assert.Equal(t, "ab", res.Output())
}

func TestFailedResult(t *testing.T) {
	res := FailedResult(errors.New("queue down"))
	assert.False(t, res.Success)
	assert.Equal(t, "queue down", res.Error)
}

func TestParseExecutorBackend(t *testing.T) {
	b, ok := ParseExecutorBackend("azure")
	assert.True(t, ok)
	assert.Equal(t, ExecutorQueue, b)

	b, ok = ParseExecutorBackend(" Local ")
	assert.True(t, ok)
	assert.Equal(t, ExecutorLocal, b)

	_, ok = ParseExecutorBackend("k8s")
	assert.False(t, ok)
}

func TestTaskStateRetryAccounting(t *testing.T) {
	s := NewTaskState("build", 3)
	assert.Equal(t, DefaultProjectsDir, s.CurrentDirectory)

	s.AddCommand("ls", "Error: nope", false, "nope")
	s.AddCommand("ls -la", "Error: nope", false, "nope")
	assert.Equal(t, 2, s.RetryCount)
	assert.True(t, s.ShouldRetry())

	s.ResetRetryCount()
	s.AddCommand("pwd", "/projects/x\n", true, "")
	assert.Equal(t, 0, s.RetryCount)

	for i := 0; i < 3; i++ {
		s.AddCommand("false", "Error: exit 1", false, "exit 1")
	}
	assert.False(t, s.ShouldRetry())
}

func TestTaskStatePromptData(t *testing.T) {
	s := NewTaskState("build", 0)
	assert.Equal(t, 3, s.MaxRetries)

	empty := s.PromptData()
	assert.Equal(t, 0, empty.TotalCommands)
	assert.Empty(t, empty.LastCommand)

	s.AddCommand("ls", "a b", true, "")
	s.AddCommand("cat a", "hello", true, "")
	data := s.PromptData()
	require.Len(t, data.CommandSequence, 2)
	assert.Equal(t, 1, data.CommandSequence[0].Sequence)
	assert.Equal(t, 2, data.CommandSequence[1].Sequence)
	assert.Equal(t, "cat a", data.LastCommand)
	assert.Equal(t, "hello", data.LastOutput)
	assert.Equal(t, 2, data.TotalCommands)
}

func TestSessionRecordCloneIsDeep(t *testing.T) {
	r := &SessionRecord{
		SessionID: "s",
		Browsers: map[string]*BrowserState{
			BrowserKey(0): {BrowserIndex: 0, Documentation: &Documentation{Response: "doc", Sources: []string{"a"}}},
		},
	}
	c := r.Clone()
	c.Browsers[BrowserKey(0)].Status = SessionStatusFailed
	c.Browsers[BrowserKey(0)].Documentation.Sources[0] = "changed"

	assert.Empty(t, r.Browsers["browser_0"].Status)
	assert.Equal(t, "a", r.Browsers["browser_0"].Documentation.Sources[0])
}

func TestVectorRoundTrip(t *testing.T) {
	v := Vector{0.5, 0.25}
	raw, err := v.Value()
	require.NoError(t, err)

	var out Vector
	require.NoError(t, out.Scan(raw))
	assert.Equal(t, v, out)
}

func TestResolveProjectDir(t *testing.T) {
	assert.Equal(t, "/projects/app", ResolveProjectDir("/projects", "app"))
	assert.Equal(t, "/srv/code", ResolveProjectDir("/projects", "/srv/code/"))
	assert.Equal(t, "/projects", ResolveProjectDir("", ""))
}

func TestProjectNameFromRepo(t *testing.T) {
	assert.Equal(t, "RFT_OpenAI", ProjectNameFromRepo("https://github.com/Prathmesh234/RFT_OpenAI.git"))
	assert.Equal(t, "repo", ProjectNameFromRepo("git@github.com:org/repo.git"))
	assert.Equal(t, "tool", ProjectNameFromRepo("https://example.com/tool/"))
}

func TestShellQuoteEscapesSingleQuotes(t *testing.T) {
	assert.Equal(t, `'it'\''s'`, ShellQuote("it's"))
	assert.Equal(t, `'x; rm -rf /'`, ShellQuote("x; rm -rf /"))
}
