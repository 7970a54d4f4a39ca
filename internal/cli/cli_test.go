package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/agentdock/backend/internal/domain"
	"github.com/agentdock/backend/internal/infrastructure/remote"
	"github.com/agentdock/backend/internal/transport/http/dto"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeCLI(t *testing.T, server string, args ...string) (string, error) {
	t.Helper()
	t.Setenv(serverEnv, server)
	t.Setenv(apiKeyEnv, "secret")

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), err
}

func TestRunTaskPostsRequest(t *testing.T) {
	var got dto.BrowserTaskRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/run-browser-task", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(dto.BrowserTaskResponse{
			SessionID:   "s-1",
			Status:      "running",
			LiveViewURL: "https://live/1",
			Browsers:    map[string]domain.BrowserLink{"browser_0": {}, "browser_1": {}},
		})
	}))
	defer srv.Close()

	out, err := executeCLI(t, srv.URL, "run-task", "document the api", "--browsers", "2", "--user", "ana")
	require.NoError(t, err)

	assert.Equal(t, "document the api", got.UserQuestion)
	assert.Equal(t, 2, got.BrowserCount)
	assert.Equal(t, "ana", got.UserName)
	assert.Contains(t, out, "session: s-1 (running)")
	assert.Contains(t, out, "live view: https://live/1")
	assert.Contains(t, out, "browsers: 2")
}

func TestRunTaskTrackPrintsJobID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/run-browser-task-async", r.URL.Path)
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(dto.AsyncResponse{TaskID: "job-9", Status: "pending"})
	}))
	defer srv.Close()

	out, err := executeCLI(t, srv.URL, "run-task", "q", "--track")
	require.NoError(t, err)
	assert.Equal(t, "task job-9 pending\n", out)
}

func TestServerErrorsAreSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(dto.ErrorResponse{Error: "Task nope not found"})
	}))
	defer srv.Close()

	_, err := executeCLI(t, srv.URL, "status", "nope")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "Task nope not found", apiErr.Message)
}

func TestStatusSessionFlagSwitchesRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/browser-session/s-1", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"s-1","status":"completed"}`))
	}))
	defer srv.Close()

	out, err := executeCLI(t, srv.URL, "status", "s-1", "--session")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "completed"`)
}

func TestShutdownSessions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/shutdown-all", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"success","message":"All sessions terminated successfully"}`))
	}))
	defer srv.Close()

	out, err := executeCLI(t, srv.URL, "shutdown-sessions")
	require.NoError(t, err)
	assert.Equal(t, "All sessions terminated successfully\n", out)
}

func TestWatchPrintsRelayedSteps(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ws/web-agent/s-1", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte("step 1"))
		_ = conn.WriteMessage(websocket.TextMessage, []byte("step 2"))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
	defer srv.Close()

	out, err := executeCLI(t, srv.URL, "watch", "s-1")
	require.NoError(t, err)
	assert.Equal(t, "step 1\nstep 2\n", out)
}

func TestExecStreamPrintsEvents(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		var req dto.ExecuteRequest
		require.NoError(t, conn.ReadJSON(&req))
		assert.Equal(t, "list files", req.Task)

		_ = conn.WriteJSON(domain.TaskEvent{Type: domain.TaskEventCommand, Iteration: 1, Command: "ls"})
		_ = conn.WriteJSON(domain.TaskEvent{Type: domain.TaskEventOutput, Iteration: 1, Output: "README.md"})
		_ = conn.WriteJSON(map[string]interface{}{"type": "result", "result": dto.ExecuteResponse{RunID: "r-1", Status: domain.TaskOutcomeCompleted}})
	}))
	defer srv.Close()

	out, err := executeCLI(t, srv.URL, "exec", "list files", "--repo", "https://github.com/acme/demo.git", "--stream")
	require.NoError(t, err)
	assert.Equal(t, "[1] $ ls\nREADME.md\nrun r-1 finished: completed\n", out)
}

func TestRejectsNonHTTPServer(t *testing.T) {
	_, err := executeCLI(t, "ftp://example.com", "status", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http or https")
}

func TestSandboxKeyWritesKeyPair(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sandbox")

	out, err := executeCLI(t, "http://localhost:8000", "sandbox-key", "--out", path)
	require.NoError(t, err)
	assert.Contains(t, out, "private key: "+path)
	assert.Contains(t, out, "ssh-ed25519 ")
	assert.FileExists(t, path)
	assert.FileExists(t, path+".pub")

	_, err = executeCLI(t, "http://localhost:8000", "sandbox-key", "--out", path)
	assert.ErrorIs(t, err, remote.ErrKeyExists)
}
