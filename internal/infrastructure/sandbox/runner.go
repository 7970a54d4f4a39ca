// Package sandbox runs shell commands on the local host or inside a local
// sandbox container.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/agentdock/backend/internal/domain"
)

// Runner executes commands through os/exec. argv builds the process
// arguments for one command; dir, when set, is the process working directory.
type Runner struct {
	timeout time.Duration
	argv    func(command, workdir string) (args []string, dir string)
}

// NewShellRunner runs `<shell> -c <command>` in workdir on this host.
func NewShellRunner(shell string, timeout time.Duration) *Runner {
	if shell == "" {
		shell = "bash"
	}
	return newRunner(timeout, func(command, workdir string) ([]string, string) {
		return []string{shell, "-c", command}, workdir
	})
}

// NewDockerRunner runs `docker exec -w <workdir> <container> sh -c <command>`.
func NewDockerRunner(container string, timeout time.Duration) *Runner {
	return newRunner(timeout, func(command, workdir string) ([]string, string) {
		args := []string{"docker", "exec"}
		if workdir != "" {
			args = append(args, "-w", workdir)
		}
		return append(args, container, "sh", "-c", command), ""
	})
}

func newRunner(timeout time.Duration, argv func(string, string) ([]string, string)) *Runner {
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	return &Runner{timeout: timeout, argv: argv}
}

// Run implements ports.CommandRunner.
func (r *Runner) Run(ctx context.Context, command, workdir string) domain.CommandResult {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	args, dir := r.argv(command, workdir)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := domain.CommandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			result.ExitCode = -1
			result.Error = fmt.Sprintf("command timed out after %v", r.timeout)
			return result
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			result.Error = fmt.Sprintf("command exited with status %d", exitErr.ExitCode())
		} else {
			result.ExitCode = -1
			result.Error = err.Error()
		}
		return result
	}

	result.Success = true
	return result
}
