// Package runner provides the default CommandRunner (engine/wizard.CommandRunner),
// spawning resolved command strings via os/exec, grounded on the teacher's
// exec-map helper style and github.com/google/shlex for shell-less argument
// splitting.
package runner

import (
	"bytes"
	"context"
	"os/exec"
	"runtime"
	"time"

	"github.com/google/shlex"
	"github.com/mathieu007/dev-wizard-engine/engine/wizard"
	"github.com/mathieu007/dev-wizard-engine/pkg/logger"
)

// ShellRunner implements wizard.CommandRunner using os/exec.
type ShellRunner struct {
	// WarnAfter, when non-zero, logs a warning if a command is still
	// running after this duration, without canceling it.
	WarnAfter time.Duration
}

func NewShellRunner() *ShellRunner {
	return &ShellRunner{}
}

// Run spawns req.Run, either split into argv via shlex (req.Shell == false)
// or through the platform shell (req.Shell == true), enforcing req.TimeoutMs
// with context.WithTimeout when positive.
func (r *ShellRunner) Run(ctx context.Context, req wizard.RunRequest) (wizard.CommandResult, error) {
	runCtx := ctx
	var cancel context.CancelFunc
	if req.TimeoutMs > 0 {
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(req.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	name, args, err := r.resolveCommand(req)
	if err != nil {
		return wizard.CommandResult{}, err
	}

	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.Dir = req.CWD
	cmd.Env = envSlice(req.Env)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if r.WarnAfter > 0 {
		timer := time.AfterFunc(r.WarnAfter, func() {
			logger.FromContext(ctx).Warn("command still running", "run", req.Run, "after", r.WarnAfter.String())
		})
		defer timer.Stop()
	}

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	result := wizard.CommandResult{
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		DurationMs: duration.Milliseconds(),
	}
	if runCtx.Err() == context.DeadlineExceeded {
		result.TimedOut = true
	}
	if exitErr, ok := asExitError(runErr); ok {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	if runErr != nil {
		return result, runErr
	}
	result.ExitCode = 0
	return result, nil
}

func (r *ShellRunner) resolveCommand(req wizard.RunRequest) (string, []string, error) {
	if req.Shell {
		if runtime.GOOS == "windows" {
			return "cmd", []string{"/C", req.Run}, nil
		}
		return "sh", []string{"-c", req.Run}, nil
	}
	parts, err := shlex.Split(req.Run)
	if err != nil {
		return "", nil, err
	}
	if len(parts) == 0 {
		return "", nil, errEmptyCommand
	}
	return parts[0], parts[1:], nil
}

func envSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

func asExitError(err error) (*exec.ExitError, bool) {
	if err == nil {
		return nil, false
	}
	exitErr, ok := err.(*exec.ExitError)
	return exitErr, ok
}

var errEmptyCommand = &emptyCommandError{}

type emptyCommandError struct{}

func (e *emptyCommandError) Error() string { return "command resolved to an empty argument list" }
