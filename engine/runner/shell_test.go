package runner

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/mathieu007/dev-wizard-engine/engine/wizard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoCommand(msg string) string {
	if runtime.GOOS == "windows" {
		return "echo " + msg
	}
	return "echo " + msg
}

func TestShellRunnerRun(t *testing.T) {
	t.Run("Should run a shell-less command and capture stdout", func(t *testing.T) {
		r := NewShellRunner()
		res, err := r.Run(context.Background(), wizard.RunRequest{
			Run:   echoCommand("hi"),
			Shell: false,
		})
		require.NoError(t, err)
		assert.Equal(t, 0, res.ExitCode)
		assert.Contains(t, res.Stdout, "hi")
		assert.False(t, res.TimedOut)
	})

	t.Run("Should run a shell command through sh -c", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("posix shell test")
		}
		r := NewShellRunner()
		res, err := r.Run(context.Background(), wizard.RunRequest{
			Run:   `echo "a" && echo "b"`,
			Shell: true,
		})
		require.NoError(t, err)
		assert.Contains(t, res.Stdout, "a")
		assert.Contains(t, res.Stdout, "b")
	})

	t.Run("Should report a non-zero exit code without returning an error", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("posix shell test")
		}
		r := NewShellRunner()
		res, err := r.Run(context.Background(), wizard.RunRequest{
			Run:   "exit 3",
			Shell: true,
		})
		require.NoError(t, err)
		assert.Equal(t, 3, res.ExitCode)
	})

	t.Run("Should mark a command as timed out once the deadline elapses", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("posix shell test")
		}
		r := NewShellRunner()
		res, err := r.Run(context.Background(), wizard.RunRequest{
			Run:       "sleep 2",
			Shell:     true,
			TimeoutMs: 50,
		})
		assert.True(t, res.TimedOut)
		_ = err
	})

	t.Run("Should pass through explicit environment variables", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("posix shell test")
		}
		r := NewShellRunner()
		res, err := r.Run(context.Background(), wizard.RunRequest{
			Run:   "echo $FOO",
			Shell: true,
			Env:   map[string]string{"FOO": "bar"},
		})
		require.NoError(t, err)
		assert.Contains(t, res.Stdout, "bar")
	})
}

func TestShellRunnerWarnAfter(t *testing.T) {
	t.Run("Should not fail a command just because WarnAfter elapsed", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("posix shell test")
		}
		r := &ShellRunner{WarnAfter: 10 * time.Millisecond}
		res, err := r.Run(context.Background(), wizard.RunRequest{
			Run:   "sleep 0.1 && echo done",
			Shell: true,
		})
		require.NoError(t, err)
		assert.Contains(t, res.Stdout, "done")
	})
}
