// Package runner executes administrative commands for the lifecycle core.
//
// A nonzero exit code is not an error: callers read Result.ExitCode and
// match output themselves. An error means the command could not be run at
// all (missing binary, cancelled context), which retry loops treat as fatal.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"go.uber.org/zap"

	"github.com/yaroslav/nnctl/internal/logging"
)

// Command describes one invocation.
type Command struct {
	// Args is the argv, Args[0] being the program.
	Args []string

	// User is the OS account to run as. Empty means the current user.
	User string

	// Env holds extra environment variables.
	Env map[string]string

	// Path entries are prepended to PATH.
	Path []string
}

// String renders the command as a shell-quoted line for logs.
func (c Command) String() string {
	return shellquote.Join(c.Args...)
}

// Script renders the command with its environment as a single shell script,
// suitable for `su -c` or `cmd /C`.
func (c Command) Script() string {
	var parts []string
	keys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, "export "+k+"="+shellquote.Join(c.Env[k]))
	}
	if len(c.Path) > 0 {
		parts = append(parts, "export PATH="+shellquote.Join(strings.Join(c.Path, ":"))+":$PATH")
	}
	parts = append(parts, c.String())
	return strings.Join(parts, " ; ")
}

// Result is the outcome of a command that ran to completion.
type Result struct {
	ExitCode int
	Output   string
}

// Succeeded reports a zero exit code.
func (r Result) Succeeded() bool {
	return r.ExitCode == 0
}

// Matches reports a zero exit code and output containing substr,
// the equivalent of `cmd | grep substr`.
func (r Result) Matches(substr string) bool {
	return r.ExitCode == 0 && strings.Contains(r.Output, substr)
}

// Runner executes commands.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// UserWrapper turns a command that must run as another user into the argv
// that achieves it on the current platform.
type UserWrapper func(cmd Command) []string

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	logger *zap.Logger
	wrap   UserWrapper
}

// NewExecRunner creates a runner. wrap may be nil, in which case User is ignored.
func NewExecRunner(logger *zap.Logger, wrap UserWrapper) *ExecRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExecRunner{
		logger: logger,
		wrap:   wrap,
	}
}

// Run executes cmd and waits for it.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	if len(cmd.Args) == 0 {
		return Result{}, errors.New("empty command")
	}

	argv := cmd.Args
	wrapped := cmd.User != "" && r.wrap != nil
	if wrapped {
		argv = r.wrap(cmd)
	}

	c := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if !wrapped {
		c.Env = mergeEnv(os.Environ(), cmd)
	}
	var out bytes.Buffer
	c.Stdout = &out
	c.Stderr = &out

	start := time.Now()
	err := c.Run()
	result := Result{Output: out.String()}

	fields := []zap.Field{
		zap.String(logging.FieldCommand, cmd.String()),
		zap.String(logging.FieldUser, cmd.User),
		zap.Int64(logging.FieldDuration, time.Since(start).Milliseconds()),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			result.ExitCode = exitErr.ExitCode()
			r.logger.Debug("command exited nonzero",
				append(fields, zap.Int(logging.FieldExitCode, result.ExitCode), zap.String("output", result.Output))...)
			return result, nil
		}
		result.ExitCode = -1
		return result, fmt.Errorf("failed to run %q: %w", cmd.String(), err)
	}

	r.logger.Debug("command succeeded", fields...)
	return result, nil
}

func mergeEnv(base []string, cmd Command) []string {
	env := append([]string(nil), base...)
	for k, v := range cmd.Env {
		env = append(env, k+"="+v)
	}
	if len(cmd.Path) > 0 {
		path := strings.Join(cmd.Path, string(os.PathListSeparator))
		if cur := os.Getenv("PATH"); cur != "" {
			path += string(os.PathListSeparator) + cur
		}
		env = append(env, "PATH="+path)
	}
	return env
}
