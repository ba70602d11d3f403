package builtin

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/charmbracelet/log"

	"sweep/internal/modules"
	"sweep/pkg/sweeptypes"
)

// CommandModule drives the treatment by running a shell command and blocking
// until it exits. The exit code and timing end up in the run's user data.
type CommandModule struct {
	sweeptypes.BaseObserver

	command string
	args    []string
	timeout time.Duration
	logger  *log.Logger
}

// NewCommandModule constructs a command module.
//
// Config keys: "command" (required), "args" (optional string list; when
// absent the command runs through "sh -c"), "timeout" (optional duration
// string, default none).
func NewCommandModule(cfg map[string]any, logger *log.Logger) (sweeptypes.Observer, error) {
	command, err := requiredString(cfg, "command")
	if err != nil {
		return nil, err
	}
	args, err := optionalStringSlice(cfg, "args")
	if err != nil {
		return nil, err
	}
	timeout, err := optionalDuration(cfg, "timeout", 0)
	if err != nil {
		return nil, err
	}
	return &CommandModule{
		command: command,
		args:    args,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// Trigger implements sweeptypes.Triggerable. It runs the configured command
// synchronously; a non-zero exit is an error and aborts the run.
func (m *CommandModule) Trigger(_ map[string]any) (map[string]any, error) {
	ctx := context.Background()
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	var cmd *exec.Cmd
	if len(m.args) > 0 {
		cmd = exec.CommandContext(ctx, m.command, m.args...)
	} else {
		cmd = exec.CommandContext(ctx, "sh", "-c", m.command)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	m.logger.Info("Running treatment command", "command", m.command)
	started := time.Now()
	err := cmd.Run()
	elapsed := time.Since(started)
	if err != nil {
		return nil, fmt.Errorf("treatment command failed after %s: %w (stderr: %s)",
			elapsed, err, stderr.String())
	}
	m.logger.Info("Treatment command finished", "duration", elapsed)

	return map[string]any{
		"command":         m.command,
		"exitCode":        0,
		"durationSeconds": elapsed.Seconds(),
	}, nil
}

func init() {
	if err := modules.GlobalRegistry.Register("command", NewCommandModule); err != nil {
		panic(err)
	}
}
