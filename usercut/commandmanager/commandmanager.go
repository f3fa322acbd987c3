package commandmanager

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// CommandConfig describes a single command invocation.
type CommandConfig struct {
	Command string
	Args    []string
	Sudo    bool
	// Stdin is written to the process after the sudo password, if any.
	Stdin string
}

// String renders the command line for logs and error messages.
func (c CommandConfig) String() string {
	if len(c.Args) == 0 {
		return c.Command
	}
	return c.Command + " " + strings.Join(c.Args, " ")
}

// CommandResult encapsulates the results from a command execution.
type CommandResult struct {
	Command   string
	STDOUT    string
	STDERR    string
	ExitCode  int
	Duration  time.Duration
	Timestamp time.Time
}

// CommandManager provides methods to execute commands, both locally and remotely.
type CommandManager interface {
	// Run executes the command locally or remotely depending on the target host.
	Run(ctx context.Context, config CommandConfig) (CommandResult, error)

	// RunLocal executes a command on the local system.
	RunLocal(ctx context.Context, config CommandConfig) (CommandResult, error)

	// RunRemote executes a command on a remote system via SSH.
	RunRemote(ctx context.Context, config CommandConfig) (CommandResult, error)
}

// ExitError is returned when a command ran to completion with a non-zero exit code.
type ExitError struct {
	Result CommandResult
}

func (e *ExitError) Error() string {
	msg := strings.TrimSpace(e.Result.STDERR)
	if msg == "" {
		return fmt.Sprintf("%s: exit status %d", e.Result.Command, e.Result.ExitCode)
	}
	return fmt.Sprintf("%s: exit status %d: %s", e.Result.Command, e.Result.ExitCode, msg)
}
