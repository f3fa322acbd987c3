package commandmanager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/steelcutops/usercut/common"
	"golang.org/x/crypto/ssh"
)

const defaultSSHPort = "22"

type SSHDialer interface {
	Dial(network, addr string, config *ssh.ClientConfig, timeout time.Duration) (*ssh.Client, error)
}

// RealSSHClient dials with golang.org/x/crypto/ssh.
type RealSSHClient struct{}

func (RealSSHClient) Dial(network, addr string, config *ssh.ClientConfig, timeout time.Duration) (*ssh.Client, error) {
	cfg := *config
	cfg.Timeout = timeout
	return ssh.Dial(network, addr, &cfg)
}

type UnixCommandManager struct {
	Hostname  string
	SSHClient SSHDialer
	common.Credentials
}

func (u *UnixCommandManager) RunLocal(ctx context.Context, config CommandConfig) (CommandResult, error) {
	start := time.Now()

	argv := u.argv(config)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	// sudo may outlive the killed shell and hold the output pipes open.
	cmd.WaitDelay = time.Second
	if stdin := u.stdin(config); stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := CommandResult{
		Command:   config.String(),
		STDOUT:    stdout.String(),
		STDERR:    stderr.String(),
		ExitCode:  getExitCode(err),
		Duration:  time.Since(start),
		Timestamp: start,
	}

	if config.Sudo {
		if err := sudoError(result); err != nil {
			return result, err
		}
	}
	if ctxErr := ctx.Err(); ctxErr != nil && err != nil {
		return result, fmt.Errorf("%s: %w", result.Command, ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return result, &ExitError{Result: result}
	}
	return result, err
}

func (u *UnixCommandManager) getSSHConfig() (*ssh.ClientConfig, error) {
	var authMethod ssh.AuthMethod

	if u.Password != "" {
		slog.Debug("Using password authentication", "hostname", u.Hostname)
		authMethod = ssh.Password(u.Password)
	} else {
		slog.Debug("Using public key authentication", "hostname", u.Hostname)
		var keyManager SSHKeyManager
		if u.KeyPassphrase != "" {
			keyManager = FileSSHKeyManager{}
		} else {
			keyManager = AgentSSHKeyManager{}
		}

		keys, err := keyManager.ReadPrivateKeys(u.KeyPassphrase)
		if err != nil {
			return nil, err
		}

		authMethod = ssh.PublicKeysCallback(func() ([]ssh.Signer, error) {
			return keys, nil
		})
	}

	return &ssh.ClientConfig{
		User:            u.User,
		Auth:            []ssh.AuthMethod{authMethod},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}, nil
}

func (u *UnixCommandManager) RunRemote(ctx context.Context, config CommandConfig) (CommandResult, error) {
	slog.Debug("Executing remote command", "hostname", u.Hostname, "command", config.Command)

	if u.SSHClient == nil {
		return CommandResult{}, errors.New("SSHClient is not initialized")
	}

	sshConfig, err := u.getSSHConfig()
	if err != nil {
		return CommandResult{}, err
	}
	var dialTimeout time.Duration
	if deadline, ok := ctx.Deadline(); ok {
		dialTimeout = time.Until(deadline)
	} else {
		dialTimeout = 15 * time.Minute
	}

	client, err := u.SSHClient.Dial("tcp", u.address(), sshConfig, dialTimeout)
	if err != nil {
		return CommandResult{}, err
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return CommandResult{}, err
	}
	defer session.Close()

	cmdStr := shellJoin(u.argv(config))
	if stdin := u.stdin(config); stdin != "" {
		session.Stdin = strings.NewReader(stdin)
	}

	var stdout, stderr strings.Builder
	session.Stdout = &stdout
	session.Stderr = &stderr

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		done <- session.Run(cmdStr)
	}()

	select {
	case runErr := <-done:
		result := CommandResult{
			Command:   config.String(),
			STDOUT:    stdout.String(),
			STDERR:    stderr.String(),
			Duration:  time.Since(start),
			Timestamp: start,
		}
		if config.Sudo {
			if err := sudoError(result); err != nil {
				return result, err
			}
		}

		var exitErr *ssh.ExitError
		if errors.As(runErr, &exitErr) {
			result.ExitCode = exitErr.ExitStatus()
			return result, &ExitError{Result: result}
		}
		if runErr != nil {
			slog.Error("Failed to execute command over SSH", "command", cmdStr, "error", runErr)
			return result, runErr
		}
		return result, nil

	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		slog.Error("Command over SSH timed out", "hostname", u.Hostname, "command", config.Command)
		return CommandResult{Command: config.String(), Timestamp: start}, fmt.Errorf("%s: %w", config.String(), ctx.Err())
	}
}

func (u *UnixCommandManager) Run(ctx context.Context, config CommandConfig) (CommandResult, error) {
	if u.IsLocal() {
		slog.Debug("Detected local so running local command", "hostname", u.Hostname, "command", config.Command)
		return u.RunLocal(ctx, config)
	}

	slog.Debug("Detected remote command so running remote command", "hostname", u.Hostname, "command", config.Command)
	return u.RunRemote(ctx, config)
}

// IsLocal reports whether commands run on this machine rather than over SSH.
func (u *UnixCommandManager) IsLocal() bool {
	return u.Hostname == "" || u.Hostname == "localhost" || u.Hostname == "127.0.0.1" || u.Hostname == "::1"
}

func (u *UnixCommandManager) address() string {
	if _, _, err := net.SplitHostPort(u.Hostname); err == nil {
		return u.Hostname
	}
	return net.JoinHostPort(u.Hostname, defaultSSHPort)
}

// sudoScript reads the sudo password from the first stdin line and hands it
// to sudo -v only. The command then runs under sudo -n and sees the rest of
// stdin, so the password never reaches it even when sudo does not prompt.
const sudoScript = `IFS= read -r p; printf '%s\n' "$p" | sudo -S -p '' -v && sudo -n -- "$@"`

// argv is the full command line for config, including any sudo wrapper.
func (u *UnixCommandManager) argv(config CommandConfig) []string {
	var argv []string
	switch {
	case !config.Sudo:
	case u.SudoPassword != "":
		argv = []string{"sh", "-c", sudoScript, "sh"}
	default:
		argv = []string{"sudo", "-n", "--"}
	}
	argv = append(argv, config.Command)
	return append(argv, config.Args...)
}

func (u *UnixCommandManager) stdin(config CommandConfig) string {
	if config.Sudo && u.SudoPassword != "" {
		return u.SudoPassword + "\n" + config.Stdin
	}
	return config.Stdin
}

func shellJoin(argv []string) string {
	parts := make([]string, len(argv))
	for i, a := range argv {
		parts[i] = shellQuote(a)
	}
	return strings.Join(parts, " ")
}

// shellQuote single-quotes s for a POSIX shell unless it is made only of safe characters.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./=,:@+%", r)) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func sudoError(result CommandResult) error {
	out := result.STDOUT + result.STDERR
	if strings.Contains(out, "incorrect password") {
		return errors.New("sudo: incorrect password provided")
	}
	if strings.Contains(out, "is not in the sudoers file") {
		return errors.New("sudo: user is not in the sudoers file")
	}
	if strings.Contains(out, "a password is required") {
		return errors.New("sudo: a password is required")
	}
	return nil
}

func getExitCode(err error) int {
	var exitError *exec.ExitError
	if errors.As(err, &exitError) {
		if status, ok := exitError.Sys().(syscall.WaitStatus); ok {
			return status.ExitStatus()
		}
		return exitError.ExitCode()
	}
	return 0
}
