package usermanager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/steelcutops/usercut/logger"
	cm "github.com/steelcutops/usercut/usercut/commandmanager"
)

// DefaultTimeout bounds every account command.
const DefaultTimeout = 5 * time.Second

type LinuxUserManager struct {
	CommandManager cm.CommandManager
	// Source defaults to the local /etc/passwd.
	Source PasswdSource
	// Timeout defaults to DefaultTimeout.
	Timeout time.Duration
	// Sudo runs the shadow utilities through sudo.
	Sudo   bool
	Logger logger.Logger
}

func NewLinuxUserManager(cmdManager cm.CommandManager) *LinuxUserManager {
	return &LinuxUserManager{
		CommandManager: cmdManager,
		Source:         FilePasswdSource{Path: DefaultPasswdPath},
		Timeout:        DefaultTimeout,
	}
}

func (l *LinuxUserManager) GetUser(ctx context.Context, username string) (User, error) {
	rc, err := l.source().Open(ctx)
	if err != nil {
		return User{}, err
	}
	defer rc.Close()

	return FindUser(rc, username)
}

func (l *LinuxUserManager) ListUsers(ctx context.Context) ([]User, error) {
	rc, err := l.source().Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return ParsePasswd(rc)
}

func (l *LinuxUserManager) AddUser(ctx context.Context, username string, opts AddOptions) (User, error) {
	if err := validateUsername(username); err != nil {
		return User{}, err
	}
	if opts.ExpireDate != "" {
		if err := validateExpireDate(opts.ExpireDate, false); err != nil {
			return User{}, err
		}
	}

	if _, err := l.run(ctx, OpCreate, username, cm.CommandConfig{
		Command: "useradd",
		Args:    addArgs(username, opts),
	}); err != nil {
		return User{}, err
	}
	l.log().Info("User created", "user", username)

	return l.GetUser(ctx, username)
}

func (l *LinuxUserManager) ModifyUser(ctx context.Context, username string, opts ModifyOptions) (User, error) {
	if err := validateAccountName(username); err != nil {
		return User{}, err
	}
	if opts.ExpireDate != nil {
		if err := validateExpireDate(*opts.ExpireDate, true); err != nil {
			return User{}, err
		}
	}
	args := modifyArgs(username, opts)
	if args == nil {
		return User{}, ErrNoChanges
	}

	if _, err := l.run(ctx, OpModify, username, cm.CommandConfig{
		Command: "usermod",
		Args:    args,
	}); err != nil {
		return User{}, err
	}
	l.log().Info("User modified", "user", username)

	return l.GetUser(ctx, username)
}

func (l *LinuxUserManager) DeleteUser(ctx context.Context, username string, opts DeleteOptions) error {
	if err := validateAccountName(username); err != nil {
		return err
	}
	config, err := deleteCommand(username, opts)
	if err != nil {
		return err
	}
	if _, err := l.run(ctx, OpDelete, username, config); err != nil {
		return err
	}
	l.log().Info("User deleted", "user", username, "command", config.Command, "remove_home", opts.RemoveHome)
	return nil
}

// ChangePassword feeds the new password to passwd --stdin.
func (l *LinuxUserManager) ChangePassword(ctx context.Context, username, password string) error {
	if strings.ContainsAny(password, "\r\n") {
		return fmt.Errorf("%w: password must be a single line", ErrInvalidOption)
	}
	return l.passwd(ctx, username, "Password changed", password+"\n", "--stdin")
}

func (l *LinuxUserManager) Lock(ctx context.Context, username string) error {
	return l.passwd(ctx, username, "User locked", "", "--lock")
}

func (l *LinuxUserManager) Unlock(ctx context.Context, username string) error {
	return l.passwd(ctx, username, "User unlocked", "", "--unlock")
}

// DeletePassword makes the account passwordless.
func (l *LinuxUserManager) DeletePassword(ctx context.Context, username string) error {
	return l.passwd(ctx, username, "Password deleted", "", "--delete")
}

// ExpirePassword forces a password change at next login.
func (l *LinuxUserManager) ExpirePassword(ctx context.Context, username string) error {
	return l.passwd(ctx, username, "Password expired", "", "--expire")
}

func (l *LinuxUserManager) SetPasswordAging(ctx context.Context, username string, aging PasswordAging) error {
	flags := agingFlags(aging)
	if flags == nil {
		return ErrNoChanges
	}
	return l.passwd(ctx, username, "Password aging set", "", flags...)
}

func (l *LinuxUserManager) PasswordStatus(ctx context.Context, username string) (PasswordStatus, error) {
	if err := validateAccountName(username); err != nil {
		return PasswordStatus{}, err
	}
	result, err := l.run(ctx, OpStatus, username, cm.CommandConfig{
		Command: "passwd",
		Args:    []string{"--status", username},
	})
	if err != nil {
		return PasswordStatus{}, err
	}
	status, err := parsePasswordStatus(result.STDOUT)
	if err != nil {
		return PasswordStatus{}, &AccountError{Op: OpStatus, Username: username, Command: result.Command, Err: err}
	}
	return status, nil
}

func (l *LinuxUserManager) passwd(ctx context.Context, username, event, stdin string, flags ...string) error {
	if err := validateAccountName(username); err != nil {
		return err
	}
	if _, err := l.run(ctx, OpModify, username, cm.CommandConfig{
		Command: "passwd",
		Args:    append(flags, username),
		Stdin:   stdin,
	}); err != nil {
		return err
	}
	l.log().Info(event, "user", username)
	return nil
}

// run executes config under the manager timeout and converts any failure
// into an *AccountError for op.
func (l *LinuxUserManager) run(ctx context.Context, op Op, username string, config cm.CommandConfig) (cm.CommandResult, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout())
	defer cancel()

	config.Sudo = l.Sudo
	l.log().Debug("Running account command", "op", op, "command", config.String())

	result, err := l.CommandManager.Run(ctx, config)
	if err == nil {
		return result, nil
	}

	ae := &AccountError{
		Op:       op,
		Username: username,
		Command:  config.String(),
		ExitCode: result.ExitCode,
		Stderr:   strings.TrimSpace(result.STDERR),
		Err:      err,
	}
	var exitErr *cm.ExitError
	if errors.As(err, &exitErr) {
		ae.ExitCode = exitErr.Result.ExitCode
		if ae.Stderr == "" {
			ae.Stderr = strings.TrimSpace(exitErr.Result.STDERR)
		}
	}
	l.log().Error("Account command failed", "op", op, "user", username, "exit_code", ae.ExitCode, "stderr", ae.Stderr, "error", err)
	return result, ae
}

func (l *LinuxUserManager) source() PasswdSource {
	if l.Source == nil {
		return FilePasswdSource{Path: DefaultPasswdPath}
	}
	return l.Source
}

func (l *LinuxUserManager) timeout() time.Duration {
	if l.Timeout <= 0 {
		return DefaultTimeout
	}
	return l.Timeout
}

var defaultLogger = logger.New()

func (l *LinuxUserManager) log() logger.Logger {
	if l.Logger == nil {
		return defaultLogger
	}
	return l.Logger
}
