package host

import (
	"time"

	"github.com/steelcutops/usercut/logger"
	"github.com/steelcutops/usercut/usercut/commandmanager"
)

type HostOption func(*Host)

// WithUser returns a HostOption that sets the user for a Host.
func WithUser(user string) HostOption {
	return func(host *Host) {
		host.User = user
	}
}

// WithPassword returns a HostOption that sets the password for a Host.
func WithPassword(password string) HostOption {
	return func(host *Host) {
		host.Password = password
	}
}

// WithKeyPassphrase returns a HostOption that sets the key passphrase for a Host.
func WithKeyPassphrase(keyPassphrase string) HostOption {
	return func(host *Host) {
		host.KeyPassphrase = keyPassphrase
	}
}

// WithOS skips OS detection and trusts os instead.
func WithOS(os OSType) HostOption {
	return func(host *Host) {
		host.OSType = os
	}
}

// WithSudoPassword returns a HostOption that sets the sudo password for a Host
// and runs account commands through sudo.
func WithSudoPassword(password string) HostOption {
	return func(host *Host) {
		host.SudoPassword = password
		host.Sudo = true
	}
}

func WithSSHClient(client commandmanager.SSHDialer) HostOption {
	return func(host *Host) {
		host.SSHClient = client
	}
}

// WithCommandManager replaces the default UnixCommandManager.
func WithCommandManager(manager commandmanager.CommandManager) HostOption {
	return func(host *Host) {
		host.CommandManager = manager
	}
}

func WithTimeout(timeout time.Duration) HostOption {
	return func(host *Host) {
		host.Timeout = timeout
	}
}

func WithPasswdPath(path string) HostOption {
	return func(host *Host) {
		host.PasswdPath = path
	}
}

func WithLogger(l logger.Logger) HostOption {
	return func(host *Host) {
		host.Logger = l
	}
}
