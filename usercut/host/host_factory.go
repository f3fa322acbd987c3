package host

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"

	"github.com/steelcutops/usercut/usercut/commandmanager"
	"github.com/steelcutops/usercut/usercut/usermanager"
)

var hostnameRe = regexp.MustCompile(`^[A-Za-z0-9_]([A-Za-z0-9._\-]*[A-Za-z0-9_])?$`)

// validateHostname accepts a DNS name or IP address with an optional port.
// IPv6 addresses need brackets when a port is given.
func validateHostname(hostname string) error {
	name := hostname
	if h, port, err := net.SplitHostPort(hostname); err == nil {
		if n, err := strconv.Atoi(port); err != nil || n < 1 || n > 65535 {
			return fmt.Errorf("invalid port in hostname: %q", hostname)
		}
		name = h
	}
	if net.ParseIP(name) != nil || hostnameRe.MatchString(name) {
		return nil
	}
	return fmt.Errorf("invalid hostname: %q", hostname)
}

func NewHost(hostname string, options ...HostOption) (*Host, error) {
	if hostname == "" {
		return nil, errors.New("hostname must not be empty")
	}
	if err := validateHostname(hostname); err != nil {
		return nil, err
	}

	ch := &Host{Hostname: hostname}

	for _, option := range options {
		option(ch)
	}

	// The command manager is required before determining the OS.
	if ch.CommandManager == nil {
		ch.CommandManager = &commandmanager.UnixCommandManager{
			Hostname:    hostname,
			SSHClient:   ch.SSHClient,
			Credentials: ch.Credentials,
		}
	}

	if ch.OSType == "" {
		osType, err := ch.DetermineOS(context.TODO())
		if err != nil {
			return nil, err
		}
		ch.OSType = osType
	}

	switch ch.OSType {
	case Linux:
		configureLinuxHost(ch)
	default:
		return nil, fmt.Errorf("unsupported operating system: %s", ch.OSType)
	}

	return ch, nil
}

func configureLinuxHost(ch *Host) {
	um := usermanager.NewLinuxUserManager(ch.CommandManager)
	if ch.isLocal() {
		um.Source = usermanager.FilePasswdSource{Path: ch.PasswdPath}
	} else {
		um.Source = usermanager.CommandPasswdSource{CommandManager: ch.CommandManager, Path: ch.PasswdPath}
	}
	if ch.Timeout > 0 {
		um.Timeout = ch.Timeout
	}
	um.Sudo = ch.Sudo
	um.Logger = ch.Logger

	ch.UserManager = um
}
