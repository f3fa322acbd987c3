package host

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/steelcutops/usercut/common"
	"github.com/steelcutops/usercut/logger"
	"github.com/steelcutops/usercut/usercut/commandmanager"
	"github.com/steelcutops/usercut/usercut/usermanager"
)

type OSType string

const (
	Linux  OSType = "Linux"
	Darwin OSType = "Darwin"
)

// Host is a machine whose accounts are managed, locally or over SSH.
type Host struct {
	Hostname string
	common.Credentials
	SSHClient commandmanager.SSHDialer

	CommandManager commandmanager.CommandManager
	UserManager    usermanager.UserManager
	OSType         OSType

	// Account settings handed to the user manager.
	Sudo       bool
	Timeout    time.Duration
	PasswdPath string
	Logger     logger.Logger
}

// DetermineOS asks the host for its kernel name.
func (h *Host) DetermineOS(ctx context.Context) (OSType, error) {
	result, err := h.CommandManager.Run(ctx, commandmanager.CommandConfig{
		Command: "uname",
		Args:    []string{"-s"},
	})
	if err != nil {
		return "", fmt.Errorf("failed to determine OS of %s: %w", h.Hostname, err)
	}
	return OSType(strings.TrimSpace(result.STDOUT)), nil
}

func (h *Host) isLocal() bool {
	u, ok := h.CommandManager.(*commandmanager.UnixCommandManager)
	return ok && u.IsLocal()
}
