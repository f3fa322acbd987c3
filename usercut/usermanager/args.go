package usermanager

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"
	cm "github.com/steelcutops/usercut/usercut/commandmanager"
)

func addArgs(username string, opts AddOptions) []string {
	var args []string
	if opts.BaseDir != "" {
		args = append(args, "--base-dir", opts.BaseDir)
	}
	if opts.Comment != "" {
		args = append(args, "--comment", opts.Comment)
	}
	if opts.NoCreateHome {
		args = append(args, "--no-create-home")
	} else if opts.HomeDir != "" {
		args = append(args, "--create-home", "--home-dir", opts.HomeDir)
	}
	if opts.ExpireDate != "" {
		args = append(args, "--expiredate", opts.ExpireDate)
	}
	if opts.Inactive != nil {
		args = append(args, "--inactive", strconv.Itoa(*opts.Inactive))
	}
	if opts.NoUserGroup {
		args = append(args, "--no-user-group")
	} else {
		if opts.Group != "" {
			args = append(args, "--gid", opts.Group)
		}
		if groups := joinGroups(opts.Groups); groups != "" {
			args = append(args, "--groups", groups)
		}
	}
	if opts.System {
		args = append(args, "--system")
	}
	if opts.Shell != "" {
		args = append(args, "--shell", opts.Shell)
	}
	if opts.UID != nil {
		args = append(args, "--uid", strconv.Itoa(*opts.UID))
	}
	if opts.NonUnique {
		args = append(args, "--non-unique")
	}
	return append(args, username)
}

// modifyArgs returns nil when opts change nothing.
func modifyArgs(username string, opts ModifyOptions) []string {
	var args []string
	if opts.Comment != nil {
		args = append(args, "--comment", *opts.Comment)
	}
	if opts.HomeDir != nil {
		args = append(args, "--home", *opts.HomeDir)
		if opts.MoveHome {
			args = append(args, "--move-home")
		}
	}
	if opts.ExpireDate != nil {
		args = append(args, "--expiredate", *opts.ExpireDate)
	}
	if opts.Inactive != nil {
		args = append(args, "--inactive", strconv.Itoa(*opts.Inactive))
	}
	if opts.Group != nil {
		args = append(args, "--gid", *opts.Group)
	}
	if opts.Groups != nil {
		args = append(args, "--groups", joinGroups(opts.Groups))
		if opts.Append {
			args = append(args, "--append")
		}
	}
	if opts.Shell != nil {
		args = append(args, "--shell", *opts.Shell)
	}
	if opts.UID != nil {
		args = append(args, "--uid", strconv.Itoa(*opts.UID))
		if opts.NonUnique {
			args = append(args, "--non-unique")
		}
	}
	if len(args) == 0 {
		return nil
	}
	return append(args, username)
}

// deleteCommand picks userdel, or deluser when opts need its flags.
func deleteCommand(username string, opts DeleteOptions) (cm.CommandConfig, error) {
	if opts.Backup && opts.BackupTo == "" {
		return cm.CommandConfig{}, fmt.Errorf("%w: backup needs a backup directory", ErrInvalidOption)
	}
	if !opts.RemoveAllFiles && !opts.Backup && !opts.System {
		var args []string
		if opts.RemoveHome {
			args = append(args, "--remove")
		}
		if opts.Force {
			args = append(args, "--force")
		}
		return cm.CommandConfig{Command: "userdel", Args: append(args, username)}, nil
	}

	if opts.Force {
		return cm.CommandConfig{}, fmt.Errorf("%w: force cannot be combined with deluser options", ErrInvalidOption)
	}
	var args []string
	if opts.RemoveHome {
		args = append(args, "--remove-home")
	}
	if opts.RemoveAllFiles {
		args = append(args, "--remove-all-files")
	}
	if opts.Backup {
		args = append(args, "--backup", "--backup-to", opts.BackupTo)
	}
	if opts.System {
		args = append(args, "--system")
	}
	return cm.CommandConfig{Command: "deluser", Args: append(args, username)}, nil
}

// agingFlags returns nil when no limit is set.
func agingFlags(aging PasswordAging) []string {
	var args []string
	for _, f := range []struct {
		flag string
		v    *int
	}{
		{"--mindays", aging.MinDays},
		{"--maxdays", aging.MaxDays},
		{"--warndays", aging.WarnDays},
		{"--inactive", aging.InactiveDays},
	} {
		if f.v != nil {
			args = append(args, f.flag, strconv.Itoa(*f.v))
		}
	}
	return args
}

// joinGroups drops empty and repeated names and joins the rest with commas.
func joinGroups(groups []string) string {
	groups = lo.Map(groups, func(g string, _ int) string { return strings.TrimSpace(g) })
	groups = lo.Filter(groups, func(g string, _ int) bool { return g != "" })
	return strings.Join(lo.Uniq(groups), ",")
}
