package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/steelcutops/usercut/logger"
	"github.com/steelcutops/usercut/usercut/commandmanager"
	"github.com/steelcutops/usercut/usercut/host"
	"github.com/steelcutops/usercut/usercut/hostgroup"
	"github.com/steelcutops/usercut/usercut/usermanager"

	multierror "github.com/hashicorp/go-multierror"
	"golang.org/x/term"
	"gopkg.in/ini.v1"
)

var programLevel = new(slog.LevelVar)

type flags struct {
	Concurrency        int
	Debug              bool
	Hostnames          hostnamesValue
	IniFilePath        string
	KeyPassPrompt      bool
	LogFileName        string
	PasswdPath         string
	PasswordPrompt     bool
	SudoPasswordPrompt bool
	Timeout            time.Duration
	Username           string

	// Actions; exactly one is set.
	List        bool
	Get         string
	Add         string
	Modify      string
	Delete      string
	Lock        string
	Unlock      string
	SetPassword string
	Expire      string
	Status      string

	// Account options.
	AppendGroups bool
	Backup       bool
	BackupTo     string
	BaseDir      string
	Comment      string
	ExpireDate   string
	Force        bool
	Group        string
	Groups       string
	HomeDir      string
	Inactive     int
	MoveHome     bool
	NoCreateHome bool
	NoUserGroup  bool
	NonUnique    bool
	RemoveAll    bool
	RemoveHome   bool
	Shell        string
	System       bool
	UID          int

	// set records which flags appeared on the command line.
	set map[string]bool
}

type hostnamesValue []string

func (h *hostnamesValue) String() string {
	return strings.Join(*h, ",")
}

func (h *hostnamesValue) Set(value string) error {
	*h = append(*h, value)
	return nil
}

func readHostsFromFile(filePath string) (map[string][]string, error) {
	cfg, err := ini.Load(filePath)
	if err != nil {
		return nil, err
	}

	hosts := make(map[string][]string)

	for _, section := range cfg.Sections() {
		name := section.Name()
		for _, key := range section.Keys() {
			hosts[name] = append(hosts[name], key.String())
		}
	}

	return hosts, nil
}

func parseFlags(args []string) (*flags, error) {
	f := &flags{}
	fs := flag.NewFlagSet("usercut", flag.ContinueOnError)

	fs.BoolVar(&f.Debug, "debug", false, "Enable debug log level")
	fs.BoolVar(&f.KeyPassPrompt, "keypass", false, "Passphrase for decrypting SSH keys")
	fs.BoolVar(&f.PasswordPrompt, "password", false, "Use a password for SSH connection")
	fs.BoolVar(&f.SudoPasswordPrompt, "sudo-password", false, "Prompt for sudo password and run account commands with sudo")
	fs.DurationVar(&f.Timeout, "timeout", usermanager.DefaultTimeout, "Timeout for each account command")
	fs.IntVar(&f.Concurrency, "concurrency", 10, "Maximum number of concurrent host connections")
	fs.StringVar(&f.IniFilePath, "ini", "", "Path to INI file with host configurations")
	fs.StringVar(&f.LogFileName, "log", "", "Append an audit log of account changes to this file")
	fs.StringVar(&f.PasswdPath, "passwd-file", usermanager.DefaultPasswdPath, "Path of the passwd file on the hosts")
	fs.StringVar(&f.Username, "username", "", "Username to use for SSH connection")
	fs.Var(&f.Hostnames, "hostname", "Hostname to connect to")

	fs.BoolVar(&f.List, "list", false, "List all users")
	fs.StringVar(&f.Get, "get", "", "Show one user")
	fs.StringVar(&f.Add, "add", "", "Create a user")
	fs.StringVar(&f.Modify, "modify", "", "Modify a user")
	fs.StringVar(&f.Delete, "delete", "", "Delete a user")
	fs.StringVar(&f.Lock, "lock", "", "Lock a user's password")
	fs.StringVar(&f.Unlock, "unlock", "", "Unlock a user's password")
	fs.StringVar(&f.SetPassword, "set-password", "", "Prompt for and set a user's password")
	fs.StringVar(&f.Expire, "expire", "", "Force a password change at next login")
	fs.StringVar(&f.Status, "status", "", "Show a user's password status")

	fs.BoolVar(&f.AppendGroups, "append", false, "With -modify -groups, add to the groups instead of replacing them")
	fs.BoolVar(&f.Backup, "backup", false, "With -delete, back up the user's files first (deluser, needs -backup-to)")
	fs.StringVar(&f.BackupTo, "backup-to", "", "Directory for -backup")
	fs.StringVar(&f.BaseDir, "base-dir", "", "Base directory for the home directory")
	fs.StringVar(&f.Comment, "comment", "", "GECOS comment, usually the full name")
	fs.StringVar(&f.ExpireDate, "expiredate", "", "Account expiry date, YYYY-MM-DD")
	fs.BoolVar(&f.Force, "force", false, "With -delete, remove the user even while logged in")
	fs.StringVar(&f.Group, "group", "", "Primary group name or GID")
	fs.StringVar(&f.Groups, "groups", "", "Comma separated supplementary groups")
	fs.StringVar(&f.HomeDir, "home", "", "Home directory")
	fs.IntVar(&f.Inactive, "inactive", 0, "Days after password expiry before the account is disabled")
	fs.BoolVar(&f.MoveHome, "move-home", false, "With -modify -home, move the old home directory")
	fs.BoolVar(&f.NoCreateHome, "no-create-home", false, "Do not create a home directory")
	fs.BoolVar(&f.NoUserGroup, "no-user-group", false, "Do not create a group named after the user")
	fs.BoolVar(&f.NonUnique, "non-unique", false, "Allow a duplicate UID")
	fs.BoolVar(&f.RemoveAll, "remove-all-files", false, "With -delete, remove every file owned by the user (deluser)")
	fs.BoolVar(&f.RemoveHome, "remove-home", false, "With -delete, remove the home directory and mail spool")
	fs.StringVar(&f.Shell, "shell", "", "Login shell")
	fs.BoolVar(&f.System, "system", false, "Create a system account, or with -delete only remove a system account (deluser)")
	fs.IntVar(&f.UID, "uid", 0, "Numeric user ID")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	f.set = make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })

	if n := f.actionCount(); n != 1 {
		return nil, fmt.Errorf("exactly one action is required, got %d", n)
	}
	return f, nil
}

func (f *flags) actionCount() int {
	n := 0
	if f.List {
		n++
	}
	for _, name := range []string{"get", "add", "modify", "delete", "lock", "unlock", "set-password", "expire", "status"} {
		if f.set[name] {
			n++
		}
	}
	return n
}

func splitGroups(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}

func (f *flags) addOptions() usermanager.AddOptions {
	opts := usermanager.AddOptions{
		BaseDir:      f.BaseDir,
		Comment:      f.Comment,
		HomeDir:      f.HomeDir,
		NoCreateHome: f.NoCreateHome,
		ExpireDate:   f.ExpireDate,
		Group:        f.Group,
		NoUserGroup:  f.NoUserGroup,
		System:       f.System,
		Shell:        f.Shell,
		NonUnique:    f.NonUnique,
	}
	if f.set["groups"] {
		opts.Groups = splitGroups(f.Groups)
	}
	if f.set["inactive"] {
		opts.Inactive = usermanager.Int(f.Inactive)
	}
	if f.set["uid"] {
		opts.UID = usermanager.Int(f.UID)
	}
	return opts
}

func (f *flags) modifyOptions() usermanager.ModifyOptions {
	opts := usermanager.ModifyOptions{
		MoveHome:  f.MoveHome,
		Append:    f.AppendGroups,
		NonUnique: f.NonUnique,
	}
	if f.set["comment"] {
		opts.Comment = usermanager.String(f.Comment)
	}
	if f.set["home"] {
		opts.HomeDir = usermanager.String(f.HomeDir)
	}
	if f.set["expiredate"] {
		opts.ExpireDate = usermanager.String(f.ExpireDate)
	}
	if f.set["inactive"] {
		opts.Inactive = usermanager.Int(f.Inactive)
	}
	if f.set["group"] {
		opts.Group = usermanager.String(f.Group)
	}
	if f.set["groups"] {
		opts.Groups = splitGroups(f.Groups)
	}
	if f.set["shell"] {
		opts.Shell = usermanager.String(f.Shell)
	}
	if f.set["uid"] {
		opts.UID = usermanager.Int(f.UID)
	}
	return opts
}

func (f *flags) deleteOptions() usermanager.DeleteOptions {
	return usermanager.DeleteOptions{
		RemoveHome:     f.RemoveHome,
		Force:          f.Force,
		RemoveAllFiles: f.RemoveAll,
		Backup:         f.Backup,
		BackupTo:       f.BackupTo,
		System:         f.System,
	}
}

// hostAction builds the per-host step for the selected action. newPassword is
// only used by -set-password.
func hostAction(f *flags, newPassword string, out *syncWriter) func(ctx context.Context, h *host.Host) error {
	um := func(h *host.Host) usermanager.UserManager { return h.UserManager }

	switch {
	case f.List:
		return func(ctx context.Context, h *host.Host) error {
			users, err := um(h).ListUsers(ctx)
			if err != nil {
				return err
			}
			return out.emit(h.Hostname, users)
		}
	case f.set["get"]:
		return func(ctx context.Context, h *host.Host) error {
			u, err := um(h).GetUser(ctx, f.Get)
			if err != nil {
				return err
			}
			return out.emit(h.Hostname, u)
		}
	case f.set["add"]:
		opts := f.addOptions()
		return func(ctx context.Context, h *host.Host) error {
			u, err := um(h).AddUser(ctx, f.Add, opts)
			if err != nil {
				return err
			}
			return out.emit(h.Hostname, u)
		}
	case f.set["modify"]:
		opts := f.modifyOptions()
		return func(ctx context.Context, h *host.Host) error {
			u, err := um(h).ModifyUser(ctx, f.Modify, opts)
			if err != nil {
				return err
			}
			return out.emit(h.Hostname, u)
		}
	case f.set["delete"]:
		opts := f.deleteOptions()
		return func(ctx context.Context, h *host.Host) error {
			return um(h).DeleteUser(ctx, f.Delete, opts)
		}
	case f.set["lock"]:
		return func(ctx context.Context, h *host.Host) error {
			return um(h).Lock(ctx, f.Lock)
		}
	case f.set["unlock"]:
		return func(ctx context.Context, h *host.Host) error {
			return um(h).Unlock(ctx, f.Unlock)
		}
	case f.set["set-password"]:
		return func(ctx context.Context, h *host.Host) error {
			return um(h).ChangePassword(ctx, f.SetPassword, newPassword)
		}
	case f.set["expire"]:
		return func(ctx context.Context, h *host.Host) error {
			return um(h).ExpirePassword(ctx, f.Expire)
		}
	case f.set["status"]:
		return func(ctx context.Context, h *host.Host) error {
			s, err := um(h).PasswordStatus(ctx, f.Status)
			if err != nil {
				return err
			}
			return out.emit(h.Hostname, s)
		}
	}
	return nil
}

// syncWriter serialises JSON records from concurrent host actions.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) emit(hostname string, v interface{}) error {
	b, err := json.MarshalIndent(struct {
		Host   string      `json:"host"`
		Result interface{} `json:"result"`
	}{hostname, v}, "", "  ")
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = fmt.Fprintln(s.w, string(b))
	return err
}

func main() {
	f, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	configureLogger(f)

	accountLogger, closeLog, err := buildLogger(f)
	if err != nil {
		slog.Error("Failed to open log file", "error", err)
		os.Exit(1)
	}
	defer closeLog()

	password, keyPass, sudoPassword := readPasswords(f)
	var newPassword string
	if f.set["set-password"] {
		newPassword, err = promptNewPassword(f.SetPassword)
		if err != nil {
			slog.Error("Failed to read new password", "error", err)
			os.Exit(1)
		}
	}

	options := buildHostOptions(f, password, keyPass, sudoPassword, accountLogger)
	hostGroup, err := initializeHosts(f, options)
	if err != nil {
		slog.Error("Failed to initialize hosts", "error", err)
		closeLog()
		os.Exit(1)
	}

	out := &syncWriter{w: os.Stdout}
	if err := hostGroup.Each(context.Background(), f.Concurrency, hostAction(f, newPassword, out)); err != nil {
		slog.Error("Account action failed", "error", err)
		closeLog()
		os.Exit(1)
	}
}

func configureLogger(f *flags) {
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: programLevel})
	slog.SetDefault(slog.New(h))

	if f.Debug {
		programLevel.Set(slog.LevelDebug)
		slog.Debug("Debug mode enabled")
	} else {
		programLevel.Set(slog.LevelInfo)
	}
}

// buildLogger returns the logger handed to every user manager: stderr, plus
// the logrus audit file when -log is set.
func buildLogger(f *flags) (logger.Logger, func(), error) {
	std := logger.NewSlog(slog.Default())
	if f.LogFileName == "" {
		return std, func() {}, nil
	}
	audit, err := logger.NewFile(f.LogFileName, f.Debug)
	if err != nil {
		return nil, nil, err
	}
	var once sync.Once
	return logger.Multi{std, audit}, func() { once.Do(func() { _ = audit.Close() }) }, nil
}

func readSecret(prompt string) string {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		slog.Error("Failed to read secret", "prompt", strings.TrimSpace(prompt), "error", err)
		return ""
	}
	return string(b)
}

func readPasswords(f *flags) (password, keyPass, sudoPassword string) {
	if f.PasswordPrompt {
		password = readSecret("Enter the password: ")
	}
	if f.KeyPassPrompt {
		keyPass = readSecret("Enter the key passphrase: ")
	}
	if f.SudoPasswordPrompt {
		sudoPassword = readSecret("Enter the sudo password: ")
	}
	return
}

func promptNewPassword(username string) (string, error) {
	first := readSecret(fmt.Sprintf("New password for %s: ", username))
	second := readSecret("Retype new password: ")
	if first == "" {
		return "", errors.New("empty password")
	}
	if first != second {
		return "", errors.New("passwords do not match")
	}
	return first, nil
}

func buildHostOptions(f *flags, password, keyPass, sudoPassword string, l logger.Logger) []host.HostOption {
	options := []host.HostOption{
		host.WithTimeout(f.Timeout),
		host.WithPasswdPath(f.PasswdPath),
		host.WithLogger(l),
		host.WithSSHClient(commandmanager.RealSSHClient{}),
	}
	if f.Username != "" {
		options = append(options, host.WithUser(f.Username))
	}
	if password != "" {
		options = append(options, host.WithPassword(password))
	}
	if keyPass != "" {
		options = append(options, host.WithKeyPassphrase(keyPass))
	}
	if sudoPassword != "" {
		options = append(options, host.WithSudoPassword(sudoPassword))
	}
	return options
}

func addHosts(hostnames []string, hostGroup *hostgroup.HostGroup, options ...host.HostOption) error {
	var result *multierror.Error
	for _, hostname := range hostnames {
		slog.Debug("Adding host", "host", hostname)
		server, err := host.NewHost(hostname, options...)
		if err != nil {
			slog.Error("Failed to create new host", "host", hostname, "error", err)
			result = multierror.Append(result, fmt.Errorf("host %s: %w", hostname, err))
			continue
		}

		hostGroup.AddHost(server)
	}
	return result.ErrorOrNil()
}

// initializeHosts fails if the inventory cannot be read or any host cannot be
// set up, so a run never silently skips a target.
func initializeHosts(f *flags, options []host.HostOption) (*hostgroup.HostGroup, error) {
	hostGroup := hostgroup.NewHostGroup()

	if f.IniFilePath != "" {
		hostsMap, err := readHostsFromFile(f.IniFilePath)
		if err != nil {
			return nil, fmt.Errorf("read INI file: %w", err)
		}
		for group, hosts := range hostsMap {
			slog.Debug("Adding hosts from group", "group", group)
			if err := addHosts(hosts, hostGroup, options...); err != nil {
				return nil, err
			}
		}
	}
	if len(f.Hostnames) == 0 && f.IniFilePath == "" {
		f.Hostnames = append(f.Hostnames, "localhost")
	}
	if err := addHosts(f.Hostnames, hostGroup, options...); err != nil {
		return nil, err
	}
	if len(hostGroup.Hostnames()) == 0 {
		return nil, errors.New("no hosts to run on")
	}

	return hostGroup, nil
}
