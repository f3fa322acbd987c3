package usermanager

import "context"

// User represents an individual user account on the system.
type User struct {
	Username string // user login name
	UID      int    // user ID
	GID      int    // group ID
	Comment  string // user full name or comment
	HomeDir  string // user home directory
	Shell    string // user's shell
}

// AddOptions maps onto useradd flags. Zero values are left out of the command line.
type AddOptions struct {
	BaseDir string
	Comment string
	// HomeDir is created with --create-home unless NoCreateHome is set.
	HomeDir      string
	NoCreateHome bool
	// ExpireDate is YYYY-MM-DD.
	ExpireDate string
	Inactive   *int
	Group      string
	Groups     []string
	// NoUserGroup suppresses Group and Groups.
	NoUserGroup bool
	System      bool
	Shell       string
	UID         *int
	NonUnique   bool
}

// ModifyOptions maps onto usermod flags. Nil pointers are left unchanged.
type ModifyOptions struct {
	Comment    *string
	HomeDir    *string
	MoveHome   bool
	ExpireDate *string
	Inactive   *int
	Group      *string
	// Groups replaces the supplementary groups, or extends them with Append.
	// A nil slice leaves them alone; an empty one clears them.
	Groups    []string
	Append    bool
	Shell     *string
	UID       *int
	NonUnique bool
}

// DeleteOptions maps onto userdel. RemoveAllFiles, Backup and System are only
// understood by Debian's deluser, which runs instead when any of them is set.
type DeleteOptions struct {
	RemoveHome bool
	// Force is userdel only.
	Force          bool
	RemoveAllFiles bool
	// Backup requires BackupTo.
	Backup   bool
	BackupTo string
	// System only removes the account if it is a system account.
	System bool
}

// PasswordAging maps onto passwd --mindays/--maxdays/--warndays/--inactive.
type PasswordAging struct {
	MinDays      *int
	MaxDays      *int
	WarnDays     *int
	InactiveDays *int
}

// UserManager encompasses operations related to user management.
type UserManager interface {
	// Fetches the details of a user based on username
	GetUser(ctx context.Context, username string) (User, error)

	// Lists all users
	ListUsers(ctx context.Context) ([]User, error)

	// Adds a new user and returns it as read back from the passwd file
	AddUser(ctx context.Context, username string, opts AddOptions) (User, error)

	// Modifies an existing user and returns the refreshed record
	ModifyUser(ctx context.Context, username string, opts ModifyOptions) (User, error)

	// Deletes a user based on username
	DeleteUser(ctx context.Context, username string, opts DeleteOptions) error

	ChangePassword(ctx context.Context, username, password string) error
	Lock(ctx context.Context, username string) error
	Unlock(ctx context.Context, username string) error
	DeletePassword(ctx context.Context, username string) error
	ExpirePassword(ctx context.Context, username string) error
	SetPasswordAging(ctx context.Context, username string, aging PasswordAging) error
	PasswordStatus(ctx context.Context, username string) (PasswordStatus, error)
}

// Int returns a pointer to v, for optional numeric options.
func Int(v int) *int { return &v }

// String returns a pointer to v, for optional string options.
func String(v string) *string { return &v }
