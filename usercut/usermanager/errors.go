package usermanager

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrCreateUserFailed = errors.New("create user failed")
	ErrModifyUserFailed = errors.New("modify user failed")
	ErrDeleteUserFailed = errors.New("delete user failed")
	ErrStatusFailed     = errors.New("password status failed")
	ErrInvalidUsername  = errors.New("invalid username")
	ErrInvalidOption    = errors.New("invalid option")
	ErrNoChanges        = errors.New("no changes requested")
	ErrMalformedEntry   = errors.New("malformed passwd entry")
)

// Op names the kind of account change a command was part of.
type Op string

const (
	OpCreate Op = "create"
	OpModify Op = "modify"
	OpDelete Op = "delete"
	OpStatus Op = "status"
)

func (o Op) sentinel() error {
	switch o {
	case OpCreate:
		return ErrCreateUserFailed
	case OpModify:
		return ErrModifyUserFailed
	case OpDelete:
		return ErrDeleteUserFailed
	case OpStatus:
		return ErrStatusFailed
	}
	return nil
}

// AccountError reports a failed account command. errors.Is matches the
// sentinel for its Op (ErrCreateUserFailed etc.) as well as the wrapped cause.
type AccountError struct {
	Op       Op
	Username string
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *AccountError) Error() string {
	msg := fmt.Sprintf("%s user %s failed", e.Op, e.Username)
	if e.Stderr != "" {
		return msg + ": " + e.Stderr
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *AccountError) Is(target error) bool {
	s := e.Op.sentinel()
	return s != nil && target == s
}

func (e *AccountError) Unwrap() error {
	return e.Err
}
