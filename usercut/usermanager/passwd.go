package usermanager

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"

	multierror "github.com/hashicorp/go-multierror"
	cm "github.com/steelcutops/usercut/usercut/commandmanager"
)

const DefaultPasswdPath = "/etc/passwd"

const passwdFields = 7

// PasswdSource yields the contents of a passwd file.
type PasswdSource interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// FilePasswdSource reads a passwd file from the local filesystem.
type FilePasswdSource struct {
	Path string
}

func (s FilePasswdSource) Open(_ context.Context) (io.ReadCloser, error) {
	path := s.Path
	if path == "" {
		path = DefaultPasswdPath
	}
	return os.Open(path)
}

// CommandPasswdSource reads a passwd file with cat through a CommandManager,
// so it works on remote hosts too.
type CommandPasswdSource struct {
	CommandManager cm.CommandManager
	Path           string
}

func (s CommandPasswdSource) Open(ctx context.Context) (io.ReadCloser, error) {
	path := s.Path
	if path == "" {
		path = DefaultPasswdPath
	}
	result, err := s.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "cat",
		Args:    []string{path},
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return io.NopCloser(strings.NewReader(result.STDOUT)), nil
}

// ParseLine turns one passwd line into a User. The password field is dropped.
func ParseLine(line string) (User, error) {
	line = strings.TrimRightFunc(line, unicode.IsSpace)
	parts := strings.Split(line, ":")
	if len(parts) != passwdFields {
		return User{}, fmt.Errorf("%w: expected %d fields, got %d", ErrMalformedEntry, passwdFields, len(parts))
	}

	uid, err := atoi(parts[2], "uid")
	if err != nil {
		return User{}, err
	}
	gid, err := atoi(parts[3], "gid")
	if err != nil {
		return User{}, err
	}

	return User{
		Username: parts[0],
		UID:      uid,
		GID:      gid,
		Comment:  parts[4],
		HomeDir:  parts[5],
		Shell:    parts[6],
	}, nil
}

// ParsePasswd reads every entry from r in file order. Blank and comment lines
// are skipped. All malformed lines are reported together and no users are
// returned in that case.
func ParsePasswd(r io.Reader) ([]User, error) {
	var (
		users  []User
		result *multierror.Error
	)
	err := scanLines(r, func(n int, line string) bool {
		u, err := ParseLine(line)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("line %d: %w", n, err))
			return true
		}
		users = append(users, u)
		return true
	})
	if err != nil {
		return nil, err
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return users, nil
}

// FindUser returns the entry named username. Only that line has to be well formed.
func FindUser(r io.Reader, username string) (User, error) {
	var (
		found    User
		parseErr error
		ok       bool
	)
	err := scanLines(r, func(n int, line string) bool {
		name, _, _ := strings.Cut(line, ":")
		if name != username {
			return true
		}
		found, parseErr = ParseLine(line)
		if parseErr != nil {
			parseErr = fmt.Errorf("line %d: %w", n, parseErr)
		}
		ok = true
		return false
	})
	if err != nil {
		return User{}, err
	}
	if parseErr != nil {
		return User{}, parseErr
	}
	if !ok {
		return User{}, fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}
	return found, nil
}

// scanLines calls fn with the 1-based number of every non-blank, non-comment
// line until fn returns false.
func scanLines(r io.Reader, fn func(n int, line string) bool) error {
	s := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	s.Buffer(buf, 1024*1024)
	n := 0
	for s.Scan() {
		n++
		line := s.Text()
		trim := strings.TrimSpace(line)
		if trim == "" || strings.HasPrefix(trim, "#") {
			continue
		}
		if !fn(n, line) {
			return nil
		}
	}
	return s.Err()
}

func atoi(field, name string) (int, error) {
	n, err := strconv.Atoi(field)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not an integer", ErrMalformedEntry, name, field)
	}
	return n, nil
}
