package usermanager

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	multierror "github.com/hashicorp/go-multierror"
	cm "github.com/steelcutops/usercut/usercut/commandmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePasswd = `root:x:0:0:root:/root:/bin/bash
# service accounts
daemon:x:1:1:daemon:/usr/sbin:/usr/sbin/nologin

alice:x:1001:1001:Alice Smith,,,:/home/alice:/bin/zsh
rootkit:x:1002:1002::/home/rootkit:
`

func TestParseLine(t *testing.T) {
	u, err := ParseLine("alice:x:1001:100:Alice Smith:/home/alice:/bin/zsh\n")

	require.NoError(t, err)
	assert.Equal(t, User{
		Username: "alice",
		UID:      1001,
		GID:      100,
		Comment:  "Alice Smith",
		HomeDir:  "/home/alice",
		Shell:    "/bin/zsh",
	}, u)
}

func TestParseLineEmptyTrailingFields(t *testing.T) {
	u, err := ParseLine("nobody:*:65534:65534:::")

	require.NoError(t, err)
	assert.Equal(t, "nobody", u.Username)
	assert.Equal(t, 65534, u.UID)
	assert.Empty(t, u.Comment)
	assert.Empty(t, u.HomeDir)
	assert.Empty(t, u.Shell)
}

func TestParseLineMalformed(t *testing.T) {
	tests := []struct {
		name string
		line string
		msg  string
	}{
		{"too few fields", "alice:x:1001:1001:/home/alice:/bin/sh", "expected 7 fields, got 6"},
		{"too many fields", "alice:x:1001:1001::/home/alice:/bin/sh:extra", "expected 7 fields, got 8"},
		{"bad uid", "alice:x:abc:1001::/home/alice:/bin/sh", `uid "abc" is not an integer`},
		{"bad gid", "alice:x:1001:-:/home/alice::/bin/sh", `gid "-" is not an integer`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLine(tt.line)

			require.ErrorIs(t, err, ErrMalformedEntry)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestParsePasswd(t *testing.T) {
	users, err := ParsePasswd(strings.NewReader(samplePasswd))

	require.NoError(t, err)
	require.Len(t, users, 4)
	assert.Equal(t, []string{"root", "daemon", "alice", "rootkit"}, []string{
		users[0].Username, users[1].Username, users[2].Username, users[3].Username,
	})
	assert.Equal(t, "Alice Smith,,,", users[2].Comment)
}

func TestParsePasswdReportsEveryBadLine(t *testing.T) {
	in := "root:x:0:0:root:/root:/bin/bash\n" +
		"broken:x:1\n" +
		"bob:x:1003:1003::/home/bob:/bin/sh\n" +
		"carol:x:uid:1004::/home/carol:/bin/sh\n"

	users, err := ParsePasswd(strings.NewReader(in))

	assert.Nil(t, users)
	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	require.Len(t, merr.Errors, 2)
	assert.Contains(t, merr.Errors[0].Error(), "line 2")
	assert.Contains(t, merr.Errors[1].Error(), "line 4")
	assert.ErrorIs(t, merr.Errors[1], ErrMalformedEntry)
}

func TestFindUser(t *testing.T) {
	u, err := FindUser(strings.NewReader(samplePasswd), "root")

	require.NoError(t, err)
	assert.Equal(t, 0, u.UID)
	assert.Equal(t, "/root", u.HomeDir)
}

func TestFindUserIgnoresOtherMalformedLines(t *testing.T) {
	in := "garbage line\nalice:x:1001:1001::/home/alice:/bin/sh\n"

	u, err := FindUser(strings.NewReader(in), "alice")

	require.NoError(t, err)
	assert.Equal(t, 1001, u.UID)
}

func TestFindUserNotFound(t *testing.T) {
	_, err := FindUser(strings.NewReader(samplePasswd), "mallory")

	require.ErrorIs(t, err, ErrUserNotFound)
	assert.Contains(t, err.Error(), "mallory")
}

func TestFindUserMatchesWholeName(t *testing.T) {
	_, err := FindUser(strings.NewReader("rootkit:x:1002:1002::/home/rootkit:\n"), "root")

	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestFindUserMalformedMatch(t *testing.T) {
	_, err := FindUser(strings.NewReader("alice:x:nope:1001::/home/alice:/bin/sh\n"), "alice")

	assert.ErrorIs(t, err, ErrMalformedEntry)
}

func TestFilePasswdSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "passwd")
	require.NoError(t, os.WriteFile(path, []byte(samplePasswd), 0o644))

	rc, err := FilePasswdSource{Path: path}.Open(context.Background())
	require.NoError(t, err)
	defer rc.Close()

	users, err := ParsePasswd(rc)
	require.NoError(t, err)
	assert.Len(t, users, 4)
}

func TestFilePasswdSourceMissingFile(t *testing.T) {
	_, err := FilePasswdSource{Path: filepath.Join(t.TempDir(), "missing")}.Open(context.Background())

	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCommandPasswdSource(t *testing.T) {
	fake := &fakeCommandManager{
		respond: func(config cm.CommandConfig) (cm.CommandResult, error) {
			return cm.CommandResult{STDOUT: samplePasswd}, nil
		},
	}

	rc, err := CommandPasswdSource{CommandManager: fake}.Open(context.Background())
	require.NoError(t, err)
	defer rc.Close()

	u, err := FindUser(rc, "alice")
	require.NoError(t, err)
	assert.Equal(t, "/bin/zsh", u.Shell)
	require.Len(t, fake.calls, 1)
	assert.Equal(t, "cat", fake.calls[0].Command)
	assert.Equal(t, []string{DefaultPasswdPath}, fake.calls[0].Args)
}

func TestCommandPasswdSourceError(t *testing.T) {
	fake := &fakeCommandManager{
		respond: func(config cm.CommandConfig) (cm.CommandResult, error) {
			return cm.CommandResult{}, errors.New("connection reset")
		},
	}

	_, err := CommandPasswdSource{CommandManager: fake, Path: "/srv/passwd"}.Open(context.Background())

	assert.EqualError(t, err, "read /srv/passwd: connection reset")
}
