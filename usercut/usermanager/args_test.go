package usermanager

import (
	"testing"

	cm "github.com/steelcutops/usercut/usercut/commandmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddArgs(t *testing.T) {
	tests := []struct {
		name string
		opts AddOptions
		want []string
	}{
		{
			name: "defaults",
			want: []string{"alice"},
		},
		{
			name: "every option",
			opts: AddOptions{
				BaseDir:    "/srv/home",
				Comment:    "Alice Smith",
				HomeDir:    "/srv/home/alice",
				ExpireDate: "2030-01-31",
				Inactive:   Int(0),
				Group:      "staff",
				Groups:     []string{"wheel", "docker"},
				System:     true,
				Shell:      "/bin/zsh",
				UID:        Int(1500),
				NonUnique:  true,
			},
			want: []string{
				"--base-dir", "/srv/home",
				"--comment", "Alice Smith",
				"--create-home", "--home-dir", "/srv/home/alice",
				"--expiredate", "2030-01-31",
				"--inactive", "0",
				"--gid", "staff",
				"--groups", "wheel,docker",
				"--system",
				"--shell", "/bin/zsh",
				"--uid", "1500",
				"--non-unique",
				"alice",
			},
		},
		{
			name: "no home overrides home dir",
			opts: AddOptions{HomeDir: "/home/alice", NoCreateHome: true},
			want: []string{"--no-create-home", "alice"},
		},
		{
			name: "no user group overrides groups",
			opts: AddOptions{Group: "staff", Groups: []string{"wheel"}, NoUserGroup: true},
			want: []string{"--no-user-group", "alice"},
		},
		{
			name: "groups are cleaned",
			opts: AddOptions{Groups: []string{" wheel", "", "docker", "wheel"}},
			want: []string{"--groups", "wheel,docker", "alice"},
		},
		{
			name: "only blank groups",
			opts: AddOptions{Groups: []string{"", " "}},
			want: []string{"alice"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, addArgs("alice", tt.opts))
		})
	}
}

func TestModifyArgs(t *testing.T) {
	tests := []struct {
		name string
		opts ModifyOptions
		want []string
	}{
		{
			name: "nothing to change",
			want: nil,
		},
		{
			name: "dependent flags alone change nothing",
			opts: ModifyOptions{MoveHome: true, Append: true, NonUnique: true},
			want: nil,
		},
		{
			name: "every option",
			opts: ModifyOptions{
				Comment:    String("Bob"),
				HomeDir:    String("/data/bob"),
				MoveHome:   true,
				ExpireDate: String("2031-12-01"),
				Inactive:   Int(7),
				Group:      String("100"),
				Groups:     []string{"audio", "video"},
				Append:     true,
				Shell:      String("/bin/sh"),
				UID:        Int(0),
				NonUnique:  true,
			},
			want: []string{
				"--comment", "Bob",
				"--home", "/data/bob", "--move-home",
				"--expiredate", "2031-12-01",
				"--inactive", "7",
				"--gid", "100",
				"--groups", "audio,video", "--append",
				"--shell", "/bin/sh",
				"--uid", "0", "--non-unique",
				"bob",
			},
		},
		{
			name: "empty comment is still a change",
			opts: ModifyOptions{Comment: String("")},
			want: []string{"--comment", "", "bob"},
		},
		{
			name: "empty groups clears membership",
			opts: ModifyOptions{Groups: []string{}},
			want: []string{"--groups", "", "bob"},
		},
		{
			name: "clear expiry",
			opts: ModifyOptions{ExpireDate: String("")},
			want: []string{"--expiredate", "", "bob"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, modifyArgs("bob", tt.opts))
		})
	}
}

func TestDeleteCommand(t *testing.T) {
	tests := []struct {
		name string
		opts DeleteOptions
		want cm.CommandConfig
	}{
		{
			name: "defaults",
			want: cm.CommandConfig{Command: "userdel", Args: []string{"carol"}},
		},
		{
			name: "userdel flags",
			opts: DeleteOptions{RemoveHome: true, Force: true},
			want: cm.CommandConfig{Command: "userdel", Args: []string{"--remove", "--force", "carol"}},
		},
		{
			name: "deluser flags",
			opts: DeleteOptions{RemoveHome: true, RemoveAllFiles: true, Backup: true, BackupTo: "/var/backups", System: true},
			want: cm.CommandConfig{Command: "deluser", Args: []string{
				"--remove-home", "--remove-all-files", "--backup", "--backup-to", "/var/backups", "--system", "carol",
			}},
		},
		{
			name: "backup dir alone is ignored",
			opts: DeleteOptions{BackupTo: "/var/backups"},
			want: cm.CommandConfig{Command: "userdel", Args: []string{"carol"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := deleteCommand("carol", tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeleteCommandRejects(t *testing.T) {
	_, err := deleteCommand("carol", DeleteOptions{Backup: true})
	assert.ErrorIs(t, err, ErrInvalidOption)

	_, err = deleteCommand("carol", DeleteOptions{System: true, Force: true})
	assert.ErrorIs(t, err, ErrInvalidOption)
}

func TestAgingFlags(t *testing.T) {
	assert.Nil(t, agingFlags(PasswordAging{}))
	assert.Equal(t,
		[]string{"--mindays", "1", "--maxdays", "90", "--warndays", "7", "--inactive", "-1"},
		agingFlags(PasswordAging{MinDays: Int(1), MaxDays: Int(90), WarnDays: Int(7), InactiveDays: Int(-1)}),
	)
	assert.Equal(t, []string{"--maxdays", "30"}, agingFlags(PasswordAging{MaxDays: Int(30)}))
}

func TestValidUsername(t *testing.T) {
	for _, name := range []string{"alice", "_svc", "web-01", "build_bot", "host01$"} {
		assert.True(t, ValidUsername(name), name)
	}
	for _, name := range []string{"", "Alice", "1alice", "-alice", "al ice", "a;rm -rf /", "alice:x", "abcdefghijklmnopqrstuvwxyz0123456789"} {
		assert.False(t, ValidUsername(name), name)
	}
}

func TestValidateAccountName(t *testing.T) {
	for _, name := range []string{"alice", "john.doe", "Admin", "1alice", "host01$", "abcdefghijklmnopqrstuvwxyz0123456789"} {
		assert.NoError(t, validateAccountName(name), name)
	}
	for _, name := range []string{"", "-alice", "--help", "al ice", "alice:x", "alice\n", "tab\there"} {
		assert.ErrorIs(t, validateAccountName(name), ErrInvalidUsername, name)
	}
}

func TestValidateExpireDate(t *testing.T) {
	assert.NoError(t, validateExpireDate("2030-02-28", false))
	assert.ErrorIs(t, validateExpireDate("2030-02-30", false), ErrInvalidOption)
	assert.ErrorIs(t, validateExpireDate("31/01/2030", false), ErrInvalidOption)
	assert.ErrorIs(t, validateExpireDate("", false), ErrInvalidOption)
	assert.NoError(t, validateExpireDate("", true))
	assert.NoError(t, validateExpireDate("-1", true))
}
