package usermanager

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
)

// Lowercase letters, digits, underscore and dash, starting with a letter or
// underscore. A trailing $ is allowed for Samba machine accounts.
var usernameRe = regexp.MustCompile(`^[a-z_][a-z0-9_-]{0,31}\$?$`)

func ValidUsername(u string) bool {
	return usernameRe.MatchString(u)
}

func validateUsername(u string) error {
	if !ValidUsername(u) {
		return fmt.Errorf("%w: %q", ErrInvalidUsername, u)
	}
	return nil
}

// validateAccountName guards names of accounts that already exist. Those may
// come from any source, so only what would be misread on the command line or
// in the passwd file is refused.
func validateAccountName(u string) error {
	if u == "" || strings.HasPrefix(u, "-") || strings.ContainsRune(u, ':') ||
		strings.IndexFunc(u, func(r rune) bool { return unicode.IsSpace(r) || unicode.IsControl(r) }) >= 0 {
		return fmt.Errorf("%w: %q", ErrInvalidUsername, u)
	}
	return nil
}

const expireDateLayout = "2006-01-02"

// validateExpireDate accepts YYYY-MM-DD. allowClear also accepts "" and "-1",
// which usermod reads as "never expires".
func validateExpireDate(d string, allowClear bool) error {
	if allowClear && (d == "" || d == "-1") {
		return nil
	}
	if _, err := time.Parse(expireDateLayout, d); err != nil {
		return fmt.Errorf("%w: expire date %q is not YYYY-MM-DD", ErrInvalidOption, d)
	}
	return nil
}
