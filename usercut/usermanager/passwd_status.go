package usermanager

import (
	"fmt"
	"strconv"
	"strings"
)

// PasswordStatus is the parsed output of passwd --status.
type PasswordStatus struct {
	Username string
	// State is L/LK (locked), NP (no password) or P/PS (usable password).
	State string
	// LastChange is kept as printed; its date format differs between passwd builds.
	LastChange   string
	MinDays      int
	MaxDays      int
	WarnDays     int
	InactiveDays int
	// Description is the trailing remark some passwd builds print, without parentheses.
	Description string
}

func (s PasswordStatus) Locked() bool {
	return s.State == "L" || s.State == "LK"
}

func (s PasswordStatus) HasPassword() bool {
	return s.State == "P" || s.State == "PS"
}

func parsePasswordStatus(out string) (PasswordStatus, error) {
	line := strings.TrimSpace(out)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	fields := strings.Fields(line)
	if len(fields) < 7 {
		return PasswordStatus{}, fmt.Errorf("unexpected passwd --status output %q", line)
	}

	nums := make([]int, 4)
	for i, f := range fields[3:7] {
		n, err := strconv.Atoi(f)
		if err != nil {
			return PasswordStatus{}, fmt.Errorf("unexpected passwd --status field %q: %w", f, err)
		}
		nums[i] = n
	}

	desc := strings.Join(fields[7:], " ")
	desc = strings.TrimSuffix(strings.TrimPrefix(desc, "("), ")")

	return PasswordStatus{
		Username:     fields[0],
		State:        fields[1],
		LastChange:   fields[2],
		MinDays:      nums[0],
		MaxDays:      nums[1],
		WarnDays:     nums[2],
		InactiveDays: nums[3],
		Description:  desc,
	}, nil
}
