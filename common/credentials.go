package common

// Credentials holds everything needed to log in to a host and escalate privileges on it.
type Credentials struct {
	User          string
	Password      string
	KeyPassphrase string
	SudoPassword  string
}
