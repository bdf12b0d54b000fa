package sftp

import (
	"fmt"
	"strings"
)

// CredentialSet carries the account fields needed to open a session. The
// mapping is open: extra keys are tolerated and end up in the session
// register alongside the required ones.
type CredentialSet map[string]any

// requiredCredentialKeys is the fixed key set a credential set must contain.
// Validation checks presence only; values are unconstrained here.
var requiredCredentialKeys = []string{
	"id",
	"uuid",
	"date",
	"is_encrypted",
	"account_host",
	"account_options",
	"account_username",
	"account_password",
	"default_directory",
	"is_secure_connection",
}

// RequiredCredentialKeys returns the keys Validate checks for.
func RequiredCredentialKeys() []string {
	return append([]string(nil), requiredCredentialKeys...)
}

// Validate checks that the set's keys are a superset of the required keys.
// It returns a CredentialShapeError listing what is missing.
func (c CredentialSet) Validate() error {
	missing := c.MissingKeys()
	if len(missing) == 0 {
		return nil
	}
	return &CredentialShapeError{Missing: missing}
}

// MissingKeys returns the required keys absent from the set, in the
// canonical required-key order.
func (c CredentialSet) MissingKeys() []string {
	var missing []string
	for _, key := range requiredCredentialKeys {
		if _, ok := c[key]; !ok {
			missing = append(missing, key)
		}
	}
	return missing
}

// Host returns the account_host value rendered as a trimmed string.
func (c CredentialSet) Host() string { return c.stringField("account_host") }

// Username returns the account_username value rendered as a trimmed string.
func (c CredentialSet) Username() string { return c.stringField("account_username") }

// Password returns the account_password value rendered as a string.
func (c CredentialSet) Password() string {
	value, ok := c["account_password"]
	if !ok || value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", value)
}

// Clone returns a shallow copy of the set.
func (c CredentialSet) Clone() CredentialSet {
	if c == nil {
		return nil
	}
	clone := make(CredentialSet, len(c))
	for key, value := range c {
		clone[key] = value
	}
	return clone
}

func (c CredentialSet) stringField(key string) string {
	value, ok := c[key]
	if !ok || value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", v))
	}
}
