package ssh

import (
	"fmt"

	gossh "golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// hostKeyCallback builds the verification policy for the handshake. An
// empty path accepts any host key; a non-empty path must parse as an
// OpenSSH known_hosts file.
func hostKeyCallback(path string) (gossh.HostKeyCallback, error) {
	if path == "" {
		return gossh.InsecureIgnoreHostKey(), nil
	}
	cb, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("ssh: load known hosts %s: %w", path, err)
	}
	return cb, nil
}
