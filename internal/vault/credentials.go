package vault

import (
	"fmt"

	"github.com/karousn/sftpbridge/internal/sftp"
)

// EncryptPassword returns a copy of creds whose account_password is
// encrypted with the vault key and whose is_encrypted flag is set.
func (c *Crypto) EncryptPassword(creds sftp.CredentialSet) (sftp.CredentialSet, error) {
	ciphertext, err := c.Encrypt([]byte(creds.Password()))
	if err != nil {
		return nil, fmt.Errorf("vault: encrypt password: %w", err)
	}

	out := creds.Clone()
	out["account_password"] = ciphertext
	out["is_encrypted"] = "1"
	return out, nil
}

// DecryptPassword returns a copy of creds whose account_password has
// been decrypted with the vault key. The is_encrypted flag is left
// unchanged. Credential sets whose flag is falsy pass through untouched.
func (c *Crypto) DecryptPassword(creds sftp.CredentialSet) (sftp.CredentialSet, error) {
	if !sftp.ParseBool(creds["is_encrypted"]) {
		return creds, nil
	}

	plaintext, err := c.Decrypt(creds.Password())
	if err != nil {
		return nil, fmt.Errorf("vault: decrypt password: %w", err)
	}

	out := creds.Clone()
	out["account_password"] = string(plaintext)
	return out, nil
}
