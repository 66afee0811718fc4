// Package vault encrypts participant OAuth credentials at rest. Credentials
// are serialized to JSON and sealed with AES-GCM under a process-wide key
// derived from the configured secret with argon2id.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/argon2"

	"github.com/consentlab/takeout-agent/internal/common"
)

// Credentials is the OAuth credential object captured by the intake flow.
// Token exchange itself happens elsewhere; the agent only replays the stored
// tokens on outbound provider requests.
type Credentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenURI     string `json:"token_uri"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// Vault seals and opens credential blobs with a single derived key.
type Vault struct {
	key []byte
}

// New derives the vault key from the configured secret and salt. Derivation
// parameters are fixed so the same configuration always yields the same key.
func New(secret, salt string) *Vault {
	return &Vault{key: DeriveKey([]byte(secret), []byte(salt))}
}

// DeriveKey stretches the secret into a 256-bit AES key using argon2id.
func DeriveKey(secret, salt []byte) []byte {
	return argon2.IDKey(secret, salt, 1, 64*1024, 4, 32)
}

const nonceSize = 12

// Encrypt serializes creds to JSON and seals them with AES-GCM. The returned
// blob is the 12-byte random nonce followed by the ciphertext, so a single
// column can hold everything needed to open it again.
func (v *Vault) Encrypt(creds *Credentials) ([]byte, error) {
	plaintext, err := json.Marshal(creds)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := common.GenerateRandByteArray(nonceSize)
	ciphertext := aesgcm.Seal(nil, nonce, plaintext, nil)

	common.WipeByteArray(plaintext)

	return append(nonce, ciphertext...), nil
}

// Decrypt opens a blob produced by Encrypt. A wrong key, truncated blob, or
// corrupt ciphertext yields an error wrapping common.ErrDecryption; callers
// must propagate it, since it indicates either a credential-format change or
// bit rot, never a transient condition.
func (v *Vault) Decrypt(blob []byte) (*Credentials, error) {
	if len(blob) < nonceSize+1 {
		return nil, fmt.Errorf("%w: blob too short (%d bytes)", common.ErrDecryption, len(blob))
	}

	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	plaintext, err := aesgcm.Open(nil, blob[:nonceSize], blob[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecryption, err)
	}
	defer common.WipeByteArray(plaintext)

	creds := &Credentials{}
	if err := json.Unmarshal(plaintext, creds); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecryption, err)
	}
	return creds, nil
}
