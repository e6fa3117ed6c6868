// Package vault stores per-user completion API keys encrypted at rest.
//
// The encryption key is derived on every access from a passphrase built out
// of the Slack app's client id, the user id and the app's client secret. The
// passphrase itself is never persisted, so a copy of the database alone does
// not reveal stored keys.
package vault

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

// ErrCredentialDecryption is returned when a stored value cannot be
// authenticated: it was tampered with, truncated, or sealed with a
// different passphrase.
var ErrCredentialDecryption = errors.New("credential decryption failed")

const (
	blobVersion = 1
	saltSize    = 16
	keySize     = chacha20poly1305.KeySize

	// DefaultLogN is the scrypt cost (N = 2^14) used when Cipher.LogN is zero.
	DefaultLogN = 14
)

// Passphrase derives the per-user secret. It must be recomputed for every
// access and never stored.
func Passphrase(clientID, userID, clientSecret string) string {
	return clientID + userID + clientSecret
}

// Cipher seals and opens values with scrypt key derivation and
// XChaCha20-Poly1305. The zero value is ready to use.
//
// Sealed layout (base64, raw std encoding):
//
//	version(1) | logN(1) | salt(16) | nonce(24) | ciphertext+tag
//
// The header bytes are authenticated as additional data.
type Cipher struct {
	LogN uint8 // scrypt cost exponent; 0 means DefaultLogN
}

func (c Cipher) logN() uint8 {
	if c.LogN == 0 {
		return DefaultLogN
	}
	return c.LogN
}

func deriveKey(passphrase string, salt []byte, logN uint8) ([]byte, error) {
	return scrypt.Key([]byte(passphrase), salt, 1<<logN, 8, 1, keySize)
}

// Seal encrypts plaintext under passphrase with a fresh salt and nonce.
func (c Cipher) Seal(passphrase string, plaintext []byte) (string, error) {
	logN := c.logN()
	header := make([]byte, 2+saltSize, 2+saltSize+chacha20poly1305.NonceSizeX+len(plaintext)+chacha20poly1305.Overhead)
	header[0] = blobVersion
	header[1] = logN
	if _, err := rand.Read(header[2:]); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}

	key, err := deriveKey(passphrase, header[2:2+saltSize], logN)
	if err != nil {
		return "", fmt.Errorf("derive key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}

	aad := append([]byte(nil), header...)
	out := append(header, nonce...)
	out = aead.Seal(out, nonce, plaintext, aad)
	return base64.RawStdEncoding.EncodeToString(out), nil
}

// Open reverses Seal. Values sealed with a different cost than c are
// rejected without deriving a key. Every failure to authenticate is reported
// as ErrCredentialDecryption.
func (c Cipher) Open(passphrase, sealed string) ([]byte, error) {
	raw, err := base64.RawStdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, ErrCredentialDecryption
	}
	minLen := 2 + saltSize + chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead
	if len(raw) < minLen || raw[0] != blobVersion {
		return nil, ErrCredentialDecryption
	}
	// the cost byte is only authenticated after derivation, so it must match
	// before any scrypt work happens
	logN := c.logN()
	if raw[1] != logN {
		return nil, ErrCredentialDecryption
	}

	header := raw[:2+saltSize]
	nonce := raw[2+saltSize : 2+saltSize+chacha20poly1305.NonceSizeX]
	body := raw[2+saltSize+chacha20poly1305.NonceSizeX:]

	key, err := deriveKey(passphrase, header[2:], logN)
	if err != nil {
		return nil, ErrCredentialDecryption
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, ErrCredentialDecryption
	}
	plain, err := aead.Open(nil, nonce, body, header)
	if err != nil {
		return nil, ErrCredentialDecryption
	}
	return plain, nil
}
