// Package cryptox encrypts backups: an argon2id key derived from a
// passphrase and AES-256-GCM sealing.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"

	"golang.org/x/crypto/argon2"

	"github.com/dmitrijs2005/ballotkeeper/internal/common"
)

const (
	KeySize  = 32
	SaltSize = 16
)

// ErrDecrypt is returned when a ciphertext cannot be opened, usually
// because the passphrase is wrong.
var ErrDecrypt = errors.New("decryption failed")

// DeriveKey stretches passphrase into an AES-256 key with argon2id.
func DeriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, KeySize)
}

// NewSalt returns a random salt for DeriveKey.
func NewSalt() []byte {
	return common.GenerateRandByteArray(SaltSize)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext with AES-GCM under a fresh random nonce.
//
// The key must be 16, 24 or 32 bytes long. The nonce is returned
// separately and must be stored next to the ciphertext.
func Seal(plaintext, key []byte) (ciphertext, nonce []byte, err error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}
	nonce = common.GenerateRandByteArray(aead.NonceSize())
	return aead.Seal(nil, nonce, plaintext, nil), nonce, nil
}

// Open reverses Seal. A wrong key or tampered data yields ErrDecrypt.
func Open(ciphertext, nonce, key []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, ErrDecrypt
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

// SealWithPassphrase derives a key from passphrase under a new salt and
// seals plaintext. The derived key is wiped before returning.
func SealWithPassphrase(plaintext, passphrase []byte) (ciphertext, salt, nonce []byte, err error) {
	salt = NewSalt()
	key := DeriveKey(passphrase, salt)
	defer common.WipeByteArray(key)

	ciphertext, nonce, err = Seal(plaintext, key)
	if err != nil {
		return nil, nil, nil, err
	}
	return ciphertext, salt, nonce, nil
}

// OpenWithPassphrase reverses SealWithPassphrase.
func OpenWithPassphrase(ciphertext, salt, nonce, passphrase []byte) ([]byte, error) {
	key := DeriveKey(passphrase, salt)
	defer common.WipeByteArray(key)
	return Open(ciphertext, nonce, key)
}
