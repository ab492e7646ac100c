package cryptox

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKey_Deterministic(t *testing.T) {
	password := []byte("secret-password")
	salt := []byte("fixed-salt")

	key1 := DeriveKey(password, salt)
	key2 := DeriveKey(password, salt)

	if !bytes.Equal(key1, key2) {
		t.Errorf("expected same result for same inputs, got different")
	}
	// argon2id(t=1, m=64MiB, p=4, 32 bytes) snapshot
	expectedHex := "34f7a1c64df63ab1ad5b5ee06e64db5713b35f81839823304db63e8e5e6a6a39"
	if hex.EncodeToString(key1) != expectedHex {
		t.Errorf("expected %s, got %s", expectedHex, hex.EncodeToString(key1))
	}
}

func TestDeriveKey_DifferentSalts(t *testing.T) {
	password := []byte("secret-password")
	if bytes.Equal(DeriveKey(password, []byte("salt-1")), DeriveKey(password, []byte("salt-2"))) {
		t.Errorf("expected different keys for different salts")
	}
}

func TestSealOpen(t *testing.T) {
	key := DeriveKey([]byte("pw"), NewSalt())
	plaintext := []byte(`{"info":{},"data":{}}`)

	ct, nonce, err := Seal(plaintext, key)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, ct)
	assert.Len(t, nonce, 12)

	got, err := Open(ct, nonce, key)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)

	ct[0] ^= 0xff
	_, err = Open(ct, nonce, key)
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = Open(ct, nonce[:4], key)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestSeal_BadKey(t *testing.T) {
	_, _, err := Seal([]byte("x"), []byte("short"))
	assert.Error(t, err)
}

func TestPassphraseRoundTrip(t *testing.T) {
	plaintext := []byte("ballots")
	ct, salt, nonce, err := SealWithPassphrase(plaintext, []byte("correct horse"))
	require.NoError(t, err)
	assert.Len(t, salt, SaltSize)

	got, err := OpenWithPassphrase(ct, salt, nonce, []byte("correct horse"))
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)

	_, err = OpenWithPassphrase(ct, salt, nonce, []byte("wrong"))
	assert.ErrorIs(t, err, ErrDecrypt)
}
