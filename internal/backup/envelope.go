package backup

import (
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/ballotkeeper/internal/common"
	"github.com/dmitrijs2005/ballotkeeper/internal/cryptox"
)

// ErrPassphraseRequired is returned when an encrypted backup is read
// without a passphrase.
var ErrPassphraseRequired = fmt.Errorf("%w: backup is encrypted, a passphrase is required", common.ErrValidation)

// Envelope is the encrypted form of a backup file. Binary fields are
// base64 encoded in JSON.
type Envelope struct {
	Encrypted  bool   `json:"encrypted"`
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// Encrypt seals a plain backup under passphrase.
func Encrypt(plain, passphrase []byte) ([]byte, error) {
	ct, salt, nonce, err := cryptox.SealWithPassphrase(plain, passphrase)
	if err != nil {
		return nil, fmt.Errorf("encrypt backup: %w", err)
	}
	return json.Marshal(Envelope{Encrypted: true, Salt: salt, Nonce: nonce, Ciphertext: ct})
}

// IsEncrypted reports whether raw is an encrypted envelope.
func IsEncrypted(raw []byte) bool {
	var probe struct {
		Encrypted bool `json:"encrypted"`
	}
	return json.Unmarshal(raw, &probe) == nil && probe.Encrypted
}

// Decrypt opens an envelope. Plain backups are returned unchanged.
func Decrypt(raw, passphrase []byte) ([]byte, error) {
	if !IsEncrypted(raw) {
		return raw, nil
	}
	if len(passphrase) == 0 {
		return nil, ErrPassphraseRequired
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, common.Validationf("decode envelope: %v", err)
	}
	plain, err := cryptox.OpenWithPassphrase(env.Ciphertext, env.Salt, env.Nonce, passphrase)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrValidation, err)
	}
	return plain, nil
}
