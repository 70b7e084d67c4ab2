// Package idtranslator maps internal ordered unified identifiers to the
// opaque identifiers exposed at the API boundary. The public form must not
// reveal the creation order of the underlying identifiers.
package idtranslator

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"github.com/beanbocchi/cumulus/internal/model"
)

// ErrInvalidIdentifier is returned for malformed or forged public
// identifiers.
var ErrInvalidIdentifier = model.NewError(model.KindClientSyntax, "id.invalid", "invalid identifier")

const (
	idBytes    = 8
	tagBytes   = 8
	blockBytes = idBytes + tagBytes
)

// Translator is a bidirectional, injective identifier codec. The unified
// identifier and a truncated HMAC tag fill one AES block; the block cipher
// hides ordering, the tag rejects forgeries. Stateless and safe for
// concurrent use.
type Translator struct {
	block   cipher.Block
	hmacKey []byte
}

// New builds a Translator from a 16-byte AES key and an HMAC key.
func New(key, hmacKey []byte) (*Translator, error) {
	if len(key) != aes.BlockSize {
		return nil, fmt.Errorf("id translator key must be %d bytes, got %d", aes.BlockSize, len(key))
	}
	if len(hmacKey) == 0 {
		return nil, fmt.Errorf("id translator hmac key is required")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	return &Translator{block: block, hmacKey: hmacKey}, nil
}

func (t *Translator) tag(id []byte) []byte {
	mac := hmac.New(sha256.New, t.hmacKey)
	mac.Write(id)
	return mac.Sum(nil)[:tagBytes]
}

// PublicID derives the externally visible identifier for a unified ID.
func (t *Translator) PublicID(unifiedID int64) string {
	var plain [blockBytes]byte
	binary.BigEndian.PutUint64(plain[:idBytes], uint64(unifiedID))
	copy(plain[idBytes:], t.tag(plain[:idBytes]))

	var out [blockBytes]byte
	t.block.Encrypt(out[:], plain[:])
	return base64.RawURLEncoding.EncodeToString(out[:])
}

// InternalID recovers the unified ID behind a public identifier, rejecting
// malformed and tampered input.
func (t *Translator) InternalID(public string) (int64, error) {
	raw, err := base64.RawURLEncoding.DecodeString(public)
	if err != nil || len(raw) != blockBytes {
		return 0, ErrInvalidIdentifier
	}

	var plain [blockBytes]byte
	t.block.Decrypt(plain[:], raw)
	if !hmac.Equal(plain[idBytes:], t.tag(plain[:idBytes])) {
		return 0, ErrInvalidIdentifier
	}
	return int64(binary.BigEndian.Uint64(plain[:idBytes])), nil
}
