package blake3

import (
	"encoding/hex"
	"io"

	"github.com/zeebo/blake3"
)

// Tee hashes everything read through it, so a body can be digested in the
// same pass that stores it.
type Tee struct {
	io.Reader
	hash *blake3.Hasher
}

func NewTee(r io.Reader) *Tee {
	hash := blake3.New()
	return &Tee{Reader: io.TeeReader(r, hash), hash: hash}
}

// Sum returns the hex digest of the bytes read so far.
func (t *Tee) Sum() string {
	return hex.EncodeToString(t.hash.Sum(nil))
}

// Keyed computes the keyed blake3 digest of data. The key must be 32 bytes.
func Keyed(key []byte, data []byte) (string, error) {
	hash, err := blake3.NewKeyed(key)
	if err != nil {
		return "", err
	}
	hash.Write(data)
	return hex.EncodeToString(hash.Sum(nil)), nil
}
