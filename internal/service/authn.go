package service

import (
	"crypto/subtle"
	"fmt"

	"github.com/beanbocchi/cumulus/internal/db"
	"github.com/beanbocchi/cumulus/internal/model"
	"github.com/beanbocchi/cumulus/internal/utils/blake3"
)

var errBadPassword = model.NewError(model.KindUnauthorized, "auth.bad_password", "password authentication failed")

// VerifyPassword checks a presented password against the collection's
// stored keyed digest. A collection with no password configured rejects
// every attempt.
func (s *Service) VerifyPassword(collection db.Collection, password string) error {
	if !collection.PasswordHash.Valid || password == "" {
		return errBadPassword
	}
	digest, err := blake3.Keyed(s.passwordKey, []byte(password))
	if err != nil {
		return s.recordUnexpected("auth", fmt.Errorf("password digest: %w", err))
	}
	if subtle.ConstantTimeCompare([]byte(digest), []byte(collection.PasswordHash.String)) != 1 {
		return errBadPassword
	}
	return nil
}
