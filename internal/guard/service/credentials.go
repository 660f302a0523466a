package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/stockguard/server/internal/guard/store"
)

// CredentialVerifier re-verifies a principal's own current credential. Used
// at the fifth step of each confirmation sequence.
type CredentialVerifier interface {
	Verify(ctx context.Context, principalID, password string) error
}

// BcryptVerifier checks a password against the stored account hash.
type BcryptVerifier struct {
	accounts store.AccountStore
}

func NewBcryptVerifier(accounts store.AccountStore) *BcryptVerifier {
	return &BcryptVerifier{accounts: accounts}
}

func (v *BcryptVerifier) Verify(ctx context.Context, principalID, password string) error {
	rec, err := v.accounts.Get(ctx, principalID)
	if errors.Is(err, store.ErrNotFound) {
		// Indistinguishable from a wrong password on purpose.
		return ErrPasswordMismatch
	}
	if err != nil {
		return fmt.Errorf("load account %s: %w", principalID, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)); err != nil {
		return ErrPasswordMismatch
	}
	return nil
}
