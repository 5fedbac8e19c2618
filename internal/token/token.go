// Package token mints single-use registration tokens.
package token

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/unclebandit/leadsms-backend/internal/db"
)

const (
	// Length keeps registration links short enough for a single SMS segment.
	Length = 10

	maxAttempts = 3
	alphabet    = "abcdefghijkmnpqrstuvwxyz23456789"
)

// Store persists freshly minted tokens. Create must fail with a unique violation on duplicates.
type Store interface {
	Create(ctx context.Context, token, contactID, campaign string) error
}

// Issuer mints tokens and persists them before returning.
type Issuer struct {
	Store    Store
	Log      zerolog.Logger
	Generate func() (string, error)
}

func NewIssuer(store Store, log zerolog.Logger) *Issuer {
	return &Issuer{Store: store, Log: log, Generate: Generate}
}

// Mint creates and stores a token bound to contactID and campaign.
func (i *Issuer) Mint(ctx context.Context, contactID, campaign string) (string, error) {
	gen := i.Generate
	if gen == nil {
		gen = Generate
	}
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		tok, err := gen()
		if err != nil {
			return "", err
		}
		err = i.Store.Create(ctx, tok, contactID, campaign)
		if err == nil {
			return tok, nil
		}
		if !db.IsUniqueViolation(err) {
			return "", fmt.Errorf("store token: %w", err)
		}
		i.Log.Warn().Int("attempt", attempt).Str("campaign", campaign).Msg("token collision, regenerating")
	}
	return "", fmt.Errorf("could not mint a unique token after %d attempts", maxAttempts)
}

// Generate returns a random URL-safe token of Length characters (50 bits).
func Generate() (string, error) {
	var raw [Length]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	out := make([]byte, Length)
	for i, b := range raw {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(out), nil
}
