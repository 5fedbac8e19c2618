package token

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStore struct {
	created []string
	failN   int
	err     error
}

func (s *recordingStore) Create(_ context.Context, tok, _, _ string) error {
	if s.failN > 0 {
		s.failN--
		return s.err
	}
	s.created = append(s.created, tok)
	return nil
}

func TestGenerateIsURLSafeAndVaried(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		tok, err := Generate()
		require.NoError(t, err)
		assert.Len(t, tok, Length)
		assert.Equal(t, tok, url.QueryEscape(tok))
		for _, r := range tok {
			assert.True(t, strings.ContainsRune(alphabet, r))
		}
		seen[tok] = true
	}
	assert.Len(t, seen, 1000)
}

func TestMintRetriesOnCollision(t *testing.T) {
	store := &recordingStore{failN: 2, err: &pq.Error{Code: "23505"}}
	calls := 0
	issuer := &Issuer{Store: store, Log: zerolog.Nop(), Generate: func() (string, error) {
		calls++
		return strings.Repeat("a", Length-1) + string(alphabet[calls]), nil
	}}

	tok, err := issuer.Mint(context.Background(), "c1", "spring")
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []string{tok}, store.created)
}

func TestMintGivesUpAfterMaxAttempts(t *testing.T) {
	store := &recordingStore{failN: 5, err: &pq.Error{Code: "23505"}}
	issuer := NewIssuer(store, zerolog.Nop())

	_, err := issuer.Mint(context.Background(), "c1", "spring")
	assert.Error(t, err)
	assert.Empty(t, store.created)
}

func TestMintStopsOnOtherErrors(t *testing.T) {
	store := &recordingStore{failN: 1, err: errors.New("connection reset")}
	issuer := NewIssuer(store, zerolog.Nop())

	_, err := issuer.Mint(context.Background(), "c1", "spring")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}
