package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"community-hub/domain"
	"community-hub/errors"
)

var testSecret = []byte("unit-test-secret")

func Test_Password_Hash_And_Compare(t *testing.T) {
	req := require.New(t)

	hash, err := HashPassword("Secret123456!")
	req.NoError(err)
	req.NotContains(hash, "Secret123456!")

	ok, err := ComparePassword("Secret123456!", hash)
	req.NoError(err)
	req.True(ok)

	ok, err = ComparePassword("WrongPassword!", hash)
	req.NoError(err)
	req.False(ok)
}

func Test_Password_Hashes_Are_Salted(t *testing.T) {
	req := require.New(t)

	first, err := HashPassword("Secret123456!")
	req.NoError(err)
	second, err := HashPassword("Secret123456!")
	req.NoError(err)
	req.NotEqual(first, second)
}

func Test_Token_Roundtrip(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken(testSecret, "u1", "admin", time.Hour)
	req.NoError(err)

	claims, err := ValidateToken(testSecret, token)
	req.NoError(err)
	req.Equal("u1", claims.Subject)
	req.Equal("admin", claims.Role)
}

func Test_Token_Wrong_Secret_Is_Rejected(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken(testSecret, "u1", "member", time.Hour)
	req.NoError(err)

	_, err = ValidateToken([]byte("other-secret"), token)
	req.Error(err)
}

func Test_Token_Expiry_Is_Enforced(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken(testSecret, "u1", "member", -time.Minute)
	req.NoError(err)

	_, err = ValidateToken(testSecret, token)
	req.Error(err)
}

// userReaderFunc adapts a function to the UserReader slice.
type userReaderFunc func(ctx context.Context, userID string) (domain.Principal, error)

func (f userReaderFunc) GetUser(ctx context.Context, userID string) (domain.Principal, error) {
	return f(ctx, userID)
}

func Test_Resolve_Returns_The_Token_Subject(t *testing.T) {
	req := require.New(t)

	resolver := NewResolver(testSecret, userReaderFunc(func(_ context.Context, userID string) (domain.Principal, error) {
		req.Equal("u1", userID)
		return domain.Principal{ID: "u1", Name: "Alice", Status: domain.StatusActive}, nil
	}))

	token, err := GenerateToken(testSecret, "u1", "member", time.Hour)
	req.NoError(err)

	p, err := resolver.Resolve(context.Background(), token)
	req.NoError(err)
	req.Equal("Alice", p.Name)
}

func Test_Resolve_Failure_Taxonomy(t *testing.T) {
	activeUser := func(_ context.Context, userID string) (domain.Principal, error) {
		return domain.Principal{ID: userID, Status: domain.StatusActive}, nil
	}

	t.Run("empty token is unauthenticated", func(t *testing.T) {
		req := require.New(t)
		resolver := NewResolver(testSecret, userReaderFunc(activeUser))

		_, err := resolver.Resolve(context.Background(), "")
		req.ErrorIs(err, errors.ErrUnauthenticated)
	})

	t.Run("garbage token is unauthenticated", func(t *testing.T) {
		req := require.New(t)
		resolver := NewResolver(testSecret, userReaderFunc(activeUser))

		_, err := resolver.Resolve(context.Background(), "not-a-jwt")
		req.ErrorIs(err, errors.ErrUnauthenticated)
	})

	t.Run("unknown subject is unauthenticated", func(t *testing.T) {
		req := require.New(t)
		resolver := NewResolver(testSecret, userReaderFunc(func(context.Context, string) (domain.Principal, error) {
			return domain.Principal{}, errors.ErrUserNotFound
		}))

		token, err := GenerateToken(testSecret, "ghost", "member", time.Hour)
		req.NoError(err)
		_, err = resolver.Resolve(context.Background(), token)
		req.ErrorIs(err, errors.ErrUnauthenticated)
	})

	t.Run("store outage is upstream, not unauthenticated", func(t *testing.T) {
		req := require.New(t)
		resolver := NewResolver(testSecret, userReaderFunc(func(context.Context, string) (domain.Principal, error) {
			return domain.Principal{}, errors.ErrUpstream
		}))

		token, err := GenerateToken(testSecret, "u1", "member", time.Hour)
		req.NoError(err)
		_, err = resolver.Resolve(context.Background(), token)
		req.ErrorIs(err, errors.ErrUpstream)
		req.NotErrorIs(err, errors.ErrUnauthenticated)
	})

	t.Run("blocked account is refused", func(t *testing.T) {
		req := require.New(t)
		resolver := NewResolver(testSecret, userReaderFunc(func(_ context.Context, userID string) (domain.Principal, error) {
			return domain.Principal{ID: userID, Status: domain.StatusBlocked}, nil
		}))

		token, err := GenerateToken(testSecret, "u1", "member", time.Hour)
		req.NoError(err)
		_, err = resolver.Resolve(context.Background(), token)
		req.ErrorIs(err, errors.ErrBlocked)
	})
}
