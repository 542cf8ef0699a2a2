package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"kiranalogo/internal/adapter/memory"
	"kiranalogo/internal/domain"
)

func newService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	tokens := NewTokenService("test-secret", time.Hour)
	svc := NewService(store.Accounts(), tokens, Options{BcryptCost: bcrypt.MinCost, SignupCredits: 3}, zerolog.Nop())
	return svc, store
}

func TestRegisterGrantsSignupCreditsAndSignsIn(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	session, err := svc.Register(ctx, RegisterInput{Email: " Ana@Example.com ", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", session.Account.Email)
	assert.Equal(t, 3, session.Account.Credits)
	assert.NotEqual(t, "correct horse", session.Account.PasswordHash)

	principal, err := svc.Tokens().Verify(session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.Account.ID, principal.AccountID)
	assert.Equal(t, "ana@example.com", principal.Email)

	balance, err := store.Ledger().Balance(ctx, principal.AccountID)
	require.NoError(t, err)
	assert.Equal(t, 3, balance)

	_, err = svc.Register(ctx, RegisterInput{Email: "ana@example.com", Password: "another one"})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestRegisterValidates(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Register(context.Background(), RegisterInput{Email: "not-an-email", Password: "long enough"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Register(context.Background(), RegisterInput{Email: "a@example.com", Password: "short"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestLogin(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, RegisterInput{Email: "budi@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)

	session, err := svc.Login(ctx, LoginInput{Email: "BUDI@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)

	_, err = svc.Login(ctx, LoginInput{Email: "budi@example.com", Password: "wrong-pass"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = svc.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "s3cret-pass"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestProfileAndDelete(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	session, err := svc.Register(ctx, RegisterInput{Email: "c@example.com", Password: "password1", Name: "Citra"})
	require.NoError(t, err)
	principal := domain.Principal{AccountID: session.Account.ID}

	account, err := svc.Profile(ctx, principal)
	require.NoError(t, err)
	assert.Equal(t, "Citra", account.Name)

	require.NoError(t, svc.Delete(ctx, principal))
	_, err = svc.Profile(ctx, principal)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, domain.Principal{}), domain.ErrUnauthorized)
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	tokens := NewTokenService("secret-a", time.Hour)
	account := &domain.Account{ID: "acct-1", Email: "a@example.com"}

	token, _, err := tokens.Issue(account)
	require.NoError(t, err)

	_, err = NewTokenService("secret-b", time.Hour).Verify(token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = tokens.Verify("")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = tokens.Verify("a.b.c")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	expired := NewTokenService("secret-a", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, err := expired.Issue(account)
	require.NoError(t, err)
	_, err = tokens.Verify(old)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "acct-1", "iss": issuer, "aud": audience})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = tokens.Verify(unsigned)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
