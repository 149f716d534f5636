package service

import (
	"context"
	"testing"
	"time"

	"smartbank/internal/config"
	"smartbank/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUserService(t *testing.T) (*UserService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.ExpireMinutes = 60
	return NewUserService(store, cfg), store
}

func TestRegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestUserService(t)

	user, err := svc.Register(ctx, "Alice", "alice@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.NotEqual(t, "s3cret-pass", user.PasswordHash)

	got, err := svc.Authenticate(ctx, "alice@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestUserService(t)

	_, err := svc.Register(ctx, "Alice", "alice@example.com", "s3cret-pass")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "Other Alice", "alice@example.com", "different-pass")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegisterPasswordLength(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestUserService(t)

	_, err := svc.Register(ctx, "Alice", "alice@example.com", "short")
	assert.ErrorIs(t, err, ErrInvalidPassword)

	long := make([]byte, maxPasswordBytes+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = svc.Register(ctx, "Alice", "alice@example.com", string(long))
	assert.ErrorIs(t, err, ErrInvalidPassword)
}

func TestAuthenticateUniformFailure(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestUserService(t)

	_, err := svc.Register(ctx, "Alice", "alice@example.com", "s3cret-pass")
	require.NoError(t, err)

	// Unknown email and wrong password are indistinguishable.
	_, unknownErr := svc.Authenticate(ctx, "nobody@example.com", "s3cret-pass")
	_, wrongErr := svc.Authenticate(ctx, "alice@example.com", "wrong-pass")
	assert.ErrorIs(t, unknownErr, ErrInvalidCredentials)
	assert.ErrorIs(t, wrongErr, ErrInvalidCredentials)
}

func TestTokenRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestUserService(t)

	user, err := svc.Register(ctx, "Alice", "alice@example.com", "s3cret-pass")
	require.NoError(t, err)

	token, err := svc.IssueToken(user)
	require.NoError(t, err)

	got, err := svc.VerifyToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, user.Email, got.Email)
}

func TestVerifyTokenRejections(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestUserService(t)

	user, err := svc.Register(ctx, "Alice", "alice@example.com", "s3cret-pass")
	require.NoError(t, err)

	_, err = svc.VerifyToken(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// A token signed with another secret.
	otherCfg := &config.Config{}
	otherCfg.JWT.Secret = "other-secret"
	otherCfg.JWT.ExpireMinutes = 60
	other := NewUserService(memory.NewStore(), otherCfg)
	forged, err := other.IssueToken(user)
	require.NoError(t, err)
	_, err = svc.VerifyToken(ctx, forged)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// An expired token.
	svc.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	expired, err := svc.IssueToken(user)
	require.NoError(t, err)
	_, err = svc.VerifyToken(ctx, expired)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
