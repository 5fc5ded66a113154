package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/product_catalog/internal/domain"
	"github.com/Skotchmaster/product_catalog/internal/models"
)

func TestRegisterTwiceFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.auth.Register(ctx, "alice@x.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, string(domain.RoleCustomer), u.Role)
	assert.NotEqual(t, "secret1", u.PasswordHash)

	_, err = f.auth.Register(ctx, "alice@x.com", "another1")
	assert.ErrorIs(t, err, domain.ErrEmailAlreadyExists)

	_, err = f.auth.Register(ctx, "  ALICE@X.com ", "another1")
	assert.ErrorIs(t, err, domain.ErrEmailAlreadyExists)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, email := range []string{"", "alice", "@x.com", "alice@", "alice@x", "alice@x.", "a b@x.com", "a@b@x.com"} {
		_, err := f.auth.Register(ctx, email, "secret1")
		assert.ErrorIs(t, err, domain.ErrValidation, email)
	}

	_, err := f.auth.Register(ctx, "bob@x.com", "12345")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestLoginResolvesIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.auth.Register(ctx, "alice@x.com", "secret1")
	require.NoError(t, err)

	res, err := f.auth.Login(ctx, "Alice@X.com", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "alice@x.com", res.Identity.Email)
	assert.False(t, res.Identity.IsAdmin())

	who, err := f.auth.CurrentUser(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.Identity, who)
}

func TestLoginInvalidCredentials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.auth.Register(ctx, "alice@x.com", "secret1")
	require.NoError(t, err)

	_, err = f.auth.Login(ctx, "alice@x.com", "wrong-password")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = f.auth.Login(ctx, "nobody@x.com", "secret1")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestLogoutRevokesSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.auth.Register(ctx, "alice@x.com", "secret1")
	require.NoError(t, err)
	res, err := f.auth.Login(ctx, "alice@x.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, f.auth.Logout(ctx, res.Token))
	who, err := f.auth.CurrentUser(ctx, res.Token)
	require.NoError(t, err)
	assert.True(t, who.IsAnonymous())

	require.NoError(t, f.auth.Logout(ctx, res.Token))
	require.NoError(t, f.auth.Logout(ctx, ""))
	require.NoError(t, f.auth.Logout(ctx, "garbage"))
}

func TestPurgeSessionsDropsExpiredAndRevoked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.auth.Register(ctx, "alice@x.com", "secret1")
	require.NoError(t, err)
	live, err := f.auth.Login(ctx, "alice@x.com", "secret1")
	require.NoError(t, err)
	revoked, err := f.auth.Login(ctx, "alice@x.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, f.auth.Logout(ctx, revoked.Token))
	require.NoError(t, f.repo.CreateSession(ctx, &models.Session{
		JTI:       "stale",
		UserID:    live.Identity.UserID,
		ExpiresAt: time.Now().Add(-time.Hour).Unix(),
	}))

	n, err := f.auth.PurgeSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	who, err := f.auth.CurrentUser(ctx, live.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice@x.com", who.Email)
}

func TestCurrentUserAnonymous(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, tok := range []string{"", "garbage", "a.b.c"} {
		who, err := f.auth.CurrentUser(ctx, tok)
		require.NoError(t, err)
		assert.Equal(t, domain.Anonymous, who)
	}
}

func TestCurrentUserUsesStoredRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.auth.SeedAdmin(ctx, "admin@x.com", "adminpass")
	require.NoError(t, err)
	require.True(t, created)

	res, err := f.auth.Login(ctx, "admin@x.com", "adminpass")
	require.NoError(t, err)
	assert.True(t, res.Identity.IsAdmin())

	require.NoError(t, f.repo.DB.Exec("UPDATE users SET role = ? WHERE email = ?", "customer", "admin@x.com").Error)
	who, err := f.auth.CurrentUser(ctx, res.Token)
	require.NoError(t, err)
	assert.False(t, who.IsAdmin())
}

func TestSeedAdminIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.auth.SeedAdmin(ctx, "admin@x.com", "adminpass")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = f.auth.SeedAdmin(ctx, "admin@x.com", "other-pass")
	require.NoError(t, err)
	assert.False(t, created)

	_, err = f.auth.Login(ctx, "admin@x.com", "adminpass")
	require.NoError(t, err)

	_, err = f.auth.SeedAdmin(ctx, "root@x.com", "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}
