package repo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/product_catalog/internal/db/dbtest"
	"github.com/Skotchmaster/product_catalog/internal/domain"
	"github.com/Skotchmaster/product_catalog/internal/models"
)

func newRepo(t *testing.T) *GormRepo {
	t.Helper()
	return New(dbtest.Open(t))
}

func seedUser(t *testing.T, r *GormRepo, email string) *models.User {
	t.Helper()
	u := &models.User{Email: email, PasswordHash: "x", Role: string(domain.RoleCustomer)}
	require.NoError(t, r.CreateUser(context.Background(), u))
	return u
}

func seedProduct(t *testing.T, r *GormRepo, name string, createdAt time.Time) *models.Product {
	t.Helper()
	p := &models.Product{Name: name, Description: name + " description", Category: "misc", CreatedAt: createdAt}
	require.NoError(t, r.CreateProduct(context.Background(), p))
	return p
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	r := newRepo(t)
	seedUser(t, r, "alice@x.com")

	err := r.CreateUser(context.Background(), &models.User{Email: "alice@x.com", PasswordHash: "y", Role: "customer"})
	assert.ErrorIs(t, err, domain.ErrEmailAlreadyExists)
}

func TestCreateUserIfNotExists(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	created, err := r.CreateUserIfNotExists(ctx, &models.User{Email: "admin@x.com", PasswordHash: "h", Role: "admin"})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = r.CreateUserIfNotExists(ctx, &models.User{Email: "admin@x.com", PasswordHash: "h2", Role: "admin"})
	require.NoError(t, err)
	assert.False(t, created)

	n, err := r.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestUserLookupsNotFound(t *testing.T) {
	r := newRepo(t)
	_, err := r.UserByEmail(context.Background(), "nobody@x.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = r.UserByID(context.Background(), 404)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSessions(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	now := time.Now()
	u := seedUser(t, r, "alice@x.com")

	require.NoError(t, r.CreateSession(ctx, &models.Session{JTI: "live", UserID: u.ID, ExpiresAt: now.Add(time.Hour).Unix()}))
	require.NoError(t, r.CreateSession(ctx, &models.Session{JTI: "old", UserID: u.ID, ExpiresAt: now.Add(-time.Hour).Unix()}))

	ok, err := r.SessionActive(ctx, "live", now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.SessionActive(ctx, "old", now)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.RevokeSession(ctx, "live"))
	ok, err = r.SessionActive(ctx, "live", now)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := r.DeleteExpiredSessions(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = r.SessionByJTI(ctx, "live")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListProductsNewestFirst(t *testing.T) {
	r := newRepo(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := seedProduct(t, r, "a", base)
	b := seedProduct(t, r, "b", base.Add(time.Hour))
	c := seedProduct(t, r, "c", base.Add(time.Hour))

	items, err := r.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []uint{c.ID, b.ID, a.ID}, []uint{items[0].ID, items[1].ID, items[2].ID})
}

func TestProductsByIDsKeepsOrder(t *testing.T) {
	r := newRepo(t)
	now := time.Now()
	a := seedProduct(t, r, "a", now)
	b := seedProduct(t, r, "b", now)

	items, err := r.ProductsByIDs(context.Background(), []uint{b.ID, 999, a.ID, b.ID})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, b.ID, items[0].ID)
	assert.Equal(t, a.ID, items[1].ID)
}

func TestSaveAndDeleteProduct(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	p := seedProduct(t, r, "lamp", time.Now())

	p.Name = "desk lamp"
	p.ImageKey = ""
	p.Price = 12.5
	require.NoError(t, r.SaveProduct(ctx, p))

	got, err := r.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "desk lamp", got.Name)
	assert.Equal(t, 12.5, got.Price)

	require.NoError(t, r.DeleteProduct(ctx, p.ID))
	assert.ErrorIs(t, r.DeleteProduct(ctx, p.ID), domain.ErrNotFound)
	assert.ErrorIs(t, r.SaveProduct(ctx, p), domain.ErrNotFound)
}

func TestSearchProductsEscapesWildcards(t *testing.T) {
	r := newRepo(t)
	now := time.Now()
	seedProduct(t, r, "Rexine Sofa", now)
	seedProduct(t, r, "100% cotton", now)

	items, err := r.SearchProducts(context.Background(), "sofa", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Rexine Sofa", items[0].Name)

	items, err = r.SearchProducts(context.Background(), "0%", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "100% cotton", items[0].Name)

	items, err = r.SearchProducts(context.Background(), "  ", 10)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestFavoritePairIsUnique(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	u := seedUser(t, r, "alice@x.com")
	p := seedProduct(t, r, "chair", time.Now())

	inserted, err := r.InsertFavorite(ctx, u.ID, p.ID)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = r.InsertFavorite(ctx, u.ID, p.ID)
	require.NoError(t, err)
	assert.False(t, inserted)

	n, err := r.CountFavorites(ctx, u.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	deleted, err := r.DeleteFavorite(ctx, u.ID, p.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = r.DeleteFavorite(ctx, u.ID, p.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestFavoriteRequiresExistingProduct(t *testing.T) {
	r := newRepo(t)
	u := seedUser(t, r, "alice@x.com")

	_, err := r.InsertFavorite(context.Background(), u.ID, 4242)
	assert.Error(t, err)
}

func TestFavoriteProducts(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	alice := seedUser(t, r, "alice@x.com")
	bob := seedUser(t, r, "bob@x.com")
	now := time.Now()
	a := seedProduct(t, r, "a", now)
	b := seedProduct(t, r, "b", now)

	_, err := r.InsertFavorite(ctx, alice.ID, a.ID)
	require.NoError(t, err)
	_, err = r.InsertFavorite(ctx, alice.ID, b.ID)
	require.NoError(t, err)
	_, err = r.InsertFavorite(ctx, bob.ID, a.ID)
	require.NoError(t, err)

	items, err := r.FavoriteProducts(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, b.ID, items[0].ID)

	ids, err := r.StarredProductIDs(ctx, alice.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{a.ID, b.ID}, ids)

	n, err := r.DeleteFavoritesForProduct(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	items, err = r.FavoriteProducts(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestTransactionRollsBack(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	err := r.Transaction(ctx, func(tx *GormRepo) error {
		require.NoError(t, tx.CreateProduct(ctx, &models.Product{Name: "ghost"}))
		return domain.ErrValidation
	})
	assert.ErrorIs(t, err, domain.ErrValidation)

	n, err := r.CountProducts(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
