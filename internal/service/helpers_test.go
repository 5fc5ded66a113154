package service

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/product_catalog/internal/db/dbtest"
	"github.com/Skotchmaster/product_catalog/internal/domain"
	"github.com/Skotchmaster/product_catalog/internal/events"
	"github.com/Skotchmaster/product_catalog/internal/models"
	"github.com/Skotchmaster/product_catalog/internal/repo"
	"github.com/Skotchmaster/product_catalog/internal/storage"
	"github.com/Skotchmaster/product_catalog/internal/upload"
)

type fixture struct {
	repo      *repo.GormRepo
	store     *storage.Local
	events    *events.Recorder
	auth      *AuthService
	catalog   *CatalogService
	favorites *FavoritesService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	r := repo.New(dbtest.Open(t))
	store, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	rec := &events.Recorder{}

	return &fixture{
		repo:   r,
		store:  store,
		events: rec,
		auth: &AuthService{
			Repo:              r,
			Secret:            []byte("test-secret"),
			SessionTTL:        time.Hour,
			MinPasswordLength: 6,
		},
		catalog: &CatalogService{
			Repo:      r,
			Store:     store,
			Validator: upload.NewValidator(upload.DefaultExtensions, 1024),
			Events:    rec,
		},
		favorites: &FavoritesService{Repo: r, Events: rec},
	}
}

func (f *fixture) user(t *testing.T, email string, role domain.Role) domain.Identity {
	t.Helper()
	u := &models.User{Email: email, PasswordHash: "x", Role: string(role)}
	require.NoError(t, f.repo.CreateUser(context.Background(), u))
	return domain.Identity{UserID: u.ID, Email: u.Email, Role: role}
}

func (f *fixture) product(t *testing.T, name string) *models.Product {
	t.Helper()
	p := &models.Product{Name: name, Description: "d", Category: "c"}
	require.NoError(t, f.repo.CreateProduct(context.Background(), p))
	return p
}

func (f *fixture) uploadDir(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(f.store.Dir())
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func fileUpload(slot FileSlot, name, body string) FileUpload {
	return FileUpload{
		Slot:     slot,
		Filename: name,
		Size:     int64(len(body)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(body)), nil
		},
	}
}

type failingIndex struct{}

func (failingIndex) IndexProduct(context.Context, *models.Product) error { return errors.New("down") }
func (failingIndex) DeleteProduct(context.Context, uint) error           { return errors.New("down") }
func (failingIndex) Search(context.Context, string, int) ([]uint, error) {
	return nil, errors.New("down")
}

type staticIndex struct{ ids []uint }

func (staticIndex) IndexProduct(context.Context, *models.Product) error { return nil }
func (staticIndex) DeleteProduct(context.Context, uint) error           { return nil }
func (s staticIndex) Search(context.Context, string, int) ([]uint, error) {
	return s.ids, nil
}
