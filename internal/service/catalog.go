package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Skotchmaster/product_catalog/internal/domain"
	"github.com/Skotchmaster/product_catalog/internal/events"
	"github.com/Skotchmaster/product_catalog/internal/logging"
	"github.com/Skotchmaster/product_catalog/internal/models"
	"github.com/Skotchmaster/product_catalog/internal/repo"
	"github.com/Skotchmaster/product_catalog/internal/search"
	"github.com/Skotchmaster/product_catalog/internal/storage"
	"github.com/Skotchmaster/product_catalog/internal/upload"
)

const (
	maxNameLen        = 100
	maxDescriptionLen = 1000
	maxCategoryLen    = 100

	DefaultSearchLimit = 50
)

type FileSlot string

const (
	SlotImage FileSlot = "image"
	SlotPDF   FileSlot = "pdf"
	SlotVideo FileSlot = "video"
)

var FileSlots = []FileSlot{SlotImage, SlotPDF, SlotVideo}

type ProductFields struct {
	Name        string
	Description string
	Category    string
	Price       float64
}

func (f ProductFields) normalize() (ProductFields, error) {
	f.Name = strings.TrimSpace(f.Name)
	f.Description = strings.TrimSpace(f.Description)
	f.Category = strings.TrimSpace(f.Category)

	switch {
	case f.Name == "":
		return f, fmt.Errorf("%w: name is required", domain.ErrValidation)
	case utf8.RuneCountInString(f.Name) > maxNameLen:
		return f, fmt.Errorf("%w: name longer than %d characters", domain.ErrValidation, maxNameLen)
	case utf8.RuneCountInString(f.Description) > maxDescriptionLen:
		return f, fmt.Errorf("%w: description longer than %d characters", domain.ErrValidation, maxDescriptionLen)
	case utf8.RuneCountInString(f.Category) > maxCategoryLen:
		return f, fmt.Errorf("%w: category longer than %d characters", domain.ErrValidation, maxCategoryLen)
	case f.Price < 0 || math.IsNaN(f.Price) || math.IsInf(f.Price, 0):
		return f, fmt.Errorf("%w: price must be a non-negative number", domain.ErrValidation)
	}
	return f, nil
}

// FileUpload is one attachment of an add or replace request. Size is the size
// the client declared; the bytes actually read are checked again while staging.
type FileUpload struct {
	Slot     FileSlot
	Filename string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

type CatalogService struct {
	Repo      *repo.GormRepo
	Store     storage.Store
	Validator *upload.Validator
	Index     search.Index
	Events    events.Publisher
}

type DashboardStats struct {
	Products  []models.Product
	Users     int64
	Favorites int64
}

type plannedFile struct {
	slot FileSlot
	key  string
	src  FileUpload
}

type stagedFile struct {
	slot   FileSlot
	staged storage.Staged
}

func keyFor(p *models.Product, slot FileSlot) *string {
	switch slot {
	case SlotImage:
		return &p.ImageKey
	case SlotPDF:
		return &p.PDFKey
	case SlotVideo:
		return &p.VideoKey
	}
	return nil
}

// planFiles validates every upload before anything is written.
func (s *CatalogService) planFiles(files []FileUpload) ([]plannedFile, error) {
	seen := make(map[FileSlot]bool, len(files))
	plans := make([]plannedFile, 0, len(files))
	for _, f := range files {
		if keyFor(&models.Product{}, f.Slot) == nil {
			return nil, fmt.Errorf("%w: unknown file slot %q", domain.ErrValidation, f.Slot)
		}
		if seen[f.Slot] {
			return nil, fmt.Errorf("%w: more than one %s file", domain.ErrValidation, f.Slot)
		}
		seen[f.Slot] = true

		name, err := s.Validator.Validate(f.Filename, f.Size)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plannedFile{
			slot: f.Slot,
			key:  uuid.NewString()[:8] + "_" + name,
			src:  f,
		})
	}
	return plans, nil
}

func (s *CatalogService) stageOne(ctx context.Context, p plannedFile) (storage.Staged, error) {
	rc, err := p.src.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", p.slot, err)
	}
	defer rc.Close()

	limit := s.Validator.MaxBytes()
	st, err := s.Store.Stage(ctx, p.key, io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, err
	}
	if st.Size() > limit {
		_ = st.Discard()
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", domain.ErrFileTooLarge, p.src.Filename, limit)
	}
	return st, nil
}

// stageFiles writes every planned file to temporary storage. On error nothing
// staged by this call is left behind.
func (s *CatalogService) stageFiles(ctx context.Context, plans []plannedFile) ([]stagedFile, error) {
	staged := make([]stagedFile, 0, len(plans))
	for _, p := range plans {
		st, err := s.stageOne(ctx, p)
		if err != nil {
			discardAll(staged)
			return nil, err
		}
		staged = append(staged, stagedFile{slot: p.slot, staged: st})
	}
	return staged, nil
}

func discardAll(staged []stagedFile) {
	for _, sf := range staged {
		_ = sf.staged.Discard()
	}
}

// commitFiles moves staged files into place and records every key it committed.
func commitFiles(ctx context.Context, staged []stagedFile, committed *[]string) error {
	for _, sf := range staged {
		if err := sf.staged.Commit(ctx); err != nil {
			return err
		}
		*committed = append(*committed, sf.staged.Key())
	}
	return nil
}

func (s *CatalogService) removeFiles(ctx context.Context, keys []string) {
	l := logging.FromContext(ctx)
	for _, key := range keys {
		if err := s.Store.Remove(ctx, key); err != nil {
			l.Error("remove_file_failed", "key", key, "error", err)
		}
	}
}

func (s *CatalogService) AddProduct(ctx context.Context, actor domain.Identity, fields ProductFields, files []FileUpload) (*models.Product, error) {
	l := logging.FromContext(ctx).With("svc", "catalog.add_product", "actor", actor.UserID)

	if err := domain.Authorize(actor, domain.ActionManageProducts); err != nil {
		l.Warn("add_product_denied", "status", 403, "error", err)
		return nil, err
	}
	fields, err := fields.normalize()
	if err != nil {
		return nil, err
	}
	plans, err := s.planFiles(files)
	if err != nil {
		l.Warn("add_product_rejected", "status", 400, "reason", "file validation", "error", err)
		return nil, err
	}

	staged, err := s.stageFiles(ctx, plans)
	if err != nil {
		l.Warn("add_product_rejected", "reason", "cannot stage files", "error", err)
		return nil, err
	}
	defer discardAll(staged)

	prod := &models.Product{
		Name:        fields.Name,
		Description: fields.Description,
		Category:    fields.Category,
		Price:       fields.Price,
		CreatedBy:   actor.UserID,
	}
	for _, sf := range staged {
		*keyFor(prod, sf.slot) = sf.staged.Key()
	}

	var committed []string
	err = s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		if err := tx.CreateProduct(ctx, prod); err != nil {
			return err
		}
		return commitFiles(ctx, staged, &committed)
	})
	if err != nil {
		s.removeFiles(ctx, committed)
		l.Error("add_product_failed", "status", 500, "error", err)
		return nil, err
	}

	s.indexProduct(ctx, prod)
	s.publishProduct(ctx, "product_created", prod.ID, prod.Name, actor)
	l.Info("add_product_success", "product_id", prod.ID, "files", len(staged))
	return prod, nil
}

// ReplaceProduct overwrites every field of an existing product. Slots with a new
// file point at the new upload and their previous file is removed; other slots
// keep their file.
func (s *CatalogService) ReplaceProduct(ctx context.Context, actor domain.Identity, id uint, fields ProductFields, files []FileUpload) (*models.Product, error) {
	l := logging.FromContext(ctx).With("svc", "catalog.replace_product", "actor", actor.UserID, "product_id", id)

	if err := domain.Authorize(actor, domain.ActionManageProducts); err != nil {
		l.Warn("replace_product_denied", "status", 403, "error", err)
		return nil, err
	}
	fields, err := fields.normalize()
	if err != nil {
		return nil, err
	}
	plans, err := s.planFiles(files)
	if err != nil {
		l.Warn("replace_product_rejected", "status", 400, "reason", "file validation", "error", err)
		return nil, err
	}
	if _, err := s.Repo.GetProduct(ctx, id); err != nil {
		return nil, err
	}

	staged, err := s.stageFiles(ctx, plans)
	if err != nil {
		return nil, err
	}
	defer discardAll(staged)

	var (
		prod      *models.Product
		committed []string
		replaced  []string
	)
	err = s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		current, err := tx.GetProduct(ctx, id)
		if err != nil {
			return err
		}
		current.Name = fields.Name
		current.Description = fields.Description
		current.Category = fields.Category
		current.Price = fields.Price
		current.UpdatedAt = time.Now().UTC()

		for _, sf := range staged {
			slot := keyFor(current, sf.slot)
			if *slot != "" {
				replaced = append(replaced, *slot)
			}
			*slot = sf.staged.Key()
		}

		if err := tx.SaveProduct(ctx, current); err != nil {
			return err
		}
		prod = current
		return commitFiles(ctx, staged, &committed)
	})
	if err != nil {
		s.removeFiles(ctx, committed)
		if !errors.Is(err, domain.ErrNotFound) {
			l.Error("replace_product_failed", "status", 500, "error", err)
		}
		return nil, err
	}

	s.removeFiles(ctx, replaced)
	s.indexProduct(ctx, prod)
	s.publishProduct(ctx, "product_updated", prod.ID, prod.Name, actor)
	l.Info("replace_product_success")
	return prod, nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, actor domain.Identity, id uint) error {
	l := logging.FromContext(ctx).With("svc", "catalog.delete_product", "actor", actor.UserID, "product_id", id)

	if err := domain.Authorize(actor, domain.ActionManageProducts); err != nil {
		l.Warn("delete_product_denied", "status", 403, "error", err)
		return err
	}

	var (
		prod       *models.Product
		favRemoved int64
	)
	err := s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		var err error
		if prod, err = tx.GetProduct(ctx, id); err != nil {
			return err
		}
		if favRemoved, err = tx.DeleteFavoritesForProduct(ctx, id); err != nil {
			return err
		}
		return tx.DeleteProduct(ctx, id)
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			l.Warn("delete_product_failed", "status", 404, "reason", "product not found")
		} else {
			l.Error("delete_product_failed", "status", 500, "error", err)
		}
		return err
	}

	s.removeFiles(ctx, prod.FileKeys())
	if s.Index != nil {
		if err := s.Index.DeleteProduct(ctx, id); err != nil {
			l.Warn("unindex_product_failed", "error", err)
		}
	}
	s.publishProduct(ctx, "product_deleted", id, prod.Name, actor)
	l.Info("delete_product_success", "favorites_removed", favRemoved)
	return nil
}

func (s *CatalogService) ListProducts(ctx context.Context) ([]models.Product, error) {
	return s.Repo.ListProducts(ctx)
}

func (s *CatalogService) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	return s.Repo.GetProduct(ctx, id)
}

// Search asks the search index first and falls back to a database substring match
// when no index is configured or it fails.
func (s *CatalogService) Search(ctx context.Context, query string, limit int) ([]models.Product, error) {
	l := logging.FromContext(ctx).With("svc", "catalog.search")
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.Product{}, nil
	}
	if limit <= 0 || limit > DefaultSearchLimit {
		limit = DefaultSearchLimit
	}

	if s.Index != nil {
		ids, err := s.Index.Search(ctx, query, limit)
		if err == nil {
			return s.Repo.ProductsByIDs(ctx, ids)
		}
		l.Warn("search_index_failed", "reason", "falling back to database", "error", err)
	}
	return s.Repo.SearchProducts(ctx, query, limit)
}

func (s *CatalogService) Dashboard(ctx context.Context, actor domain.Identity) (*DashboardStats, error) {
	if err := domain.Authorize(actor, domain.ActionViewAdminDashboard); err != nil {
		return nil, err
	}
	products, err := s.Repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	users, err := s.Repo.CountUsers(ctx)
	if err != nil {
		return nil, err
	}
	favs, err := s.Repo.CountAllFavorites(ctx)
	if err != nil {
		return nil, err
	}
	return &DashboardStats{Products: products, Users: users, Favorites: favs}, nil
}

func (s *CatalogService) indexProduct(ctx context.Context, p *models.Product) {
	if s.Index == nil {
		return
	}
	if err := s.Index.IndexProduct(ctx, p); err != nil {
		logging.FromContext(ctx).Warn("index_product_failed", "product_id", p.ID, "error", err)
	}
}

func (s *CatalogService) publishProduct(ctx context.Context, typ string, id uint, name string, actor domain.Identity) {
	if s.Events == nil {
		return
	}
	event := events.ProductEvent{
		Type:      typ,
		ProductID: id,
		Name:      name,
		ActorID:   actor.UserID,
		At:        time.Now().UTC(),
	}
	if err := s.Events.PublishEvent(ctx, events.TopicProducts, events.Key(id), event); err != nil {
		logging.FromContext(ctx).Error("publish_event_failed", "topic", events.TopicProducts, "error", err)
	}
}
