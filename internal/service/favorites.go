package service

import (
	"context"
	"errors"
	"time"

	"github.com/Skotchmaster/product_catalog/internal/domain"
	"github.com/Skotchmaster/product_catalog/internal/events"
	"github.com/Skotchmaster/product_catalog/internal/logging"
	"github.com/Skotchmaster/product_catalog/internal/models"
	"github.com/Skotchmaster/product_catalog/internal/repo"
)

const maxToggleAttempts = 3

var ErrToggleConflict = errors.New("favorite toggle kept conflicting")

type FavoritesService struct {
	Repo   *repo.GormRepo
	Events events.Publisher
}

// Toggle flips the favorite flag of (actor, productID) and reports the new state.
// A pair that disappears or appears under a concurrent toggle is retried, so each
// call flips the state exactly once.
func (s *FavoritesService) Toggle(ctx context.Context, actor domain.Identity, productID uint) (bool, error) {
	l := logging.FromContext(ctx).With("svc", "favorites.toggle", "user_id", actor.UserID, "product_id", productID)

	if err := domain.Authorize(actor, domain.ActionToggleFavorite); err != nil {
		l.Warn("toggle_denied", "status", 401, "error", err)
		return false, err
	}

	for attempt := 1; attempt <= maxToggleAttempts; attempt++ {
		var starred, done bool
		err := s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
			exists, err := tx.ProductExists(ctx, productID)
			if err != nil {
				return err
			}
			if !exists {
				return domain.ErrNotFound
			}

			deleted, err := tx.DeleteFavorite(ctx, actor.UserID, productID)
			if err != nil {
				return err
			}
			if deleted {
				starred, done = false, true
				return nil
			}

			inserted, err := tx.InsertFavorite(ctx, actor.UserID, productID)
			if err != nil {
				return err
			}
			starred, done = true, inserted
			return nil
		})
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				l.Warn("toggle_failed", "status", 404, "reason", "product not found")
			} else {
				l.Error("toggle_failed", "status", 500, "error", err)
			}
			return false, err
		}
		if done {
			s.publish(ctx, actor.UserID, productID, starred)
			l.Info("toggle_success", "starred", starred, "attempt", attempt)
			return starred, nil
		}
		l.Debug("toggle_conflict", "attempt", attempt)
	}

	l.Error("toggle_failed", "status", 500, "reason", "too many conflicts")
	return false, ErrToggleConflict
}

// ListFavorites returns the actor's starred products; anonymous actors have none.
func (s *FavoritesService) ListFavorites(ctx context.Context, actor domain.Identity) ([]models.Product, error) {
	if actor.IsAnonymous() {
		return []models.Product{}, nil
	}
	return s.Repo.FavoriteProducts(ctx, actor.UserID)
}

func (s *FavoritesService) StarredIDs(ctx context.Context, actor domain.Identity) ([]uint, error) {
	if actor.IsAnonymous() {
		return []uint{}, nil
	}
	return s.Repo.StarredProductIDs(ctx, actor.UserID)
}

func (s *FavoritesService) publish(ctx context.Context, userID, productID uint, starred bool) {
	if s.Events == nil {
		return
	}
	event := events.FavoriteEvent{
		Type:      "favorite_toggled",
		UserID:    userID,
		ProductID: productID,
		Starred:   starred,
		At:        time.Now().UTC(),
	}
	if err := s.Events.PublishEvent(ctx, events.TopicFavorites, events.Key(userID), event); err != nil {
		logging.FromContext(ctx).Error("publish_event_failed", "topic", events.TopicFavorites, "error", err)
	}
}
