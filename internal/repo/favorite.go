package repo

import (
	"context"

	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/product_catalog/internal/models"
)

// InsertFavorite reports whether a row was written; an existing pair is left untouched.
func (r *GormRepo) InsertFavorite(ctx context.Context, userID, productID uint) (bool, error) {
	fav := models.Favorite{UserID: userID, ProductID: productID}
	res := r.DB.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
			DoNothing: true,
		}).
		Create(&fav)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeleteFavorite reports whether the pair existed.
func (r *GormRepo) DeleteFavorite(ctx context.Context, userID, productID uint) (bool, error) {
	res := r.DB.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&models.Favorite{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *GormRepo) DeleteFavoritesForProduct(ctx context.Context, productID uint) (int64, error) {
	res := r.DB.WithContext(ctx).Where("product_id = ?", productID).Delete(&models.Favorite{})
	return res.RowsAffected, res.Error
}

func (r *GormRepo) CountFavorites(ctx context.Context, userID, productID uint) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.Favorite{}).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Count(&n).Error
	return n, err
}

func (r *GormRepo) CountAllFavorites(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.Favorite{}).Count(&n).Error
	return n, err
}

// FavoriteProducts lists the products userID starred, most recent star first.
func (r *GormRepo) FavoriteProducts(ctx context.Context, userID uint) ([]models.Product, error) {
	items := make([]models.Product, 0)
	err := r.DB.WithContext(ctx).
		Model(&models.Product{}).
		Select("products.*").
		Joins("JOIN favorites ON favorites.product_id = products.id").
		Where("favorites.user_id = ?", userID).
		Order("favorites.created_at DESC, favorites.id DESC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *GormRepo) StarredProductIDs(ctx context.Context, userID uint) ([]uint, error) {
	ids := make([]uint, 0)
	err := r.DB.WithContext(ctx).Model(&models.Favorite{}).
		Where("user_id = ?", userID).
		Order("product_id").
		Pluck("product_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
