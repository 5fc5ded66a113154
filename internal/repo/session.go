package repo

import (
	"context"
	"time"

	"github.com/Skotchmaster/product_catalog/internal/models"
)

func (r *GormRepo) CreateSession(ctx context.Context, s *models.Session) error {
	return r.DB.WithContext(ctx).Create(s).Error
}

func (r *GormRepo) SessionByJTI(ctx context.Context, jti string) (*models.Session, error) {
	var s models.Session
	if err := r.DB.WithContext(ctx).Where("jti = ?", jti).First(&s).Error; err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

// SessionActive reports whether jti names an unrevoked, unexpired session.
func (r *GormRepo) SessionActive(ctx context.Context, jti string, now time.Time) (bool, error) {
	var count int64
	if err := r.DB.WithContext(ctx).Model(&models.Session{}).
		Where("jti = ? AND revoked = ? AND expires_at > ?", jti, false, now.Unix()).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *GormRepo) RevokeSession(ctx context.Context, jti string) error {
	return r.DB.WithContext(ctx).Model(&models.Session{}).
		Where("jti = ?", jti).
		Update("revoked", true).Error
}

func (r *GormRepo) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res := r.DB.WithContext(ctx).
		Where("expires_at <= ? OR revoked = ?", now.Unix(), true).
		Delete(&models.Session{})
	return res.RowsAffected, res.Error
}
