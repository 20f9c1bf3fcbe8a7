package repository

import (
	"context"

	"github.com/kursadbilgin/campaign-dispatch/internal/domain"
	"gorm.io/gorm"
)

type ActivityRepository interface {
	Create(ctx context.Context, a *domain.Activity) error
}

type GormActivityRepo struct {
	db *gorm.DB
}

func NewGormActivityRepo(db *gorm.DB) *GormActivityRepo {
	return &GormActivityRepo{db: db}
}

func (r *GormActivityRepo) Create(ctx context.Context, a *domain.Activity) error {
	model := activityModelFromDomain(a)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return mapDBError(err)
	}
	if a != nil {
		*a = *activityModelToDomain(model)
	}
	return nil
}
