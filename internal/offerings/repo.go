package offerings

import (
	"context"

	"gorm.io/gorm"

	"github.com/awesometech/webinar-backoffice/pkg/db/models"
)

// Repository exposes offering persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ListWebinars returns all non-deleted webinars in configuration order.
func (r *Repository) ListWebinars(ctx context.Context) ([]models.Webinar, error) {
	var webinars []models.Webinar
	err := r.db.WithContext(ctx).
		Order("created_at").
		Find(&webinars).Error
	if err != nil {
		return nil, err
	}
	return webinars, nil
}

// ListBundles returns all non-deleted bundles in configuration order.
func (r *Repository) ListBundles(ctx context.Context) ([]models.Bundle, error) {
	var bundles []models.Bundle
	err := r.db.WithContext(ctx).
		Order("created_at").
		Find(&bundles).Error
	if err != nil {
		return nil, err
	}
	return bundles, nil
}
