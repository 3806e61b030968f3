package audit

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

type Repository struct {
	db     *gorm.DB
	insert string
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, insert: insertStatement()}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&MetadataRecord{})
}

// Write inserts one audit row with named parameters.
func (r *Repository) Write(ctx context.Context, e Entry) error {
	params := BuildParams(e)
	if err := r.db.WithContext(ctx).Exec(r.insert, Named(params)).Error; err != nil {
		return fmt.Errorf("inserting audit row for %s: %w", e.File.Filename, err)
	}
	return nil
}
