package user

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	FindByID(ctx context.Context, id string) (*User, error)
	GetStartDate(ctx context.Context, id string) (*time.Time, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByID(ctx context.Context, id string) (*User, error) {
	var u User
	err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error
	return &u, err
}

// GetStartDate returns the hire date, or nil when the user has none.
func (r *repository) GetStartDate(ctx context.Context, id string) (*time.Time, error) {
	var u User
	err := r.db.WithContext(ctx).
		Select("start_date").
		First(&u, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return u.StartDate, nil
}
