package leave

import (
	"context"
	"database/sql"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	WithTx(tx *sql.Tx) Repository

	CreateRequest(ctx context.Context, l *LeaveRequest) error
	FindRequestsByUser(ctx context.Context, userID, status string) ([]LeaveRequest, error)
	FindAllRequests(ctx context.Context, status string) ([]LeaveRequest, error)
	FindRequestForUpdate(ctx context.Context, id string) (*LeaveRequest, error)
	UpdateRequest(ctx context.Context, l *LeaveRequest) error

	FindBalance(ctx context.Context, userID string, year int) (*LeaveBalance, error)
	CreateBalance(ctx context.Context, b *LeaveBalance) error
	DeductBalance(ctx context.Context, userID string, year int, column string, days int) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// WithTx rebinds the repository onto an open transaction so the status
// write and the balance deduction commit or roll back together.
func (r *repository) WithTx(tx *sql.Tx) Repository {
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: tx}), &gorm.Config{})
	if err != nil {
		return r
	}
	return &repository{db: db}
}

func (r *repository) CreateRequest(ctx context.Context, l *LeaveRequest) error {
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *repository) FindRequestsByUser(ctx context.Context, userID, status string) ([]LeaveRequest, error) {
	var requests []LeaveRequest
	db := r.db.WithContext(ctx).
		Where("user_id = ?", userID)
	if status != "" {
		db = db.Where("status = ?", status)
	}
	err := db.Order("created_at DESC").Find(&requests).Error
	return requests, err
}

func (r *repository) FindAllRequests(ctx context.Context, status string) ([]LeaveRequest, error) {
	var requests []LeaveRequest
	db := r.db.WithContext(ctx).Preload("User")
	if status != "" {
		db = db.Where("status = ?", status)
	}
	err := db.Order("created_at DESC").Find(&requests).Error
	return requests, err
}

// FindRequestForUpdate locks the row so concurrent decisions serialize on
// the pending check.
func (r *repository) FindRequestForUpdate(ctx context.Context, id string) (*LeaveRequest, error) {
	var l LeaveRequest
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&l, "id = ?", id).Error
	return &l, err
}

func (r *repository) UpdateRequest(ctx context.Context, l *LeaveRequest) error {
	return r.db.WithContext(ctx).Save(l).Error
}

func (r *repository) FindBalance(ctx context.Context, userID string, year int) (*LeaveBalance, error) {
	var b LeaveBalance
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("year = ?", year).
		First(&b).Error
	return &b, err
}

func (r *repository) CreateBalance(ctx context.Context, b *LeaveBalance) error {
	return r.db.WithContext(ctx).Create(b).Error
}

// DeductBalance decrements one category column. The column name comes
// from the fixed balanceColumns table, never from request input. There is
// no floor at zero: over-approval drives the balance negative.
func (r *repository) DeductBalance(ctx context.Context, userID string, year int, column string, days int) error {
	return r.db.WithContext(ctx).
		Model(&LeaveBalance{}).
		Where("user_id = ?", userID).
		Where("year = ?", year).
		UpdateColumn(column, gorm.Expr(column+" - ?", days)).Error
}
