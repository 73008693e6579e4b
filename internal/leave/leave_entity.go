package leave

import (
	"time"

	"github.com/google/uuid"
)

type LeaveRequest struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index:idx_leave_requests_user_created"`

	// Free-form category tag (annual, sick, personal, ...). Not validated
	// against an enum here; unknown tags simply never reach a balance column.
	LeaveType string    `gorm:"type:varchar(50);not null"`
	StartDate time.Time `gorm:"type:timestamp;not null"`
	EndDate   time.Time `gorm:"type:timestamp;not null"`
	TotalDays float64   `gorm:"type:numeric(5,2);not null;default:1"`
	Reason    string    `gorm:"type:text"`

	Status          string     `gorm:"type:varchar(20);not null;default:'pending';index"`
	ApprovedBy      *uuid.UUID `gorm:"type:uuid"`
	ApprovedAt      *time.Time
	RejectionReason *string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"index:idx_leave_requests_user_created"`

	User *RequestUser `gorm:"foreignKey:UserID"`
}

// RequestUser carries the requester columns the admin list view joins in.
type RequestUser struct {
	ID       uuid.UUID `gorm:"primaryKey"`
	FullName string    `gorm:"column:full_name"`
	Avatar   string    `gorm:"column:avatar"`
}

func (RequestUser) TableName() string {
	return "users"
}

// LeaveBalance holds the remaining days per category for one user and
// year. At most one row per (user_id, year); it is created lazily by the
// accrual check and only ever decremented afterwards.
type LeaveBalance struct {
	UserID uuid.UUID `gorm:"type:uuid;primaryKey"`
	Year   int       `gorm:"primaryKey"`

	AnnualLeave    int `gorm:"not null;default:0"`
	SickLeave      int `gorm:"not null;default:5"`
	PersonalLeave  int `gorm:"not null;default:3"`
	PaternityLeave int `gorm:"not null;default:5"`
	MaternityLeave int `gorm:"not null;default:112"`
	MarriageLeave  int `gorm:"not null;default:3"`
	DeathLeave     int `gorm:"not null;default:3"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (LeaveBalance) TableName() string {
	return "leave_balance"
}
