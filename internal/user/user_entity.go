package user

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;primaryKey;default:gen_random_uuid()"`
	Username   string     `gorm:"column:username;type:varchar(100);not null;uniqueIndex"`
	FullName   string     `gorm:"column:full_name;type:varchar(255)"`
	Email      string     `gorm:"column:email;type:text;not null;uniqueIndex"`
	Role       string     `gorm:"column:role;type:varchar(20);not null;default:employee"`
	Department string     `gorm:"column:department;type:varchar(100)"`
	Avatar     string     `gorm:"column:avatar;type:text"`
	StartDate  *time.Time `gorm:"column:start_date;type:date"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
