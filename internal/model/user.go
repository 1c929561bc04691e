package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleAdmin = "Admin"
	RoleUser  = "User"
)

func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleUser
}

// User represents the central user entity for logic and database structure
type User struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Username  string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"username"`
	Email     string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Password  string     `gorm:"type:varchar(255);not null" json:"-"`
	Role      string     `gorm:"type:varchar(20);not null" json:"role"`
	IsActive  bool       `gorm:"not null" json:"is_active"`
	IsDeleted bool       `gorm:"not null;default:false;index" json:"-"`
	DeletedAt *time.Time `json:"-"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
