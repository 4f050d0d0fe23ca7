package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	TelegramID   int64          `gorm:"uniqueIndex;not null" json:"telegram_id"`
	Username     string         `gorm:"size:255" json:"username"`
	FirstName    string         `gorm:"size:255" json:"first_name"`
	LastName     string         `gorm:"size:255" json:"last_name"`
	Email        string         `gorm:"size:255" json:"email"`
	Phone        string         `gorm:"size:50" json:"phone"`
	Role         string         `gorm:"size:20;not null;default:'USER';index" json:"role"` // USER | ADMIN
	PasswordHash string         `gorm:"size:255" json:"-"`                                 // admins only
	IsActive     bool           `gorm:"default:true" json:"is_active"`
	HasResume    bool           `gorm:"default:false" json:"has_resume"`
	ResumeData   string         `gorm:"type:text" json:"-"` // processed resume JSON
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// DisplayName is the name sent to the payment gateway as the customer name.
func (u *User) DisplayName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		name = u.Username
	}
	return name
}
