package models

import "time"

type Plan struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Description  string    `gorm:"type:text" json:"description"`
	Price        int64     `gorm:"not null" json:"price"` // minor currency unit (paise)
	Currency     string    `gorm:"size:10;default:'INR'" json:"currency"`
	DurationDays int       `gorm:"not null" json:"duration_days"`
	Features     string    `gorm:"type:text" json:"features"` // JSON
	IsActive     bool      `gorm:"default:true" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Plan) TableName() string {
	return "subscription_plans"
}
