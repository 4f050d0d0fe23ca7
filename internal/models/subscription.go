package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

type Subscription struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    uint           `gorm:"not null;index" json:"user_id"`
	PlanID    uint           `gorm:"not null" json:"plan_id"`
	StartDate time.Time      `gorm:"not null" json:"start_date"`
	EndDate   time.Time      `gorm:"not null;index" json:"end_date"`
	IsActive  bool           `gorm:"default:true;index" json:"is_active"`
	IsTrial   bool           `gorm:"default:false" json:"is_trial"`
	Metadata  string         `gorm:"type:text" json:"metadata"` // JSON: source, renewed_from, reminder stamps
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Plan Plan `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}

// IsExpired is evaluated, never stored.
func (s *Subscription) IsExpired(now time.Time) bool {
	return now.After(s.EndDate)
}

func (s *Subscription) DaysRemaining(now time.Time) int {
	if s.IsExpired(now) {
		return 0
	}
	return int(s.EndDate.Sub(now).Hours() / 24)
}

// MetaGet reads one key from the metadata JSON bag. Missing bag or key
// returns "".
func (s *Subscription) MetaGet(key string) string {
	if s.Metadata == "" {
		return ""
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(s.Metadata), &m); err != nil {
		return ""
	}
	return m[key]
}

// MetaSet writes one key into the metadata JSON bag.
func (s *Subscription) MetaSet(key, value string) {
	m := map[string]string{}
	if s.Metadata != "" {
		_ = json.Unmarshal([]byte(s.Metadata), &m)
	}
	m[key] = value
	b, _ := json.Marshal(m)
	s.Metadata = string(b)
}

// MetaDelete removes keys from the metadata bag (used to reset reminder
// stamps when a subscription is extended).
func (s *Subscription) MetaDelete(keys ...string) {
	if s.Metadata == "" {
		return
	}
	m := map[string]string{}
	if err := json.Unmarshal([]byte(s.Metadata), &m); err != nil {
		return
	}
	for _, k := range keys {
		delete(m, k)
	}
	b, _ := json.Marshal(m)
	s.Metadata = string(b)
}
