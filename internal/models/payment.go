package models

import (
	"time"

	"gorm.io/gorm"
)

// Payment tracks one checkout attempt from Razorpay order creation to its
// terminal outcome. The gateway order and the money movement share this row:
// OrderID is assigned at creation, PaymentID only once the gateway reports a
// payment, SubscriptionID only once a capture produced a subscription.
type Payment struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	UserID         uint           `gorm:"not null;index" json:"user_id"`
	SubscriptionID *uint          `gorm:"index" json:"subscription_id"`
	Amount         int64          `gorm:"not null" json:"amount"` // minor currency unit (paise)
	Currency       string         `gorm:"size:10;default:'INR'" json:"currency"`
	OrderID        string         `gorm:"size:255;uniqueIndex;not null" json:"order_id"` // Razorpay order ID
	PaymentID      string         `gorm:"size:255;index" json:"payment_id"`              // Razorpay payment ID, empty until captured
	Status         string         `gorm:"size:20;not null;index" json:"status"`          // created, authorized, captured, failed, refunded
	Method         string         `gorm:"size:50" json:"method"`                         // card, upi, netbanking, ...
	Notes          string         `gorm:"type:text" json:"-"`                            // JSON copy of the notes sent to the gateway
	CapturedAt     *time.Time     `json:"captured_at"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Payment) TableName() string {
	return "payments"
}
