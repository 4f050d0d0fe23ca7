package repository

import (
	"time"

	"jobly/internal/domain"
	"jobly/internal/models"

	"gorm.io/gorm"
)

// PaymentRepository serves the read paths of the admin surface; the
// reconciliation engine mutates payments through the transactional Store.
type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) ListByUser(userID uint) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.Where("user_id = ?", userID).Order("created_at desc").Find(&payments).Error
	return payments, err
}

// CapturedStatsSince returns count and summed amount of captured payments
// created after t. Zero t means all time.
func (r *PaymentRepository) CapturedStatsSince(t time.Time) (int64, int64, error) {
	q := r.db.Model(&models.Payment{}).Where("status = ?", domain.PaymentStatusCaptured)
	if !t.IsZero() {
		q = q.Where("created_at >= ?", t)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return 0, 0, err
	}
	var total struct{ Total int64 }
	if err := q.Select("COALESCE(SUM(amount), 0) AS total").Scan(&total).Error; err != nil {
		return 0, 0, err
	}
	return count, total.Total, nil
}
