package repository

import (
	"time"

	"jobly/internal/models"

	"gorm.io/gorm"
)

// SubscriptionRepository serves the read paths of the admin surface. All
// subscription mutation goes through the transactional Store.
type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// CurrentFor returns the active, non-expired subscription with the most
// future end date. Overlapping rows from the pre-extension era resolve
// deterministically this way.
func (r *SubscriptionRepository) CurrentFor(userID uint, now time.Time) (*models.Subscription, error) {
	var s models.Subscription
	err := r.db.Preload("Plan").
		Where("user_id = ? AND is_active = ? AND end_date > ?", userID, true, now).
		Order("end_date desc").
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SubscriptionRepository) ListByUser(userID uint) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Preload("Plan").Where("user_id = ?", userID).Order("created_at desc").Find(&subs).Error
	return subs, err
}

// ListExpiringWithin returns active subscriptions with end_date in
// (now, now+days].
func (r *SubscriptionRepository) ListExpiringWithin(now time.Time, days int) ([]models.Subscription, error) {
	var subs []models.Subscription
	threshold := now.AddDate(0, 0, days)
	err := r.db.Preload("Plan").
		Where("is_active = ? AND end_date > ? AND end_date <= ?", true, now, threshold).
		Find(&subs).Error
	return subs, err
}
