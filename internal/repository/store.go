package repository

import (
	"time"

	"jobly/internal/models"
	"jobly/internal/storage"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the gorm-backed storage.Store. One Store spans the tables the
// reconciliation engine mutates together so a single transaction can cover
// payment capture, plan creation and subscription activation.
type Store struct {
	db   *gorm.DB
	inTx bool
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Transaction(fn func(tx storage.Store) error) error {
	if s.inTx {
		// gorm would open a savepoint; the engine never nests, so just reuse.
		return fn(s)
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, inTx: true})
	})
}

// PaymentByOrderID locks the row FOR UPDATE inside a transaction. That lock
// is what enforces "at most one transition to captured" when webhook,
// callback and poll race for the same order.
func (s *Store) PaymentByOrderID(orderID string) (*models.Payment, error) {
	q := s.db
	if s.inTx {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var p models.Payment
	if err := q.Where("order_id = ?", orderID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) PaymentByGatewayPaymentID(paymentID string) (*models.Payment, error) {
	q := s.db
	if s.inTx {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var p models.Payment
	if err := q.Where("payment_id = ?", paymentID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreatePayment(p *models.Payment) error {
	return s.db.Create(p).Error
}

func (s *Store) SavePayment(p *models.Payment) error {
	return s.db.Save(p).Error
}

func (s *Store) PlanByName(name string) (*models.Plan, error) {
	var p models.Plan
	if err := s.db.Where("name = ?", name).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreatePlan(p *models.Plan) error {
	return s.db.Create(p).Error
}

func (s *Store) SubscriptionByID(id uint) (*models.Subscription, error) {
	q := s.db
	if s.inTx {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var sub models.Subscription
	if err := q.First(&sub, id).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *Store) CreateSubscription(sub *models.Subscription) error {
	return s.db.Create(sub).Error
}

func (s *Store) SaveSubscription(sub *models.Subscription) error {
	return s.db.Save(sub).Error
}

func (s *Store) CurrentSubscription(userID uint, now time.Time) (*models.Subscription, error) {
	q := s.db
	if s.inTx {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var sub models.Subscription
	err := q.Where("user_id = ? AND is_active = ? AND end_date > ?", userID, true, now).
		Order("end_date desc").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *Store) SubscriptionsExpiringWithin(now time.Time, days int) ([]models.Subscription, error) {
	var subs []models.Subscription
	threshold := now.AddDate(0, 0, days)
	err := s.db.Where("is_active = ? AND end_date > ? AND end_date <= ?", true, now, threshold).Find(&subs).Error
	return subs, err
}

func (s *Store) SubscriptionsJustExpired(now time.Time, lookback time.Duration) ([]models.Subscription, error) {
	var subs []models.Subscription
	since := now.Add(-lookback)
	err := s.db.Where("is_active = ? AND end_date > ? AND end_date <= ?", true, since, now).Find(&subs).Error
	return subs, err
}

func (s *Store) UserByID(id uint) (*models.User, error) {
	var u models.User
	if err := s.db.First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}
