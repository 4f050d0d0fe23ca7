// Package storage defines the persistence boundary used by the
// reconciliation engine, the subscription lifecycle and the sweeps. The gorm
// implementation lives in internal/repository; tests substitute an in-memory
// fake. Transaction hands the callback a Store bound to the transaction, and
// PaymentByOrderID takes a row lock inside one, which is what serializes
// concurrent webhook/callback/poll delivery for the same order.
package storage

import (
	"time"

	"jobly/internal/models"
)

type Store interface {
	// Transaction runs fn atomically. Inside fn the passed Store is bound to
	// the transaction; any error rolls everything back.
	Transaction(fn func(tx Store) error) error

	// PaymentByOrderID returns the payment row for a gateway order id, or
	// gorm.ErrRecordNotFound. Inside a transaction the row is locked FOR
	// UPDATE.
	PaymentByOrderID(orderID string) (*models.Payment, error)
	PaymentByGatewayPaymentID(paymentID string) (*models.Payment, error)
	CreatePayment(p *models.Payment) error
	SavePayment(p *models.Payment) error

	PlanByName(name string) (*models.Plan, error)
	CreatePlan(p *models.Plan) error

	SubscriptionByID(id uint) (*models.Subscription, error)
	CreateSubscription(s *models.Subscription) error
	SaveSubscription(s *models.Subscription) error
	// CurrentSubscription returns the user's active, non-expired subscription
	// with the most future end date, or gorm.ErrRecordNotFound.
	CurrentSubscription(userID uint, now time.Time) (*models.Subscription, error)
	SubscriptionsExpiringWithin(now time.Time, days int) ([]models.Subscription, error)
	SubscriptionsJustExpired(now time.Time, lookback time.Duration) ([]models.Subscription, error)

	UserByID(id uint) (*models.User, error)
}
