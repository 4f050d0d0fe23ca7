package service

import (
	"errors"
	"log"
	"strconv"
	"time"

	"jobly/internal/models"
	"jobly/internal/storage"

	"gorm.io/gorm"
)

// Reminder stamp metadata keys, cleared on extension so a renewed
// subscription gets a fresh round of expiry reminders.
var reminderStampKeys = []string{"reminder_sent_7", "reminder_sent_3", "reminder_sent_1"}

// ErrTrialNotAllowed means the user already has a current subscription; a
// trial never overlaps paid time.
var ErrTrialNotAllowed = errors.New("user already has a current subscription")

type SubscriptionService struct {
	store storage.Store
	now   func() time.Time
}

func NewSubscriptionService(store storage.Store) *SubscriptionService {
	return &SubscriptionService{store: store, now: time.Now}
}

// CreateOrExtend activates a paid plan for a user. If the user already has a
// current subscription its end date is pushed out by the plan duration
// instead of stacking a second active row; otherwise a new row starts now.
// durationDaysOverride replaces the plan duration when > 0.
func (s *SubscriptionService) CreateOrExtend(userID uint, plan *models.Plan, durationDaysOverride int, provenance map[string]string) (*models.Subscription, error) {
	var sub *models.Subscription
	err := s.store.Transaction(func(tx storage.Store) error {
		var err error
		sub, _, err = s.CreateOrExtendTx(tx, userID, plan, durationDaysOverride, provenance)
		return err
	})
	return sub, err
}

// CreateOrExtendTx is CreateOrExtend inside an existing transaction; the
// reconciliation engine calls it so activation commits atomically with the
// payment capture.
func (s *SubscriptionService) CreateOrExtendTx(tx storage.Store, userID uint, plan *models.Plan, durationDaysOverride int, provenance map[string]string) (*models.Subscription, bool, error) {
	days := plan.DurationDays
	if durationDaysOverride > 0 {
		days = durationDaysOverride
	}
	now := s.now()

	current, err := tx.CurrentSubscription(userID, now)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	if current != nil {
		current.EndDate = current.EndDate.AddDate(0, 0, days)
		current.IsActive = true
		// A paid extension converts a trial row into a paid one.
		current.IsTrial = false
		current.MetaDelete(reminderStampKeys...)
		current.MetaSet("extended_on", now.UTC().Format(time.RFC3339))
		current.MetaSet("extended_days", strconv.Itoa(days))
		for k, v := range provenance {
			current.MetaSet(k, v)
		}
		if err := tx.SaveSubscription(current); err != nil {
			return nil, false, err
		}
		return current, true, nil
	}

	sub := &models.Subscription{
		UserID:    userID,
		PlanID:    plan.ID,
		StartDate: now,
		EndDate:   now.AddDate(0, 0, days),
		IsActive:  true,
	}
	for k, v := range provenance {
		sub.MetaSet(k, v)
	}
	if err := tx.CreateSubscription(sub); err != nil {
		return nil, false, err
	}
	return sub, false, nil
}

// StartTrial grants a free run of the plan, flagged is_trial. Refused while
// any current subscription exists so a trial can never shadow paid time. A
// later paid order extends the trial row and clears the flag.
func (s *SubscriptionService) StartTrial(userID uint, plan *models.Plan, days int) (*models.Subscription, error) {
	if days <= 0 {
		days = plan.DurationDays
	}
	var sub *models.Subscription
	err := s.store.Transaction(func(tx storage.Store) error {
		now := s.now()
		_, err := tx.CurrentSubscription(userID, now)
		if err == nil {
			return ErrTrialNotAllowed
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		sub = &models.Subscription{
			UserID:    userID,
			PlanID:    plan.ID,
			StartDate: now,
			EndDate:   now.AddDate(0, 0, days),
			IsActive:  true,
			IsTrial:   true,
		}
		sub.MetaSet("source", "trial")
		if err := tx.CreateSubscription(sub); err != nil {
			return err
		}
		log.Printf("[SUBS] trial started for user %d, plan %s, %d days", userID, plan.Name, days)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Deactivate sets active=false and stamps the reason. Idempotent: a second
// call with the same reason is a no-op.
func (s *SubscriptionService) Deactivate(subscriptionID uint, reason string) error {
	return s.store.Transaction(func(tx storage.Store) error {
		sub, err := tx.SubscriptionByID(subscriptionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Printf("[SUBS] deactivate: subscription %d not found", subscriptionID)
				return nil
			}
			return err
		}
		if !sub.IsActive {
			return nil
		}
		sub.IsActive = false
		sub.MetaSet("deactivated_on", s.now().UTC().Format(time.RFC3339))
		sub.MetaSet("deactivated_reason", reason)
		return tx.SaveSubscription(sub)
	})
}

// CurrentFor returns the user's current subscription or nil. Most future
// end date wins when history contains overlapping active rows.
func (s *SubscriptionService) CurrentFor(userID uint) (*models.Subscription, error) {
	sub, err := s.store.CurrentSubscription(userID, s.now())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return sub, nil
}
