// Package sweeper runs the periodic subscription sweeps: expiry reminders at
// 7/3/1 days out and deactivation of freshly expired subscriptions. Both
// sweeps are idempotent and safe to re-run on overlapping schedules.
package sweeper

import (
	"context"
	"log"
	"time"

	"jobly/internal/service"
	"jobly/internal/storage"
)

// reminderThresholds are the exact days-remaining values that trigger a
// reminder. Exact match, not a range, so one sweep pass sends at most one
// reminder per threshold.
var reminderThresholds = []int{7, 3, 1}

const stampFormat = time.RFC3339

type Sweeper struct {
	store    storage.Store
	notifier service.Notifier
	interval time.Duration
	lookback time.Duration
	now      func() time.Time
}

func New(store storage.Store, notifier service.Notifier, interval, lookback time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	if lookback <= 0 {
		lookback = 24 * time.Hour
	}
	return &Sweeper{
		store:    store,
		notifier: notifier,
		interval: interval,
		lookback: lookback,
		now:      time.Now,
	}
}

// Run blocks until ctx is cancelled, executing both sweeps once per
// interval. One pass also runs immediately at startup.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	log.Printf("[SWEEP] started, interval=%s lookback=%s", s.interval, s.lookback)
	s.runOnce()
	for {
		select {
		case <-ticker.C:
			s.runOnce()
		case <-ctx.Done():
			log.Printf("[SWEEP] stopped")
			return
		}
	}
}

func (s *Sweeper) runOnce() {
	if err := s.RunReminderSweep(); err != nil {
		log.Printf("[SWEEP] reminder sweep: %v", err)
	}
	if err := s.RunExpirySweep(); err != nil {
		log.Printf("[SWEEP] expiry sweep: %v", err)
	}
}

// RunReminderSweep sends expiry reminders for subscriptions at exactly 7, 3
// or 1 whole days remaining. A per-threshold stamp in the subscription
// metadata keeps a second run within the same day from re-sending. Each row
// is re-read and stamped under a transaction holding its row lock, so a
// renewal landing mid-sweep is never overwritten with stale state.
func (s *Sweeper) RunReminderSweep() error {
	now := s.now()
	subs, err := s.store.SubscriptionsExpiringWithin(now, reminderThresholds[0])
	if err != nil {
		return err
	}
	sent := 0
	for i := range subs {
		subID := subs[i].ID
		err := s.store.Transaction(func(tx storage.Store) error {
			sub, err := tx.SubscriptionByID(subID)
			if err != nil {
				return err
			}
			if !sub.IsActive {
				return nil
			}
			// Recompute from the locked row: an extension since the list was
			// taken moves the end date out of the threshold.
			daysLeft := int(sub.EndDate.Sub(now).Hours() / 24)
			match := false
			for _, t := range reminderThresholds {
				if daysLeft == t {
					match = true
					break
				}
			}
			if !match {
				return nil
			}
			stampKey := stampKeyFor(daysLeft)
			if sub.MetaGet(stampKey) != "" {
				return nil
			}
			user, err := tx.UserByID(sub.UserID)
			if err != nil {
				log.Printf("[SWEEP] reminder: user %d for subscription %d: %v", sub.UserID, sub.ID, err)
				return nil
			}
			// Send while holding the row lock so the stamp cannot land on a
			// row a concurrent extension already rewrote. A failed send
			// leaves the stamp unset and retries next pass.
			if err := s.notifier.NotifyExpiryReminder(user.TelegramID, user.ID, daysLeft, sub.ID); err != nil {
				return nil
			}
			sub.MetaSet(stampKey, now.UTC().Format(stampFormat))
			if err := tx.SaveSubscription(sub); err != nil {
				return err
			}
			sent++
			log.Printf("[SWEEP] sent %d-day reminder for subscription %d (user %d)", daysLeft, sub.ID, sub.UserID)
			return nil
		})
		if err != nil {
			log.Printf("[SWEEP] reminder: subscription %d: %v", subID, err)
		}
	}
	if sent > 0 {
		log.Printf("[SWEEP] reminder sweep sent %d reminders", sent)
	}
	return nil
}

// RunExpirySweep deactivates and notifies subscriptions whose end date
// passed within the lookback window and that are still active. The bounded
// window means a scheduler down longer than the window leaves older stale
// rows for a manual backfill instead of mass-notifying ancient expirations.
// Deactivation re-reads the row under a transaction and skips it when a
// renewal got there first; the notification goes out after commit.
func (s *Sweeper) RunExpirySweep() error {
	now := s.now()
	subs, err := s.store.SubscriptionsJustExpired(now, s.lookback)
	if err != nil {
		return err
	}
	for i := range subs {
		subID := subs[i].ID
		var (
			deactivated bool
			telegramID  int64
			userID      uint
		)
		err := s.store.Transaction(func(tx storage.Store) error {
			sub, err := tx.SubscriptionByID(subID)
			if err != nil {
				return err
			}
			if !sub.IsActive || sub.EndDate.After(now) {
				// Renewed or already deactivated since the list was taken.
				return nil
			}
			user, err := tx.UserByID(sub.UserID)
			if err != nil {
				log.Printf("[SWEEP] expiry: user %d for subscription %d: %v", sub.UserID, sub.ID, err)
				return nil
			}
			sub.IsActive = false
			sub.MetaSet("deactivated_on", now.UTC().Format(stampFormat))
			sub.MetaSet("deactivated_reason", "expired")
			if err := tx.SaveSubscription(sub); err != nil {
				return err
			}
			deactivated = true
			telegramID = user.TelegramID
			userID = user.ID
			return nil
		})
		if err != nil {
			log.Printf("[SWEEP] expiry: subscription %d: %v", subID, err)
			continue
		}
		if deactivated {
			_ = s.notifier.NotifyExpired(telegramID, userID, subID)
			log.Printf("[SWEEP] deactivated expired subscription %d (user %d)", subID, userID)
		}
	}
	return nil
}

func stampKeyFor(daysLeft int) string {
	switch daysLeft {
	case 7:
		return "reminder_sent_7"
	case 3:
		return "reminder_sent_3"
	default:
		return "reminder_sent_1"
	}
}
