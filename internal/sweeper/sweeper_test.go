package sweeper

import (
	"errors"
	"sync"
	"testing"
	"time"

	"jobly/internal/models"
	"jobly/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sweepNotifier struct {
	mu          sync.Mutex
	reminders   map[uint][]int // subscription id -> days-left values sent
	expired     []uint
	reminderErr error
}

func newSweepNotifier() *sweepNotifier {
	return &sweepNotifier{reminders: make(map[uint][]int)}
}

func (n *sweepNotifier) NotifyPaymentSuccess(telegramID int64, userID uint, subscriptionID uint, planName string, durationDays int) error {
	return nil
}

func (n *sweepNotifier) NotifyPaymentFailure(telegramID int64, userID uint, orderID string) error {
	return nil
}

func (n *sweepNotifier) NotifyExpiryReminder(telegramID int64, userID uint, daysLeft int, subscriptionID uint) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.reminderErr != nil {
		return n.reminderErr
	}
	n.reminders[subscriptionID] = append(n.reminders[subscriptionID], daysLeft)
	return nil
}

func (n *sweepNotifier) NotifyExpired(telegramID int64, userID uint, subscriptionID uint) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.expired = append(n.expired, subscriptionID)
	return nil
}

func (n *sweepNotifier) NotifyRefund(telegramID int64, userID uint, paymentID uint) error {
	return nil
}

func (n *sweepNotifier) remindersFor(subID uint) []int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]int(nil), n.reminders[subID]...)
}

func (n *sweepNotifier) expiredCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.expired)
}

var sweepNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func newSweepFixture(t *testing.T) (*storage.MemoryStore, *sweepNotifier, *Sweeper) {
	t.Helper()
	store := storage.NewMemoryStore()
	notifier := newSweepNotifier()
	sw := New(store, notifier, time.Hour, 24*time.Hour)
	sw.now = func() time.Time { return sweepNow }
	return store, notifier, sw
}

func addSub(t *testing.T, store *storage.MemoryStore, userID uint, endDate time.Time, active bool) *models.Subscription {
	t.Helper()
	store.AddUser(&models.User{ID: userID, TelegramID: int64(1000 + userID), IsActive: true})
	sub := &models.Subscription{
		UserID:    userID,
		PlanID:    1,
		StartDate: endDate.AddDate(0, 0, -30),
		EndDate:   endDate,
		IsActive:  active,
	}
	require.NoError(t, store.CreateSubscription(sub))
	return sub
}

func TestReminderSweepExactThresholds(t *testing.T) {
	store, notifier, sw := newSweepFixture(t)

	at7 := addSub(t, store, 1, sweepNow.Add(7*24*time.Hour), true)
	at3 := addSub(t, store, 2, sweepNow.Add(3*24*time.Hour), true)
	at1 := addSub(t, store, 3, sweepNow.Add(24*time.Hour), true)
	at5 := addSub(t, store, 4, sweepNow.Add(5*24*time.Hour), true)
	inactive := addSub(t, store, 5, sweepNow.Add(3*24*time.Hour), false)

	require.NoError(t, sw.RunReminderSweep())

	assert.Equal(t, []int{7}, notifier.remindersFor(at7.ID))
	assert.Equal(t, []int{3}, notifier.remindersFor(at3.ID))
	assert.Equal(t, []int{1}, notifier.remindersFor(at1.ID))
	assert.Empty(t, notifier.remindersFor(at5.ID))
	assert.Empty(t, notifier.remindersFor(inactive.ID))
}

func TestReminderSweepDoesNotDoubleSend(t *testing.T) {
	store, notifier, sw := newSweepFixture(t)
	sub := addSub(t, store, 1, sweepNow.Add(3*24*time.Hour), true)

	require.NoError(t, sw.RunReminderSweep())
	require.NoError(t, sw.RunReminderSweep())

	assert.Equal(t, []int{3}, notifier.remindersFor(sub.ID))

	got, err := store.SubscriptionByID(sub.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, got.MetaGet("reminder_sent_3"))
}

func TestReminderSweepRetriesAfterNotifyFailure(t *testing.T) {
	store, notifier, sw := newSweepFixture(t)
	sub := addSub(t, store, 1, sweepNow.Add(24*time.Hour), true)

	notifier.reminderErr = errors.New("telegram down")
	require.NoError(t, sw.RunReminderSweep())
	assert.Empty(t, notifier.remindersFor(sub.ID))

	// The stamp is only written after a successful send, so the next pass
	// retries.
	notifier.reminderErr = nil
	require.NoError(t, sw.RunReminderSweep())
	assert.Equal(t, []int{1}, notifier.remindersFor(sub.ID))
}

func TestReminderSweepWholeDayTruncation(t *testing.T) {
	store, notifier, sw := newSweepFixture(t)
	// 3 days 12 hours out truncates to 3 whole days, which is a threshold
	// hit at daily granularity.
	half := addSub(t, store, 1, sweepNow.Add(3*24*time.Hour+12*time.Hour), true)
	// 6 days out is not a threshold.
	six := addSub(t, store, 2, sweepNow.Add(6*24*time.Hour), true)

	require.NoError(t, sw.RunReminderSweep())
	assert.Equal(t, []int{3}, notifier.remindersFor(half.ID))
	assert.Empty(t, notifier.remindersFor(six.ID))
}

func TestExpirySweepDeactivatesOnce(t *testing.T) {
	store, notifier, sw := newSweepFixture(t)
	sub := addSub(t, store, 1, sweepNow.Add(-2*time.Hour), true)

	require.NoError(t, sw.RunExpirySweep())
	got, err := store.SubscriptionByID(sub.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Equal(t, "expired", got.MetaGet("deactivated_reason"))
	assert.Equal(t, 1, notifier.expiredCount())

	// Second pass: no longer active, nothing to notify.
	require.NoError(t, sw.RunExpirySweep())
	assert.Equal(t, 1, notifier.expiredCount())
}

func TestExpirySweepHonorsLookbackWindow(t *testing.T) {
	store, notifier, sw := newSweepFixture(t)
	recent := addSub(t, store, 1, sweepNow.Add(-6*time.Hour), true)
	// Expired long before the lookback window: left for manual backfill, not
	// mass-notified.
	stale := addSub(t, store, 2, sweepNow.AddDate(0, 0, -40), true)

	require.NoError(t, sw.RunExpirySweep())

	got, err := store.SubscriptionByID(recent.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	untouched, err := store.SubscriptionByID(stale.ID)
	require.NoError(t, err)
	assert.True(t, untouched.IsActive)
	assert.Equal(t, 1, notifier.expiredCount())
}

// renewingStore injects a renewal between the sweep's candidate listing and
// its per-row transaction, the window where a stale write-back would clobber
// the freshly paid subscription.
type renewingStore struct {
	*storage.MemoryStore
	renew func()
	once  sync.Once
}

func (s *renewingStore) SubscriptionsJustExpired(now time.Time, lookback time.Duration) ([]models.Subscription, error) {
	subs, err := s.MemoryStore.SubscriptionsJustExpired(now, lookback)
	s.once.Do(s.renew)
	return subs, err
}

func (s *renewingStore) SubscriptionsExpiringWithin(now time.Time, days int) ([]models.Subscription, error) {
	subs, err := s.MemoryStore.SubscriptionsExpiringWithin(now, days)
	s.once.Do(s.renew)
	return subs, err
}

func TestExpirySweepSkipsConcurrentlyRenewed(t *testing.T) {
	mem := storage.NewMemoryStore()
	notifier := newSweepNotifier()
	sub := addSub(t, mem, 1, sweepNow.Add(-2*time.Hour), true)

	renewedEnd := sweepNow.AddDate(0, 0, 30)
	store := &renewingStore{MemoryStore: mem, renew: func() {
		cur, err := mem.SubscriptionByID(sub.ID)
		require.NoError(t, err)
		cur.EndDate = renewedEnd
		cur.IsActive = true
		require.NoError(t, mem.SaveSubscription(cur))
	}}
	sw := New(store, notifier, time.Hour, 24*time.Hour)
	sw.now = func() time.Time { return sweepNow }

	require.NoError(t, sw.RunExpirySweep())

	got, err := mem.SubscriptionByID(sub.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive, "renewed subscription must survive the sweep")
	assert.Equal(t, renewedEnd, got.EndDate)
	assert.Equal(t, 0, notifier.expiredCount())
	assert.Empty(t, got.MetaGet("deactivated_reason"))
}

func TestReminderSweepSkipsConcurrentlyExtended(t *testing.T) {
	mem := storage.NewMemoryStore()
	notifier := newSweepNotifier()
	sub := addSub(t, mem, 1, sweepNow.Add(3*24*time.Hour), true)

	extendedEnd := sweepNow.AddDate(0, 0, 33)
	store := &renewingStore{MemoryStore: mem, renew: func() {
		cur, err := mem.SubscriptionByID(sub.ID)
		require.NoError(t, err)
		cur.EndDate = extendedEnd
		require.NoError(t, mem.SaveSubscription(cur))
	}}
	sw := New(store, notifier, time.Hour, 24*time.Hour)
	sw.now = func() time.Time { return sweepNow }

	require.NoError(t, sw.RunReminderSweep())

	// The extension moved the row out of every threshold: no reminder, no
	// stamp, and the new end date intact.
	assert.Empty(t, notifier.remindersFor(sub.ID))
	got, err := mem.SubscriptionByID(sub.ID)
	require.NoError(t, err)
	assert.Equal(t, extendedEnd, got.EndDate)
	assert.Empty(t, got.MetaGet("reminder_sent_3"))
}

func TestExpirySweepIgnoresStillActive(t *testing.T) {
	store, notifier, sw := newSweepFixture(t)
	future := addSub(t, store, 1, sweepNow.Add(5*24*time.Hour), true)

	require.NoError(t, sw.RunExpirySweep())
	got, err := store.SubscriptionByID(future.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
	assert.Equal(t, 0, notifier.expiredCount())
}
