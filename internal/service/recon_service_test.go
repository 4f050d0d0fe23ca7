package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"jobly/internal/domain"
	"jobly/internal/models"
	"jobly/internal/storage"
	"jobly/pkg/razorpay"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reconFixture struct {
	store    *storage.MemoryStore
	gateway  *fakeGateway
	notifier *recordingNotifier
	plans    *PlanService
	subs     *SubscriptionService
	recon    *ReconService
	user     *models.User
}

func newReconFixture(t *testing.T) *reconFixture {
	t.Helper()
	store := storage.NewMemoryStore()
	user := store.AddUser(&models.User{TelegramID: 1001, FirstName: "Asha", IsActive: true})
	gateway := &fakeGateway{}
	notifier := &recordingNotifier{}
	plans := NewPlanService(store)
	subs := NewSubscriptionService(store)
	recon := NewReconService(store, gateway, plans, subs, notifier, "https://example.com/api/v1/payments/callback")
	return &reconFixture{store: store, gateway: gateway, notifier: notifier, plans: plans, subs: subs, recon: recon, user: user}
}

func (f *reconFixture) checkout(t *testing.T, planKey string) *Checkout {
	t.Helper()
	c, err := f.recon.CreateCheckout(context.Background(), f.user, planKey, "asha@example.com")
	require.NoError(t, err)
	return c
}

func TestCreateCheckout(t *testing.T) {
	f := newReconFixture(t)
	c := f.checkout(t, domain.PlanBasic)

	assert.NotEmpty(t, c.OrderID)
	assert.Equal(t, "https://rzp.io/l/fake", c.PayURL)
	assert.Equal(t, int64(19900), c.Amount)
	assert.Equal(t, 7, c.PlanDef.DurationDays)

	p, err := f.store.PaymentByOrderID(c.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCreated, p.Status)
	assert.Equal(t, int64(19900), p.Amount)
	assert.Equal(t, f.user.ID, p.UserID)
	assert.Nil(t, p.SubscriptionID)

	// The notes on the order carry everything the webhook needs to echo back.
	assert.Equal(t, f.user.ID, f.gateway.lastNotes.UserID)
	assert.Equal(t, domain.PlanBasic, f.gateway.lastNotes.PlanType)
	assert.Equal(t, int64(1001), f.gateway.lastNotes.TelegramID)
}

func TestCreateCheckoutUnknownPlan(t *testing.T) {
	f := newReconFixture(t)
	_, err := f.recon.CreateCheckout(context.Background(), f.user, "gold", "asha@example.com")
	assert.ErrorIs(t, err, ErrUnknownPlan)
}

func TestCreateCheckoutGatewayDown(t *testing.T) {
	f := newReconFixture(t)
	f.gateway.createErr = razorpay.ErrGatewayUnavailable
	_, err := f.recon.CreateCheckout(context.Background(), f.user, domain.PlanBasic, "asha@example.com")
	assert.ErrorIs(t, err, razorpay.ErrGatewayUnavailable)
}

func TestApplyPaymentSuccessIdempotent(t *testing.T) {
	f := newReconFixture(t)
	c := f.checkout(t, domain.PlanBasic)

	for i := 0; i < 5; i++ {
		require.NoError(t, f.recon.ApplyPaymentSuccess(c.OrderID, "pay_1"))
	}

	p, err := f.store.PaymentByOrderID(c.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCaptured, p.Status)
	assert.Equal(t, "pay_1", p.PaymentID)
	require.NotNil(t, p.SubscriptionID)
	require.NotNil(t, p.CapturedAt)

	assert.Equal(t, 1, f.store.SubscriptionCount())
	assert.Equal(t, 1, f.notifier.successCount())

	sub, err := f.store.SubscriptionByID(*p.SubscriptionID)
	require.NoError(t, err)
	assert.True(t, sub.IsActive)
	assert.Equal(t, sub.StartDate.AddDate(0, 0, 7), sub.EndDate)
}

func TestApplyPaymentSuccessConcurrent(t *testing.T) {
	f := newReconFixture(t)
	c := f.checkout(t, domain.PlanPremium)

	// Webhook, browser callback and user poll can all report the same order
	// at once; exactly one of them may activate.
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.recon.ApplyPaymentSuccess(c.OrderID, "pay_1")
		}()
	}
	wg.Wait()

	p, err := f.store.PaymentByOrderID(c.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCaptured, p.Status)
	assert.Equal(t, 1, f.store.SubscriptionCount())
	assert.Equal(t, 1, f.notifier.successCount())

	sub, err := f.subs.CurrentFor(f.user.ID)
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, sub.StartDate.AddDate(0, 0, 30), sub.EndDate)
}

func TestApplyPaymentSuccessUnknownOrder(t *testing.T) {
	f := newReconFixture(t)
	err := f.recon.ApplyPaymentSuccess("order_nope", "pay_1")
	assert.ErrorIs(t, err, ErrOrderNotFound)
	assert.Equal(t, 0, f.store.SubscriptionCount())
}

func TestApplyPaymentSuccessBadNotes(t *testing.T) {
	f := newReconFixture(t)
	p := &models.Payment{
		UserID:   f.user.ID,
		Amount:   19900,
		Currency: "INR",
		OrderID:  "order_corrupt",
		Status:   domain.PaymentStatusCreated,
		Notes:    `{"plan_type":"basic"}`, // no user_id
	}
	require.NoError(t, f.store.CreatePayment(p))

	err := f.recon.ApplyPaymentSuccess("order_corrupt", "pay_1")
	assert.ErrorIs(t, err, razorpay.ErrBadNotes)

	// Money moved at the gateway but we cannot attribute it: the row stays
	// untouched for manual review instead of being marked failed.
	got, err := f.store.PaymentByOrderID("order_corrupt")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCreated, got.Status)
	assert.Equal(t, 0, f.store.SubscriptionCount())
	assert.Equal(t, 0, f.notifier.successCount())
}

func TestApplyPaymentFailure(t *testing.T) {
	f := newReconFixture(t)
	c := f.checkout(t, domain.PlanBasic)

	require.NoError(t, f.recon.ApplyPaymentFailure(c.OrderID, "pay_1"))
	p, err := f.store.PaymentByOrderID(c.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusFailed, p.Status)
	assert.Equal(t, 1, f.notifier.failures)

	// Duplicate failure webhook: no second notification.
	require.NoError(t, f.recon.ApplyPaymentFailure(c.OrderID, "pay_1"))
	assert.Equal(t, 1, f.notifier.failures)
}

func TestApplyPaymentSuccessAfterFailure(t *testing.T) {
	f := newReconFixture(t)
	c := f.checkout(t, domain.PlanBasic)

	// First attempt failed, user retried on the same payment link and the
	// retry succeeded. The captured event must win.
	require.NoError(t, f.recon.ApplyPaymentFailure(c.OrderID, "pay_1"))
	require.NoError(t, f.recon.ApplyPaymentSuccess(c.OrderID, "pay_2"))

	p, err := f.store.PaymentByOrderID(c.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCaptured, p.Status)
	assert.Equal(t, "pay_2", p.PaymentID)
	assert.Equal(t, 1, f.store.SubscriptionCount())
}

func TestApplyPaymentFailureAfterCaptureIsNoop(t *testing.T) {
	f := newReconFixture(t)
	c := f.checkout(t, domain.PlanBasic)

	require.NoError(t, f.recon.ApplyPaymentSuccess(c.OrderID, "pay_1"))
	require.NoError(t, f.recon.ApplyPaymentFailure(c.OrderID, "pay_1"))

	p, err := f.store.PaymentByOrderID(c.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCaptured, p.Status)
	assert.Equal(t, 0, f.notifier.failures)
}

func TestApplyRefund(t *testing.T) {
	f := newReconFixture(t)
	c := f.checkout(t, domain.PlanBasic)
	require.NoError(t, f.recon.ApplyPaymentSuccess(c.OrderID, "pay_1"))

	require.NoError(t, f.recon.ApplyRefund(c.OrderID, "pay_1"))

	p, err := f.store.PaymentByOrderID(c.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusRefunded, p.Status)
	require.NotNil(t, p.SubscriptionID)

	sub, err := f.store.SubscriptionByID(*p.SubscriptionID)
	require.NoError(t, err)
	assert.False(t, sub.IsActive)
	assert.Equal(t, "refund", sub.MetaGet("deactivated_reason"))
	assert.Equal(t, 1, f.notifier.refunds)

	// Duplicate refund webhook.
	require.NoError(t, f.recon.ApplyRefund(c.OrderID, "pay_1"))
	assert.Equal(t, 1, f.notifier.refunds)
}

func TestApplyRefundByPaymentIDFallback(t *testing.T) {
	f := newReconFixture(t)
	c := f.checkout(t, domain.PlanBasic)
	require.NoError(t, f.recon.ApplyPaymentSuccess(c.OrderID, "pay_1"))

	// refund.created events carry the payment id, not always the order id.
	require.NoError(t, f.recon.ApplyRefund("", "pay_1"))
	p, err := f.store.PaymentByOrderID(c.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusRefunded, p.Status)
}

func TestCheckOrderNotPaid(t *testing.T) {
	f := newReconFixture(t)
	c := f.checkout(t, domain.PlanBasic)
	f.gateway.orderStatus = razorpay.OrderStatusAttempted

	res, err := f.recon.CheckOrder(context.Background(), c.OrderID)
	require.NoError(t, err)
	assert.False(t, res.Paid)
	assert.Nil(t, res.Subscription)

	p, err := f.store.PaymentByOrderID(c.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCreated, p.Status)
}

func TestCheckOrderPaid(t *testing.T) {
	f := newReconFixture(t)
	c := f.checkout(t, domain.PlanProfessional)
	f.gateway.orderStatus = razorpay.OrderStatusPaid
	f.gateway.orderPayments = []razorpay.OrderPayment{{ID: "pay_9", Status: "captured", Method: "upi"}}

	res, err := f.recon.CheckOrder(context.Background(), c.OrderID)
	require.NoError(t, err)
	assert.True(t, res.Paid)
	require.NotNil(t, res.Subscription)
	assert.Equal(t, res.Subscription.StartDate.AddDate(0, 0, 90), res.Subscription.EndDate)

	p, err := f.store.PaymentByOrderID(c.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCaptured, p.Status)
	assert.Equal(t, "pay_9", p.PaymentID)
	assert.Equal(t, 1, f.notifier.successCount())
}

func TestCheckOrderPollAfterWebhook(t *testing.T) {
	f := newReconFixture(t)
	c := f.checkout(t, domain.PlanBasic)
	f.gateway.orderStatus = razorpay.OrderStatusPaid

	// Webhook landed first; the user's "I've paid" poll must see the result
	// without creating anything new.
	require.NoError(t, f.recon.ApplyPaymentSuccess(c.OrderID, "pay_1"))
	res, err := f.recon.CheckOrder(context.Background(), c.OrderID)
	require.NoError(t, err)
	assert.True(t, res.Paid)
	assert.Equal(t, 1, f.store.SubscriptionCount())
	assert.Equal(t, 1, f.notifier.successCount())
}

func TestCheckOrderGatewayDown(t *testing.T) {
	f := newReconFixture(t)
	c := f.checkout(t, domain.PlanBasic)
	f.gateway.fetchErr = razorpay.ErrGatewayUnavailable

	// An unreachable gateway must never read as "not paid".
	_, err := f.recon.CheckOrder(context.Background(), c.OrderID)
	assert.ErrorIs(t, err, razorpay.ErrGatewayUnavailable)

	p, err := f.store.PaymentByOrderID(c.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCreated, p.Status)
}

func TestRenewalExtendsExistingSubscription(t *testing.T) {
	f := newReconFixture(t)

	first := f.checkout(t, domain.PlanBasic)
	require.NoError(t, f.recon.ApplyPaymentSuccess(first.OrderID, "pay_1"))

	second := f.checkout(t, domain.PlanPremium)
	require.NoError(t, f.recon.ApplyPaymentSuccess(second.OrderID, "pay_2"))

	assert.Equal(t, 1, f.store.SubscriptionCount())
	sub, err := f.subs.CurrentFor(f.user.ID)
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, sub.StartDate.AddDate(0, 0, 7).AddDate(0, 0, 30), sub.EndDate)
	assert.Equal(t, 2, f.notifier.successCount())
}

func TestCapturedAtIsSet(t *testing.T) {
	f := newReconFixture(t)
	c := f.checkout(t, domain.PlanBasic)
	before := time.Now()
	require.NoError(t, f.recon.ApplyPaymentSuccess(c.OrderID, "pay_1"))

	p, err := f.store.PaymentByOrderID(c.OrderID)
	require.NoError(t, err)
	require.NotNil(t, p.CapturedAt)
	assert.False(t, p.CapturedAt.Before(before))
}
