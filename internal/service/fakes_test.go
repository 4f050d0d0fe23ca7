package service

import (
	"context"
	"fmt"
	"sync"

	"jobly/pkg/razorpay"
)

// fakeGateway scripts gateway responses without any HTTP.
type fakeGateway struct {
	mu sync.Mutex

	orderStatus   string // status FetchOrder reports
	orderPayments []razorpay.OrderPayment
	createErr     error
	fetchErr      error

	ordersCreated int
	lastNotes     razorpay.Notes
}

func (g *fakeGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes razorpay.Notes) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return "", g.createErr
	}
	g.ordersCreated++
	g.lastNotes = notes
	return fmt.Sprintf("order_fake_%d", g.ordersCreated), nil
}

func (g *fakeGateway) CreatePaymentLink(ctx context.Context, req razorpay.PaymentLinkRequest) (*razorpay.PaymentLink, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	return &razorpay.PaymentLink{ID: "plink_fake", ShortURL: "https://rzp.io/l/fake", Status: "created"}, nil
}

func (g *fakeGateway) FetchOrder(ctx context.Context, orderID string) (*razorpay.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	status := g.orderStatus
	if status == "" {
		status = razorpay.OrderStatusCreated
	}
	return &razorpay.Order{ID: orderID, Status: status}, nil
}

func (g *fakeGateway) FetchOrderPayments(ctx context.Context, orderID string) ([]razorpay.OrderPayment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	return g.orderPayments, nil
}

// recordingNotifier counts calls per notification kind; safe for use from
// concurrent transitions.
type recordingNotifier struct {
	mu        sync.Mutex
	successes int
	failures  int
	reminders int
	expired   int
	refunds   int

	lastTelegramID int64
	lastPlanName   string
	lastDaysLeft   int
}

func (n *recordingNotifier) NotifyPaymentSuccess(telegramID int64, userID uint, subscriptionID uint, planName string, durationDays int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes++
	n.lastTelegramID = telegramID
	n.lastPlanName = planName
	return nil
}

func (n *recordingNotifier) NotifyPaymentFailure(telegramID int64, userID uint, orderID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures++
	return nil
}

func (n *recordingNotifier) NotifyExpiryReminder(telegramID int64, userID uint, daysLeft int, subscriptionID uint) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reminders++
	n.lastDaysLeft = daysLeft
	return nil
}

func (n *recordingNotifier) NotifyExpired(telegramID int64, userID uint, subscriptionID uint) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.expired++
	return nil
}

func (n *recordingNotifier) NotifyRefund(telegramID int64, userID uint, paymentID uint) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.refunds++
	return nil
}

func (n *recordingNotifier) successCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.successes
}
