package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"jobly/internal/domain"
	"jobly/internal/models"
	"jobly/internal/storage"
	"jobly/pkg/razorpay"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrOrderNotFound = errors.New("order not found")

// Checkout is what the bot hands the user after order creation.
type Checkout struct {
	OrderID string
	PayURL  string
	Amount  int64
	PlanDef PlanDef
}

// CheckResult is the outcome of a user-initiated "I've paid" poll.
type CheckResult struct {
	Paid         bool
	Subscription *models.Subscription
}

// ReconService converges externally-reported payment outcomes with internal
// subscription state exactly once per order. Webhook, browser callback and
// user poll all funnel into the same transition functions; the payment row
// lock inside the transaction is what makes concurrent delivery safe.
type ReconService struct {
	store       storage.Store
	gateway     razorpay.Gateway
	plans       *PlanService
	subs        *SubscriptionService
	notifier    Notifier
	callbackURL string // full callback URL registered with payment links
	now         func() time.Time
}

func NewReconService(store storage.Store, gateway razorpay.Gateway, plans *PlanService, subs *SubscriptionService, notifier Notifier, callbackURL string) *ReconService {
	return &ReconService{
		store:       store,
		gateway:     gateway,
		plans:       plans,
		subs:        subs,
		notifier:    notifier,
		callbackURL: callbackURL,
		now:         time.Now,
	}
}

// CreateCheckout creates a gateway order plus payable link for a plan and
// records the payment row in status created. The notes attached to the order
// are the only context the stateless webhook will echo back.
func (s *ReconService) CreateCheckout(ctx context.Context, user *models.User, planKey, email string) (*Checkout, error) {
	def, ok := s.plans.Definition(planKey)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlan, planKey)
	}
	notes := razorpay.Notes{
		UserID:     user.ID,
		PlanType:   planKey,
		TelegramID: user.TelegramID,
		Email:      email,
	}
	// Razorpay caps receipts at 40 chars; a short uuid keeps them unique
	// even for two checkouts by the same user in the same second.
	receipt := fmt.Sprintf("rcpt_%d_%.13s", user.ID, uuid.NewString())
	orderID, err := s.gateway.CreateOrder(ctx, def.Price, def.Currency, receipt, notes)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	notesJSON, _ := json.Marshal(notes.ToMap())
	payment := &models.Payment{
		UserID:   user.ID,
		Amount:   def.Price,
		Currency: def.Currency,
		OrderID:  orderID,
		Status:   domain.PaymentStatusCreated,
		Notes:    string(notesJSON),
	}
	if err := s.store.CreatePayment(payment); err != nil {
		return nil, fmt.Errorf("record payment: %w", err)
	}

	contact := user.Phone
	if contact == "" {
		contact = "+910000000000"
	}
	link, err := s.gateway.CreatePaymentLink(ctx, razorpay.PaymentLinkRequest{
		Amount:      def.Price,
		Currency:    def.Currency,
		Description: fmt.Sprintf("%s Subscription - Job Updates Bot", def.Name),
		Customer: razorpay.Customer{
			Name:    user.DisplayName(),
			Email:   email,
			Contact: contact,
		},
		Notes:       notes,
		CallbackURL: fmt.Sprintf("%s?order_id=%s", s.callbackURL, orderID),
	})
	if err != nil {
		return nil, fmt.Errorf("create payment link: %w", err)
	}
	log.Printf("[RECON] checkout created user=%d plan=%s order=%s", user.ID, planKey, orderID)
	return &Checkout{OrderID: orderID, PayURL: link.ShortURL, Amount: def.Price, PlanDef: def}, nil
}

// ApplyPaymentSuccess is the idempotent capture transition. Calling it N
// times for the same order produces exactly one captured payment and one
// subscription activation; every later call is a no-op. The whole step runs
// in one transaction holding a row lock on the payment, so a webhook racing
// a browser callback for the same order serializes here.
func (s *ReconService) ApplyPaymentSuccess(orderID, paymentID string) error {
	var (
		captured bool
		notes    razorpay.Notes
		subID    uint
		userID   uint
		planName string
		planDays int
	)
	err := s.store.Transaction(func(tx storage.Store) error {
		p, err := tx.PaymentByOrderID(orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
			}
			return err
		}
		switch p.Status {
		case domain.PaymentStatusCaptured, domain.PaymentStatusRefunded:
			// Duplicate webhook delivery or webhook/poll race: nothing to do.
			return nil
		}

		notes, err = s.paymentNotes(p)
		if err != nil {
			// Leave the row as-is for manual review: the money did move at
			// the gateway, failing the order would be wrong.
			return fmt.Errorf("order %s: %w", orderID, err)
		}
		plan, err := s.plans.ResolveTx(tx, notes.PlanType)
		if err != nil {
			return fmt.Errorf("order %s: %w", orderID, err)
		}

		sub, extended, err := s.subs.CreateOrExtendTx(tx, p.UserID, plan, 0, map[string]string{
			"source":   "telegram_bot",
			"order_id": orderID,
		})
		if err != nil {
			return err
		}

		now := s.now()
		p.Status = domain.PaymentStatusCaptured
		p.PaymentID = paymentID
		p.SubscriptionID = &sub.ID
		p.CapturedAt = &now
		if err := tx.SavePayment(p); err != nil {
			return err
		}

		captured = true
		subID = sub.ID
		userID = p.UserID
		planName = plan.Name
		planDays = plan.DurationDays
		if extended {
			log.Printf("[RECON] order %s captured, extended subscription %d by %d days", orderID, sub.ID, plan.DurationDays)
		} else {
			log.Printf("[RECON] order %s captured, created subscription %d", orderID, sub.ID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if captured {
		_ = s.notifier.NotifyPaymentSuccess(notes.TelegramID, userID, subID, planName, planDays)
	}
	return nil
}

// ApplyPaymentFailure marks the order failed. No-op when the order already
// reached a terminal state.
func (s *ReconService) ApplyPaymentFailure(orderID, paymentID string) error {
	var (
		failed bool
		notes  razorpay.Notes
		userID uint
	)
	err := s.store.Transaction(func(tx storage.Store) error {
		p, err := tx.PaymentByOrderID(orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
			}
			return err
		}
		if domain.PaymentStatusTerminal(p.Status) {
			return nil
		}
		p.Status = domain.PaymentStatusFailed
		p.PaymentID = paymentID
		if err := tx.SavePayment(p); err != nil {
			return err
		}
		failed = true
		userID = p.UserID
		notes, _ = s.paymentNotes(p)
		log.Printf("[RECON] order %s marked failed (payment %s)", orderID, paymentID)
		return nil
	})
	if err != nil {
		return err
	}
	if failed {
		_ = s.notifier.NotifyPaymentFailure(notes.TelegramID, userID, orderID)
	}
	return nil
}

// ApplyRefund marks the payment refunded and deactivates the linked
// subscription. Idempotent on refunded.
func (s *ReconService) ApplyRefund(orderID, paymentID string) error {
	var (
		refunded  bool
		notes     razorpay.Notes
		userID    uint
		paymentPK uint
	)
	err := s.store.Transaction(func(tx storage.Store) error {
		p, err := tx.PaymentByOrderID(orderID)
		if errors.Is(err, gorm.ErrRecordNotFound) && paymentID != "" {
			p, err = tx.PaymentByGatewayPaymentID(paymentID)
		}
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
			}
			return err
		}
		if p.Status == domain.PaymentStatusRefunded {
			return nil
		}
		p.Status = domain.PaymentStatusRefunded
		if err := tx.SavePayment(p); err != nil {
			return err
		}
		if p.SubscriptionID != nil {
			sub, err := tx.SubscriptionByID(*p.SubscriptionID)
			if err == nil && sub.IsActive {
				sub.IsActive = false
				sub.MetaSet("deactivated_reason", "refund")
				sub.MetaSet("deactivated_on", s.now().UTC().Format(time.RFC3339))
				if err := tx.SaveSubscription(sub); err != nil {
					return err
				}
			}
		}
		refunded = true
		userID = p.UserID
		paymentPK = p.ID
		notes, _ = s.paymentNotes(p)
		log.Printf("[RECON] order %s refunded", p.OrderID)
		return nil
	})
	if err != nil {
		return err
	}
	if refunded {
		_ = s.notifier.NotifyRefund(notes.TelegramID, userID, paymentPK)
	}
	return nil
}

// CheckOrder is the pull path behind the bot's "I've paid" button. A gateway
// outage comes back as razorpay.ErrGatewayUnavailable, never as "not paid".
func (s *ReconService) CheckOrder(ctx context.Context, orderID string) (*CheckResult, error) {
	order, err := s.gateway.FetchOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("fetch order %s: %w", orderID, err)
	}
	if order.Status != razorpay.OrderStatusPaid {
		log.Printf("[RECON] order %s not paid yet, status=%s", orderID, order.Status)
		return &CheckResult{Paid: false}, nil
	}

	// Best effort: the order fetch does not carry the payment id.
	var paymentID string
	if payments, err := s.gateway.FetchOrderPayments(ctx, orderID); err == nil {
		for _, op := range payments {
			if op.Status == "captured" || op.Status == "authorized" {
				paymentID = op.ID
				break
			}
		}
	}

	if err := s.ApplyPaymentSuccess(orderID, paymentID); err != nil {
		return nil, err
	}
	p, err := s.store.PaymentByOrderID(orderID)
	if err != nil {
		return nil, err
	}
	res := &CheckResult{Paid: true}
	if p.SubscriptionID != nil {
		if sub, err := s.store.SubscriptionByID(*p.SubscriptionID); err == nil {
			res.Subscription = sub
		}
	}
	return res, nil
}

func (s *ReconService) paymentNotes(p *models.Payment) (razorpay.Notes, error) {
	var m map[string]string
	if p.Notes != "" {
		if err := json.Unmarshal([]byte(p.Notes), &m); err != nil {
			return razorpay.Notes{}, fmt.Errorf("decode notes: %w", err)
		}
	}
	return razorpay.NotesFromMap(m)
}
