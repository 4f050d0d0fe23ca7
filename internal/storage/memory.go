package storage

import (
	"sync"
	"time"

	"jobly/internal/models"

	"gorm.io/gorm"
)

// MemoryStore is an in-memory Store for tests. Transaction holds a single
// mutex for the duration of the callback and rolls the data back on error,
// which mirrors the serialization the gorm implementation gets from its row
// locks.
type MemoryStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	payments      map[uint]*models.Payment
	plans         map[uint]*models.Plan
	subscriptions map[uint]*models.Subscription
	users         map[uint]*models.User
	nextID        uint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		payments:      make(map[uint]*models.Payment),
		plans:         make(map[uint]*models.Plan),
		subscriptions: make(map[uint]*models.Subscription),
		users:         make(map[uint]*models.User),
		nextID:        1,
	}
}

func (s *MemoryStore) Transaction(fn func(tx Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	snapshot := s.clone()
	if err := fn(s); err != nil {
		s.restore(snapshot)
		return err
	}
	return nil
}

func (s *MemoryStore) clone() *MemoryStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := NewMemoryStore()
	c.nextID = s.nextID
	for id, p := range s.payments {
		cp := *p
		c.payments[id] = &cp
	}
	for id, p := range s.plans {
		cp := *p
		c.plans[id] = &cp
	}
	for id, sub := range s.subscriptions {
		cp := *sub
		c.subscriptions[id] = &cp
	}
	for id, u := range s.users {
		cp := *u
		c.users[id] = &cp
	}
	return c
}

func (s *MemoryStore) restore(from *MemoryStore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments = from.payments
	s.plans = from.plans
	s.subscriptions = from.subscriptions
	s.users = from.users
	s.nextID = from.nextID
}

func (s *MemoryStore) allocID() uint {
	id := s.nextID
	s.nextID++
	return id
}

func (s *MemoryStore) PaymentByOrderID(orderID string) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.payments {
		if p.OrderID == orderID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *MemoryStore) PaymentByGatewayPaymentID(paymentID string) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if paymentID == "" {
		return nil, gorm.ErrRecordNotFound
	}
	for _, p := range s.payments {
		if p.PaymentID == paymentID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *MemoryStore) CreatePayment(p *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.allocID()
	p.CreatedAt = time.Now()
	cp := *p
	s.payments[p.ID] = &cp
	return nil
}

func (s *MemoryStore) SavePayment(p *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.payments[p.ID] = &cp
	return nil
}

func (s *MemoryStore) PlanByName(name string) (*models.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.plans {
		if p.Name == name {
			cp := *p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *MemoryStore) CreatePlan(p *models.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.allocID()
	cp := *p
	s.plans[p.ID] = &cp
	return nil
}

func (s *MemoryStore) SubscriptionByID(id uint) (*models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subscriptions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *sub
	if plan, ok := s.plans[cp.PlanID]; ok {
		cp.Plan = *plan
	}
	return &cp, nil
}

func (s *MemoryStore) CreateSubscription(sub *models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub.ID = s.allocID()
	sub.CreatedAt = time.Now()
	cp := *sub
	s.subscriptions[sub.ID] = &cp
	return nil
}

func (s *MemoryStore) SaveSubscription(sub *models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sub
	s.subscriptions[sub.ID] = &cp
	return nil
}

func (s *MemoryStore) CurrentSubscription(userID uint, now time.Time) (*models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *models.Subscription
	for _, sub := range s.subscriptions {
		if sub.UserID != userID || !sub.IsActive || !sub.EndDate.After(now) {
			continue
		}
		if best == nil || sub.EndDate.After(best.EndDate) {
			best = sub
		}
	}
	if best == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *best
	if plan, ok := s.plans[cp.PlanID]; ok {
		cp.Plan = *plan
	}
	return &cp, nil
}

func (s *MemoryStore) SubscriptionsExpiringWithin(now time.Time, days int) ([]models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	limit := now.AddDate(0, 0, days)
	var out []models.Subscription
	for _, sub := range s.subscriptions {
		if !sub.IsActive || !sub.EndDate.After(now) || sub.EndDate.After(limit) {
			continue
		}
		cp := *sub
		if plan, ok := s.plans[cp.PlanID]; ok {
			cp.Plan = *plan
		}
		out = append(out, cp)
	}
	return out, nil
}

func (s *MemoryStore) SubscriptionsJustExpired(now time.Time, lookback time.Duration) ([]models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	floor := now.Add(-lookback)
	var out []models.Subscription
	for _, sub := range s.subscriptions {
		if !sub.IsActive || sub.EndDate.After(now) || sub.EndDate.Before(floor) {
			continue
		}
		cp := *sub
		if plan, ok := s.plans[cp.PlanID]; ok {
			cp.Plan = *plan
		}
		out = append(out, cp)
	}
	return out, nil
}

func (s *MemoryStore) UserByID(id uint) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

// SubscriptionCount reports the number of subscription rows. Test helper.
func (s *MemoryStore) SubscriptionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscriptions)
}

// AddUser seeds a user row. Not part of the Store interface; test setup
// only.
func (s *MemoryStore) AddUser(u *models.User) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.allocID()
	}
	cp := *u
	s.users[u.ID] = &cp
	return u
}
