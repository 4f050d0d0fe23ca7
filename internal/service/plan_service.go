package service

import (
	"errors"
	"fmt"

	"jobly/internal/domain"
	"jobly/internal/models"
	"jobly/internal/storage"

	"gorm.io/gorm"
)

var ErrUnknownPlan = errors.New("unknown subscription plan")

// PlanDef is a code-level plan definition. The persisted catalog row is
// created lazily from it on first use, so a fresh database and the plan
// constants can never race at startup.
type PlanDef struct {
	Key          string
	Name         string
	Description  string
	Price        int64 // paise
	Currency     string
	DurationDays int
	Features     string // JSON
}

var planDefs = []PlanDef{
	{
		Key:          domain.PlanBasic,
		Name:         "Basic",
		Description:  "7-day subscription with 2 daily job updates and basic resume assistance",
		Price:        19900,
		Currency:     "INR",
		DurationDays: 7,
		Features:     `{"daily_updates":2,"resume_customization":"basic"}`,
	},
	{
		Key:          domain.PlanPremium,
		Name:         "Premium",
		Description:  "30-day subscription with priority job updates and advanced resume customization",
		Price:        49900,
		Currency:     "INR",
		DurationDays: 30,
		Features:     `{"daily_updates":2,"resume_customization":"advanced","priority_updates":true}`,
	},
	{
		Key:          domain.PlanProfessional,
		Name:         "Professional",
		Description:  "90-day subscription with premium job updates, unlimited resume customization, and interview prep",
		Price:        99900,
		Currency:     "INR",
		DurationDays: 90,
		Features:     `{"daily_updates":2,"resume_customization":"unlimited","priority_updates":true,"interview_prep":true}`,
	},
}

type PlanService struct {
	store storage.Store
}

func NewPlanService(store storage.Store) *PlanService {
	return &PlanService{store: store}
}

// Definitions returns the static catalog ordered by price.
func (s *PlanService) Definitions() []PlanDef {
	return planDefs
}

// Definition looks up a plan key in the static table.
func (s *PlanService) Definition(key string) (PlanDef, bool) {
	for _, def := range planDefs {
		if def.Key == key {
			return def, true
		}
	}
	return PlanDef{}, false
}

// Resolve returns the persisted plan for a key, creating it from the static
// definition on first use. An unknown key is a configuration error, not a
// recoverable condition.
func (s *PlanService) Resolve(key string) (*models.Plan, error) {
	return s.ResolveTx(s.store, key)
}

// ResolveTx is Resolve against a transaction-bound store; the reconciliation
// engine uses it so lazy plan creation commits or rolls back with the
// capture itself.
func (s *PlanService) ResolveTx(tx storage.Store, key string) (*models.Plan, error) {
	def, ok := s.Definition(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlan, key)
	}
	plan, err := tx.PlanByName(def.Name)
	if err == nil {
		return plan, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	plan = &models.Plan{
		Name:         def.Name,
		Description:  def.Description,
		Price:        def.Price,
		Currency:     def.Currency,
		DurationDays: def.DurationDays,
		Features:     def.Features,
		IsActive:     true,
	}
	if err := tx.CreatePlan(plan); err != nil {
		return nil, fmt.Errorf("create plan %q: %w", def.Name, err)
	}
	return plan, nil
}
