package service

import (
	"testing"

	"jobly/internal/domain"
	"jobly/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanDefinitions(t *testing.T) {
	svc := NewPlanService(storage.NewMemoryStore())
	defs := svc.Definitions()
	require.Len(t, defs, 3)

	basic, ok := svc.Definition(domain.PlanBasic)
	require.True(t, ok)
	assert.Equal(t, int64(19900), basic.Price)
	assert.Equal(t, 7, basic.DurationDays)
	assert.Equal(t, "INR", basic.Currency)

	premium, ok := svc.Definition(domain.PlanPremium)
	require.True(t, ok)
	assert.Equal(t, int64(49900), premium.Price)
	assert.Equal(t, 30, premium.DurationDays)

	pro, ok := svc.Definition(domain.PlanProfessional)
	require.True(t, ok)
	assert.Equal(t, int64(99900), pro.Price)
	assert.Equal(t, 90, pro.DurationDays)

	_, ok = svc.Definition("gold")
	assert.False(t, ok)
}

func TestResolveCreatesPlanLazily(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := NewPlanService(store)

	first, err := svc.Resolve(domain.PlanBasic)
	require.NoError(t, err)
	assert.NotZero(t, first.ID)
	assert.Equal(t, "Basic", first.Name)

	// Second resolve reuses the persisted row.
	second, err := svc.Resolve(domain.PlanBasic)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestResolveUnknownPlan(t *testing.T) {
	svc := NewPlanService(storage.NewMemoryStore())
	_, err := svc.Resolve("gold")
	assert.ErrorIs(t, err, ErrUnknownPlan)
}
