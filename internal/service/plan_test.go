package service

import (
	"testing"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/meterline/meterline/internal/api/dto"
	"github.com/meterline/meterline/internal/domain/plan"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/testutil"
	"github.com/meterline/meterline/internal/types"
)

type PlanServiceSuite struct {
	testutil.BaseServiceTestSuite
	service PlanService
}

func TestPlanService(t *testing.T) {
	suite.Run(t, new(PlanServiceSuite))
}

func (s *PlanServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewPlanService(ServiceParams{
		Logger:   s.GetLogger(),
		Config:   s.GetConfig(),
		DB:       s.GetDB(),
		PlanRepo: s.GetStores().PlanRepo,
		Locker:   s.GetLocker(),
		Alerts:   s.GetAlerts(),
	})
}

func (s *PlanServiceSuite) TestCreatePlan() {
	resp, err := s.service.CreatePlan(s.GetContext(), dto.CreatePlanRequest{
		Name:           "Starter",
		Currency:       "USD",
		BasePriceCents: decimal.NewFromInt(9_900),
		IncludedAllowances: map[string]decimal.Decimal{
			"llm_tokens": decimal.NewFromInt(1_000_000),
		},
		OverageRules: map[string]plan.OverageRule{
			"llm_tokens": {
				Mode: types.PricingModeCostPlus,
				CostPlus: &plan.CostPlusRule{
					MarkupPercent: decimal.NewFromInt(25),
				},
			},
		},
	})
	s.NoError(err)
	s.NotEmpty(resp.ID)
	s.Equal("USD", resp.Currency)

	stored, err := s.GetStores().PlanRepo.Get(s.GetContext(), resp.ID)
	s.NoError(err)
	s.True(stored.IncludedAllowances["llm_tokens"].Equal(decimal.NewFromInt(1_000_000)))
}

func (s *PlanServiceSuite) TestCreatePlanRejectsNegativeBasePrice() {
	_, err := s.service.CreatePlan(s.GetContext(), dto.CreatePlanRequest{
		Name:           "Broken",
		Currency:       "USD",
		BasePriceCents: decimal.NewFromInt(-1),
	})
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *PlanServiceSuite) TestCreatePlanRejectsIncompleteOverageRule() {
	_, err := s.service.CreatePlan(s.GetContext(), dto.CreatePlanRequest{
		Name:           "Broken",
		Currency:       "USD",
		BasePriceCents: decimal.NewFromInt(9_900),
		OverageRules: map[string]plan.OverageRule{
			"llm_tokens": {Mode: types.PricingModeCostPlus},
		},
	})
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *PlanServiceSuite) TestCreatePlanRejectsUnboundedMiddleTier() {
	_, err := s.service.CreatePlan(s.GetContext(), dto.CreatePlanRequest{
		Name:           "Broken",
		Currency:       "USD",
		BasePriceCents: decimal.NewFromInt(9_900),
		OverageRules: map[string]plan.OverageRule{
			"api_calls": {
				Mode: types.PricingModeTiered,
				Tiered: &plan.TieredRule{
					Tiers: []plan.Tier{
						{UpTo: nil, RateCents: decimal.NewFromFloat(0.01)},
						{UpTo: lo.ToPtr(uint64(10_000)), RateCents: decimal.NewFromFloat(0.005)},
					},
				},
			},
		},
	})
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *PlanServiceSuite) TestUpdatePlan() {
	created, err := s.service.CreatePlan(s.GetContext(), dto.CreatePlanRequest{
		Name:           "Starter",
		Currency:       "USD",
		BasePriceCents: decimal.NewFromInt(9_900),
	})
	s.NoError(err)

	updated, err := s.service.UpdatePlan(s.GetContext(), created.ID, dto.UpdatePlanRequest{
		Name:        lo.ToPtr("Starter v2"),
		Description: lo.ToPtr("Refreshed tier"),
	})
	s.NoError(err)
	s.Equal("Starter v2", updated.Name)
	s.Equal("Refreshed tier", updated.Description)
	s.Equal("USD", updated.Currency, "pricing fields are immutable after create")
}

func (s *PlanServiceSuite) TestGetPlanNotFound() {
	_, err := s.service.GetPlan(s.GetContext(), "plan_missing")
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *PlanServiceSuite) TestListPlans() {
	for _, name := range []string{"Starter", "Pro"} {
		_, err := s.service.CreatePlan(s.GetContext(), dto.CreatePlanRequest{
			Name:           name,
			Currency:       "USD",
			BasePriceCents: decimal.NewFromInt(9_900),
		})
		s.NoError(err)
	}

	resp, err := s.service.ListPlans(s.GetContext(), nil)
	s.NoError(err)
	s.Len(resp.Items, 2)
}
