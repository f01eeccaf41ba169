package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/meterline/meterline/internal/api/dto"
	"github.com/meterline/meterline/internal/domain/subscription"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/testutil"
	"github.com/meterline/meterline/internal/types"
)

type UsageServiceSuite struct {
	testutil.BaseServiceTestSuite
	service  UsageService
	testData struct {
		subscription *subscription.Subscription
	}
}

func TestUsageService(t *testing.T) {
	suite.Run(t, new(UsageServiceSuite))
}

func (s *UsageServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	stores := s.GetStores()
	s.service = NewUsageService(ServiceParams{
		Logger:    s.GetLogger(),
		Config:    s.GetConfig(),
		DB:        s.GetDB(),
		SubRepo:   stores.SubscriptionRepo,
		UsageRepo: stores.UsageRepo,
		Alerts:    s.GetAlerts(),
	})

	now := s.GetNow()
	s.testData.subscription = &subscription.Subscription{
		ID:                 "subs_123",
		CustomerID:         "cust_123",
		PlanID:             "plan_123",
		SubscriptionStatus: types.SubscriptionStatusActive,
		Currency:           "USD",
		BillingCycle:       types.BillingCycleMonthly,
		CurrentPeriodStart: now.AddDate(0, -1, 0),
		CurrentPeriodEnd:   now,
		BaseModel:          types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(stores.SubscriptionRepo.Create(s.GetContext(), s.testData.subscription))
}

func (s *UsageServiceSuite) TestRecordUsage() {
	ctx := s.GetContext()
	at := s.GetNow().Add(-time.Hour)

	resp, err := s.service.RecordUsage(ctx, dto.RecordUsageRequest{
		SubscriptionID:  s.testData.subscription.ID,
		Metric:          "llm_tokens",
		Quantity:        decimal.NewFromInt(250_000),
		VendorCostCents: decimal.NewFromInt(200),
		EventTime:       &at,
	})
	s.NoError(err)
	s.NotEmpty(resp.ID)
	s.False(resp.Processed)

	stored, err := s.GetStores().UsageRepo.Get(ctx, resp.ID)
	s.NoError(err)
	s.True(stored.Quantity.Equal(decimal.NewFromInt(250_000)))
}

func (s *UsageServiceSuite) TestRecordUsageRejectsNonBillable() {
	ctx := s.GetContext()
	s.testData.subscription.SubscriptionStatus = types.SubscriptionStatusPaused
	s.NoError(s.GetStores().SubscriptionRepo.Update(ctx, s.testData.subscription))

	_, err := s.service.RecordUsage(ctx, dto.RecordUsageRequest{
		SubscriptionID: s.testData.subscription.ID,
		Metric:         "llm_tokens",
		Quantity:       decimal.NewFromInt(1),
	})
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *UsageServiceSuite) TestRecordUsageRejectsNonPositiveQuantity() {
	_, err := s.service.RecordUsage(s.GetContext(), dto.RecordUsageRequest{
		SubscriptionID: s.testData.subscription.ID,
		Metric:         "llm_tokens",
		Quantity:       decimal.NewFromInt(-5),
	})
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *UsageServiceSuite) TestGetUsageSummary() {
	ctx := s.GetContext()
	mid := s.GetNow().AddDate(0, 0, -10)

	for i, qty := range []int64{100, 200, 300} {
		at := mid.Add(time.Duration(i) * time.Hour)
		_, err := s.service.RecordUsage(ctx, dto.RecordUsageRequest{
			SubscriptionID:  s.testData.subscription.ID,
			Metric:          "api_calls",
			Quantity:        decimal.NewFromInt(qty),
			VendorCostCents: decimal.NewFromInt(qty / 100),
			EventTime:       &at,
		})
		s.NoError(err)
	}

	summary, err := s.service.GetUsageSummary(ctx, s.testData.subscription.ID)
	s.NoError(err)
	s.Len(summary.Metrics, 1)
	s.Equal("api_calls", summary.Metrics[0].Metric)
	s.True(summary.Metrics[0].TotalQuantity.Equal(decimal.NewFromInt(600)))
	s.Equal(3, summary.Metrics[0].EventCount)
}

func (s *UsageServiceSuite) TestGetUsageSummaryExcludesProcessed() {
	ctx := s.GetContext()
	mid := s.GetNow().AddDate(0, 0, -10)

	resp, err := s.service.RecordUsage(ctx, dto.RecordUsageRequest{
		SubscriptionID: s.testData.subscription.ID,
		Metric:         "api_calls",
		Quantity:       decimal.NewFromInt(100),
		EventTime:      &mid,
	})
	s.NoError(err)

	s.NoError(s.GetStores().UsageRepo.MarkProcessed(ctx, []string{resp.ID}, "inv_1"))

	summary, err := s.service.GetUsageSummary(ctx, s.testData.subscription.ID)
	s.NoError(err)
	s.Empty(summary.Metrics)
}
