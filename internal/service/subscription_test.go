package service

import (
	"testing"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/meterline/meterline/internal/api/dto"
	"github.com/meterline/meterline/internal/domain/customer"
	"github.com/meterline/meterline/internal/domain/plan"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/testutil"
	"github.com/meterline/meterline/internal/types"
)

type SubscriptionServiceSuite struct {
	testutil.BaseServiceTestSuite
	service  SubscriptionService
	testData struct {
		customer *customer.Customer
		plan     *plan.Plan
		eurPlan  *plan.Plan
	}
}

func TestSubscriptionService(t *testing.T) {
	suite.Run(t, new(SubscriptionServiceSuite))
}

func (s *SubscriptionServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	stores := s.GetStores()
	s.service = NewSubscriptionService(ServiceParams{
		Logger:       s.GetLogger(),
		Config:       s.GetConfig(),
		DB:           s.GetDB(),
		CustomerRepo: stores.CustomerRepo,
		PlanRepo:     stores.PlanRepo,
		SubRepo:      stores.SubscriptionRepo,
		Gateway:      s.GetGateway(),
		Locker:       s.GetLocker(),
		Alerts:       s.GetAlerts(),
	})

	ctx := s.GetContext()

	s.testData.customer = &customer.Customer{
		ID:                 "cust_123",
		ExternalID:         "ext_cust_123",
		Name:               "Acme Corp",
		Provider:           types.PaymentProviderStripe,
		ProviderCustomerID: lo.ToPtr("cus_remote_123"),
		BaseModel:          types.GetDefaultBaseModel(ctx),
	}
	s.NoError(stores.CustomerRepo.Create(ctx, s.testData.customer))

	s.testData.plan = &plan.Plan{
		ID:             "plan_usd",
		Name:           "Starter",
		Currency:       "USD",
		BasePriceCents: decimal.NewFromInt(9_900),
		BaseModel:      types.GetDefaultBaseModel(ctx),
	}
	s.NoError(stores.PlanRepo.Create(ctx, s.testData.plan))

	s.testData.eurPlan = &plan.Plan{
		ID:             "plan_eur",
		Name:           "Starter EU",
		Currency:       "EUR",
		BasePriceCents: decimal.NewFromInt(8_900),
		BaseModel:      types.GetDefaultBaseModel(ctx),
	}
	s.NoError(stores.PlanRepo.Create(ctx, s.testData.eurPlan))
}

func (s *SubscriptionServiceSuite) createSubscription() *dto.SubscriptionResponse {
	resp, err := s.service.CreateSubscription(s.GetContext(), dto.CreateSubscriptionRequest{
		CustomerID:   s.testData.customer.ID,
		PlanID:       s.testData.plan.ID,
		BillingCycle: types.BillingCycleMonthly,
	})
	s.Require().NoError(err)
	return resp
}

func (s *SubscriptionServiceSuite) TestCreateSubscription() {
	resp := s.createSubscription()

	s.Equal(types.SubscriptionStatusActive, resp.SubscriptionStatus)
	s.Equal("USD", resp.Currency, "currency comes from the plan")
	s.True(resp.CurrentPeriodEnd.After(resp.CurrentPeriodStart))

	s.NotNil(resp.ProviderSubscriptionID)
	s.Equal("sub_test_1", *resp.ProviderSubscriptionID)
	s.Len(s.GetGateway().Subscriptions, 1)
}

func (s *SubscriptionServiceSuite) TestCreateSubscriptionRequiresMirroredCustomer() {
	ctx := s.GetContext()
	unmirrored := &customer.Customer{
		ID:         "cust_local",
		ExternalID: "ext_local",
		Provider:   types.PaymentProviderStripe,
		BaseModel:  types.GetDefaultBaseModel(ctx),
	}
	s.NoError(s.GetStores().CustomerRepo.Create(ctx, unmirrored))

	_, err := s.service.CreateSubscription(ctx, dto.CreateSubscriptionRequest{
		CustomerID:   unmirrored.ID,
		PlanID:       s.testData.plan.ID,
		BillingCycle: types.BillingCycleMonthly,
	})
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *SubscriptionServiceSuite) TestCreateSubscriptionUnknownPlan() {
	_, err := s.service.CreateSubscription(s.GetContext(), dto.CreateSubscriptionRequest{
		CustomerID:   s.testData.customer.ID,
		PlanID:       "plan_missing",
		BillingCycle: types.BillingCycleMonthly,
	})
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *SubscriptionServiceSuite) TestUpdateSubscriptionPlanSwitch() {
	ctx := s.GetContext()
	created := s.createSubscription()

	other := &plan.Plan{
		ID:             "plan_usd_pro",
		Name:           "Pro",
		Currency:       "USD",
		BasePriceCents: decimal.NewFromInt(49_900),
		BaseModel:      types.GetDefaultBaseModel(ctx),
	}
	s.NoError(s.GetStores().PlanRepo.Create(ctx, other))

	updated, err := s.service.UpdateSubscription(ctx, created.ID, dto.UpdateSubscriptionRequest{
		PlanID: lo.ToPtr(other.ID),
	})
	s.NoError(err)
	s.Equal(other.ID, updated.PlanID)
	s.Equal("USD", updated.Currency)
}

func (s *SubscriptionServiceSuite) TestUpdateSubscriptionCurrencyMismatch() {
	created := s.createSubscription()

	_, err := s.service.UpdateSubscription(s.GetContext(), created.ID, dto.UpdateSubscriptionRequest{
		PlanID: lo.ToPtr(s.testData.eurPlan.ID),
	})
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))

	current, err := s.service.GetSubscription(s.GetContext(), created.ID)
	s.NoError(err)
	s.Equal(s.testData.plan.ID, current.PlanID, "rejected switch leaves the plan unchanged")
}

func (s *SubscriptionServiceSuite) TestCancelSubscription() {
	created := s.createSubscription()

	canceled, err := s.service.CancelSubscription(s.GetContext(), created.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusCanceled, canceled.SubscriptionStatus)
	s.NotNil(canceled.CanceledAt)
	s.Equal([]string{"sub_test_1"}, s.GetGateway().Canceled)
}

func (s *SubscriptionServiceSuite) TestCancelSubscriptionIdempotent() {
	created := s.createSubscription()

	_, err := s.service.CancelSubscription(s.GetContext(), created.ID)
	s.NoError(err)

	again, err := s.service.CancelSubscription(s.GetContext(), created.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusCanceled, again.SubscriptionStatus)
	s.Len(s.GetGateway().Canceled, 1, "gateway cancel fires once")
}

func (s *SubscriptionServiceSuite) TestUpdateCanceledSubscriptionRejected() {
	created := s.createSubscription()

	_, err := s.service.CancelSubscription(s.GetContext(), created.ID)
	s.NoError(err)

	_, err = s.service.UpdateSubscription(s.GetContext(), created.ID, dto.UpdateSubscriptionRequest{
		Metadata: map[string]string{"note": "too late"},
	})
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}
