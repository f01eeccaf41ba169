package testutil

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/meterline/meterline/internal/config"
	"github.com/meterline/meterline/internal/domain/customer"
	"github.com/meterline/meterline/internal/domain/invoice"
	"github.com/meterline/meterline/internal/domain/ledger"
	"github.com/meterline/meterline/internal/domain/plan"
	"github.com/meterline/meterline/internal/domain/subscription"
	"github.com/meterline/meterline/internal/domain/usage"
	"github.com/meterline/meterline/internal/idempotency"
	"github.com/meterline/meterline/internal/locker"
	"github.com/meterline/meterline/internal/logger"
	"github.com/meterline/meterline/internal/postgres"
	"github.com/meterline/meterline/internal/types"
	"github.com/meterline/meterline/internal/validator"
)

// Stores holds all the repository fakes for testing
type Stores struct {
	CustomerRepo     customer.Repository
	PlanRepo         plan.Repository
	SubscriptionRepo subscription.Repository
	UsageRepo        usage.Repository
	InvoiceRepo      invoice.Repository
	LedgerRepo       ledger.Repository
}

// BaseServiceTestSuite provides common functionality for all service test
// suites: fresh in-memory stores, a fake gateway, a capturing alert sink and
// a tenant-scoped context per test.
type BaseServiceTestSuite struct {
	suite.Suite
	ctx         context.Context
	stores      Stores
	gateway     *FakeGateway
	alerts      *InMemorySink
	db          postgres.IClient
	idempotency *idempotency.Service
	locker      *locker.KeyedLocker
	logger      *logger.Logger
	config      *config.Configuration
	now         time.Time
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	validator.NewValidator()

	s.config = config.GetDefaultConfig()

	var err error
	s.logger, err = logger.NewLogger(s.config)
	if err != nil {
		s.T().Fatalf("failed to create logger: %v", err)
	}
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.setupContext()
	s.setupStores()
	s.now = time.Now().UTC()
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.ClearStores()
}

func (s *BaseServiceTestSuite) setupContext() {
	s.ctx = context.Background()
	s.ctx = context.WithValue(s.ctx, types.CtxTenantID, types.DefaultTenantID)
	s.ctx = context.WithValue(s.ctx, types.CtxUserID, types.DefaultUserID)
	s.ctx = context.WithValue(s.ctx, types.CtxRequestID, types.GenerateUUID())
}

func (s *BaseServiceTestSuite) setupStores() {
	s.stores = Stores{
		CustomerRepo:     NewInMemoryCustomerStore(),
		PlanRepo:         NewInMemoryPlanStore(),
		SubscriptionRepo: NewInMemorySubscriptionStore(),
		UsageRepo:        NewInMemoryUsageStore(),
		InvoiceRepo:      NewInMemoryInvoiceStore(),
		LedgerRepo:       NewInMemoryLedgerStore(),
	}
	s.gateway = NewFakeGateway()
	s.alerts = NewInMemorySink()
	s.db = NewMockPostgresClient()
	s.idempotency = idempotency.NewService(
		idempotency.NewCacheStore(s.config.Idempotency.TTL), s.config, s.logger)
	s.locker = locker.New()
}

// ClearStores resets all stores between tests
func (s *BaseServiceTestSuite) ClearStores() {
	s.stores.CustomerRepo.(*InMemoryCustomerStore).Clear()
	s.stores.PlanRepo.(*InMemoryPlanStore).Clear()
	s.stores.SubscriptionRepo.(*InMemorySubscriptionStore).Clear()
	s.stores.UsageRepo.(*InMemoryUsageStore).Clear()
	s.stores.InvoiceRepo.(*InMemoryInvoiceStore).Clear()
	s.stores.LedgerRepo.(*InMemoryLedgerStore).Clear()
	s.alerts.Clear()
}

// GetContext returns the test context with tenant and user set
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetStores returns the repository fakes
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetGateway returns the fake payment gateway
func (s *BaseServiceTestSuite) GetGateway() *FakeGateway {
	return s.gateway
}

// GetAlerts returns the capturing alert sink
func (s *BaseServiceTestSuite) GetAlerts() *InMemorySink {
	return s.alerts
}

// GetDB returns the mock postgres client
func (s *BaseServiceTestSuite) GetDB() postgres.IClient {
	return s.db
}

// GetIdempotency returns the idempotency service backed by an in-memory cache
func (s *BaseServiceTestSuite) GetIdempotency() *idempotency.Service {
	return s.idempotency
}

// GetLocker returns the keyed locker
func (s *BaseServiceTestSuite) GetLocker() *locker.KeyedLocker {
	return s.locker
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetNow returns the current test time
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now
}
