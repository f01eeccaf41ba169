package service

import (
	"github.com/meterline/meterline/internal/alert"
	"github.com/meterline/meterline/internal/config"
	"github.com/meterline/meterline/internal/domain/customer"
	"github.com/meterline/meterline/internal/domain/invoice"
	"github.com/meterline/meterline/internal/domain/ledger"
	"github.com/meterline/meterline/internal/domain/plan"
	"github.com/meterline/meterline/internal/domain/subscription"
	"github.com/meterline/meterline/internal/domain/usage"
	"github.com/meterline/meterline/internal/gateway"
	"github.com/meterline/meterline/internal/idempotency"
	"github.com/meterline/meterline/internal/locker"
	"github.com/meterline/meterline/internal/logger"
	"github.com/meterline/meterline/internal/postgres"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     postgres.IClient

	// Repositories
	CustomerRepo customer.Repository
	PlanRepo     plan.Repository
	SubRepo      subscription.Repository
	UsageRepo    usage.Repository
	InvoiceRepo  invoice.Repository
	LedgerRepo   ledger.Repository

	// Collaborators
	Gateway     gateway.Adapter
	Idempotency *idempotency.Service
	Locker      *locker.KeyedLocker
	Alerts      alert.Sink
}

// NewServiceParams assembles the common service dependencies
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	db postgres.IClient,
	customerRepo customer.Repository,
	planRepo plan.Repository,
	subRepo subscription.Repository,
	usageRepo usage.Repository,
	invoiceRepo invoice.Repository,
	ledgerRepo ledger.Repository,
	gw gateway.Adapter,
	idempotencySvc *idempotency.Service,
	keyedLocker *locker.KeyedLocker,
	alerts alert.Sink,
) ServiceParams {
	return ServiceParams{
		Logger:       logger,
		Config:       config,
		DB:           db,
		CustomerRepo: customerRepo,
		PlanRepo:     planRepo,
		SubRepo:      subRepo,
		UsageRepo:    usageRepo,
		InvoiceRepo:  invoiceRepo,
		LedgerRepo:   ledgerRepo,
		Gateway:      gw,
		Idempotency:  idempotencySvc,
		Locker:       keyedLocker,
		Alerts:       alerts,
	}
}
