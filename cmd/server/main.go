package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/fx"

	"github.com/meterline/meterline/internal/alert"
	"github.com/meterline/meterline/internal/api"
	v1 "github.com/meterline/meterline/internal/api/v1"
	"github.com/meterline/meterline/internal/config"
	"github.com/meterline/meterline/internal/gateway"
	stripegw "github.com/meterline/meterline/internal/gateway/stripe"
	"github.com/meterline/meterline/internal/idempotency"
	"github.com/meterline/meterline/internal/locker"
	"github.com/meterline/meterline/internal/logger"
	"github.com/meterline/meterline/internal/postgres"
	"github.com/meterline/meterline/internal/pubsub/memory"
	pubsubRouter "github.com/meterline/meterline/internal/pubsub/router"
	"github.com/meterline/meterline/internal/repository"
	"github.com/meterline/meterline/internal/service"
	"github.com/meterline/meterline/internal/types"
	"github.com/meterline/meterline/internal/validator"
	"github.com/meterline/meterline/internal/webhook"
)

func init() {
	// UTC everywhere; billing periods are stored and compared in UTC
	time.Local = time.UTC

	// optional local overrides
	_ = godotenv.Load()
}

func main() {
	app := fx.New(
		fx.Provide(
			validator.NewValidator,
			config.NewConfig,
			logger.NewLogger,

			postgres.NewDB,
			postgres.NewClient,

			repository.NewCustomerRepository,
			repository.NewPlanRepository,
			repository.NewSubscriptionRepository,
			repository.NewUsageRepository,
			repository.NewInvoiceRepository,
			repository.NewLedgerRepository,

			provideIdempotencyStore,
			idempotency.NewService,
			locker.New,
			provideAlertSink,
			provideGateway,
			provideAdapters,

			memory.NewPubSub,
			pubsubRouter.NewRouter,
			webhook.NewEventPublisher,
			webhook.NewIngressService,
			webhook.NewConsumer,

			service.NewServiceParams,
			service.NewCustomerService,
			service.NewPlanService,
			service.NewSubscriptionService,
			service.NewUsageService,
			service.NewLedgerService,
			service.NewInvoiceService,
			service.NewDisputeService,
			service.NewPaymentService,
			service.NewReconciliationService,
			provideEventProcessor,

			provideHandlers,
			provideRouter,
		),
		fx.Invoke(startServer),
	)
	app.Run()
}

func provideIdempotencyStore(cfg *config.Configuration) idempotency.Store {
	return idempotency.NewCacheStore(cfg.Idempotency.TTL)
}

func provideAlertSink(log *logger.Logger) alert.Sink {
	return alert.NewLogSink(log)
}

func provideGateway(cfg *config.Configuration, log *logger.Logger) gateway.Adapter {
	return gateway.NewRetryingAdapter(stripegw.NewAdapter(cfg, log), cfg, log)
}

func provideAdapters(adapter gateway.Adapter) map[types.PaymentProvider]gateway.Adapter {
	return map[types.PaymentProvider]gateway.Adapter{
		adapter.Provider(): adapter,
	}
}

func provideEventProcessor(params service.ServiceParams) webhook.EventProcessor {
	return service.NewPaymentService(params)
}

func provideHandlers(
	log *logger.Logger,
	customerService service.CustomerService,
	planService service.PlanService,
	subscriptionService service.SubscriptionService,
	usageService service.UsageService,
	ledgerService service.LedgerService,
	invoiceService service.InvoiceService,
	disputeService service.DisputeService,
	ingressService webhook.IngressService,
) api.Handlers {
	return api.Handlers{
		Health:       v1.NewHealthHandler(log),
		Customer:     v1.NewCustomerHandler(customerService, ledgerService, log),
		Plan:         v1.NewPlanHandler(planService, log),
		Subscription: v1.NewSubscriptionHandler(subscriptionService, usageService, log),
		Usage:        v1.NewUsageHandler(usageService, log),
		Invoice:      v1.NewInvoiceHandler(invoiceService, disputeService, log),
		Webhook:      v1.NewWebhookHandler(ingressService, log),
	}
}

func provideRouter(handlers api.Handlers, idempotencySvc *idempotency.Service, log *logger.Logger) *gin.Engine {
	return api.NewRouter(handlers, idempotencySvc, log)
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	r *gin.Engine,
	router *pubsubRouter.Router,
	consumer webhook.Consumer,
	reconciliation service.ReconciliationService,
	log *logger.Logger,
) {
	startAPIServer(lc, r, cfg, log)
	startMessageRouter(lc, router, consumer, log)
	startReconciliationLoop(lc, reconciliation, cfg, log)
}

func startAPIServer(
	lc fx.Lifecycle,
	r *gin.Engine,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("starting API server")
			go func() {
				if err := r.Run(cfg.Server.Address); err != nil {
					log.Fatalf("failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down server")
			return nil
		},
	})
}

func startMessageRouter(
	lc fx.Lifecycle,
	router *pubsubRouter.Router,
	consumer webhook.Consumer,
	log *logger.Logger,
) {
	consumer.RegisterHandler(router)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("starting payment event router")
			go func() {
				if err := router.Run(context.Background()); err != nil {
					log.Errorw("payment event router stopped", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("stopping payment event router")
			return router.Close()
		},
	})
}

func startReconciliationLoop(
	lc fx.Lifecycle,
	reconciliation service.ReconciliationService,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	window := cfg.Reconciliation.Window
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				ticker := time.NewTicker(window)
				defer ticker.Stop()
				for {
					select {
					case <-done:
						return
					case <-ticker.C:
						runCtx := types.SetTenantID(context.Background(), types.DefaultTenantID)
						report, err := reconciliation.Run(runCtx, window)
						if err != nil {
							log.Errorw("reconciliation run failed", "error", err)
							continue
						}
						log.Infow("reconciliation run completed",
							"invoices_checked", report.InvoicesChecked,
							"unpaid_invoices", report.UnpaidInvoices,
							"balance_mismatches", report.BalanceMismatches,
						)
					}
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			close(done)
			return nil
		},
	})
}
