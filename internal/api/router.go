package api

import (
	"github.com/gin-gonic/gin"

	v1 "github.com/meterline/meterline/internal/api/v1"
	"github.com/meterline/meterline/internal/idempotency"
	"github.com/meterline/meterline/internal/logger"
	"github.com/meterline/meterline/internal/rest/middleware"
)

type Handlers struct {
	Health       *v1.HealthHandler
	Customer     *v1.CustomerHandler
	Plan         *v1.PlanHandler
	Subscription *v1.SubscriptionHandler
	Usage        *v1.UsageHandler
	Invoice      *v1.InvoiceHandler
	Webhook      *v1.WebhookHandler
}

func NewRouter(handlers Handlers, idempotencySvc *idempotency.Service, log *logger.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware)
	router.Use(middleware.ErrorHandler())

	router.GET("/health", handlers.Health.Health)

	// webhooks sit outside /v1; providers verify their own signatures so the
	// idempotency middleware does not apply here
	router.POST("/webhooks/:provider", handlers.Webhook.HandleWebhook)

	v1Group := router.Group("/v1")
	v1Group.Use(middleware.Idempotency(idempotencySvc, log))
	registerV1Routes(v1Group, handlers)

	return router
}

func registerV1Routes(router *gin.RouterGroup, handlers Handlers) {
	customers := router.Group("/customers")
	{
		customers.POST("", handlers.Customer.CreateCustomer)
		customers.GET("", handlers.Customer.ListCustomers)
		customers.GET("/:id", handlers.Customer.GetCustomer)
		customers.PUT("/:id", handlers.Customer.UpdateCustomer)
		customers.GET("/:id/balance", handlers.Customer.GetBalance)
		customers.GET("/:id/ledger", handlers.Customer.ListLedgerEntries)
	}

	plans := router.Group("/plans")
	{
		plans.POST("", handlers.Plan.CreatePlan)
		plans.GET("", handlers.Plan.ListPlans)
		plans.GET("/:id", handlers.Plan.GetPlan)
		plans.PUT("/:id", handlers.Plan.UpdatePlan)
	}

	subscriptions := router.Group("/subscriptions")
	{
		subscriptions.POST("", handlers.Subscription.CreateSubscription)
		subscriptions.GET("", handlers.Subscription.ListSubscriptions)
		subscriptions.GET("/:id", handlers.Subscription.GetSubscription)
		subscriptions.PUT("/:id", handlers.Subscription.UpdateSubscription)
		subscriptions.POST("/:id/cancel", handlers.Subscription.CancelSubscription)
		subscriptions.GET("/:id/usage", handlers.Subscription.GetUsageSummary)
	}

	usage := router.Group("/usage")
	{
		usage.POST("", handlers.Usage.RecordUsage)
	}

	invoices := router.Group("/invoices")
	{
		invoices.POST("/finalize", handlers.Invoice.FinalizeInvoice)
		invoices.POST("/refund", handlers.Invoice.IssueRefund)
		invoices.GET("", handlers.Invoice.ListInvoices)
		invoices.GET("/:id", handlers.Invoice.GetInvoice)
		invoices.POST("/:id/retry", handlers.Invoice.RetryRemoteFinalize)
		invoices.POST("/:id/void", handlers.Invoice.VoidInvoice)
	}
}
