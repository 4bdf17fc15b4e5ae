package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"oppwapay/internal/handler"
	"oppwapay/internal/handler/api"
	"oppwapay/internal/middleware"
	"oppwapay/internal/payment"
	"oppwapay/internal/repository"
)

// Options carries what the routes need beyond the database.
type Options struct {
	PublicURL    string
	APIKey       string
	HashFilePath string
}

// Setup configures all routes for the Echo server.
func Setup(
	e *echo.Echo,
	db *gorm.DB,
	adapter *payment.Adapter,
	registry *payment.Registry,
	logger *zap.Logger,
	opts Options,
) {
	// Global middleware
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(logger))

	// Repositories
	orders := repository.NewOrderRepository(db)
	payments := repository.NewPaymentRepository(db)
	refunds := repository.NewRefundRepository(db)
	settings := repository.NewSettingRepository(db)

	repos := &api.Repos{
		Orders:   orders,
		Payments: payments,
		Refunds:  refunds,
		Settings: settings,
	}

	// Handlers
	paymentHandler := api.NewPaymentHandler(repos, registry, opts.PublicURL, logger)
	refundHandler := api.NewRefundHandler(repos, adapter, registry, logger)
	settingsHandler := api.NewSettingsHandler(repos, registry, logger)

	callbackRepos := &handler.CallbackRepos{
		Orders:   orders,
		Payments: payments,
		Settings: settings,
	}
	callbackHandler := handler.NewPaymentCallbackHandler(callbackRepos, adapter, registry, opts.PublicURL, logger)

	// Operator API, all POST and routed on "actions"
	apiGroup := e.Group("/api")
	apiGroup.Use(middleware.CORS())
	apiGroup.Use(middleware.APIAuth(opts.APIKey, opts.HashFilePath))
	apiGroup.POST("/payments", paymentHandler.Handle)
	apiGroup.POST("/refunds", refundHandler.Handle)
	apiGroup.POST("/settings", settingsHandler.Handle)

	RegisterCallbacks(e, callbackHandler, registry)

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
}

// RegisterCallbacks mounts pay, return and notify for every brand. Brands
// without a notify route rely on the buyer's return redirect alone.
func RegisterCallbacks(e *echo.Echo, h *handler.PaymentCallbackHandler, registry *payment.Registry) {
	csp := middleware.ContentSecurityPolicy(payment.CSPHeader())

	for _, brand := range registry.All() {
		g := e.Group("/:event/" + brand.Identifier)
		g.GET("/pay/:order/:hash/:payment/", h.Pay(brand), csp)
		g.GET("/return/:order/:hash/:payment/", h.Return(brand))
		if brand.HasNotify {
			g.GET("/notify/:order/:hash/:payment/", h.Notify(brand))
			g.POST("/notify/:order/:hash/:payment/", h.Notify(brand))
		}
	}
}
