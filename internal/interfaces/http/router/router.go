package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tresoria/backend/internal/infrastructure/auth"
	"github.com/tresoria/backend/internal/infrastructure/config"
	"github.com/tresoria/backend/internal/infrastructure/logger"
	"github.com/tresoria/backend/internal/interfaces/http/handler"
	"github.com/tresoria/backend/internal/interfaces/http/middleware"
)

// Handlers groups the handlers the router wires up
type Handlers struct {
	System       *handler.SystemHandler
	ReceiptSheet *handler.ReceiptSheetHandler
	Reference    *handler.ReferenceHandler
}

// Setup builds the gin engine with the full middleware chain and routes
func Setup(cfg *config.Config, log *zap.Logger, jwtService *auth.JWTService, handlers Handlers) *gin.Engine {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		_ = engine.SetTrustedProxies(cfg.HTTP.TrustedProxies)
	}

	engine.Use(
		logger.Recovery(log),
		middleware.RequestID(),
		logger.GinMiddleware(log),
		middleware.CORS(cfg.HTTP),
	)

	engine.GET("/health", handlers.System.Health)
	engine.GET("/ready", handlers.System.Ready)

	api := engine.Group("/api/v1")
	api.Use(middleware.Auth(middleware.DefaultAuthConfig(jwtService, log)))
	{
		sheets := api.Group("/receipt-sheets")
		{
			sheets.POST("", handlers.ReceiptSheet.Create)
			sheets.GET("", handlers.ReceiptSheet.List)
			sheets.GET("/:id", handlers.ReceiptSheet.Get)
			sheets.PUT("/:id", handlers.ReceiptSheet.Update)
			sheets.GET("/:id/history", handlers.ReceiptSheet.History)
			sheets.GET("/:id/rules", handlers.ReceiptSheet.Rules)
			sheets.POST("/:id/submit", handlers.ReceiptSheet.Submit)
			sheets.POST("/:id/validate", handlers.ReceiptSheet.Validate)
			sheets.POST("/:id/reject", handlers.ReceiptSheet.Reject)
			sheets.POST("/:id/cancel", handlers.ReceiptSheet.Cancel)
			sheets.POST("/:id/invoices", handlers.ReceiptSheet.AddInvoice)
			sheets.DELETE("/:id/invoices/:invoiceID", handlers.ReceiptSheet.RemoveInvoice)
		}

		api.GET("/invoices/open", handlers.Reference.ListOpenInvoices)
		api.GET("/third-parties", handlers.Reference.ListThirdParties)
		api.GET("/company/currency", handlers.Reference.CompanyCurrency)
	}

	return engine
}
