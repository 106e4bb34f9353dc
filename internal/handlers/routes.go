package handlers

import (
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"unibank/internal/metrics"
)

type AppOptions struct {
	CORSOrigins        string
	LoginRatePerMinute int
	// RequestLog receives one line per request; nil disables it.
	RequestLog io.Writer
}

// NewApp builds the ledger HTTP application.
func NewApp(h *Handler, opts AppOptions) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "unibank-ledger",
		ErrorHandler: h.ErrorHandler,
	})

	app.Use(recover.New())
	if opts.RequestLog != nil {
		app.Use(logger.New(logger.Config{Output: opts.RequestLog}))
	}
	origins := opts.CORSOrigins
	if origins == "" {
		origins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		// fiber refuses credentials with a wildcard origin.
		AllowCredentials: origins != "*",
	}))
	app.Use(Metrics)

	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	limiter := NewLoginLimiter(opts.LoginRatePerMinute)
	auth := app.Group("/auth")
	auth.Post("/register", h.LogAccess("register"), h.Register)
	auth.Post("/token", limiter.Handler, h.LogAccess("login"), h.Login)

	accounts := app.Group("/accounts", h.AuthMiddleware)
	accounts.Get("", h.LogAccess("get_accounts"), h.ListAccounts)
	accounts.Post("", h.LogAccess("create_account"), h.CreateAccount)
	accounts.Delete("/:id", h.LogAccess("delete_account"), h.DeleteAccount)

	transactions := app.Group("/transactions", h.AuthMiddleware)
	transactions.Post("", h.LogAccess("create_transaction"), h.Transfer)
	transactions.Post("/deposit", h.LogAccess("create_transaction"), h.Deposit)
	transactions.Post("/withdraw", h.LogAccess("create_transaction"), h.Withdraw)
	transactions.Get("/:id", h.LogAccess("get_transactions"), h.ListTransactions)

	logs := app.Group("/access-logs", h.AuthMiddleware)
	logs.Get("", h.LogAccess("get_access_logs"), h.AccessLogs)
	logs.Get("/all", h.LogAccess("get_all_access_logs"), h.RequireAdmin, h.AllAccessLogs)

	return app
}
