package main

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/open-teleop/vrteleop/domain/diagnostic"
	"github.com/open-teleop/vrteleop/domain/teleop"
	"github.com/open-teleop/vrteleop/pkg/api"
	"github.com/open-teleop/vrteleop/pkg/input"
	customlog "github.com/open-teleop/vrteleop/pkg/log"
	"github.com/open-teleop/vrteleop/pkg/store"
)

// newHTTPApp wires the HTTP and websocket routes. actionLog may be nil.
func newHTTPApp(
	teleopService *teleop.TeleopService,
	diagnosticService *diagnostic.DiagnosticService,
	inputs *input.Store,
	actionLog *store.ActionLog,
	baseLogger customlog.Logger,
) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "vrteleop",
		ErrorHandler:          customErrorHandler,
		DisableStartupMessage: true,
	})

	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "online",
			"service": "vrteleop",
		})
	})
	app.Get("/health", diagnosticService.HealthHandler)

	apiGroup := app.Group("/api")
	apiGroup.Get("/diagnostics", diagnosticService.GetMetricsHandler)

	teleopRoutes := apiGroup.Group("/teleop")
	teleopRoutes.Get("/status", teleopService.StatusHandler)
	if actionLog != nil {
		teleopRoutes.Get("/actions", actionLog.RecentHandler)
	}

	wsLogger := baseLogger.WithField(customlog.ComponentKey, "input")
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/input", websocket.New(func(conn *websocket.Conn) {
		api.InputWebSocketHandler(conn, wsLogger, inputs)
	}))

	return app
}

// Custom error handler
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
