package api

import (
	"kaikei/internal/api/handlers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func SetupRouter(
	receiptHandler *handlers.ReceiptHandler,
	ratesHandler *handlers.RatesHandler,
) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))
	app.Use(logger.New())

	v1 := app.Group("/api/v1")

	receipts := v1.Group("/receipts")
	receipts.Post("/process", receiptHandler.ProcessReceipt)

	v1.Get("/transactions", receiptHandler.ListTransactions)
	v1.Get("/categories", receiptHandler.GetCategories)

	v1.Get("/exchange-rates", ratesHandler.GetExchangeRates)
	v1.Post("/update-exchange-rates", ratesHandler.UpdateExchangeRates)

	return app
}
