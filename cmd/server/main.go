package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/example/bozor/internal/clock"
	"github.com/example/bozor/internal/config"
	"github.com/example/bozor/internal/database"
	"github.com/example/bozor/internal/realtime"
	"github.com/example/bozor/internal/routes"
	"github.com/example/bozor/internal/services"
)

func main() {
	cfg := config.Load()
	db := database.Connect(cfg.DatabaseURL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := realtime.NewHub()
	clk := clock.Real()
	store := services.NewGormStore(db)
	gateway := services.NewGatewayClient(cfg.GatewayBaseURL, cfg.GatewayCheckoutURL, cfg.GatewayMerchantID, cfg.GatewaySecretKey)
	telegram := services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat)
	payments := services.NewPaymentService(store, gateway, hub, clk)
	sweeper := services.NewSweeperService(store, hub, clk, clock.RealScheduler(), cfg.SweepInterval)
	referrals := services.NewReferralService(db, hub)
	notifier := services.NewNotifierService(db, hub, telegram)

	go sweeper.Run(ctx)
	go referrals.Run(ctx)
	go notifier.Run(ctx)

	app := fiber.New(fiber.Config{
		AppName: "Bozor Backend",
	})

	app.Use(recover.New())
	app.Use(logger.New())

	routes.Register(app, routes.Deps{
		DB:       db,
		Cfg:      cfg,
		Hub:      hub,
		Clock:    clk,
		Payments: payments,
		Gateway:  gateway,
		Sweeper:  sweeper,
		Telegram: telegram,
	})

	go func() {
		<-ctx.Done()
		log.Println("shutting down")
		if err := app.Shutdown(); err != nil {
			log.Printf("fiber.Shutdown error: %v", err)
		}
	}()

	log.Printf("Starting server on :%s", cfg.AppPort)
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Fatalf("fiber.Listen error: %v", err)
	}
}
