package main // Entry point package

import (
	"context" // Context for the background dispatcher
	"log"     // Logging library

	"github.com/joho/godotenv"    // Loads .env files in local development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/tablekeep/guarantee-service/internal/config"   // Internal config loader
	"github.com/tablekeep/guarantee-service/internal/database" // MySQL connection helper
	"github.com/tablekeep/guarantee-service/internal/handler"
	"github.com/tablekeep/guarantee-service/internal/notify"
	"github.com/tablekeep/guarantee-service/internal/outbox"
	"github.com/tablekeep/guarantee-service/internal/processor"
	"github.com/tablekeep/guarantee-service/internal/queue"
	"github.com/tablekeep/guarantee-service/internal/repository"
	"github.com/tablekeep/guarantee-service/internal/router" // Internal router setup
	"github.com/tablekeep/guarantee-service/internal/service"
)

func main() {
	// Load .env if present; real deployments set env vars directly.
	_ = godotenv.Load()

	cfg := config.Load() // Load environment config

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis backs rate limiting and the status response cache.  A nil
	// client disables both rather than blocking startup.
	rdb := config.NewRedisClient()

	sessions := repository.NewSessionRepo(db)
	policies := repository.NewPolicyRepo(db)
	charges := repository.NewChargeRepo(db)
	outboxRepo := repository.NewOutboxRepo(db)
	merchants := repository.NewMerchantRepo(db)

	gateway := processor.NewClient(cfg.ProcessorBaseURL, cfg.ProcessorSecretKey, cfg.ChargeTimeout)

	svc := service.NewGuaranteeService(sessions, policies, charges, outboxRepo,
		gateway, cfg.PublicBaseURL, service.PublishGuaranteeEvent)

	// Guest notices go through an HTTP relay when one is configured;
	// otherwise they land in the log, which is enough for dev.
	var notifier notify.Notifier = notify.NewConsole()
	if cfg.NotifyRelayURL != "" {
		notifier = notify.NewRelay(cfg.NotifyRelayURL, cfg.ChargeTimeout)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatcher := outbox.NewDispatcher(outboxRepo, notifier, cfg.OutboxPollInterval)
	go dispatcher.Run(ctx)

	// Audit consumer drains the event queue into a log file.  Best effort:
	// the API stays up even when RabbitMQ is unreachable.
	go func() {
		if err := queue.StartEventConsumer(); err != nil {
			log.Printf("event consumer disabled: %v", err)
		}
	}()

	e := echo.New()          // Create Echo instance
	router.RegisterRoutes(e) // Register application routes
	router.RegisterAPI(e, router.Deps{
		Auth:      handler.NewAuthHandler(cfg, merchants),
		Guarantee: handler.NewGuaranteeHandler(svc),
		Webhook:   handler.NewWebhookHandler(svc, cfg.WebhookSecret),
		Outbox:    handler.NewOutboxHandler(outboxRepo),
		Policy:    handler.NewPolicyHandler(policies),
		Merchants: merchants,
		JWTSecret: cfg.JWTSecret,
		Redis:     rdb,
	})

	addr := ":" + cfg.Port                                // Address string with port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env) // Print startup info

	if err := e.Start(addr); err != nil { // Start HTTP server
		log.Fatal(err) // Log and exit if server fails
	}
}
