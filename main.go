package main

import (
	"context"
	"log"
	"os"

	"github.com/example/ops-realtime-demo/modules/api"
	"github.com/example/ops-realtime-demo/modules/broadcast"
	"github.com/example/ops-realtime-demo/modules/chat"
	"github.com/example/ops-realtime-demo/modules/directory"
	"github.com/example/ops-realtime-demo/modules/identity"
	"github.com/example/ops-realtime-demo/modules/notify"
	"github.com/example/ops-realtime-demo/modules/router"
	"github.com/example/ops-realtime-demo/modules/scheduler"
	"github.com/example/ops-realtime-demo/modules/shipment"
	"github.com/example/ops-realtime-demo/modules/storage"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
)

func main() {
	log.Println("=== Ops Realtime - Fiber + WebSocket + EventBus ===")

	cfg := loadConfig()

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(cfg.ShutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}
	logger := app.Logger()

	db, err := storage.Open(cfg.DBPath, cfg.DBDebug)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	// Stores and shared collaborators
	users := directory.NewRepository(db)
	tokens := identity.NewTokenManager(identity.TokenConfig{
		SecretKey: cfg.JWTSecret,
		Issuer:    cfg.JWTIssuer,
	})
	resolver := identity.NewResolver(tokens, users)

	broadcastModule := broadcast.NewModule(logger)
	hub := broadcastModule.GetHub()

	chatModule := chat.NewModule(chat.Config{
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		Prefix:        cfg.HistoryPrefix,
		MaxHistory:    cfg.HistoryLimit,
	}, logger.WithModule("chat"))

	dispatcher := notify.NewDispatcher(notify.NewRepository(db), users, hub, logger.WithModule("notify"))

	rt, err := router.New(hub, chatModule.History(), dispatcher, logger.WithModule("router"))
	if err != nil {
		log.Fatalf("Failed to create router: %v", err)
	}

	// Register modules with the framework.
	// Order: independent modules first, then modules with dependencies
	// - storage: SQLite database lifecycle
	// - broadcast: presence and room registry
	// - chat: room history (Redis or in-memory)
	// - notify: notification services + SystemAlertRaised consumer
	// - scheduler: delay scan and daily digest (depends on notify)
	// - api: Fiber HTTP/WebSocket gateway (depends on notify)
	app.Register(storage.NewModule(db, cfg.DBPath))
	app.Register(broadcastModule)
	app.Register(chatModule)
	app.Register(notify.NewModule(dispatcher, logger.WithModule("notify")))
	app.Register(scheduler.NewModule(scheduler.Config{
		DelayScanInterval: cfg.DelayScanInterval,
		DigestHour:        cfg.DigestHour,
	}, shipment.NewRepository(db), logger.WithModule("scheduler")))
	app.Register(api.NewModule(api.Config{
		Port:           cfg.Port,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		SendBuffer:     cfg.SendBuffer,
	}, hub, rt, resolver, logger.WithModule("api")))

	// Start application
	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(cfg)

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo(cfg Config) {
	history := "in-memory"
	if cfg.RedisAddr != "" {
		history = "redis " + cfg.RedisAddr
	}

	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Printf("  Database:      %s", cfg.DBPath)
	log.Printf("  Chat history:  %s", history)
	log.Printf("  Delay scan:    every %s", cfg.DelayScanInterval)
	log.Printf("  Daily digest:  %02d:00", cfg.DigestHour)
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%s):", cfg.Port)
	log.Println("  GET    /health                      - Health check")
	log.Println("  GET    /api/v1/presence             - Online users (?department=)")
	log.Println("  GET    /api/v1/rooms/:name/members  - Room members")
	log.Println("  POST   /api/v1/notifications        - Raise a notification")
	log.Println("  POST   /api/v1/alerts               - Raise a system alert")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%s/ws?token=<jwt>):", cfg.Port)
	log.Println("  Frames: join-room, message-room, typing, stop-typing, new-user,")
	log.Println("          mark_notification_read, delete_notification,")
	log.Println("          eta_updated, progress_updated, delay_alert, plan_updated")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
