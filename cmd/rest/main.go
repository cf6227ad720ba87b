package main

import (
	"context"
	"log"

	"github.com/Voldemort0731/fiwb-mvp/internal/bootstrap"
	"github.com/Voldemort0731/fiwb-mvp/internal/config"
	"github.com/Voldemort0731/fiwb-mvp/internal/server"
	"github.com/Voldemort0731/fiwb-mvp/internal/tracer"
	"github.com/Voldemort0731/fiwb-mvp/pkg/database"
)

func main() {
	// 0. Tracing (no-op unless OTEL_ENABLED=true)
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 1. Configuration
	cfg := config.Load()

	// 2. Database
	gormDB, err := database.NewGormDB(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}
	if err := database.Migrate(gormDB); err != nil {
		log.Panicf("Unable to run migrations: %v", err)
	}

	// 3. Dependency Container
	container := bootstrap.NewContainer(gormDB, cfg)

	// 4. Background workers
	go func() {
		log.Println("Background: Starting Consumer Service...")
		if err := container.ConsumerService.Consume(context.Background()); err != nil {
			log.Printf("Background Consumer Error: %v", err)
		}
	}()
	if err := container.NotificationService.StartEventLoop(); err != nil {
		log.Printf("Background Notification Listener Error: %v", err)
	}

	// 5. HTTP Server
	srv := server.New(cfg, container)
	log.Fatal(srv.Run())
}
