package main

import (
	"context"
	"log"
	"os"
	"time"

	"hashfund/internal/escrow"
	"hashfund/internal/handlers"
	"hashfund/internal/routes"
	"hashfund/pkg/config"
	"hashfund/pkg/hedera"
	"hashfund/pkg/mirror"
)

func main() {
	// Initialize database
	config.InitDB()

	// Initialize RabbitMQ (optional, will log warning if not configured)
	var events escrow.EventPublisher
	if os.Getenv("RABBITMQ_HOST") != "" {
		config.InitRabbitMQ()
		defer func() {
			if config.RabbitMQ != nil {
				config.RabbitMQ.Close()
			}
		}()

		publisher, err := config.NewPublisher()
		if err != nil {
			log.Fatal("Failed to create publisher:", err)
		}
		defer publisher.Close()
		events = publisher
		log.Println("RabbitMQ initialized successfully")
	} else {
		log.Println("RabbitMQ not configured, fund events will be dropped")
	}

	// Initialize the settlement client and escrow engine
	settle, err := hedera.NewClientFromEnv()
	if err != nil {
		log.Fatal("Failed to initialize settlement client:", err)
	}
	defer settle.Close()

	engine := escrow.New(config.DB, settle, events)
	handlers.Init(engine)

	// Replay settlement intents left open by a previous crash before
	// serving traffic that could race with them.
	resolver := mirror.NewClient(os.Getenv("MIRROR_NODE_URL"))
	reconciler := escrow.NewReconciler(engine, resolver)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	if err := reconciler.Run(ctx); err != nil {
		log.Println("Startup reconciliation incomplete:", err)
	}
	cancel()

	// Set up router
	r := routes.SetupRouter()

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	if err := r.Run(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
