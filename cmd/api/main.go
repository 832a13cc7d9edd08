package main

import (
	"context"
	"log"
	"net/http"

	"finportal/adapters/api"
	"finportal/internal"
	"finportal/internal/config"
	"finportal/internal/container"

	"github.com/joho/godotenv"
)

// Serves only the JSON API, without the portal pages.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	internal.DefaultLogger = internal.NewLogger(internal.ParseLogLevel(appConfig.LogLevel))

	ctx := context.Background()
	appContainer, err := container.New(ctx, appConfig)
	if err != nil {
		log.Fatalf("Failed to create application container: %v", err)
	}
	defer appContainer.Shutdown(ctx)

	addr := ":" + appConfig.Server.Port
	log.Printf("Starting API server on %s", addr)
	if err := http.ListenAndServe(addr, api.NewAPI(appContainer.Reports)); err != nil {
		log.Fatal("Server failed:", err)
	}
}
