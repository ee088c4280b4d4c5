package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/uitrace/gateway/internal/gateway/app"
)

func main() {
	// Local development keeps its settings in .env; deployments use
	// real environment variables and have no file to load.
	_ = godotenv.Load()

	cfg := app.LoadConfig()

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}
