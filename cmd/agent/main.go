package main

import (
	"context"
	"log"

	"github.com/consentlab/takeout-agent/internal/agent"
	"github.com/consentlab/takeout-agent/internal/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()

	app, err := agent.NewApp(ctx, cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}
	defer app.Close()

	if err := app.Run(ctx); err != nil {
		log.Printf("%v", err)
	}
}
