package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"github.com/nexuskit/authkeeper/internal/server"
	"github.com/nexuskit/authkeeper/internal/server/config"
)

func main() {

	// missing .env is fine, the environment may be set by the runtime
	_ = godotenv.Load()

	ctx := context.Background()
	cfg := config.LoadConfig()

	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)

}
