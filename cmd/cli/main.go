package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/nexuskit/authkeeper/internal/buildinfo"
	"github.com/nexuskit/authkeeper/internal/client/cli"
	"github.com/nexuskit/authkeeper/internal/client/config"
	"github.com/nexuskit/authkeeper/internal/logging"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()

	// warnings go to stderr so they do not interleave with the REPL
	sl := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	logger := logging.NewSlogLogger(sl)

	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	app.Run(ctx)

}
