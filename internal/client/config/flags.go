package config

import (
	"flag"
	"os"
	"time"

	"github.com/nexuskit/authkeeper/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   base URL of the authkeeper server (default from Config)
//	-d string   path to the session database file (default from Config)
//	-t int      request timeout in seconds (default from Config)
//	-i int      inactivity timeout in seconds (default from Config)
//	-w int      idle countdown in seconds (default from Config)
//
// Note: The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	// Filter args to include only those handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-t", "-i", "-w"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerAddr, "a", cfg.ServerAddr, "base URL of the authkeeper server")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "path to the session database file")
	requestTimeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")
	inactivityTimeout := fs.Int("i", int(cfg.InactivityTimeout.Seconds()), "inactivity timeout before the idle warning (in seconds)")
	idleCountdown := fs.Int("w", int(cfg.IdleCountdown.Seconds()), "idle countdown before forced logout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RequestTimeout = time.Duration(*requestTimeout) * time.Second
	cfg.InactivityTimeout = time.Duration(*inactivityTimeout) * time.Second
	cfg.IdleCountdown = time.Duration(*idleCountdown) * time.Second
}
