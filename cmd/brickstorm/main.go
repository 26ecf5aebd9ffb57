// Package main is the entry point for the brickstorm power-up engine
// demo.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dshills/brickstorm/internal/app"
	"github.com/dshills/brickstorm/internal/config"
	"github.com/dshills/brickstorm/internal/session"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: loading configuration: %v\n", err)
		return 1
	}
	applyOverrides(&cfg, opts)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	log := app.NewLogger(app.LoggerConfig{
		Level:  app.ParseLogLevel(cfg.Log.Level),
		Prefix: "brickstorm",
	})
	app.SetLogger(log)

	// Handle signals for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		log.Info("shutting down")
		cancel()
	}()

	sess := session.New(cfg, session.WithLogger(log))
	if err := sess.RunDemo(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// options holds the command-line overrides applied on top of the
// config file and environment.
type options struct {
	configPath string
	scriptsDir string
	logLevel   string
	hotReload  bool
	durationMS int64
}

func parseFlags() options {
	var opts options
	var showVersion bool
	var showHelp bool

	flag.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	flag.StringVar(&opts.configPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&opts.scriptsDir, "scripts", "", "Directory of Lua power-up scripts")
	flag.StringVar(&opts.scriptsDir, "s", "", "Directory of Lua power-up scripts (shorthand)")
	flag.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.BoolVar(&opts.hotReload, "hot-reload", false, "Reload scripts when their files change")
	flag.BoolVar(&opts.hotReload, "r", false, "Reload scripts when their files change (shorthand)")
	flag.Int64Var(&opts.durationMS, "duration-ms", 0, "Demo duration in milliseconds")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Brickstorm - power-up plugin engine demo\n\n")
		fmt.Fprintf(os.Stderr, "Usage: brickstorm [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  brickstorm                      Run the demo with defaults\n")
		fmt.Fprintf(os.Stderr, "  brickstorm -c brickstorm.toml   Run with a config file\n")
		fmt.Fprintf(os.Stderr, "  brickstorm -s ./powerups -r     Load scripts with hot reload\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("Brickstorm %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	return opts
}

// applyOverrides layers command-line flags over the loaded config.
func applyOverrides(cfg *config.Config, opts options) {
	if opts.scriptsDir != "" {
		cfg.Scripts.Dir = opts.scriptsDir
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.hotReload {
		cfg.Scripts.HotReload = true
	}
	if opts.durationMS > 0 {
		cfg.Demo.DurationMS = opts.durationMS
	}
}
