package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"

	"github.com/wellnesscouncil/relay/pkg/config"
	"github.com/wellnesscouncil/relay/pkg/flow"
	"github.com/wellnesscouncil/relay/pkg/logging"
	"github.com/wellnesscouncil/relay/pkg/relay"
)

// Version information - set via ldflags during build
var (
	version   = "1.0.0-dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to relay config file")
		listenAddr  = flag.String("listen", "", "listen address override")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("relay %s (commit %s, built %s)\n", version, commit, buildDate)
		return
	}

	if err := run(*configPath, *listenAddr); err != nil {
		fmt.Fprintf(os.Stderr, "relay: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, listenAddr string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if listenAddr != "" {
		cfg.Server.Listen = listenAddr
	}

	log, err := logging.NewLogger(cfg.Logging.Dir)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer log.Close()
	log.SetMinLevel(logging.ParseLevel(cfg.Logging.Level))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Credentials come from the ambient chain (env, shared config,
	// instance role); nothing is read from the relay's own config.
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Flow.Region))
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := flow.NewClient(bedrockagentruntime.NewFromConfig(awsCfg), log)
	agg := flow.NewAggregator(cfg.Flow.EventTimeout, log)
	agg.OnEvent(relay.ObserveStreamEvent)

	srv := relay.NewServer(cfg, client, agg, log)

	errCh := make(chan error, 1)
	go func() {
		log.Info(logging.CategoryRelay, "server_started", "listening", map[string]any{
			"addr":    cfg.Server.Listen,
			"flow_id": cfg.Flow.FlowID,
			"version": version,
		})
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	log.Info(logging.CategoryRelay, "server_stopped", "shutdown complete", nil)
	return nil
}
