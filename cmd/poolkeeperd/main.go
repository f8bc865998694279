package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloudkeep/poolkeeper/pkg/api"
	"github.com/cloudkeep/poolkeeper/pkg/driver"
	"github.com/cloudkeep/poolkeeper/pkg/log"
	"github.com/cloudkeep/poolkeeper/pkg/manager"
	"github.com/cloudkeep/poolkeeper/pkg/metrics"
	"github.com/cloudkeep/poolkeeper/pkg/storage"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "poolkeeperd",
	Short: "Poolkeeper - resource pool maintenance daemon",
	Long: `Poolkeeperd maintains pools of externally-provisioned compute
resources: for each configured driver it keeps a set of ready-to-hand-out
instances between low and high watermarks, provisioning and tearing down
in the background while clients allocate and return resources over the
HTTP API.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Poolkeeper version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the pool maintenance engine and HTTP API",
	Long: `Start the full engine: the resource store, driver registry, task
queue and workers, one balancer per configured driver, the reaper, and the
HTTP API server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %v", err)
		}
		store, err := storage.NewBoltStore(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("failed to open store: %v", err)
		}

		registry := driver.NewRegistry()
		for name, dc := range cfg.Drivers {
			registry.Register(name, driver.NewHTTPDriver(dc.Class, dc.Endpoint))
		}

		mgr, err := manager.New(cfg, store, registry)
		if err != nil {
			return fmt.Errorf("failed to create resource manager: %v", err)
		}
		fmt.Printf("✓ Resource manager started (%d workers, %d drivers)\n",
			cfg.WorkersCount, len(cfg.Drivers))

		collector := metrics.NewCollector(store, mgr, mgr.DriverNames(),
			time.Duration(cfg.SleepTime)*time.Second)
		collector.Start()
		fmt.Println("✓ Metrics collector started")

		metrics.SetVersion(Version)
		metrics.SetSubsystem("store", true, "opened")
		metrics.SetSubsystem("balancer-manager", true, "running")

		addr := fmt.Sprintf("%s:%d", cfg.BindHost, cfg.BindPort)
		apiServer := api.NewServer(mgr)
		errCh := make(chan error, 1)
		go func() {
			if err := apiServer.Start(addr); err != nil {
				metrics.SetSubsystem("api", false, err.Error())
				errCh <- fmt.Errorf("API server error: %v", err)
			}
		}()
		metrics.SetSubsystem("api", true, "listening")
		metrics.MarkBooted()
		fmt.Printf("✓ API server listening on http://%s\n", addr)
		fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", addr)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case err := <-errCh:
			collector.Stop()
			_ = mgr.Close()
			return err
		case sig := <-sigCh:
			fmt.Printf("\nReceived %s, shutting down...\n", sig)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := apiServer.Shutdown(ctx); err != nil {
			fmt.Printf("Warning: API server shutdown: %v\n", err)
		}
		collector.Stop()
		if err := mgr.Close(); err != nil {
			return fmt.Errorf("shutdown failed: %v", err)
		}
		fmt.Println("✓ Shutdown complete")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("config", "", "Path to YAML config file")
	serveCmd.Flags().String("bind-host", "", "HTTP bind host (overrides config)")
	serveCmd.Flags().Int("bind-port", 0, "HTTP bind port (overrides config)")
	serveCmd.Flags().String("data-dir", "", "Data directory (overrides config)")
	serveCmd.Flags().Int("workers", 0, "Number of task workers (overrides config)")
}

// loadConfig reads the config file if given and applies flag overrides on
// top. A config or validation failure here is fatal: the process exits
// before any subsystem starts.
func loadConfig(cmd *cobra.Command) (*manager.Config, error) {
	cfg := manager.DefaultConfig()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := manager.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if cmd.Flags().Changed("bind-host") {
		cfg.BindHost, _ = cmd.Flags().GetString("bind-host")
	}
	if cmd.Flags().Changed("bind-port") {
		cfg.BindPort, _ = cmd.Flags().GetInt("bind-port")
	}
	if cmd.Flags().Changed("data-dir") {
		cfg.DataDir, _ = cmd.Flags().GetString("data-dir")
	}
	if cmd.Flags().Changed("workers") {
		cfg.WorkersCount, _ = cmd.Flags().GetInt("workers")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
