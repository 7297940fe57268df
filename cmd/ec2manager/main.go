// Package main is the entry point for the EC2 instance manager.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"ec2manager/internal/awsec2"
	"ec2manager/internal/config"
	"ec2manager/internal/database"
	"ec2manager/internal/fleet"
	"ec2manager/internal/logging"
	"ec2manager/internal/scheduler"
	"ec2manager/internal/server"
	"ec2manager/internal/system"
	"ec2manager/internal/telemetry"
	"ec2manager/internal/version"
)

func main() {
	// Load .env file if it exists (for development)
	if err := godotenv.Load(); err != nil {
		// It's okay if .env doesn't exist, especially in production
		if os.Getenv("DEBUG") == "true" {
			log.Printf("No .env file found or error loading it: %v", err)
		}
	}

	// Handle version flag first, before loading configuration
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-version" || os.Args[1] == "version") {
		versionInfo := version.Get()
		fmt.Printf("ec2manager version %s\n", versionInfo.Version)
		fmt.Printf("  commit: %s\n", versionInfo.Commit)
		fmt.Printf("  built: %s\n", versionInfo.BuildDate)
		fmt.Printf("  go: %s\n", versionInfo.GoVersion)
		fmt.Printf("  platform: %s\n", versionInfo.Platform)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize file logging ONLY in development mode
	isDevelopment := os.Getenv("ECM_ENV") == "development" || os.Getenv("DEBUG") == "true"

	if isDevelopment {
		logDir := "./logs"
		if err := logging.Initialize(logDir); err != nil {
			log.Printf("Warning: Failed to initialize file logging: %v", err)
			// Continue with standard logging to stdout
		} else {
			defer logging.Close()
			log.Printf("Development logging initialized to %s", logDir)
		}
	} else {
		log.Printf("Running in production mode - logging to stdout only")
	}

	// Initialize telemetry
	ctx := context.Background()
	shutdown, err := telemetry.InitializeFromEnv(ctx)
	if err != nil {
		log.Printf("Warning: Failed to initialize telemetry: %v", err)
		// Continue without telemetry
	} else {
		defer func() {
			if err := shutdown(ctx); err != nil {
				log.Printf("Error shutting down telemetry: %v", err)
			}
		}()
	}

	// Initialize database
	if err := database.Initialize(cfg.DatabasePath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Printf("Failed to close database: %v", err)
		}
	}()

	// Initialize EC2 client. The service degrades to simulated instance
	// state without it, same as running the dashboard with no credentials.
	ec2Client, err := awsec2.NewClient(ctx, cfg.AWSRegion)
	if err != nil {
		log.Printf("Warning: Failed to initialize EC2 client: %v", err)
	}

	// Keep the interface nil when the client is missing; a typed nil would
	// slip past the service's availability checks.
	var api awsec2.API
	if ec2Client != nil {
		api = ec2Client
	}
	fleetSvc := fleet.NewService(api, cfg.Instances)

	// Start the scheduler sweep if enabled
	if cfg.SchedulerEnabled {
		policy, err := scheduler.LoadPolicy(cfg.SchedulePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load schedule policy: %v\n", err)
			os.Exit(1)
		}
		sched := scheduler.New(fleetSvc, policy, database.GetDB())
		if err := sched.Start(cfg.SchedulerSpec); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to start scheduler: %v\n", err)
			os.Exit(1)
		}
		defer sched.Stop()
	}

	// Record host vitals for the history endpoint
	sampler := system.NewSampler(database.GetDB(), 1*time.Minute)
	sampler.Start()
	defer sampler.Stop()

	// Create and start server
	srv, err := server.New(cfg, fleetSvc, database.GetDB(), version.Get())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create server: %v\n", err)
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
