package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gatepass/checkout-backend/internal/config"
	"github.com/gatepass/checkout-backend/internal/database"
	"github.com/gatepass/checkout-backend/internal/services"
	"github.com/sirupsen/logrus"
)

func main() {
	var jobFlag string
	var timeout time.Duration
	flag.StringVar(&jobFlag, "job", "", "sweep to run once: "+sweepList())
	flag.DurationVar(&timeout, "timeout", time.Minute, "maximum time to wait for the sweep")
	flag.Parse()

	name, ok := services.ParseSweepName(jobFlag)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown or missing -job %q (want one of %s)\n", jobFlag, sweepList())
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	// The scheduler is never started here, RunNow executes the sweep inline
	cronService := services.NewCronService(database.NewCheckoutRepository(db), cfg.Scheduler, logger)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	result, err := cronService.RunNow(ctx, name)
	if err != nil {
		log.Fatalf("sweep %s failed: %v", name, err)
	}

	fmt.Printf("Sweep %s affected %d record(s) in %s\n", result.Name, result.Count, result.Duration.Round(time.Millisecond))
}

func sweepList() string {
	names := make([]string, 0, len(services.SweepNames))
	for _, n := range services.SweepNames {
		names = append(names, string(n))
	}
	return strings.Join(names, ", ")
}
