package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kundan-thakur61/mobilecoverBackend/internal/config"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/locator"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/repository/postgres"
)

// Resolves any external reference (UUID, ORD-/CUST- id, rzp order/payment
// id, waybill) to the order it belongs to. Diagnostic tool for support.
func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run cmd/find-order/main.go <reference>")
		fmt.Println("Example: go run cmd/find-order/main.go ORD-5f1c2a...")
		fmt.Println("         go run cmd/find-order/main.go WB123456789")
		os.Exit(1)
	}
	reference := os.Args[1]

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	db, err := postgres.NewConnection(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	repos := postgres.NewRepositories(db, logger)
	loc := locator.New(repos, logger)

	order, err := loc.Locate(context.Background(), reference)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Lookup failed: %v\n", err)
		os.Exit(1)
	}

	core := order.Core()
	fmt.Printf("Found %s order %s (status %s)\n\n", order.Kind(), core.ID, core.Status)

	out, err := json.MarshalIndent(order, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render order: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
