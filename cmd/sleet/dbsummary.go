package main

import (
	"context"
	"fmt"

	"github.com/sleetrun/sleet/pkg/dbclient"
	"github.com/sleetrun/sleet/pkg/runconfig"
)

// runDBSummary connects to both the dynamic and canonical stores (when a
// dynamic URL is configured) and prints each connection pool's health,
// confirming §6.4's distinct-namespace wiring end to end.
func runDBSummary(ctx context.Context, cfg *runconfig.Config, _ []string) int {
	canonicalClient, err := dbclient.NewClient(ctx, cfg.Canonical, dbclient.DefaultPoolOptions())
	if err != nil {
		fmt.Printf("db-summary: failed to connect to canonical database: %v\n", err)
		return exitRuntimeFailure
	}
	defer canonicalClient.Close()

	printHealth(ctx, "canonical", canonicalClient)

	if cfg.Dynamic.URL == "" {
		fmt.Println("db-summary: no dynamic database configured (STELE_DYNAMIC_URL unset)")
		return exitSuccess
	}

	dynamicClient, err := dbclient.NewClient(ctx, cfg.Dynamic, dbclient.DefaultPoolOptions())
	if err != nil {
		fmt.Printf("db-summary: failed to connect to dynamic database: %v\n", err)
		return exitRuntimeFailure
	}
	defer dynamicClient.Close()

	printHealth(ctx, "dynamic", dynamicClient)
	return exitSuccess
}

func printHealth(ctx context.Context, label string, c *dbclient.Client) {
	health, err := c.Health(ctx)
	if err != nil {
		fmt.Printf("db-summary: %s health check failed: %v\n", label, err)
		return
	}
	fmt.Printf("db-summary: %s store: status=%s namespace=%s response_time=%s open_conns=%d in_use=%d idle=%d\n",
		label, health.Status, c.Namespace(), health.ResponseTime, health.OpenConnections, health.InUse, health.Idle)
}
