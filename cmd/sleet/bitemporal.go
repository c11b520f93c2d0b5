package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sleetrun/sleet/pkg/canonical"
	"github.com/sleetrun/sleet/pkg/dbclient"
	"github.com/sleetrun/sleet/pkg/runconfig"
)

// runBitemporal demonstrates §4.3.3's current-vs-as-of read patterns: it
// inserts one relationship fact into the canonical store, then reads it
// back both ways, closely mirroring the testable-property-4/5 coverage
// the dbclient integration tests exercise with testcontainers.
func runBitemporal(ctx context.Context, cfg *runconfig.Config, _ []string) int {
	client, err := dbclient.NewClient(ctx, cfg.Canonical, dbclient.DefaultPoolOptions())
	if err != nil {
		fmt.Printf("bitemporal: failed to connect to canonical database: %v\n", err)
		return exitRuntimeFailure
	}
	defer client.Close()

	store := dbclient.NewCanonicalStore(client)

	subjectID, err := store.UpsertEntity(ctx, "person:demo-subject", "person", "Demo Subject", 0.9, nil, nil)
	if err != nil {
		fmt.Printf("bitemporal: upsert subject failed: %v\n", err)
		return exitRuntimeFailure
	}
	objectID, err := store.UpsertEntity(ctx, "project:demo-project", "project", "Demo Project", 0.9, nil, nil)
	if err != nil {
		fmt.Printf("bitemporal: upsert object failed: %v\n", err)
		return exitRuntimeFailure
	}

	validFrom := time.Now().Add(-time.Hour)
	if _, err := store.InsertRelationshipFact(ctx, subjectID, "LEADS", objectID, 0.85, validFrom, ""); err != nil {
		fmt.Printf("bitemporal: insert fact failed: %v\n", err)
		return exitRuntimeFailure
	}

	reader := canonical.NewBitemporalReader(store)

	current, err := reader.Current(ctx, canonical.FactQuery{Subject: &subjectID})
	if err != nil {
		fmt.Printf("bitemporal: current query failed: %v\n", err)
		return exitRuntimeFailure
	}
	fmt.Printf("bitemporal: %d current fact(s) for subject %s\n", len(current), subjectID)

	asOf, err := reader.AsOf(ctx, canonical.FactQuery{Subject: &subjectID}, validFrom.Add(-time.Minute), time.Now())
	if err != nil {
		fmt.Printf("bitemporal: as-of query failed: %v\n", err)
		return exitRuntimeFailure
	}
	fmt.Printf("bitemporal: %d fact(s) valid as of one minute before insertion (expect 0)\n", len(asOf))

	return exitSuccess
}
