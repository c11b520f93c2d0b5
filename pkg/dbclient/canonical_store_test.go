package dbclient_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/sleetrun/sleet/pkg/canonical"
	"github.com/sleetrun/sleet/pkg/dbclient"
	"github.com/sleetrun/sleet/pkg/runconfig"
)

// newTestClient spins up an ephemeral Postgres container and returns a
// dbclient.Client pointed at it, mirroring the teacher's
// test/database/client.go testcontainers pattern (minus ent, since this
// tree's store is pgx-direct — see DESIGN.md).
func newTestClient(t *testing.T, namespace string) *dbclient.Client {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("sleet_test"),
		postgres.WithUsername("sleet"),
		postgres.WithPassword("sleet"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	client, err := dbclient.NewClient(ctx, runconfig.DBConfig{URL: connStr, Namespace: namespace, Database: "sleet_test"}, dbclient.DefaultPoolOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// TestCanonicalStore_UpsertIdempotentAndMergesProvenance covers spec
// property 5 (upsert idempotency) and §4.3.2's shallow merge rule.
func TestCanonicalStore_UpsertIdempotentAndMergesProvenance(t *testing.T) {
	client := newTestClient(t, "canonical_test")
	store := dbclient.NewCanonicalStore(client)
	ctx := context.Background()

	id1, err := store.UpsertEntity(ctx, "person:alice", "person", "Alice", 0.9,
		map[string]any{"source": "utterance-1"}, map[string]any{"title": "engineer"})
	require.NoError(t, err)

	id2, err := store.UpsertEntity(ctx, "person:alice", "person", "Alice", 0.9,
		map[string]any{"source": "utterance-2", "confirmed": true}, map[string]any{"team": "platform"})
	require.NoError(t, err)

	require.Equal(t, id1, id2, "upsert by canonical_key must be idempotent")
}

// TestCanonicalStore_BitemporalQueries covers §4.3.3's current-vs-as-of
// read patterns against a real Postgres instance.
func TestCanonicalStore_BitemporalQueries(t *testing.T) {
	client := newTestClient(t, "canonical_bitemporal_test")
	store := dbclient.NewCanonicalStore(client)
	ctx := context.Background()

	subjectID, err := store.UpsertEntity(ctx, "person:bob", "person", "Bob", 0.9, nil, nil)
	require.NoError(t, err)
	objectID, err := store.UpsertEntity(ctx, "project:atlas", "project", "Atlas", 0.9, nil, nil)
	require.NoError(t, err)

	validFrom := time.Now().Add(-time.Hour)
	_, err = store.InsertRelationshipFact(ctx, subjectID, "LEADS", objectID, 0.85, validFrom, "")
	require.NoError(t, err)

	reader := canonical.NewBitemporalReader(store)
	facts, err := reader.Current(ctx, canonical.FactQuery{Subject: &subjectID})
	require.NoError(t, err)
	require.Len(t, facts, 1)
	require.Equal(t, "LEADS", facts[0].Predicate)
}
