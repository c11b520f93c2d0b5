package dbclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// DynamicStore persists the looser-schema raw nodes/edges and the
// provenance events that link utterances to canonical operations
// spanning both stores (§3.3's closing paragraph). It has no
// counterpart in canonical.Store because the dynamic store's schema is
// intentionally looser than the canonical one — there is no upsert-by-
// canonical-key contract here, only append-only recording.
type DynamicStore struct {
	client *Client
}

// NewDynamicStore wraps client's connection as a DynamicStore.
func NewDynamicStore(client *Client) *DynamicStore {
	return &DynamicStore{client: client}
}

// InsertNode records one raw extracted node, returning its stable ID.
func (s *DynamicStore) InsertNode(ctx context.Context, tempID, kind string, attributes map[string]any) (string, error) {
	id := uuid.NewString()
	attrJSON, err := json.Marshal(attributes)
	if err != nil {
		return "", fmt.Errorf("dbclient: marshal node attributes: %w", err)
	}
	_, err = s.client.db.ExecContext(ctx,
		`INSERT INTO dynamic_nodes (id, temp_id, kind, attributes) VALUES ($1,$2,$3,$4)`,
		id, tempID, kind, attrJSON)
	if err != nil {
		return "", fmt.Errorf("dbclient: insert node: %w", err)
	}
	return id, nil
}

// InsertEdge records one raw extracted edge between two previously
// inserted nodes.
func (s *DynamicStore) InsertEdge(ctx context.Context, fromNode, toNode, kind string, attributes map[string]any) (string, error) {
	id := uuid.NewString()
	attrJSON, err := json.Marshal(attributes)
	if err != nil {
		return "", fmt.Errorf("dbclient: marshal edge attributes: %w", err)
	}
	_, err = s.client.db.ExecContext(ctx,
		`INSERT INTO dynamic_edges (id, from_node, to_node, kind, attributes) VALUES ($1,$2,$3,$4,$5)`,
		id, fromNode, toNode, kind, attrJSON)
	if err != nil {
		return "", fmt.Errorf("dbclient: insert edge: %w", err)
	}
	return id, nil
}

// RecordProvenance creates a provenance event attesting that operation
// produced the canonical record identified by canonicalKey (may be
// empty for operations that didn't yet resolve to one, e.g. a rejected
// plan), then links it to utteranceID via utterance_has_provenance.
func (s *DynamicStore) RecordProvenance(ctx context.Context, utteranceID, operation, canonicalKey string) (string, error) {
	id := uuid.NewString()
	var keyArg *string
	if canonicalKey != "" {
		keyArg = &canonicalKey
	}
	_, err := s.client.db.ExecContext(ctx,
		`INSERT INTO provenance_events (id, operation, canonical_key) VALUES ($1,$2,$3)`,
		id, operation, keyArg)
	if err != nil {
		return "", fmt.Errorf("dbclient: insert provenance event: %w", err)
	}
	_, err = s.client.db.ExecContext(ctx,
		`INSERT INTO utterance_has_provenance (utterance_id, provenance_event_id) VALUES ($1,$2)
		 ON CONFLICT DO NOTHING`,
		utteranceID, id)
	if err != nil {
		return "", fmt.Errorf("dbclient: link utterance provenance: %w", err)
	}
	return id, nil
}
