package dbclient

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sleetrun/sleet/pkg/canonical"
)

// CanonicalStore implements canonical.Store directly against Postgres
// via database/sql + the pgx driver, one parameterised statement (or
// short per-statement-batch transaction) at a time, per §6.4. It
// replaces the ent-based store the teacher would have built on top of
// ent/schema; see DESIGN.md for why ent itself was dropped.
type CanonicalStore struct {
	db *stdsql.DB
}

// NewCanonicalStore wraps client's connection as a canonical.Store.
func NewCanonicalStore(client *Client) *CanonicalStore {
	return &CanonicalStore{db: client.db}
}

var _ canonical.Store = (*CanonicalStore)(nil)

func (s *CanonicalStore) UpsertEntity(ctx context.Context, key, typ, name string, confidence float64, provenance, extra map[string]any) (string, error) {
	var id string
	err := withTx(ctx, s.db, func(tx *stdsql.Tx) error {
		var existingID string
		var existingProv, existingExtra []byte
		err := tx.QueryRowContext(ctx,
			`SELECT id, provenance, extra FROM canonical_entities WHERE canonical_key = $1 FOR UPDATE`, key,
		).Scan(&existingID, &existingProv, &existingExtra)

		switch {
		case err == stdsql.ErrNoRows:
			id = uuid.NewString()
			provJSON, _ := json.Marshal(provenance)
			extraJSON, _ := json.Marshal(extra)
			_, err := tx.ExecContext(ctx,
				`INSERT INTO canonical_entities (id, canonical_key, entity_type, name, confidence, provenance, extra)
				 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
				id, key, typ, name, confidence, provJSON, extraJSON)
			return err
		case err != nil:
			return err
		default:
			id = existingID
			merged, err := mergeStoredJSON(existingProv, provenance)
			if err != nil {
				return err
			}
			mergedExtra, err := mergeStoredJSON(existingExtra, extra)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx,
				`UPDATE canonical_entities SET provenance=$1, extra=$2, updated_at=now() WHERE id=$3`,
				merged, mergedExtra, id)
			return err
		}
	})
	return id, err
}

func (s *CanonicalStore) UpsertTask(ctx context.Context, key, description string, confidence float64, provenance map[string]any) (string, error) {
	var id string
	err := withTx(ctx, s.db, func(tx *stdsql.Tx) error {
		var existingID string
		var existingProv []byte
		err := tx.QueryRowContext(ctx,
			`SELECT id, provenance FROM canonical_tasks WHERE canonical_key = $1 FOR UPDATE`, key,
		).Scan(&existingID, &existingProv)

		switch {
		case err == stdsql.ErrNoRows:
			id = uuid.NewString()
			provJSON, _ := json.Marshal(provenance)
			_, err := tx.ExecContext(ctx,
				`INSERT INTO canonical_tasks (id, canonical_key, title, confidence, provenance) VALUES ($1,$2,$3,$4,$5)`,
				id, key, description, confidence, provJSON)
			return err
		case err != nil:
			return err
		default:
			id = existingID
			merged, err := mergeStoredJSON(existingProv, provenance)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `UPDATE canonical_tasks SET provenance=$1, updated_at=now() WHERE id=$2`, merged, id)
			return err
		}
	})
	return id, err
}

func (s *CanonicalStore) UpsertEvent(ctx context.Context, key, description string, occurredAt time.Time, confidence float64, provenance map[string]any) (string, error) {
	var id string
	err := withTx(ctx, s.db, func(tx *stdsql.Tx) error {
		var existingID string
		var existingProv []byte
		err := tx.QueryRowContext(ctx,
			`SELECT id, provenance FROM canonical_events WHERE canonical_key = $1 FOR UPDATE`, key,
		).Scan(&existingID, &existingProv)

		switch {
		case err == stdsql.ErrNoRows:
			id = uuid.NewString()
			provJSON, _ := json.Marshal(provenance)
			_, err := tx.ExecContext(ctx,
				`INSERT INTO canonical_events (id, canonical_key, title, start_at, confidence, provenance) VALUES ($1,$2,$3,$4,$5,$6)`,
				id, key, description, occurredAt, confidence, provJSON)
			return err
		case err != nil:
			return err
		default:
			id = existingID
			merged, err := mergeStoredJSON(existingProv, provenance)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `UPDATE canonical_events SET provenance=$1, updated_at=now() WHERE id=$2`, merged, id)
			return err
		}
	})
	return id, err
}

func (s *CanonicalStore) InsertRelationshipFact(ctx context.Context, subjectID, predicate, objectID string, confidence float64, validFrom time.Time, branch string) (string, error) {
	if branch == "" {
		branch = "main"
	}
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO canonical_relationship_facts (id, subject_id, predicate, object_id, confidence, valid_from, branch)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		id, subjectID, predicate, objectID, confidence, validFrom, branch)
	if err != nil {
		return "", fmt.Errorf("dbclient: insert relationship fact: %w", err)
	}
	return id, nil
}

func (s *CanonicalStore) GetCurrentRelationshipFacts(ctx context.Context, subject, predicate, object *string, branch string) ([]canonical.RelationshipFact, error) {
	if branch == "" {
		branch = "main"
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, subject_id, predicate, object_id, confidence, valid_from, valid_to, system_from, system_to, branch
		 FROM canonical_relationship_facts
		 WHERE valid_to IS NULL AND branch = $1
		   AND ($2::text IS NULL OR subject_id::text = $2)
		   AND ($3::text IS NULL OR predicate = $3)
		   AND ($4::text IS NULL OR object_id::text = $4)`,
		branch, subject, predicate, object)
	if err != nil {
		return nil, fmt.Errorf("dbclient: get current relationship facts: %w", err)
	}
	defer rows.Close()
	return scanFacts(rows)
}

func (s *CanonicalStore) GetRelationshipFactsAsOf(ctx context.Context, subject, predicate, object *string, validAt, systemAt time.Time, branch string) ([]canonical.RelationshipFact, error) {
	if branch == "" {
		branch = "main"
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, subject_id, predicate, object_id, confidence, valid_from, valid_to, system_from, system_to, branch
		 FROM canonical_relationship_facts
		 WHERE branch = $1
		   AND valid_from <= $2 AND (valid_to IS NULL OR valid_to > $2)
		   AND system_from <= $3 AND (system_to IS NULL OR system_to > $3)
		   AND ($4::text IS NULL OR subject_id::text = $4)
		   AND ($5::text IS NULL OR predicate = $5)
		   AND ($6::text IS NULL OR object_id::text = $6)`,
		branch, validAt, systemAt, subject, predicate, object)
	if err != nil {
		return nil, fmt.Errorf("dbclient: get relationship facts as of: %w", err)
	}
	defer rows.Close()
	return scanFacts(rows)
}

func scanFacts(rows *stdsql.Rows) ([]canonical.RelationshipFact, error) {
	var out []canonical.RelationshipFact
	for rows.Next() {
		var f canonical.RelationshipFact
		if err := rows.Scan(&f.ID, &f.Subject, &f.Predicate, &f.Object, &f.Confidence, &f.ValidFrom, &f.ValidTo, &f.SystemFrom, &f.SystemTo, &f.Branch); err != nil {
			return nil, fmt.Errorf("dbclient: scan relationship fact: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// mergeStoredJSON implements §4.3.2's shallow key-wise overlay merge
// over a JSONB column's raw bytes: new keys are added, existing keys
// overwritten only by non-nil incoming values.
func mergeStoredJSON(existing []byte, incoming map[string]any) ([]byte, error) {
	var existingMap map[string]any
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &existingMap); err != nil {
			return nil, fmt.Errorf("dbclient: unmarshal stored json: %w", err)
		}
	}
	if existingMap == nil {
		existingMap = make(map[string]any)
	}
	for k, v := range incoming {
		if v == nil {
			if _, present := existingMap[k]; present {
				continue
			}
		}
		existingMap[k] = v
	}
	return json.Marshal(existingMap)
}

func withTx(ctx context.Context, db *stdsql.DB, fn func(tx *stdsql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("dbclient: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("dbclient: commit tx: %w", err)
	}
	return nil
}
