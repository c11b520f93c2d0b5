package canonical

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence contract the applier and bitemporal query
// helpers depend on (§6.4: parameterised queries, per-statement-batch
// transactions, distinct namespace+database selection for canonical vs
// dynamic stores — the namespace/database split itself lives in
// pkg/dbclient; Store only needs the operations this package calls).
type Store interface {
	UpsertEntity(ctx context.Context, key, typ, name string, confidence float64, provenance, extra map[string]any) (string, error)
	UpsertTask(ctx context.Context, key, description string, confidence float64, provenance map[string]any) (string, error)
	UpsertEvent(ctx context.Context, key, description string, occurredAt time.Time, confidence float64, provenance map[string]any) (string, error)
	InsertRelationshipFact(ctx context.Context, subjectID, predicate, objectID string, confidence float64, validFrom time.Time, branch string) (string, error)

	GetCurrentRelationshipFacts(ctx context.Context, subject, predicate, object *string, branch string) ([]RelationshipFact, error)
	GetRelationshipFactsAsOf(ctx context.Context, subject, predicate, object *string, validAt, systemAt time.Time, branch string) ([]RelationshipFact, error)
}

// mergeJSON implements §4.3.2's upsert merge rule: new keys are added,
// existing keys are overwritten only if the new value is non-nil.
func mergeJSON(existing, incoming map[string]any) map[string]any {
	out := make(map[string]any, len(existing)+len(incoming))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range incoming {
		if v == nil {
			if _, present := out[k]; present {
				continue
			}
		}
		out[k] = v
	}
	return out
}

type memEntity struct {
	id         string
	key        string
	typ, name  string
	confidence float64
	provenance map[string]any
	extra      map[string]any
}

type memTask struct {
	id, key, description string
	confidence            float64
	provenance            map[string]any
}

type memEvent struct {
	id, key, description string
	occurredAt            time.Time
	confidence            float64
	provenance            map[string]any
}

// MemStore is an in-process Store implementation used by tests and by
// any embedding that doesn't need durability. Production deployments use
// the pgx-backed store in pkg/dbclient.
type MemStore struct {
	mu sync.Mutex

	entitiesByKey map[string]*memEntity
	tasksByKey    map[string]*memTask
	eventsByKey   map[string]*memEvent
	facts         []RelationshipFact

	now func() time.Time
}

// NewMemStore constructs an empty in-memory store.
func NewMemStore(now func() time.Time) *MemStore {
	if now == nil {
		now = time.Now
	}
	return &MemStore{
		entitiesByKey: make(map[string]*memEntity),
		tasksByKey:    make(map[string]*memTask),
		eventsByKey:   make(map[string]*memEvent),
		now:           now,
	}
}

func (s *MemStore) UpsertEntity(_ context.Context, key, typ, name string, confidence float64, provenance, extra map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entitiesByKey[key]; ok {
		e.provenance = mergeJSON(e.provenance, provenance)
		e.extra = mergeJSON(e.extra, extra)
		return e.id, nil
	}
	e := &memEntity{id: uuid.NewString(), key: key, typ: typ, name: name, confidence: confidence, provenance: provenance, extra: extra}
	s.entitiesByKey[key] = e
	return e.id, nil
}

func (s *MemStore) UpsertTask(_ context.Context, key, description string, confidence float64, provenance map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasksByKey[key]; ok {
		t.provenance = mergeJSON(t.provenance, provenance)
		return t.id, nil
	}
	t := &memTask{id: uuid.NewString(), key: key, description: description, confidence: confidence, provenance: provenance}
	s.tasksByKey[key] = t
	return t.id, nil
}

func (s *MemStore) UpsertEvent(_ context.Context, key, description string, occurredAt time.Time, confidence float64, provenance map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.eventsByKey[key]; ok {
		e.provenance = mergeJSON(e.provenance, provenance)
		return e.id, nil
	}
	e := &memEvent{id: uuid.NewString(), key: key, description: description, occurredAt: occurredAt, confidence: confidence, provenance: provenance}
	s.eventsByKey[key] = e
	return e.id, nil
}

func (s *MemStore) InsertRelationshipFact(_ context.Context, subjectID, predicate, objectID string, confidence float64, validFrom time.Time, branch string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	now := s.now()
	s.facts = append(s.facts, RelationshipFact{
		ID:         id,
		Subject:    subjectID,
		Predicate:  predicate,
		Object:     objectID,
		Confidence: confidence,
		ValidFrom:  validFrom,
		SystemFrom: now,
		Branch:     branch,
	})
	return id, nil
}

func (s *MemStore) GetCurrentRelationshipFacts(_ context.Context, subject, predicate, object *string, branch string) ([]RelationshipFact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []RelationshipFact
	for _, f := range s.facts {
		if f.ValidTo != nil {
			continue
		}
		if !matchesFact(f, subject, predicate, object, branch) {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func (s *MemStore) GetRelationshipFactsAsOf(_ context.Context, subject, predicate, object *string, validAt, systemAt time.Time, branch string) ([]RelationshipFact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []RelationshipFact
	for _, f := range s.facts {
		if !matchesFact(f, subject, predicate, object, branch) {
			continue
		}
		if f.ValidFrom.After(validAt) {
			continue
		}
		if f.ValidTo != nil && !f.ValidTo.After(validAt) {
			continue
		}
		if f.SystemFrom.After(systemAt) {
			continue
		}
		if f.SystemTo != nil && !f.SystemTo.After(systemAt) {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func matchesFact(f RelationshipFact, subject, predicate, object *string, branch string) bool {
	if branch == "" {
		branch = "main"
	}
	factBranch := f.Branch
	if factBranch == "" {
		factBranch = "main"
	}
	if factBranch != branch {
		return false
	}
	if subject != nil && f.Subject != *subject {
		return false
	}
	if predicate != nil && f.Predicate != *predicate {
		return false
	}
	if object != nil && f.Object != *object {
		return false
	}
	return true
}
