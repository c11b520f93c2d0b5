package canonical

import (
	"context"
	"time"
)

// FactQuery narrows a bitemporal fact lookup. Nil fields are wildcards;
// Branch empty defaults to "main".
type FactQuery struct {
	Subject   *string
	Predicate *string
	Object    *string
	Branch    string
}

// BitemporalReader answers the two read patterns §4.3.3 requires:
// "what's true now" and "what was true at a given valid/system time".
type BitemporalReader struct {
	store Store
}

func NewBitemporalReader(store Store) *BitemporalReader {
	return &BitemporalReader{store: store}
}

// Current returns facts with no ValidTo set — the currently-valid view.
func (r *BitemporalReader) Current(ctx context.Context, q FactQuery) ([]RelationshipFact, error) {
	facts, err := r.store.GetCurrentRelationshipFacts(ctx, q.Subject, q.Predicate, q.Object, q.Branch)
	if err != nil {
		return nil, &DBError{Op: "get_current_relationship_facts", Err: err}
	}
	return facts, nil
}

// AsOf returns facts valid at validAt according to the world as recorded
// at systemAt — the "what did we believe was true then" view, per
// §4.3.3's dual-time model.
func (r *BitemporalReader) AsOf(ctx context.Context, q FactQuery, validAt, systemAt time.Time) ([]RelationshipFact, error) {
	facts, err := r.store.GetRelationshipFactsAsOf(ctx, q.Subject, q.Predicate, q.Object, validAt, systemAt, q.Branch)
	if err != nil {
		return nil, &DBError{Op: "get_relationship_facts_as_of", Err: err}
	}
	return facts, nil
}
