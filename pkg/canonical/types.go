// Package canonical implements the two-stage knowledge pipeline (C3):
// a heuristic planner that turns extracted nodes/relationships into a
// CanonicalPlan, a validator+applier that upserts that plan into a
// content-addressed, bitemporal entity/task/event/fact store, and a
// reinforcement-feedback loop that shapes an exploration rate from
// apply outcomes. Grounded on stele/src/scribes/canonical/mod.rs.
package canonical

import "time"

// NodeKind tags the four extracted-node kinds from §3.3/§4.3.1.
type NodeKind int

const (
	NodeEntity NodeKind = iota
	NodeAction
	NodeTemporal
	NodeNumerical
)

// Node is one element of an ExtractedData bundle: a temp-id'd entity,
// action, temporal reference, or numerical value awaiting canonicalisation.
type Node struct {
	TempID     string
	Kind       NodeKind
	Type       string // e.g. "Person", "Organization" for NodeEntity
	Name       string
	Confidence float64
	Attributes map[string]any
}

// RelationshipKind names the typed edges ExtractedData carries between
// temp-ids, including the two used to infer subject->object facts from
// an Action node (§4.3.1).
type RelationshipKind string

const (
	RelHasSubject RelationshipKind = "HAS_SUBJECT"
	RelPerforms   RelationshipKind = "PERFORMS"
	RelHasObject  RelationshipKind = "HAS_OBJECT"
	RelManages    RelationshipKind = "MANAGES"
)

// Relationship is a typed edge between two temp-ids.
type Relationship struct {
	FromTempID string
	ToTempID   string
	Kind       RelationshipKind
	Confidence float64
}

// ExtractedData is Stage A's input: nodes plus the relationships between
// their temp-ids.
type ExtractedData struct {
	Nodes         []Node
	Relationships []Relationship
}

// CanonicalEntity is one planned entity, keyed for upsert by CanonicalKey
// (§4.3.1: `lower(type)+":"+lower(name)`).
type CanonicalEntity struct {
	TempID       string
	CanonicalKey string
	Type         string
	Name         string
	Confidence   float64
	Provenance   map[string]any
	Extra        map[string]any
}

// CanonicalTask is derived from an Action node.
type CanonicalTask struct {
	TempID       string
	CanonicalKey string
	Description  string
	Confidence   float64
	Provenance   map[string]any
}

// CanonicalEvent is derived from a Temporal node.
type CanonicalEvent struct {
	TempID       string
	CanonicalKey string
	Description  string
	OccurredAt   time.Time
	Confidence   float64
	Provenance   map[string]any
}

// CanonicalFact is a planned relationship fact, referencing entities by
// temp-id (resolved to stable IDs during Apply) or, once inferred from an
// Action node, by the subject/object entities that node connects.
type CanonicalFact struct {
	SubjectTempID string
	Predicate     string
	ObjectTempID  string
	Confidence    float64
	Provenance    map[string]any
}

// Scores carries Stage A's plan-level and per-item confidence, per
// §4.3.1.
type Scores struct {
	Overall  float64
	PerItem  map[string]float64 // keyed by temp-id
}

// CanonicalPlan is Stage A's output, consumed by Stage B's validator and
// applier.
type CanonicalPlan struct {
	Entities     []CanonicalEntity
	Tasks        []CanonicalTask
	Events       []CanonicalEvent
	Facts        []CanonicalFact
	LineageHints map[string]string // temp-id -> canonical_key
	Scores       Scores
}

// RelationshipFact is a stored, bitemporal fact (§3.4, §4.3.3).
// ValidTo/SystemTo being nil marks the fact as currently valid/current.
type RelationshipFact struct {
	ID         string
	Subject    string // stable entity ID
	Predicate  string
	Object     string // stable entity ID
	Confidence float64
	ValidFrom  time.Time
	ValidTo    *time.Time
	SystemFrom time.Time
	SystemTo   *time.Time
	Branch     string
}

// ApplyResult reports Stage B apply outcomes, per §4.3.1 and §4.3.4.
type ApplyResult struct {
	Attempted     int
	Applied       int
	BackoffEvents int
	EntityIDs     map[string]string // temp-id and canonical_key -> stable ID
}
