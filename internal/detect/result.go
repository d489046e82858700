package detect

import (
	"encoding/json"

	"artdep/internal/graph"
)

// Kind discriminates the two result shapes.
type Kind string

const (
	KindFullRefresh Kind = "full_refresh"
	KindIncremental Kind = "incremental"
)

// Result is the outcome of one detection run. Exactly two
// implementations exist: FullRefresh and Incremental. Callers switch on
// the concrete type (or Kind) and must handle both.
type Result interface {
	Kind() Kind
	sealed()
}

// FullRefresh is produced when a changed file matches a solution-wide
// trigger pattern: every artifact must be reprocessed and the
// dependency graph was not consulted for scoping.
type FullRefresh struct {
	Reason       string   `json:"reason"`
	TriggerFiles []string `json:"trigger_files"`
	AllArtifacts []string `json:"all_artifacts"`
}

// Kind implements Result.
func (*FullRefresh) Kind() Kind { return KindFullRefresh }

func (*FullRefresh) sealed() {}

// MarshalJSON includes the discriminator alongside the payload fields.
func (r *FullRefresh) MarshalJSON() ([]byte, error) {
	type alias FullRefresh
	return json.Marshal(struct {
		Kind Kind `json:"kind"`
		*alias
	}{r.Kind(), (*alias)(r)})
}

// Incremental is produced when no trigger matched. AffectedArtifacts is
// already topologically ordered: dependencies before dependents.
type Incremental struct {
	ChangedFiles      []string    `json:"changed_files"`
	AffectedArtifacts []string    `json:"affected_artifacts"`
	DependencyChain   []graph.Hop `json:"dependency_chain"`
}

// Kind implements Result.
func (*Incremental) Kind() Kind { return KindIncremental }

func (*Incremental) sealed() {}

// MarshalJSON includes the discriminator alongside the payload fields.
func (r *Incremental) MarshalJSON() ([]byte, error) {
	type alias Incremental
	return json.Marshal(struct {
		Kind Kind `json:"kind"`
		*alias
	}{r.Kind(), (*alias)(r)})
}
