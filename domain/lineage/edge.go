package lineage

import "fmt"

// Relation classifies a lineage edge.
type Relation string

// Relation values.
const (
	RelationContains     Relation = "contains"
	RelationFlowsTo      Relation = "flows_to"
	RelationMapsTo       Relation = "maps_to"
	RelationProbableFlow Relation = "probable_flow"
	RelationExportFlow   Relation = "export_flow"
	RelationManualFlow   Relation = "manual_flow"
)

// IsFlow reports whether the relation carries data between assets, as
// opposed to structural containment.
func (r Relation) IsFlow() bool {
	return r != RelationContains
}

// EdgeID derives the deterministic edge identifier. An edge is unique per
// (source, relation, destination) triple.
func EdgeID(src string, relation Relation, dst string) string {
	return fmt.Sprintf("%s|%s|%s", src, relation, dst)
}

// Edge is one directed relation in the lineage graph.
type Edge struct {
	id       string
	src      string
	dst      string
	relation Relation
}

// NewEdge creates an Edge with a derived deterministic ID.
func NewEdge(src string, relation Relation, dst string) Edge {
	return Edge{
		id:       EdgeID(src, relation, dst),
		src:      src,
		dst:      dst,
		relation: relation,
	}
}

// ID returns the deterministic edge identifier.
func (e Edge) ID() string { return e.id }

// Src returns the source node ID.
func (e Edge) Src() string { return e.src }

// Dst returns the destination node ID.
func (e Edge) Dst() string { return e.dst }

// Relation returns the edge relation.
func (e Edge) Relation() Relation { return e.relation }
