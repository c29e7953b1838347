package lineage

import (
	"fmt"
	"sort"
	"strings"

	"github.com/piimap/piimap/domain/recognition"
)

// NodeType classifies a lineage graph node.
type NodeType string

// NodeType values.
const (
	NodeSystem NodeType = "system"
	NodeTable  NodeType = "table"
	NodeColumn NodeType = "column"
	NodeBucket NodeType = "bucket"
	NodeFile   NodeType = "file"
)

// Node tags.
const (
	TagSensitive      = "Sensitive"
	TagPropagated     = "propagated"
	TagPossibleExport = "possible PII export"
)

// Risk is the coarse risk level attached to a node carrying PII.
type Risk string

// Risk values, ordered from none to high.
const (
	RiskNone   Risk = "none"
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

func (r Risk) rank() int {
	switch r {
	case RiskHigh:
		return 3
	case RiskMedium:
		return 2
	case RiskLow:
		return 1
	default:
		return 0
	}
}

// Max returns the higher of the two risks.
func (r Risk) Max(other Risk) Risk {
	if other.rank() > r.rank() {
		return other
	}
	return r
}

// RiskForEntity maps an entity type to a risk level.
func RiskForEntity(entityType recognition.EntityType) Risk {
	switch {
	case entityType.IsHighRisk():
		return RiskHigh
	case entityType.IsContact():
		return RiskMedium
	default:
		return RiskLow
	}
}

// NodeID derives the deterministic node identifier. The same logical asset
// always maps to the same node regardless of ingestion order.
func NodeID(system string, nodeType NodeType, parent, name string) string {
	slug := func(s string) string {
		return strings.ToLower(strings.TrimSpace(s))
	}
	if parent == "" {
		return fmt.Sprintf("%s:%s:%s", slug(system), nodeType, slug(name))
	}
	return fmt.Sprintf("%s:%s:%s:%s", slug(system), nodeType, slug(parent), slug(name))
}

// Node is one asset in the lineage graph.
type Node struct {
	id         string
	label      string
	nodeType   NodeType
	parent     string
	system     string
	metadata   map[string]string
	tags       []string
	piiPresent bool
	piiType    recognition.EntityType
	risk       Risk
}

// NewNode creates a Node with a derived deterministic ID.
func NewNode(system string, nodeType NodeType, parent, name string) Node {
	return Node{
		id:       NodeID(system, nodeType, parent, name),
		label:    name,
		nodeType: nodeType,
		parent:   parent,
		system:   system,
		risk:     RiskNone,
	}
}

// ID returns the deterministic node identifier.
func (n Node) ID() string { return n.id }

// Label returns the human-readable name.
func (n Node) Label() string { return n.label }

// Type returns the node type.
func (n Node) Type() NodeType { return n.nodeType }

// Parent returns the parent asset name, if any.
func (n Node) Parent() string { return n.parent }

// System returns the owning system name.
func (n Node) System() string { return n.system }

// Metadata returns a copy of the node's metadata.
func (n Node) Metadata() map[string]string {
	if n.metadata == nil {
		return nil
	}
	result := make(map[string]string, len(n.metadata))
	for k, v := range n.metadata {
		result[k] = v
	}
	return result
}

// MetadataValue returns one metadata value.
func (n Node) MetadataValue(key string) (string, bool) {
	v, ok := n.metadata[key]
	return v, ok
}

// Tags returns a sorted copy of the node's tags.
func (n Node) Tags() []string {
	result := make([]string, len(n.tags))
	copy(result, n.tags)
	sort.Strings(result)
	return result
}

// HasTag reports whether the node carries the tag.
func (n Node) HasTag(tag string) bool {
	for _, t := range n.tags {
		if t == tag {
			return true
		}
	}
	return false
}

// PIIPresent reports whether PII was confirmed on this node.
func (n Node) PIIPresent() bool { return n.piiPresent }

// PIIType returns the confirmed entity type, if any.
func (n Node) PIIType() recognition.EntityType { return n.piiType }

// Risk returns the node's risk level.
func (n Node) Risk() Risk { return n.risk }

// MergeMetadata returns a copy with the given metadata merged in. Incoming
// keys win.
func (n Node) MergeMetadata(metadata map[string]string) Node {
	if len(metadata) == 0 {
		return n
	}
	merged := make(map[string]string, len(n.metadata)+len(metadata))
	for k, v := range n.metadata {
		merged[k] = v
	}
	for k, v := range metadata {
		merged[k] = v
	}
	n.metadata = merged
	return n
}

// AddTags returns a copy with the tags unioned in. Tags are never removed.
func (n Node) AddTags(tags ...string) Node {
	if len(tags) == 0 {
		return n
	}
	seen := make(map[string]bool, len(n.tags)+len(tags))
	union := make([]string, 0, len(n.tags)+len(tags))
	for _, t := range n.tags {
		if !seen[t] {
			seen[t] = true
			union = append(union, t)
		}
	}
	for _, t := range tags {
		if t != "" && !seen[t] {
			seen[t] = true
			union = append(union, t)
		}
	}
	n.tags = union
	return n
}

// WithPII returns a copy marked as carrying PII of the given type. Risk only
// ever escalates.
func (n Node) WithPII(entityType recognition.EntityType) Node {
	n.piiPresent = true
	n.piiType = entityType
	n.risk = n.risk.Max(RiskForEntity(entityType))
	return n
}
