package lineage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/piimap/piimap/domain/recognition"
)

func TestNodeIDIsDeterministic(t *testing.T) {
	assert.Equal(t,
		NodeID("CRM", NodeColumn, "Customers", "Email"),
		NodeID("crm", NodeColumn, "customers", "email"),
	)
	assert.Equal(t, "crm:table:customers", NodeID("crm", NodeTable, "", "customers"))
	assert.Equal(t, "crm:column:customers:email", NodeID("crm", NodeColumn, "customers", "email"))
}

func TestRiskForEntity(t *testing.T) {
	assert.Equal(t, RiskHigh, RiskForEntity(recognition.EntityNationalID))
	assert.Equal(t, RiskHigh, RiskForEntity(recognition.EntityCreditCard))
	assert.Equal(t, RiskMedium, RiskForEntity(recognition.EntityEmail))
	assert.Equal(t, RiskMedium, RiskForEntity(recognition.EntityPhone))
	assert.Equal(t, RiskLow, RiskForEntity(recognition.EntityPerson))
}

func TestRiskMax(t *testing.T) {
	assert.Equal(t, RiskHigh, RiskLow.Max(RiskHigh))
	assert.Equal(t, RiskHigh, RiskHigh.Max(RiskNone))
	assert.Equal(t, RiskMedium, RiskMedium.Max(RiskLow))
}

func TestNodeWithPIIEscalatesRisk(t *testing.T) {
	n := NewNode("crm", NodeColumn, "customers", "nik")
	assert.Equal(t, RiskNone, n.Risk())
	assert.False(t, n.PIIPresent())

	n = n.WithPII(recognition.EntityNationalID)
	assert.True(t, n.PIIPresent())
	assert.Equal(t, recognition.EntityNationalID, n.PIIType())
	assert.Equal(t, RiskHigh, n.Risk())

	// A later, lower-risk detection never downgrades the node.
	n = n.WithPII(recognition.EntityPerson)
	assert.Equal(t, RiskHigh, n.Risk())
}

func TestNodeAddTags(t *testing.T) {
	n := NewNode("crm", NodeTable, "", "customers").
		AddTags(TagSensitive, "", TagSensitive, TagPropagated)

	assert.Equal(t, []string{TagSensitive, TagPropagated}, n.Tags())
	assert.True(t, n.HasTag(TagSensitive))
	assert.False(t, n.HasTag("other"))
}

func TestNodeMergeMetadata(t *testing.T) {
	n := NewNode("crm", NodeTable, "", "customers").
		MergeMetadata(map[string]string{"rows": "100", "engine": "postgres"})

	// Incoming values win on conflict.
	n = n.MergeMetadata(map[string]string{"rows": "250"})

	rows, ok := n.MetadataValue("rows")
	assert.True(t, ok)
	assert.Equal(t, "250", rows)

	engine, ok := n.MetadataValue("engine")
	assert.True(t, ok)
	assert.Equal(t, "postgres", engine)

	_, ok = n.MetadataValue("missing")
	assert.False(t, ok)
}

func TestEdgeIdentity(t *testing.T) {
	e := NewEdge("a", RelationProbableFlow, "b")
	assert.Equal(t, EdgeID("a", RelationProbableFlow, "b"), e.ID())
	assert.NotEqual(t, e.ID(), EdgeID("b", RelationProbableFlow, "a"))
}

func TestRelationIsFlow(t *testing.T) {
	flows := []Relation{
		RelationFlowsTo, RelationMapsTo, RelationProbableFlow,
		RelationExportFlow, RelationManualFlow,
	}
	for _, r := range flows {
		assert.True(t, r.IsFlow(), "%s should be a flow", r)
	}
	assert.False(t, RelationContains.IsFlow())
}
