package recognition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFindingRejectsInvalidSpans(t *testing.T) {
	_, err := NewFinding(EntityEmail, -1, 5, "x", 0.9, "email")
	assert.Error(t, err)

	_, err = NewFinding(EntityEmail, 5, 5, "x", 0.9, "email")
	assert.Error(t, err)

	_, err = NewFinding(EntityEmail, 7, 3, "x", 0.9, "email")
	assert.Error(t, err)
}

func TestFindingOverlaps(t *testing.T) {
	a, err := NewFinding(EntityEmail, 0, 10, "a", 0.9, "email")
	require.NoError(t, err)
	b, err := NewFinding(EntityPhone, 5, 15, "b", 0.8, "phone")
	require.NoError(t, err)
	c, err := NewFinding(EntityPhone, 10, 20, "c", 0.8, "phone")
	require.NoError(t, err)

	assert.True(t, a.Overlaps(b))
	assert.True(t, b.Overlaps(a))

	// Adjacent spans do not overlap.
	assert.False(t, a.Overlaps(c))
	assert.False(t, c.Overlaps(a))
}

func TestFindingWithLocation(t *testing.T) {
	f, err := NewFinding(EntityEmail, 0, 5, "x", 0.9, "email")
	require.NoError(t, err)
	assert.Empty(t, f.Location())

	located := f.WithLocation("row 3")
	assert.Equal(t, "row 3", located.Location())
	assert.Empty(t, f.Location())
}

func TestEntityTypeHeuristicClasses(t *testing.T) {
	assert.True(t, EntityPerson.IsPersonLike())
	assert.True(t, EntityType("MOTHER_NAME").IsPersonLike())
	assert.False(t, EntityEmail.IsPersonLike())

	assert.True(t, EntityDateTime.IsDateLike())
	assert.True(t, EntityType("BIRTH_DATE").IsDateLike())

	assert.True(t, EntityPhone.IsPhoneLike())
	assert.True(t, EntityServiceID.IsShortNumeric())
	assert.True(t, EntityInsuranceID.IsShortNumeric())
	assert.False(t, EntityEmail.IsShortNumeric())

	assert.True(t, EntityEmail.IsContact())
	assert.True(t, EntityPhone.IsContact())
	assert.False(t, EntityPerson.IsContact())
}

func TestEntityTypeIsHighRisk(t *testing.T) {
	highRisk := []EntityType{
		EntityNationalID, EntityTaxID, EntityFamilyID,
		EntityInsuranceID, EntityBankAccount, EntityCreditCard,
	}
	for _, e := range highRisk {
		assert.True(t, e.IsHighRisk(), "%s should be high risk", e)
	}

	assert.False(t, EntityEmail.IsHighRisk())
	assert.False(t, EntityPerson.IsHighRisk())
}
