package recognition

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTierRank(t *testing.T) {
	assert.Equal(t, 0, TierGeneralOther.Rank())
	assert.Equal(t, 1, TierGeneral.Rank())
	assert.Equal(t, 2, TierSensitive.Rank())
	assert.Equal(t, 0, Tier("made up").Rank())
}

func TestTierEscalate(t *testing.T) {
	assert.Equal(t, TierSensitive, TierGeneral.Escalate(TierSensitive))
	assert.Equal(t, TierSensitive, TierSensitive.Escalate(TierGeneral))
	assert.Equal(t, TierGeneral, TierGeneral.Escalate(TierGeneralOther))
	assert.Equal(t, TierGeneralOther, TierGeneralOther.Escalate(TierGeneralOther))
}

func TestTierIsStrictest(t *testing.T) {
	assert.True(t, TierSensitive.IsStrictest())
	assert.False(t, TierGeneral.IsStrictest())
	assert.False(t, TierGeneralOther.IsStrictest())
}
