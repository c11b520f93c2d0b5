package runconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setEnv(t *testing.T, vals map[string]string) {
	t.Helper()
	for k, v := range vals {
		t.Setenv(k, v)
	}
}

func TestLoad_MissingCanonicalURLIsConfigError(t *testing.T) {
	setEnv(t, map[string]string{
		"STELE_DYNAMIC_URL": "postgres://dyn",
	})
	_, err := Load()
	require.Error(t, err)
	var cfgErr *ErrConfig
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "STELE_CANONICAL_URL", cfgErr.Field)
}

func TestLoad_SameNamespaceDatabaseRejected(t *testing.T) {
	setEnv(t, map[string]string{
		"STELE_DYNAMIC_URL":     "postgres://db",
		"STELE_DYNAMIC_NS":      "shared",
		"STELE_DYNAMIC_DB":      "shared",
		"STELE_CANONICAL_URL":   "postgres://db",
		"STELE_CANONICAL_NS":    "shared",
		"STELE_CANONICAL_DB":    "shared",
	})
	_, err := Load()
	require.Error(t, err)
}

func TestLoad_ValidConfig(t *testing.T) {
	setEnv(t, map[string]string{
		"STELE_DYNAMIC_URL":           "postgres://db",
		"STELE_DYNAMIC_NS":            "dyn_ns",
		"STELE_DYNAMIC_DB":            "dyn_db",
		"STELE_CANONICAL_URL":         "postgres://db",
		"STELE_CANONICAL_NS":          "can_ns",
		"STELE_CANONICAL_DB":          "can_db",
		"STELE_MIN_ITEM_CONFIDENCE":   "0.6",
		"STELE_MIN_PLAN_CONFIDENCE":   "0.7",
		"STELE_BP_FORCED_LEVEL":       "amber",
	})
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 0.6, cfg.MinItemConfidence)
	assert.Equal(t, 0.7, cfg.MinPlanConfidence)
	require.NotNil(t, cfg.Backpressure.ForcedLevel)
}

func TestLoad_OutOfRangeConfidenceRejected(t *testing.T) {
	setEnv(t, map[string]string{
		"STELE_DYNAMIC_URL":         "postgres://db",
		"STELE_CANONICAL_URL":       "postgres://db",
		"STELE_MIN_ITEM_CONFIDENCE": "1.5",
	})
	_, err := Load()
	require.Error(t, err)
}
