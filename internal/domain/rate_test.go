package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func meanPanel(t *testing.T, rows map[EntityID][]float64) WeeklyPanel {
	t.Helper()
	panel := panelOf(MetricCases, dateRange(t, "2020-01-26", 7), rows)
	weekly, err := Aggregate(panel, ModeMean, ComputeWeekPolicy(panel))
	require.NoError(t, err)
	return weekly
}

func TestNormalizeRates_PerHundredThousand(t *testing.T) {
	weekly := meanPanel(t, map[EntityID][]float64{"06037": constant(7, 50)})
	pop := populationOf(map[EntityID]int64{"06037": 1_000_000})

	rates, err := NormalizeRates(weekly, pop, IntegrityAbort)
	require.NoError(t, err)

	assert.Equal(t, []float64{5.0}, rates.Values["06037"])
	assert.Equal(t, weekly.Weeks, rates.Weeks)
	assert.Empty(t, rates.Skipped)
}

func TestNormalizeRates_ScaleConsistent(t *testing.T) {
	weekly := meanPanel(t, map[EntityID][]float64{
		"01001": {3, 1, 4, 1, 5, 9, 2},
		"06037": {2, 7, 1, 8, 2, 8, 1},
	})
	base := populationOf(map[EntityID]int64{"01001": 55_869, "06037": 10_039_107})
	doubled := populationOf(map[EntityID]int64{"01001": 111_738, "06037": 20_078_214})

	r1, err := NormalizeRates(weekly, base, IntegrityAbort)
	require.NoError(t, err)
	r2, err := NormalizeRates(weekly, doubled, IntegrityAbort)
	require.NoError(t, err)

	for _, id := range weekly.Entities {
		for i := range r1.Values[id] {
			assert.Equal(t, r1.Values[id][i]/2, r2.Values[id][i], "entity %s week %d", id, i)
		}
	}
}

func TestNormalizeRates_MissingPopulationIsAlignmentError(t *testing.T) {
	weekly := meanPanel(t, map[EntityID][]float64{
		"01001": constant(7, 1),
		"06037": constant(7, 1),
	})
	pop := populationOf(map[EntityID]int64{"01001": 55_869})

	for _, policy := range []IntegrityPolicy{IntegrityAbort, IntegritySkip} {
		_, err := NormalizeRates(weekly, pop, policy)
		var ae *AlignmentError
		require.True(t, errors.As(err, &ae), "policy %s: want AlignmentError, got %v", policy, err)
		assert.Equal(t, EntityID("06037"), ae.Entity)
	}
}

func TestNormalizeRates_ZeroPopulation(t *testing.T) {
	weekly := meanPanel(t, map[EntityID][]float64{
		"01001": constant(7, 1),
		"06000": constant(7, 4),
	})
	pop := populationOf(map[EntityID]int64{"01001": 100_000, "06000": 0})

	t.Run("abort", func(t *testing.T) {
		_, err := NormalizeRates(weekly, pop, IntegrityAbort)
		var ie *DataIntegrityError
		require.True(t, errors.As(err, &ie), "want DataIntegrityError, got %v", err)
		assert.Equal(t, "06000", ie.Entity)
	})

	t.Run("skip", func(t *testing.T) {
		rates, err := NormalizeRates(weekly, pop, IntegritySkip)
		require.NoError(t, err)
		assert.Equal(t, []EntityID{"01001"}, rates.Entities)
		assert.NotContains(t, rates.Values, EntityID("06000"))
		require.Len(t, rates.Skipped, 1)
		assert.Equal(t, EntityID("06000"), rates.Skipped[0].Entity)
		assert.Equal(t, []float64{1.0}, rates.Values["01001"])
	})
}

func TestNormalizeRates_IgnoresExtraPopulationEntries(t *testing.T) {
	weekly := meanPanel(t, map[EntityID][]float64{"01001": constant(7, 2)})
	pop := populationOf(map[EntityID]int64{"01001": 200_000, "56045": 6_927})

	rates, err := NormalizeRates(weekly, pop, IntegrityAbort)
	require.NoError(t, err)
	assert.Equal(t, []EntityID{"01001"}, rates.Entities)
}

func TestNormalizeRates_RequiresMeanMode(t *testing.T) {
	_, err := NormalizeRates(WeeklyPanel{Metric: MetricCases, Mode: ModeSum}, PopulationTable{}, IntegrityAbort)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mean mode")
}

func TestParseIntegrityPolicy(t *testing.T) {
	p, err := ParseIntegrityPolicy("skip")
	require.NoError(t, err)
	assert.Equal(t, IntegritySkip, p)
	assert.Equal(t, "skip", p.String())

	p, err = ParseIntegrityPolicy("abort")
	require.NoError(t, err)
	assert.Equal(t, IntegrityAbort, p)

	_, err = ParseIntegrityPolicy("ignore")
	assert.Error(t, err)
}
