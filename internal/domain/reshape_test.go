package domain

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoWeekRates(t *testing.T) RatePanel {
	t.Helper()
	weeks := []WeekBucket{
		{End: day(t, "2020-02-01"), Observed: 7},
		{End: day(t, "2020-02-08"), Observed: 7},
	}
	return RatePanel{
		Metric:   MetricCases,
		Weeks:    weeks,
		Entities: []EntityID{"01001", "06037"},
		Values: map[EntityID][]float64{
			"01001": {1.5, 2.5},
			"06037": {5, 7.25},
		},
	}
}

func TestMelt(t *testing.T) {
	long := Melt(twoWeekRates(t))

	expected := LongPanel{
		Metric: MetricCases,
		Rows: []LongRow{
			{Entity: "01001", Week: "2020-02-01", Value: 1.5},
			{Entity: "01001", Week: "2020-02-08", Value: 2.5},
			{Entity: "06037", Week: "2020-02-01", Value: 5},
			{Entity: "06037", Week: "2020-02-08", Value: 7.25},
		},
	}
	if diff := cmp.Diff(expected, long); diff != "" {
		t.Errorf("Melt mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"2020-02-01", "2020-02-08"}, long.Weeks())
}

func TestMelt_Empty(t *testing.T) {
	long := Melt(RatePanel{Metric: MetricDeaths})
	assert.Empty(t, long.Rows)
	assert.Equal(t, MetricDeaths, long.Metric)
}

func TestWiden_RoundTrip(t *testing.T) {
	rates := twoWeekRates(t)

	wide, err := Widen(Melt(rates))
	require.NoError(t, err)

	expected := WideTable{
		Metric:   MetricCases,
		Weeks:    []string{"2020-02-01", "2020-02-08"},
		Entities: rates.Entities,
		Values:   rates.Values,
	}
	if diff := cmp.Diff(expected, wide); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestWiden_Errors(t *testing.T) {
	t.Run("duplicate", func(t *testing.T) {
		long := LongPanel{Metric: MetricCases, Rows: []LongRow{
			{Entity: "01001", Week: "2020-02-01", Value: 1},
			{Entity: "01001", Week: "2020-02-01", Value: 2},
		}}
		_, err := Widen(long)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate")
	})

	t.Run("missing", func(t *testing.T) {
		long := LongPanel{Metric: MetricCases, Rows: []LongRow{
			{Entity: "01001", Week: "2020-02-01", Value: 1},
			{Entity: "01001", Week: "2020-02-08", Value: 2},
			{Entity: "06037", Week: "2020-02-01", Value: 3},
		}}
		_, err := Widen(long)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing row for 06037 week 2020-02-08")
	})
}

func TestLongPanel_FilterWeek(t *testing.T) {
	long := Melt(twoWeekRates(t))

	week := long.FilterWeek("2020-02-08")
	assert.Equal(t, []LongRow{
		{Entity: "01001", Week: "2020-02-08", Value: 2.5},
		{Entity: "06037", Week: "2020-02-08", Value: 7.25},
	}, week.Rows)

	assert.Empty(t, long.FilterWeek("1999-01-02").Rows)
}
