package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httpadapter "github.com/couchcryptid/county-rates-etl/internal/adapter/http"
	"github.com/couchcryptid/county-rates-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSource struct {
	report *domain.Report
}

func (m *mockSource) CheckReadiness(_ context.Context) error {
	if m.report == nil {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

func (m *mockSource) Latest() (domain.Report, bool) {
	if m.report == nil {
		return domain.Report{}, false
	}
	return *m.report, true
}

func testReport() *domain.Report {
	end := time.Date(2020, time.February, 8, 0, 0, 0, 0, time.UTC)
	current := domain.IncidencePoint{Week: "2020-02-08", WeekEnd: end, Total: 600}
	return &domain.Report{
		GeneratedAt: time.Date(2020, time.February, 10, 12, 0, 0, 0, time.UTC),
		Metrics: []domain.MetricReport{
			{
				Metric:        domain.MetricCases,
				CompleteWeeks: 2,
				ExcludedWeeks: []string{"2020-01-25"},
				Incidence: domain.IncidenceSeries{Metric: domain.MetricCases, Points: []domain.IncidencePoint{
					{Week: "2020-02-01", WeekEnd: end.AddDate(0, 0, -7), Total: 560},
					current,
				}},
				CurrentWeek: &current,
				Rates: domain.LongPanel{Metric: domain.MetricCases, Rows: []domain.LongRow{
					{Entity: "01001", Week: "2020-02-01", Value: 10},
					{Entity: "01001", Week: "2020-02-08", Value: 11},
					{Entity: "06037", Week: "2020-02-01", Value: 7},
					{Entity: "06037", Week: "2020-02-08", Value: 7.5},
				}},
				Entities: 2,
			},
			{Metric: domain.MetricDeaths},
		},
	}
}

func serve(t *testing.T, source *mockSource, target string) *httptest.ResponseRecorder {
	t.Helper()
	srv := httpadapter.NewServer(":0", source, slog.Default())
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthzReturns200(t *testing.T) {
	rec := serve(t, &mockSource{}, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyz(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, serve(t, &mockSource{}, "/readyz").Code)
	assert.Equal(t, http.StatusOK, serve(t, &mockSource{report: testReport()}, "/readyz").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := serve(t, &mockSource{}, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestResultsBeforeFirstRun(t *testing.T) {
	for _, target := range []string{"/v1/metrics", "/v1/incidence/cases", "/v1/rates/cases"} {
		rec := serve(t, &mockSource{}, target)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, target)
		body := decode[map[string]string](t, rec)
		assert.Equal(t, "no completed run yet", body["error"])
	}
}

func TestListMetrics(t *testing.T) {
	rec := serve(t, &mockSource{report: testReport()}, "/v1/metrics")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[struct {
		Metrics []string `json:"metrics"`
	}](t, rec)
	assert.Equal(t, []string{"cases", "deaths"}, body.Metrics)
}

func TestIncidence(t *testing.T) {
	rec := serve(t, &mockSource{report: testReport()}, "/v1/incidence/cases")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	body := decode[struct {
		Metric        string                  `json:"metric"`
		ExcludedWeeks []string                `json:"excluded_weeks"`
		Points        []domain.IncidencePoint `json:"points"`
		CurrentWeek   *domain.IncidencePoint  `json:"current_week"`
	}](t, rec)
	assert.Equal(t, "cases", body.Metric)
	assert.Equal(t, []string{"2020-01-25"}, body.ExcludedWeeks)
	require.Len(t, body.Points, 2)
	require.NotNil(t, body.CurrentWeek)
	assert.Equal(t, 600.0, body.CurrentWeek.Total)
}

func TestIncidence_UnknownMetric(t *testing.T) {
	rec := serve(t, &mockSource{report: testReport()}, "/v1/incidence/hospitalizations")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRates(t *testing.T) {
	source := &mockSource{report: testReport()}

	t.Run("all weeks", func(t *testing.T) {
		rec := serve(t, source, "/v1/rates/cases")
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode[struct {
			Rows []domain.LongRow `json:"rows"`
		}](t, rec)
		assert.Len(t, body.Rows, 4)
	})

	t.Run("one week", func(t *testing.T) {
		rec := serve(t, source, "/v1/rates/cases?week=2020-02-08")
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode[struct {
			Week string           `json:"week"`
			Rows []domain.LongRow `json:"rows"`
		}](t, rec)
		assert.Equal(t, "2020-02-08", body.Week)
		assert.Equal(t, []domain.LongRow{
			{Entity: "01001", Week: "2020-02-08", Value: 11},
			{Entity: "06037", Week: "2020-02-08", Value: 7.5},
		}, body.Rows)
	})

	t.Run("excluded week", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, serve(t, source, "/v1/rates/cases?week=2020-01-25").Code)
	})

	t.Run("malformed week", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, serve(t, source, "/v1/rates/cases?week=02/08/2020").Code)
	})

	t.Run("metric without rows", func(t *testing.T) {
		rec := serve(t, source, "/v1/rates/deaths")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"rows":[]`)
	})
}
