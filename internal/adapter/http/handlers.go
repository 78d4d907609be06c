package http

import (
	"net/http"
	"time"

	"github.com/couchcryptid/county-rates-etl/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type errorResponse struct {
	Error string `json:"error"`
}

type metricsResponse struct {
	GeneratedAt time.Time `json:"generated_at"`
	Metrics     []string  `json:"metrics"`
}

type incidenceResponse struct {
	Metric        string                  `json:"metric"`
	GeneratedAt   time.Time               `json:"generated_at"`
	CompleteWeeks int                     `json:"complete_weeks"`
	ExcludedWeeks []string                `json:"excluded_weeks"`
	Points        []domain.IncidencePoint `json:"points"`
	CurrentWeek   *domain.IncidencePoint  `json:"current_week,omitempty"`
}

type ratesResponse struct {
	Metric      string                 `json:"metric"`
	GeneratedAt time.Time              `json:"generated_at"`
	Week        string                 `json:"week,omitempty"`
	Rows        []domain.LongRow       `json:"rows"`
	Skipped     []domain.SkippedEntity `json:"skipped,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: msg})
}

// latest returns the current report or writes 503 when no run has completed.
func (s *Server) latest(w http.ResponseWriter, r *http.Request) (domain.Report, bool) {
	report, ok := s.source.Latest()
	if !ok {
		writeError(w, r, http.StatusServiceUnavailable, "no completed run yet")
	}
	return report, ok
}

// metricReport resolves the {metric} URL parameter against the latest report.
func (s *Server) metricReport(w http.ResponseWriter, r *http.Request) (domain.Report, domain.MetricReport, bool) {
	report, ok := s.latest(w, r)
	if !ok {
		return domain.Report{}, domain.MetricReport{}, false
	}
	name := chi.URLParam(r, "metric")
	m, ok := report.Metric(name)
	if !ok {
		writeError(w, r, http.StatusNotFound, "unknown metric "+name)
		return domain.Report{}, domain.MetricReport{}, false
	}
	return report, m, true
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	report, ok := s.latest(w, r)
	if !ok {
		return
	}
	resp := metricsResponse{GeneratedAt: report.GeneratedAt, Metrics: make([]string, 0, len(report.Metrics))}
	for _, m := range report.Metrics {
		resp.Metrics = append(resp.Metrics, m.Metric)
	}
	render.JSON(w, r, resp)
}

func (s *Server) handleIncidence(w http.ResponseWriter, r *http.Request) {
	report, m, ok := s.metricReport(w, r)
	if !ok {
		return
	}
	render.JSON(w, r, incidenceResponse{
		Metric:        m.Metric,
		GeneratedAt:   report.GeneratedAt,
		CompleteWeeks: m.CompleteWeeks,
		ExcludedWeeks: m.ExcludedWeeks,
		Points:        m.Incidence.Points,
		CurrentWeek:   m.CurrentWeek,
	})
}

func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	report, m, ok := s.metricReport(w, r)
	if !ok {
		return
	}

	rows := m.Rates
	week := r.URL.Query().Get("week")
	if week != "" {
		if _, err := time.Parse(time.DateOnly, week); err != nil {
			writeError(w, r, http.StatusBadRequest, "week must be YYYY-MM-DD")
			return
		}
		rows = rows.FilterWeek(week)
		if len(rows.Rows) == 0 {
			writeError(w, r, http.StatusNotFound, "no complete week "+week+" for "+m.Metric)
			return
		}
	}

	resp := ratesResponse{
		Metric:      m.Metric,
		GeneratedAt: report.GeneratedAt,
		Week:        week,
		Rows:        rows.Rows,
		Skipped:     m.Skipped,
	}
	if resp.Rows == nil {
		resp.Rows = []domain.LongRow{}
	}
	render.JSON(w, r, resp)
}
