package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/county-rates-etl/internal/config"
	"github.com/couchcryptid/county-rates-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer used by Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes weekly incidence points and county rates to Kafka.
// It implements pipeline.Loader.
type Writer struct {
	incidence messageWriter
	rates     messageWriter
	batchSize int
	logger    *slog.Logger

	mu       sync.Mutex
	progress progress
}

// progress counts the messages of a partially published report that the
// brokers already acknowledged.
type progress struct {
	generatedAt time.Time
	incidence   int
	rates       int
}

// NewWriter creates producers for the incidence and rate topics.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	return newWriter(
		newTopicWriter(cfg.KafkaBrokers, cfg.KafkaIncidenceTopic),
		newTopicWriter(cfg.KafkaBrokers, cfg.KafkaRateTopic),
		cfg.BatchSize,
		logger,
	)
}

func newTopicWriter(brokers []string, topic string) *kafkago.Writer {
	return &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
}

func newWriter(incidence, rates messageWriter, batchSize int, logger *slog.Logger) *Writer {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Writer{incidence: incidence, rates: rates, batchSize: batchSize, logger: logger}
}

func (w *Writer) Name() string { return "kafka" }

// Load publishes every incidence point and rate row of the report, writing
// at most batchSize messages per call. It returns the number of messages in
// the report.
//
// A failed Load remembers which batches were acknowledged. Loading the same
// report again, identified by its GeneratedAt, resumes after them instead of
// republishing the whole report. A batch that failed midway is sent again in
// full; consumers see the same keys and values for those messages.
func (w *Writer) Load(ctx context.Context, report domain.Report) (int, error) {
	var incidence, rates []kafkago.Message
	for _, m := range report.Metrics {
		for _, p := range m.Incidence.Points {
			msg, err := incidenceMessage(m.Metric, p, report.GeneratedAt)
			if err != nil {
				return 0, err
			}
			incidence = append(incidence, msg)
		}
		for _, r := range m.Rates.Rows {
			msg, err := rateMessage(m.Metric, r, report.GeneratedAt)
			if err != nil {
				return 0, err
			}
			rates = append(rates, msg)
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.progress.generatedAt.Equal(report.GeneratedAt) {
		w.progress = progress{generatedAt: report.GeneratedAt}
	}
	if w.progress.incidence > 0 || w.progress.rates > 0 {
		w.logger.Info("resuming kafka publish",
			"incidence_done", w.progress.incidence,
			"rates_done", w.progress.rates,
		)
	}

	sent, err := w.writeBatches(ctx, w.incidence, incidence[w.progress.incidence:])
	w.progress.incidence += sent
	if err != nil {
		return 0, fmt.Errorf("publish incidence: %w", err)
	}
	sent, err = w.writeBatches(ctx, w.rates, rates[w.progress.rates:])
	w.progress.rates += sent
	if err != nil {
		return 0, fmt.Errorf("publish rates: %w", err)
	}

	w.progress = progress{}
	w.logger.Debug("kafka publish complete", "incidence", len(incidence), "rates", len(rates))
	return len(incidence) + len(rates), nil
}

// writeBatches writes msgs in chunks and returns how many were acknowledged
// before the first failure.
func (w *Writer) writeBatches(ctx context.Context, mw messageWriter, msgs []kafkago.Message) (int, error) {
	sent := 0
	for start := 0; start < len(msgs); start += w.batchSize {
		end := min(start+w.batchSize, len(msgs))
		if err := mw.WriteMessages(ctx, msgs[start:end]...); err != nil {
			return sent, err
		}
		sent = end
	}
	return sent, nil
}

// Close closes both producers.
func (w *Writer) Close() error {
	ierr := w.incidence.Close()
	rerr := w.rates.Close()
	if ierr != nil {
		return ierr
	}
	return rerr
}

// IncidenceMessage is the value published for one national weekly total.
type IncidenceMessage struct {
	Metric      string    `json:"metric"`
	Week        string    `json:"week"`
	WeekEnd     time.Time `json:"week_end"`
	Total       float64   `json:"total"`
	GeneratedAt time.Time `json:"generated_at"`
}

// RateMessage is the value published for one county's weekly rate.
type RateMessage struct {
	Metric      string    `json:"metric"`
	CountyFIPS  string    `json:"county_fips"`
	Week        string    `json:"week"`
	RatePer100K float64   `json:"rate_per_100k"`
	GeneratedAt time.Time `json:"generated_at"`
}

func incidenceMessage(metric string, p domain.IncidencePoint, generatedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(IncidenceMessage{
		Metric:      metric,
		Week:        p.Week,
		WeekEnd:     p.WeekEnd,
		Total:       p.Total,
		GeneratedAt: generatedAt,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize incidence point: %w", err)
	}
	return kafkago.Message{
		Key:     []byte(metric + "|" + p.Week),
		Value:   data,
		Headers: headers(metric, generatedAt),
	}, nil
}

func rateMessage(metric string, r domain.LongRow, generatedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(RateMessage{
		Metric:      metric,
		CountyFIPS:  string(r.Entity),
		Week:        r.Week,
		RatePer100K: r.Value,
		GeneratedAt: generatedAt,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize rate row: %w", err)
	}
	return kafkago.Message{
		Key:     []byte(metric + "|" + string(r.Entity) + "|" + r.Week),
		Value:   data,
		Headers: headers(metric, generatedAt),
	}, nil
}

func headers(metric string, generatedAt time.Time) []kafkago.Header {
	return []kafkago.Header{
		{Key: "metric", Value: []byte(metric)},
		{Key: "generated_at", Value: []byte(generatedAt.Format(time.RFC3339))},
	}
}
