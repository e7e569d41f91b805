package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"CascadeReplay/internal/capture"
	"CascadeReplay/internal/observability"
)

// RecordPublisher publishes trigger records to NATS for downstream
// consumers (dashboards, alerting). Subjects follow the pattern:
// cascade.replay.records.{coin}
type RecordPublisher struct {
	js        jetstream.JetStream
	runID     string
	inputChan <-chan *capture.Record
	metrics   *observability.Metrics
	log       zerolog.Logger
}

// publishedRecord is the wire envelope around a trigger record.
type publishedRecord struct {
	RunID       string          `json:"run_id"`
	Record      *capture.Record `json:"record"`
	PublishedAt time.Time       `json:"published_at"`
}

func NewRecordPublisher(
	js jetstream.JetStream,
	runID string,
	inputChan <-chan *capture.Record,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *RecordPublisher {
	return &RecordPublisher{
		js:        js,
		runID:     runID,
		inputChan: inputChan,
		metrics:   metrics,
		log:       log,
	}
}

// Run drains the record channel until it closes or ctx is cancelled.
// Publish failures are non-fatal: a consumer can always re-read the
// run's records from the Postgres sink.
func (rp *RecordPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case rec, ok := <-rp.inputChan:
			if !ok {
				return nil
			}

			if err := rp.publish(ctx, rec); err != nil {
				if rp.metrics != nil {
					rp.metrics.PublishErrors.Inc()
				}
				rp.log.Warn().Err(err).
					Str("account", rec.Account).
					Str("coin", rec.Coin).
					Msg("record publish failed")
				continue
			}
			if rp.metrics != nil {
				rp.metrics.PublishRecords.Inc()
			}
		}
	}
}

func (rp *RecordPublisher) publish(ctx context.Context, rec *capture.Record) error {
	data, err := json.Marshal(publishedRecord{
		RunID:       rp.runID,
		Record:      rec,
		PublishedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	subject := "cascade.replay.records"
	if rec.Coin != "" {
		subject = fmt.Sprintf("%s.%s", subject, rec.Coin)
	}

	_, err = rp.js.Publish(ctx, subject, data)
	return err
}

// Connect dials NATS with the retry options used across the project.
func Connect(url string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("create jetstream context: %w", err)
	}
	return nc, js, nil
}

// EnsureRecordStream creates the records stream if it does not exist.
func EnsureRecordStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "CASCADE_REPLAY_RECORDS",
		Subjects:  []string{"cascade.replay.records.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create records stream: %w", err)
	}
	return nil
}
