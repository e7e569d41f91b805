package persistence

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"CascadeReplay/internal/capture"
	"CascadeReplay/internal/observability"
)

// SinkWorker drains the record channel and batch-writes to Postgres.
// It runs independently from the deterministic replay loop. The
// channel uses BLOCKING sends from the replayer, so if this worker
// falls behind, the replay stalls and no record is lost.
type SinkWorker struct {
	writer       *RecordWriter
	inputChan    <-chan *capture.Record
	batchSize    int
	flushTimeout time.Duration
	metrics      *observability.Metrics
	log          zerolog.Logger
}

func NewSinkWorker(
	writer *RecordWriter,
	inputChan <-chan *capture.Record,
	batchSize int,
	flushTimeout time.Duration,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *SinkWorker {
	return &SinkWorker{
		writer:       writer,
		inputChan:    inputChan,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		metrics:      metrics,
		log:          log,
	}
}

// Run batches incoming records and flushes when the batch fills or
// the flush timeout expires. Returns when the channel closes (after a
// final flush) or the context is cancelled.
func (sw *SinkWorker) Run(ctx context.Context) error {
	batch := make([]*capture.Record, 0, sw.batchSize)

	timer := time.NewTimer(sw.flushTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			if len(batch) > 0 {
				if err := sw.flush(context.Background(), batch); err != nil {
					sw.log.Error().Err(err).Msg("final flush failed")
				}
			}
			return ctx.Err()

		case rec, ok := <-sw.inputChan:
			if !ok {
				if len(batch) > 0 {
					if err := sw.flush(context.Background(), batch); err != nil {
						sw.log.Error().Err(err).Msg("final flush failed")
					}
				}
				return nil
			}

			batch = append(batch, rec)
			if len(batch) >= sw.batchSize {
				if err := sw.flushWithRetry(ctx, batch); err != nil {
					sw.log.Error().Err(err).Msg("batch flush failed after retries")
				}
				batch = batch[:0]
				timer.Reset(sw.flushTimeout)
			}

		case <-timer.C:
			if len(batch) > 0 {
				if err := sw.flushWithRetry(ctx, batch); err != nil {
					sw.log.Error().Err(err).Msg("timeout flush failed after retries")
				}
				batch = batch[:0]
			}
			timer.Reset(sw.flushTimeout)
		}
	}
}

// flushWithRetry retries with exponential backoff. The worker never
// drops records; it retries until the write succeeds or the context
// is cancelled, in which case a final flush is attempted.
func (sw *SinkWorker) flushWithRetry(ctx context.Context, batch []*capture.Record) error {
	backoff := 100 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			sw.log.Warn().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Int("records", len(batch)).
				Msg("sink retry")
			if sw.metrics != nil {
				sw.metrics.SinkRetry.Inc()
			}

			select {
			case <-ctx.Done():
				return sw.flush(context.Background(), batch)
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		err := sw.flush(ctx, batch)
		if err == nil {
			if attempt > 0 {
				sw.log.Info().Int("retries", attempt).Msg("sink flush recovered")
			}
			return nil
		}

		if sw.metrics != nil {
			sw.metrics.SinkErrors.WithLabelValues("write").Inc()
		}
	}
}

func (sw *SinkWorker) flush(ctx context.Context, batch []*capture.Record) error {
	start := time.Now()

	if err := sw.writer.WriteRecordBatch(ctx, batch); err != nil {
		return err
	}

	if sw.metrics != nil {
		sw.metrics.SinkBatchDuration.Observe(time.Since(start).Seconds())
		sw.metrics.SinkBatchSize.Observe(float64(len(batch)))
		sw.metrics.SinkRecordsWritten.Add(float64(len(batch)))
	}
	return nil
}
