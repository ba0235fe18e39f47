// internal/feedback/emitter.go
package feedback

import (
	"context"
	"sync"
	"time"

	"proposition-engine/internal/common/config"
	"proposition-engine/internal/common/errors"
	"proposition-engine/internal/common/logger"
	"proposition-engine/internal/common/metrics"
	"proposition-engine/internal/models"
)

// Sink persists batches of feedback events. Implementations must be
// idempotent on the event's idempotency key; the emitter may redeliver
// a batch after a transient failure.
type Sink interface {
	WriteBatch(ctx context.Context, events []models.FeedbackEvent) error
}

// Emitter decouples request handling from event persistence. Record
// never blocks: events go onto a bounded queue and a background worker
// drains them to the sink in batches. When the queue is full the oldest
// event is dropped and counted, so recent interactions win under
// backpressure.
type Emitter struct {
	queue        chan models.FeedbackEvent
	sink         Sink
	batchSize    int
	flushEvery   time.Duration
	drainTimeout time.Duration
	logger       logger.Logger

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewEmitter(sink Sink, cfg config.FeedbackConfig, log logger.Logger) *Emitter {
	e := &Emitter{
		queue:        make(chan models.FeedbackEvent, cfg.QueueSize),
		sink:         sink,
		batchSize:    cfg.BatchSize,
		flushEvery:   time.Duration(cfg.FlushInterval) * time.Millisecond,
		drainTimeout: time.Duration(cfg.DrainTimeout) * time.Millisecond,
		logger:       log,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	go e.run()
	return e
}

// Record enqueues an event without blocking. A full queue drops the
// oldest pending event to make room; if the race loses twice the new
// event itself is dropped. Each discarded event is counted.
func (e *Emitter) Record(ev models.FeedbackEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	select {
	case e.queue <- ev:
		metrics.FeedbackQueueDepth.Set(float64(len(e.queue)))
		return
	default:
	}

	// Queue full: shed the oldest event and retry once. The counter
	// moves only when an event is actually discarded.
	select {
	case <-e.queue:
		metrics.FeedbackDropped.Inc()
	default:
	}

	select {
	case e.queue <- ev:
	default:
		metrics.FeedbackDropped.Inc()
		e.logger.Warn("Feedback event dropped", map[string]interface{}{
			"user_id": ev.UserID,
			"error":   errors.NewQueueOverflowError(cap(e.queue)).Error(),
		})
	}
	metrics.FeedbackQueueDepth.Set(float64(len(e.queue)))
}

// Close stops the worker and drains whatever fits inside the grace
// period. Events still queued after the deadline are lost and logged.
func (e *Emitter) Close() {
	e.stopOnce.Do(func() {
		close(e.stop)
		<-e.done

		ctx, cancel := context.WithTimeout(context.Background(), e.drainTimeout)
		defer cancel()
		remaining := e.drainQueue()
		if len(remaining) > 0 {
			if err := e.flush(ctx, remaining); err != nil {
				e.logger.Error("Lost feedback events during shutdown", map[string]interface{}{
					"count": len(remaining),
					"error": err.Error(),
				})
			}
		}
	})
}

func (e *Emitter) run() {
	defer close(e.done)

	ticker := time.NewTicker(e.flushEvery)
	defer ticker.Stop()

	batch := make([]models.FeedbackEvent, 0, e.batchSize)
	for {
		select {
		case <-e.stop:
			if len(batch) > 0 {
				e.flushWithTimeout(batch)
			}
			return
		case ev := <-e.queue:
			batch = append(batch, ev)
			if len(batch) >= e.batchSize {
				e.flushWithTimeout(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				e.flushWithTimeout(batch)
				batch = batch[:0]
			}
		}
	}
}

func (e *Emitter) flushWithTimeout(batch []models.FeedbackEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), e.drainTimeout)
	defer cancel()
	if err := e.flush(ctx, batch); err != nil {
		e.logger.Warn("Feedback batch write failed", map[string]interface{}{
			"count": len(batch),
			"error": err.Error(),
		})
	}
}

func (e *Emitter) flush(ctx context.Context, batch []models.FeedbackEvent) error {
	if e.sink == nil {
		return nil
	}
	if err := e.sink.WriteBatch(ctx, batch); err != nil {
		return err
	}
	metrics.FeedbackPersisted.Add(float64(len(batch)))
	return nil
}

func (e *Emitter) drainQueue() []models.FeedbackEvent {
	var out []models.FeedbackEvent
	for {
		select {
		case ev := <-e.queue:
			out = append(out, ev)
		default:
			return out
		}
	}
}
