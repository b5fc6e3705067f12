package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/leozw/domain-activator/internal/metrics"
	"github.com/leozw/domain-activator/internal/queue"
)

// CommandSource is the consuming side of the command queue.
type CommandSource interface {
	Pop(ctx context.Context, timeout time.Duration) (*queue.Command, error)
}

// Worker drains the command queue into the Monitor.
type Worker struct {
	id          int
	source      CommandSource
	monitor     *Monitor
	metrics     *metrics.Collector
	logger      *zap.Logger
	pollTimeout time.Duration
	backoff     time.Duration
}

func NewWorker(id int, source CommandSource, monitor *Monitor, m *metrics.Collector, logger *zap.Logger) *Worker {
	return &Worker{
		id:          id,
		source:      source,
		monitor:     monitor,
		metrics:     m,
		logger:      logger.With(zap.Int("worker_id", id)),
		pollTimeout: 5 * time.Second,
		backoff:     time.Second,
	}
}

func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Worker stopped")
			return
		default:
		}

		cmd, err := w.source.Pop(ctx, w.pollTimeout)
		if err != nil {
			if errors.Is(err, queue.ErrTimeout) || ctx.Err() != nil {
				continue
			}
			w.logger.Error("Failed to pop command", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(w.backoff):
			}
			continue
		}

		w.process(ctx, cmd)
	}
}

func (w *Worker) process(ctx context.Context, cmd *queue.Command) {
	start := time.Now()
	log := w.logger.With(
		zap.String("command_id", cmd.ID),
		zap.String("command_type", string(cmd.Type)),
		zap.String("tenant_id", cmd.TenantID.String()),
		zap.String("request_id", cmd.RequestID.String()),
	)

	err := w.monitor.Handle(ctx, cmd)
	w.metrics.RecordCommand(string(cmd.Type), err)
	if err != nil {
		log.Warn("Command failed", zap.Error(err))
		return
	}

	log.Debug("Command processed", zap.Duration("duration", time.Since(start)))
}
