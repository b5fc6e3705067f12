package scheduler

import (
	"context"

	"github.com/leozw/domain-activator/internal/queue"
)

// DirectDispatcher applies commands to an in-process Monitor, for
// deployments that run the API and the sessions in one binary.
type DirectDispatcher struct {
	monitor *Monitor
}

func NewDirectDispatcher(m *Monitor) *DirectDispatcher {
	return &DirectDispatcher{monitor: m}
}

func (d *DirectDispatcher) Dispatch(ctx context.Context, cmd *queue.Command) error {
	return d.monitor.Handle(ctx, cmd)
}
