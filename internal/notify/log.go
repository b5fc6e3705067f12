package notify

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// LogNotifier writes events to the log. It is the default provider and the
// audit trail next to the e-mail notifier.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("notify")}
}

func (n *LogNotifier) Notify(_ context.Context, e Event) error {
	fields := []zap.Field{
		zap.String("event", string(e.Type)),
		zap.String("tenant_id", e.TenantID.String()),
		zap.String("request_id", e.RequestID.String()),
		zap.String("hostname", e.Hostname),
	}

	switch e.Type {
	case EventSetupInstructions:
		fields = append(fields,
			zap.String("cname_target", e.CNAMETarget),
			zap.String("a_records", strings.Join(e.ARecords, ",")),
			zap.String("registrar", e.RegistrarHint),
		)
	case EventTimeoutHelp:
		fields = append(fields,
			zap.String("session_id", e.SessionID.String()),
			zap.String("reason", e.Reason),
		)
	}

	n.logger.Info("Tenant notification", fields...)
	return nil
}
