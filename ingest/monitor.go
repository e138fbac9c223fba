package ingest

import (
	"log/slog"

	"github.com/poiesic/expensit/core"
)

// Monitor provides hooks to observe ingestion attempts.
// Implement this interface to track state transitions and compensation
// events; the default is a no-op.
type Monitor interface {
	AttemptStarted(tenantID core.ID, source core.SourceChannel)
	Transition(tenantID core.ID, from, to State)
	QuotaReserved(tenantID core.ID, remaining int64)
	CompensationApplied(tenantID core.ID)
	CompensationFailed(tenantID core.ID, err error)
	AttemptFinished(tenantID core.ID, final State, err error)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) AttemptStarted(_ core.ID, _ core.SourceChannel) {}
func (n *noopMonitor) Transition(_ core.ID, _, _ State)               {}
func (n *noopMonitor) QuotaReserved(_ core.ID, _ int64)               {}
func (n *noopMonitor) CompensationApplied(_ core.ID)                  {}
func (n *noopMonitor) CompensationFailed(_ core.ID, _ error)          {}
func (n *noopMonitor) AttemptFinished(_ core.ID, _ State, _ error)    {}

// LogMonitor writes attempt progress to a slog.Logger. The server and
// CLI install it; compensation failures log at error level because they
// leave counter drift for the reconciliation pass to repair.
type LogMonitor struct {
	logger *slog.Logger
}

var _ Monitor = (*LogMonitor)(nil)

// NewLogMonitor creates a Monitor logging to logger, or slog.Default()
// when nil.
func NewLogMonitor(logger *slog.Logger) *LogMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMonitor{logger: logger.With("component", "ingest-monitor")}
}

func (m *LogMonitor) AttemptStarted(tenantID core.ID, source core.SourceChannel) {
	m.logger.Debug("ingestion attempt started", "tenant", tenantID, "source", source.String())
}

func (m *LogMonitor) Transition(tenantID core.ID, from, to State) {
	m.logger.Debug("ingestion state transition", "tenant", tenantID, "from", from.String(), "to", to.String())
}

func (m *LogMonitor) QuotaReserved(tenantID core.ID, remaining int64) {
	m.logger.Debug("quota slot reserved", "tenant", tenantID, "remaining", remaining)
}

func (m *LogMonitor) CompensationApplied(tenantID core.ID) {
	m.logger.Info("quota reservation released", "tenant", tenantID)
}

func (m *LogMonitor) CompensationFailed(tenantID core.ID, err error) {
	m.logger.Error("quota compensation failed, counter drifts until reconciliation",
		"tenant", tenantID, "err", err)
}

func (m *LogMonitor) AttemptFinished(tenantID core.ID, final State, err error) {
	if err != nil {
		m.logger.Info("ingestion attempt failed", "tenant", tenantID, "state", final.String(), "err", err)
		return
	}
	m.logger.Info("ingestion attempt finished", "tenant", tenantID, "state", final.String())
}
