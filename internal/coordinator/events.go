package coordinator

import (
	"time"

	"stpasec/internal/logging"
	"stpasec/internal/types"
)

// emit publishes a progress event without blocking: a slow or absent
// consumer never stalls the analysis. Dropped events are logged at debug.
func (c *Coordinator) emit(phase, agentType string, status types.ProgressStatus, message string) {
	if c.events == nil {
		return
	}
	ev := types.ProgressEvent{
		Timestamp: time.Now(),
		Phase:     phase,
		Agent:     agentType,
		Status:    status,
		Message:   message,
	}
	select {
	case c.events <- ev:
	default:
		logging.L(logging.CategoryCoordinator).Debugw("progress event dropped",
			"phase", phase, "agent", agentType, "status", status)
	}
}
