package gauntlet

import (
	"github.com/gauntlet-run/gauntlet/events"
	"github.com/gauntlet-run/gauntlet/metrics"
	"github.com/gauntlet-run/gauntlet/types"
)

// MetricsRecorder feeds run outcomes into the metrics system. It is not a
// reporter in the configuration sense; it rides alongside the primary
// reporter as ambient instrumentation.
type MetricsRecorder struct {
	tests []*types.TestResult
}

// NewMetricsRecorder creates a new MetricsRecorder.
func NewMetricsRecorder() *MetricsRecorder {
	return &MetricsRecorder{}
}

// HandleEvent implements events.Subscriber. Test results are buffered until
// the end event carries the run id the metric labels need.
func (m *MetricsRecorder) HandleEvent(ev events.Event) {
	switch ev.Kind {
	case events.KindTestEnd:
		m.tests = append(m.tests, ev.Test)
	case events.KindEnd:
		for _, test := range m.tests {
			metrics.RecordTest(ev.Run.RunID, test.Group, test.Status)
		}
		metrics.RecordRun(
			ev.Run.RunID,
			string(ev.Run.Status),
			ev.Run.Stats.Total,
			ev.Run.Stats.Passed,
			ev.Run.Stats.Failed,
			ev.Run.Duration,
		)
		m.tests = nil
	}
}
