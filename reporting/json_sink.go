package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/ethereum/go-ethereum/log"

	"github.com/gauntlet-run/gauntlet/events"
	"github.com/gauntlet-run/gauntlet/types"
)

// jsonEvent is the NDJSON line written for every lifecycle event. Error text
// is flattened to a string with ANSI escapes stripped so downstream tooling
// gets clean machine-readable output.
type jsonEvent struct {
	Time              time.Time        `json:"time"`
	Event             events.Kind      `json:"event"`
	Group             string           `json:"group,omitempty"`
	Test              string           `json:"test,omitempty"`
	Status            types.TestStatus `json:"status,omitempty"`
	DurationMS        int64            `json:"duration_ms,omitempty"`
	Error             string           `json:"error,omitempty"`
	TimedOut          bool             `json:"timed_out,omitempty"`
	Regression        bool             `json:"regression,omitempty"`
	RegressionMessage string           `json:"regression_message,omitempty"`
	RunID             string           `json:"run_id,omitempty"`
	Passed            int              `json:"passed,omitempty"`
	Failed            int              `json:"failed,omitempty"`
	Skipped           int              `json:"skipped,omitempty"`
	Todo              int              `json:"todo,omitempty"`
}

// JSONReporter streams lifecycle events as NDJSON to a file under the output
// directory. The file is named run-<id>.json once the run id is known; events
// emitted before that are buffered.
type JSONReporter struct {
	logger log.Logger
	outDir string

	buffered []jsonEvent
	file     *os.File
}

// NewJSONReporter creates a JSON reporter writing under outDir. The directory
// is created on demand.
func NewJSONReporter(logger log.Logger, outDir string) *JSONReporter {
	return &JSONReporter{logger: logger, outDir: outDir}
}

// HandleEvent implements events.Subscriber.
func (j *JSONReporter) HandleEvent(ev events.Event) {
	line := jsonEvent{Time: time.Now(), Event: ev.Kind}

	switch ev.Kind {
	case events.KindGroupStart, events.KindGroupEnd:
		line.Group = ev.Group
	case events.KindTestEnd:
		line.Group = ev.Test.Group
		line.Test = ev.Test.Title
		line.Status = ev.Test.Status
		line.DurationMS = ev.Test.Duration.Milliseconds()
		line.TimedOut = ev.Test.TimedOut
		line.Regression = ev.Test.Regression
		line.RegressionMessage = ev.Test.RegressionMessage
		if ev.Test.Error != nil {
			line.Error = stripansi.Strip(ev.Test.Error.Error())
		}
	case events.KindEnd:
		line.RunID = ev.Run.RunID
		line.Status = ev.Run.Status
		line.DurationMS = ev.Run.Duration.Milliseconds()
		line.Passed = ev.Run.Stats.Passed
		line.Failed = ev.Run.Stats.Failed
		line.Skipped = ev.Run.Stats.Skipped
		line.Todo = ev.Run.Stats.Todo
	}

	j.buffered = append(j.buffered, line)
	if ev.Kind == events.KindEnd {
		if err := j.flush(ev.Run.RunID); err != nil {
			j.logger.Error("failed to write JSON report", "err", err)
		}
	}
}

// Path returns the file the report was written to, empty before the run ends.
func (j *JSONReporter) Path() string {
	if j.file == nil {
		return ""
	}
	return j.file.Name()
}

// flush writes the buffered events to run-<id>.json, one JSON object per
// line.
func (j *JSONReporter) flush(runID string) error {
	if err := os.MkdirAll(j.outDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", j.outDir, err)
	}

	path := filepath.Join(j.outDir, fmt.Sprintf("run-%s.json", runID))
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file %s: %w", path, err)
	}
	j.file = file
	defer func() {
		_ = file.Close()
	}()

	enc := json.NewEncoder(file)
	for _, line := range j.buffered {
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
	j.buffered = nil

	j.logger.Info("wrote JSON report", "path", path, "run_id", runID)
	return nil
}
