// Package reporter delivers playback results to a ticketing system and to event subscribers.
package reporter

import (
	"context"
	"encoding/json"

	"github.com/johnstarich/replayer/playback"
)

// DefaultSuiteTitle is used when a run does not name its suite
const DefaultSuiteTitle = "N/A"

// Report is a playback Result labeled with the test run that produced it
type Report struct {
	playback.Result
	TestName   string
	SuiteTitle string
	TestRunId  string
}

// Sink receives finished reports
type Sink interface {
	Send(ctx context.Context, report Report) error
}

// allowedFields are the only fields uploaded to a Sink. ErrorStack stays local.
var allowedFields = []string{
	"Status",
	"ErrorMessage",
	"ScreenshotBase64",
	"ScreenshotMissing",
	"DurationMs",
	"RunTime",
	"TestName",
	"SuiteTitle",
	"TestRunId",
}

// Values returns the report's allow-listed fields keyed by name
func (r Report) Values() map[string]interface{} {
	all := map[string]interface{}{
		"Status":            r.Status,
		"ErrorMessage":      r.ErrorMessage,
		"ErrorStack":        r.ErrorStack,
		"ScreenshotBase64":  r.ScreenshotBase64,
		"ScreenshotMissing": r.ScreenshotMissing,
		"DurationMs":        r.DurationMs,
		"RunTime":           r.RunTime,
		"TestName":          r.TestName,
		"SuiteTitle":        r.SuiteTitle,
		"TestRunId":         r.TestRunId,
	}
	values := make(map[string]interface{}, len(allowedFields))
	for _, field := range allowedFields {
		values[field] = all[field]
	}
	return values
}

// payload is the upload body shared by every Sink
func (r Report) payload() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"values": r.Values(),
	})
}
