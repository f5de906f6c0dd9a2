package scraperrun

import "time"

type Status string

const (
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Event records one supervisor cycle. The started and the terminal event
// share a RunID and collapse into a single row.
type Event struct {
	RunID        string
	Scraper      string
	Status       Status
	Stats        map[string]any
	ErrorMessage string
	OccurredAt   time.Time
	TraceID      string
	SpanID       string
}
