package postgres

import "time"

type scraperRunInsertModel struct {
	RunID       string     `db:"run_id"`
	Scraper     string     `db:"scraper"`
	Status      string     `db:"status"`
	Stats       string     `db:"stats"`
	StartedAt   *time.Time `db:"started_at"`
	CompletedAt *time.Time `db:"completed_at"`
	FailedAt    *time.Time `db:"failed_at"`
	LastError   *string    `db:"last_error"`
	TraceID     *string    `db:"trace_id"`
	SpanID      *string    `db:"span_id"`
}

type scraperRunTableModel struct {
	RunID     string    `db:"run_id"`
	Scraper   string    `db:"scraper"`
	Status    string    `db:"status"`
	Stats     string    `db:"stats"`
	LastError *string   `db:"last_error"`
	TraceID   *string   `db:"trace_id"`
	SpanID    *string   `db:"span_id"`
	UpdatedAt time.Time `db:"updated_at"`
}
