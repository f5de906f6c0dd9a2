package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/oddsline/internal/domain/scraperrun"
	qb "github.com/riskibarqy/oddsline/internal/platform/querybuilder"
)

type ScraperRunRepository struct {
	db *sqlx.DB
}

func NewScraperRunRepository(db *sqlx.DB) *ScraperRunRepository {
	return &ScraperRunRepository{db: db}
}

func (r *ScraperRunRepository) UpsertEvent(ctx context.Context, event scraperrun.Event) error {
	runID := strings.TrimSpace(event.RunID)
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	scraper := strings.TrimSpace(event.Scraper)
	if scraper == "" {
		scraper = "unknown"
	}

	occurredAt := event.OccurredAt.UTC()
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	statsJSON, err := marshalStats(event.Stats)
	if err != nil {
		return fmt.Errorf("marshal scraper run stats: %w", err)
	}

	model := scraperRunInsertModel{
		RunID:     runID,
		Scraper:   scraper,
		Status:    string(event.Status),
		Stats:     statsJSON,
		LastError: optionalString(event.ErrorMessage),
		TraceID:   optionalString(event.TraceID),
		SpanID:    optionalString(event.SpanID),
	}
	switch event.Status {
	case scraperrun.StatusStarted:
		model.StartedAt = &occurredAt
		model.LastError = nil
	case scraperrun.StatusCompleted:
		model.CompletedAt = &occurredAt
		model.LastError = nil
	case scraperrun.StatusFailed:
		model.FailedAt = &occurredAt
	}

	query, args, err := qb.InsertModel("scraper_runs", model, `ON CONFLICT (run_id)
DO UPDATE SET
    scraper = EXCLUDED.scraper,
    status = EXCLUDED.status,
    stats = CASE
        WHEN EXCLUDED.status = 'started' THEN scraper_runs.stats
        ELSE EXCLUDED.stats
    END,
    started_at = COALESCE(scraper_runs.started_at, EXCLUDED.started_at),
    completed_at = CASE
        WHEN EXCLUDED.status = 'completed' THEN EXCLUDED.completed_at
        ELSE scraper_runs.completed_at
    END,
    failed_at = CASE
        WHEN EXCLUDED.status = 'failed' THEN EXCLUDED.failed_at
        WHEN EXCLUDED.status = 'completed' THEN NULL
        ELSE scraper_runs.failed_at
    END,
    last_error = CASE
        WHEN EXCLUDED.status = 'failed' THEN EXCLUDED.last_error
        ELSE NULL
    END,
    trace_id = COALESCE(EXCLUDED.trace_id, scraper_runs.trace_id),
    span_id = COALESCE(EXCLUDED.span_id, scraper_runs.span_id),
    updated_at = NOW()`)
	if err != nil {
		return fmt.Errorf("build upsert scraper run query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert scraper run run_id=%s status=%s: %w", runID, event.Status, err)
	}
	return nil
}

func (r *ScraperRunRepository) ListRecent(ctx context.Context, scraper string, limit int) ([]scraperrun.Event, error) {
	builder := qb.Select("run_id", "scraper", "status", "stats::text AS stats", "last_error", "trace_id", "span_id", "updated_at").
		From("scraper_runs").
		OrderBy("updated_at DESC", "id DESC").
		Limit(limit)
	if scraper = strings.TrimSpace(scraper); scraper != "" {
		builder.Where(qb.Eq("scraper", scraper))
	}
	query, args, err := builder.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select scraper runs query: %w", err)
	}

	var rows []scraperRunTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select scraper runs: %w", err)
	}

	out := make([]scraperrun.Event, 0, len(rows))
	for _, row := range rows {
		event := scraperrun.Event{
			RunID:        row.RunID,
			Scraper:      row.Scraper,
			Status:       scraperrun.Status(row.Status),
			ErrorMessage: stringFromPtr(row.LastError),
			OccurredAt:   row.UpdatedAt.UTC(),
			TraceID:      stringFromPtr(row.TraceID),
			SpanID:       stringFromPtr(row.SpanID),
		}
		if row.Stats != "" && row.Stats != "{}" {
			stats := make(map[string]any)
			if err := sonic.UnmarshalString(row.Stats, &stats); err != nil {
				return nil, fmt.Errorf("decode scraper run stats run_id=%s: %w", row.RunID, err)
			}
			event.Stats = stats
		}
		out = append(out, event)
	}
	return out, nil
}

func marshalStats(stats map[string]any) (string, error) {
	if len(stats) == 0 {
		return "{}", nil
	}
	return sonic.MarshalString(stats)
}
