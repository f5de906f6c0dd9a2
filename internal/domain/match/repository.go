package match

import (
	"context"
	"time"
)

// Repository owns the Match/Market/Outcome lifecycle.
type Repository interface {
	// ListActive returns upcoming, live and halftime matches with their markets.
	ListActive(ctx context.Context) ([]Match, error)
	GetByID(ctx context.Context, id int64) (Match, bool, error)
	// Create persists the match with its markets and returns it with its id.
	Create(ctx context.Context, m Match) (Match, error)
	// Update writes mutable fields and upserts markets/outcomes by (market, name).
	// It reports false, writing nothing, when the stored match is no longer
	// upcoming, live or halftime.
	Update(ctx context.Context, m Match) (bool, error)
	// Delete removes a match no bet references. It reports false otherwise.
	Delete(ctx context.Context, id int64) (bool, error)
	// MarkFinished moves an active match to finished with its final score.
	// It reports false when the match was no longer active.
	MarkFinished(ctx context.Context, id int64, home, away int) (bool, error)
	// MarkUnresolved moves an active match to finished without a score.
	MarkUnresolved(ctx context.Context, id int64) (bool, error)
	// ResolveScore sets the score of a finished, unresolved match.
	ResolveScore(ctx context.Context, id int64, home, away int) (bool, error)
	Cancel(ctx context.Context, id int64) (bool, error)
	// ListStale returns upcoming matches not scraped since the cutoff.
	ListStale(ctx context.Context, notSeenSince time.Time) ([]Match, error)
	ListFinishedWithPendingBets(ctx context.Context, limit int) ([]Match, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)
	CountScrapedSince(ctx context.Context, since time.Time) (int, error)
	ListRecent(ctx context.Context, limit int) ([]Match, error)
}
