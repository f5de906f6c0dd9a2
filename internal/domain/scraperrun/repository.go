package scraperrun

import "context"

type Repository interface {
	UpsertEvent(ctx context.Context, event Event) error
	ListRecent(ctx context.Context, scraper string, limit int) ([]Event, error)
}
