package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/riskibarqy/oddsline/internal/domain/scraperrun"
)

const maxScraperRunEvents = 1000

type ScraperRunRepository struct {
	mu     sync.RWMutex
	events map[string]scraperrun.Event
	order  []string
}

func NewScraperRunRepository() *ScraperRunRepository {
	return &ScraperRunRepository{events: make(map[string]scraperrun.Event)}
}

func (r *ScraperRunRepository) UpsertEvent(_ context.Context, event scraperrun.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.events[event.RunID]; !exists {
		r.order = append(r.order, event.RunID)
	}
	r.events[event.RunID] = event

	for len(r.order) > maxScraperRunEvents {
		delete(r.events, r.order[0])
		r.order = r.order[1:]
	}
	return nil
}

func (r *ScraperRunRepository) ListRecent(_ context.Context, scraper string, limit int) ([]scraperrun.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]scraperrun.Event, 0)
	for _, runID := range r.order {
		event := r.events[runID]
		if scraper != "" && event.Scraper != scraper {
			continue
		}
		out = append(out, event)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
