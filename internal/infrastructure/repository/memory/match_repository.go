package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/riskibarqy/oddsline/internal/domain/match"
)

type MatchRepository struct {
	store *Store
}

func (r *MatchRepository) ListActive(_ context.Context) ([]match.Match, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	out := make([]match.Match, 0)
	for _, item := range r.store.matches {
		if !item.Status.IsActive() {
			continue
		}
		out = append(out, cloneMatch(item))
	}
	sortByKickoff(out)
	return out, nil
}

func (r *MatchRepository) GetByID(_ context.Context, id int64) (match.Match, bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	item, ok := r.store.matches[id]
	if !ok {
		return match.Match{}, false, nil
	}
	return cloneMatch(item), true, nil
}

func (r *MatchRepository) Create(_ context.Context, m match.Match) (match.Match, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	now := r.store.now().UTC()
	r.store.nextMatchID++
	m.ID = r.store.nextMatchID
	m.CreatedAt = now
	m.UpdatedAt = now
	r.store.matches[m.ID] = cloneMatch(m)
	return cloneMatch(m), nil
}

func (r *MatchRepository) Update(_ context.Context, m match.Match) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	stored, ok := r.store.matches[m.ID]
	if !ok {
		return false, fmt.Errorf("update match id=%d: %w", m.ID, errNotFound)
	}
	if !stored.Status.IsActive() {
		return false, nil
	}
	updated := cloneMatch(m)
	updated.CreatedAt = stored.CreatedAt
	updated.UpdatedAt = r.store.now().UTC()
	updated.Markets = match.MergeMarkets(stored.Markets, m.Markets)
	r.store.matches[m.ID] = updated
	return true, nil
}

func (r *MatchRepository) Delete(_ context.Context, id int64) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.matches[id]; !ok || r.store.hasBetsLocked(id) {
		return false, nil
	}
	delete(r.store.matches, id)
	return true, nil
}

func (r *MatchRepository) MarkFinished(_ context.Context, id int64, home, away int) (bool, error) {
	return r.transition(id, func(m *match.Match) bool {
		if !m.Status.IsActive() {
			return false
		}
		m.Status = match.StatusFinished
		m.HomeScore = &home
		m.AwayScore = &away
		m.Unresolved = false
		return true
	})
}

func (r *MatchRepository) MarkUnresolved(_ context.Context, id int64) (bool, error) {
	return r.transition(id, func(m *match.Match) bool {
		if !m.Status.IsActive() {
			return false
		}
		m.Status = match.StatusFinished
		m.Unresolved = true
		return true
	})
}

func (r *MatchRepository) ResolveScore(_ context.Context, id int64, home, away int) (bool, error) {
	return r.transition(id, func(m *match.Match) bool {
		if m.Status != match.StatusFinished || !m.Unresolved {
			return false
		}
		m.HomeScore = &home
		m.AwayScore = &away
		m.Unresolved = false
		return true
	})
}

func (r *MatchRepository) Cancel(_ context.Context, id int64) (bool, error) {
	return r.transition(id, func(m *match.Match) bool {
		if !m.Status.IsActive() {
			return false
		}
		m.Status = match.StatusCanceled
		return true
	})
}

func (r *MatchRepository) transition(id int64, apply func(m *match.Match) bool) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	item, ok := r.store.matches[id]
	if !ok {
		return false, nil
	}
	if !apply(&item) {
		return false, nil
	}
	item.UpdatedAt = r.store.now().UTC()
	r.store.matches[id] = item
	return true, nil
}

func (r *MatchRepository) ListStale(_ context.Context, notSeenSince time.Time) ([]match.Match, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	out := make([]match.Match, 0)
	for _, item := range r.store.matches {
		if item.Status == match.StatusUpcoming && item.LastScrapedAt.Before(notSeenSince) {
			out = append(out, cloneMatch(item))
		}
	}
	sortByKickoff(out)
	return out, nil
}

func (r *MatchRepository) ListFinishedWithPendingBets(_ context.Context, limit int) ([]match.Match, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	out := make([]match.Match, 0)
	for _, item := range r.store.matches {
		if item.Settleable() && r.store.hasPendingBetsLocked(item.ID) {
			out = append(out, cloneMatch(item))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MatchRepository) CountByStatus(_ context.Context) (map[match.Status]int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	out := make(map[match.Status]int)
	for _, item := range r.store.matches {
		out[item.Status]++
	}
	return out, nil
}

func (r *MatchRepository) CountScrapedSince(_ context.Context, since time.Time) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	count := 0
	for _, item := range r.store.matches {
		if !item.LastScrapedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (r *MatchRepository) ListRecent(_ context.Context, limit int) ([]match.Match, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	out := make([]match.Match, 0, len(r.store.matches))
	for _, item := range r.store.matches {
		copied := cloneMatch(item)
		copied.Markets = nil
		out = append(out, copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortByKickoff(items []match.Match) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].KickoffAt.Equal(items[j].KickoffAt) {
			return items[i].KickoffAt.Before(items[j].KickoffAt)
		}
		return items[i].ID < items[j].ID
	})
}
