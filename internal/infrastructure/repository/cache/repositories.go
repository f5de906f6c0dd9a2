package cache

import (
	"context"
	"fmt"

	"github.com/riskibarqy/oddsline/internal/domain/team"
	basecache "github.com/riskibarqy/oddsline/internal/platform/cache"
)

const teamNamePrefix = "team:name:"

// TeamRepository caches name lookups. Teams are never deleted and names never
// change, so only found teams are cached and logo updates drop the cache.
type TeamRepository struct {
	next  team.Repository
	cache *basecache.Store[team.Team]
}

func NewTeamRepository(next team.Repository, cache *basecache.Store[team.Team]) *TeamRepository {
	return &TeamRepository{next: next, cache: cache}
}

func (r *TeamRepository) FindByNames(ctx context.Context, names []string) (map[string]team.Team, error) {
	out := make(map[string]team.Team, len(names))
	missing := make([]string, 0)
	for _, name := range names {
		name = team.NormalizeName(name)
		if item, ok := r.cache.Get(ctx, teamNamePrefix+name); ok {
			out[name] = item
			continue
		}
		missing = append(missing, name)
	}
	if len(missing) == 0 {
		return out, nil
	}

	loaded, err := r.next.FindByNames(ctx, missing)
	if err != nil {
		return nil, err
	}
	for name, item := range loaded {
		r.cache.Set(ctx, teamNamePrefix+name, item)
		out[name] = item
	}
	return out, nil
}

func (r *TeamRepository) CreateMany(ctx context.Context, items []team.Team) error {
	return r.next.CreateMany(ctx, items)
}

func (r *TeamRepository) UpdateLogo(ctx context.Context, id int64, logoURL string) error {
	if err := r.next.UpdateLogo(ctx, id, logoURL); err != nil {
		return fmt.Errorf("update team logo: %w", err)
	}
	r.cache.DeletePrefix(ctx, teamNamePrefix)
	return nil
}

func (r *TeamRepository) Count(ctx context.Context) (int, error) {
	return r.next.Count(ctx)
}
