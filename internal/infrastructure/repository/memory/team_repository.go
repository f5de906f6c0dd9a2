package memory

import (
	"context"
	"sync"
	"time"

	"github.com/riskibarqy/oddsline/internal/domain/team"
)

type TeamRepository struct {
	mu     sync.RWMutex
	byName map[string]team.Team
	nextID int64
}

func NewTeamRepository(teams []team.Team) *TeamRepository {
	r := &TeamRepository{byName: make(map[string]team.Team, len(teams))}
	for _, item := range teams {
		item.Name = team.NormalizeName(item.Name)
		if item.ID > r.nextID {
			r.nextID = item.ID
		}
		r.byName[item.Name] = item
	}
	return r
}

func (r *TeamRepository) FindByNames(_ context.Context, names []string) (map[string]team.Team, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]team.Team, len(names))
	for _, name := range names {
		name = team.NormalizeName(name)
		if item, ok := r.byName[name]; ok {
			out[name] = item
		}
	}
	return out, nil
}

func (r *TeamRepository) CreateMany(_ context.Context, items []team.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return err
		}
		item.Name = team.NormalizeName(item.Name)
		if _, exists := r.byName[item.Name]; exists {
			continue
		}
		r.nextID++
		item.ID = r.nextID
		item.CreatedAt = now
		r.byName[item.Name] = item
	}
	return nil
}

func (r *TeamRepository) UpdateLogo(_ context.Context, id int64, logoURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, item := range r.byName {
		if item.ID == id {
			item.LogoURL = logoURL
			r.byName[name] = item
			return nil
		}
	}
	return nil
}

func (r *TeamRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName), nil
}
