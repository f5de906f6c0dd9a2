package team

import "context"

// Repository describes team persistence needs from use cases.
type Repository interface {
	// FindByNames returns the teams that exist, keyed by name.
	FindByNames(ctx context.Context, names []string) (map[string]Team, error)
	// CreateMany inserts teams; names created concurrently by another writer are
	// skipped, or reported as ErrAlreadyExists by stores that cannot skip.
	CreateMany(ctx context.Context, teams []Team) error
	UpdateLogo(ctx context.Context, id int64, logoURL string) error
	Count(ctx context.Context) (int, error)
}
