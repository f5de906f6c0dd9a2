package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/oddsline/internal/domain/team"
	qb "github.com/riskibarqy/oddsline/internal/platform/querybuilder"
)

type TeamRepository struct {
	db *sqlx.DB
}

func NewTeamRepository(db *sqlx.DB) *TeamRepository {
	return &TeamRepository{db: db}
}

func (r *TeamRepository) FindByNames(ctx context.Context, names []string) (map[string]team.Team, error) {
	args := make([]any, 0, len(names))
	for _, name := range names {
		if name = team.NormalizeName(name); name != "" {
			args = append(args, name)
		}
	}
	out := make(map[string]team.Team, len(args))
	if len(args) == 0 {
		return out, nil
	}

	query, queryArgs, err := qb.Select("id", "name", "logo_url", "created_at").From("teams").
		Where(qb.In("name", args)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select teams by names query: %w", err)
	}

	var rows []teamTableModel
	if err := r.db.SelectContext(ctx, &rows, query, queryArgs...); err != nil {
		return nil, fmt.Errorf("select teams by names: %w", err)
	}
	for _, row := range rows {
		out[row.Name] = team.Team{
			ID:        row.ID,
			Name:      row.Name,
			LogoURL:   row.LogoURL,
			CreatedAt: row.CreatedAt,
		}
	}
	return out, nil
}

// CreateMany inserts the teams in one statement. Names inserted concurrently by
// another writer are skipped by the conflict clause.
func (r *TeamRepository) CreateMany(ctx context.Context, items []team.Team) error {
	if len(items) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(items))
	models := make([]teamTableModel, 0, len(items))
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return fmt.Errorf("validate team: %w", err)
		}
		name := team.NormalizeName(item.Name)
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		models = append(models, teamTableModel{Name: name, LogoURL: strings.TrimSpace(item.LogoURL)})
	}

	query, args, err := qb.InsertModels("teams", models, "ON CONFLICT (name) DO NOTHING")
	if err != nil {
		return fmt.Errorf("build insert teams query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %v", team.ErrAlreadyExists, err)
		}
		return fmt.Errorf("insert teams: %w", err)
	}
	return nil
}

func (r *TeamRepository) UpdateLogo(ctx context.Context, id int64, logoURL string) error {
	query, args, err := qb.Update("teams").
		Set("logo_url", strings.TrimSpace(logoURL)).
		SetExpr("updated_at", "NOW()").
		Where(qb.Eq("id", id)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update team logo query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update team logo id=%d: %w", id, err)
	}
	return nil
}

func (r *TeamRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM teams"); err != nil {
		return 0, fmt.Errorf("count teams: %w", err)
	}
	return count, nil
}
