package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/riskibarqy/oddsline/internal/domain/bet"
	"github.com/riskibarqy/oddsline/internal/domain/match"
	qb "github.com/riskibarqy/oddsline/internal/platform/querybuilder"
)

type MatchRepository struct {
	db *sqlx.DB
}

func NewMatchRepository(db *sqlx.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

func (r *MatchRepository) ListActive(ctx context.Context) ([]match.Match, error) {
	items, err := r.selectMatches(ctx, "active matches",
		qb.Select(matchColumns...).From(matchFrom).
			Where(qb.In("m.status", activeStatusArgs())).
			OrderBy("m.kickoff_at", "m.id"),
	)
	if err != nil || len(items) == 0 {
		return items, err
	}

	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	markets, err := r.loadMarketsFor(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].Markets = markets[items[i].ID]
	}
	return items, nil
}

func (r *MatchRepository) GetByID(ctx context.Context, id int64) (match.Match, bool, error) {
	query, args, err := qb.Select(matchColumns...).From(matchFrom).
		Where(qb.Eq("m.id", id)).
		ToSQL()
	if err != nil {
		return match.Match{}, false, fmt.Errorf("build select match by id query: %w", err)
	}

	var row matchTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return match.Match{}, false, nil
		}
		return match.Match{}, false, fmt.Errorf("select match id=%d: %w", id, err)
	}

	item := row.toDomain()
	markets, err := r.loadMarketsFor(ctx, r.db, []int64{id})
	if err != nil {
		return match.Match{}, false, err
	}
	item.Markets = markets[id]
	return item, true, nil
}

func (r *MatchRepository) Create(ctx context.Context, m match.Match) (match.Match, error) {
	if m.LastScrapedAt.IsZero() {
		m.LastScrapedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return match.Match{}, fmt.Errorf("begin tx create match: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query, args, err := qb.InsertModel("matches", matchModelFromDomain(m), "RETURNING id, created_at, updated_at")
	if err != nil {
		return match.Match{}, fmt.Errorf("build insert match query: %w", err)
	}
	if err := tx.QueryRowxContext(ctx, query, args...).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return match.Match{}, fmt.Errorf("insert match %s vs %s: %w", m.HomeTeam, m.AwayTeam, err)
	}
	if err := upsertMarkets(ctx, tx, m.ID, m.Markets); err != nil {
		return match.Match{}, err
	}

	if err := tx.Commit(); err != nil {
		return match.Match{}, fmt.Errorf("commit create match tx: %w", err)
	}
	return m, nil
}

func (r *MatchRepository) Update(ctx context.Context, m match.Match) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx update match: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	row := matchModelFromDomain(m)
	query, args, err := qb.Update("matches").
		Set("league", row.League).
		Set("league_order", row.LeagueOrder).
		Set("status", row.Status).
		Set("home_score", row.HomeScore).
		Set("away_score", row.AwayScore).
		Set("source_url", row.SourceURL).
		Set("last_scraped_at", row.LastScrapedAt).
		Set("missed_cycles", row.MissedCycles).
		Set("home_odds", row.HomeOdds).
		Set("draw_odds", row.DrawOdds).
		Set("away_odds", row.AwayOdds).
		Set("dc_1x_odds", row.DoubleChance1X).
		Set("dc_12_odds", row.DoubleChance12).
		Set("dc_x2_odds", row.DoubleChanceX2).
		Set("over_2_5_odds", row.Over25).
		Set("under_2_5_odds", row.Under25).
		Set("handicap_home_odds", row.HandicapHome).
		Set("handicap_away_odds", row.HandicapAway).
		Set("btts_yes_odds", row.BTTSYes).
		Set("btts_no_odds", row.BTTSNo).
		SetExpr("updated_at", "NOW()").
		Where(qb.Eq("id", m.ID), qb.In("status", activeStatusArgs())).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build update match query: %w", err)
	}
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update match id=%d: %w", m.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected update match: %w", err)
	}
	if affected == 0 {
		return false, nil
	}
	if err := upsertMarkets(ctx, tx, m.ID, m.Markets); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit update match tx: %w", err)
	}
	return true, nil
}

func (r *MatchRepository) Delete(ctx context.Context, id int64) (bool, error) {
	query, args, err := qb.DeleteFrom("matches").
		Where(
			qb.Eq("id", id),
			qb.Expr("NOT EXISTS (SELECT 1 FROM bets b WHERE b.match_id = matches.id)"),
		).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build delete match query: %w", err)
	}
	return r.execAffected(ctx, "delete match", id, query, args)
}

func (r *MatchRepository) MarkFinished(ctx context.Context, id int64, home, away int) (bool, error) {
	query, args, err := qb.Update("matches").
		Set("status", string(match.StatusFinished)).
		Set("home_score", home).
		Set("away_score", away).
		Set("unresolved", false).
		SetExpr("updated_at", "NOW()").
		Where(qb.Eq("id", id), qb.In("status", activeStatusArgs())).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build finish match query: %w", err)
	}
	return r.execAffected(ctx, "finish match", id, query, args)
}

func (r *MatchRepository) MarkUnresolved(ctx context.Context, id int64) (bool, error) {
	query, args, err := qb.Update("matches").
		Set("status", string(match.StatusFinished)).
		Set("unresolved", true).
		SetExpr("updated_at", "NOW()").
		Where(qb.Eq("id", id), qb.In("status", activeStatusArgs())).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build mark match unresolved query: %w", err)
	}
	return r.execAffected(ctx, "mark match unresolved", id, query, args)
}

func (r *MatchRepository) ResolveScore(ctx context.Context, id int64, home, away int) (bool, error) {
	query, args, err := qb.Update("matches").
		Set("home_score", home).
		Set("away_score", away).
		Set("unresolved", false).
		SetExpr("updated_at", "NOW()").
		Where(
			qb.Eq("id", id),
			qb.Eq("status", string(match.StatusFinished)),
			qb.Eq("unresolved", true),
		).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build resolve match score query: %w", err)
	}
	return r.execAffected(ctx, "resolve match score", id, query, args)
}

func (r *MatchRepository) Cancel(ctx context.Context, id int64) (bool, error) {
	query, args, err := qb.Update("matches").
		Set("status", string(match.StatusCanceled)).
		SetExpr("updated_at", "NOW()").
		Where(qb.Eq("id", id), qb.In("status", activeStatusArgs())).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build cancel match query: %w", err)
	}
	return r.execAffected(ctx, "cancel match", id, query, args)
}

func (r *MatchRepository) ListStale(ctx context.Context, notSeenSince time.Time) ([]match.Match, error) {
	return r.selectMatches(ctx, "stale matches",
		qb.Select(matchColumns...).From(matchFrom).
			Where(
				qb.Eq("m.status", string(match.StatusUpcoming)),
				qb.Lt("m.last_scraped_at", notSeenSince.UTC()),
			).
			OrderBy("m.last_scraped_at", "m.id"),
	)
}

func (r *MatchRepository) ListFinishedWithPendingBets(ctx context.Context, limit int) ([]match.Match, error) {
	return r.selectMatches(ctx, "finished matches with pending bets",
		qb.Select(matchColumns...).From(matchFrom).
			Where(
				qb.Eq("m.status", string(match.StatusFinished)),
				qb.Eq("m.unresolved", false),
				qb.Expr("m.home_score IS NOT NULL AND m.away_score IS NOT NULL"),
				qb.Expr("EXISTS (SELECT 1 FROM bets b WHERE b.match_id = m.id AND b.status = ?)", string(bet.StatusPending)),
			).
			OrderBy("m.kickoff_at", "m.id").
			Limit(limit),
	)
}

func (r *MatchRepository) CountByStatus(ctx context.Context) (map[match.Status]int, error) {
	query, args, err := qb.Select("status", "COUNT(*) AS total").From("matches").
		GroupBy("status").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build count matches by status query: %w", err)
	}

	var rows []statusCountRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("count matches by status: %w", err)
	}
	out := make(map[match.Status]int, len(rows))
	for _, row := range rows {
		out[match.Status(row.Status)] = row.Total
	}
	return out, nil
}

func (r *MatchRepository) CountScrapedSince(ctx context.Context, since time.Time) (int, error) {
	query, args, err := qb.Select("COUNT(*)").From("matches").
		Where(qb.Gte("last_scraped_at", since.UTC())).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build count scraped matches query: %w", err)
	}

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count scraped matches: %w", err)
	}
	return count, nil
}

func (r *MatchRepository) ListRecent(ctx context.Context, limit int) ([]match.Match, error) {
	return r.selectMatches(ctx, "recent matches",
		qb.Select(matchColumns...).From(matchFrom).
			OrderBy("m.updated_at DESC", "m.id DESC").
			Limit(limit),
	)
}

func (r *MatchRepository) selectMatches(ctx context.Context, what string, builder *qb.SelectBuilder) ([]match.Match, error) {
	query, args, err := builder.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select %s query: %w", what, err)
	}

	var rows []matchTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select %s: %w", what, err)
	}
	out := make([]match.Match, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *MatchRepository) execAffected(ctx context.Context, what string, id int64, query string, args []any) (bool, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%s id=%d: %w", what, id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected %s: %w", what, err)
	}
	return affected > 0, nil
}

// loadMarketsFor returns the markets of each match keyed by match id. Matches
// without markets get an empty slice.
func (r *MatchRepository) loadMarketsFor(ctx context.Context, q sqlx.QueryerContext, matchIDs []int64) (map[int64][]match.Market, error) {
	const query = `
SELECT mk.match_id, mk.name AS market_name, mk.sort_order AS market_order,
       o.name AS outcome_name, o.sort_order AS outcome_order, o.odds
FROM markets mk
JOIN outcomes o ON o.market_id = mk.id
WHERE mk.match_id = ANY($1)
ORDER BY mk.match_id, mk.sort_order, mk.id, o.sort_order, o.id`

	var rows []marketOutcomeRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, pq.Array(matchIDs)); err != nil {
		return nil, fmt.Errorf("select markets for %d matches: %w", len(matchIDs), err)
	}

	out := make(map[int64][]match.Market, len(matchIDs))
	for _, id := range matchIDs {
		out[id] = []match.Market{}
	}
	index := make(map[int64]map[string]int)
	for _, row := range rows {
		positions, ok := index[row.MatchID]
		if !ok {
			positions = make(map[string]int)
			index[row.MatchID] = positions
		}
		markets := out[row.MatchID]
		pos, ok := positions[row.MarketName]
		if !ok {
			pos = len(markets)
			positions[row.MarketName] = pos
			markets = append(markets, match.Market{Name: row.MarketName, Order: row.MarketOrder})
		}
		markets[pos].Outcomes = append(markets[pos].Outcomes, match.Outcome{
			Name:  row.OutcomeName,
			Order: row.OutcomeOrder,
			Odds:  row.Odds,
		})
		out[row.MatchID] = markets
	}
	return out, nil
}

// upsertMarkets writes markets and outcomes by (market, name). Stored entries
// absent from markets are left untouched.
func upsertMarkets(ctx context.Context, tx *sqlx.Tx, matchID int64, markets []match.Market) error {
	for _, market := range markets {
		if len(market.Outcomes) == 0 {
			continue
		}

		var marketID int64
		if err := tx.QueryRowxContext(ctx, `
INSERT INTO markets (match_id, name, sort_order)
VALUES ($1, $2, $3)
ON CONFLICT (match_id, name) DO UPDATE SET sort_order = EXCLUDED.sort_order
RETURNING id`, matchID, market.Name, market.Order).Scan(&marketID); err != nil {
			return fmt.Errorf("upsert market match_id=%d name=%s: %w", matchID, market.Name, err)
		}

		outcomes := make([]outcomeInsertModel, 0, len(market.Outcomes))
		seen := make(map[string]struct{}, len(market.Outcomes))
		for _, outcome := range market.Outcomes {
			if _, dup := seen[outcome.Name]; dup {
				continue
			}
			seen[outcome.Name] = struct{}{}
			outcomes = append(outcomes, outcomeInsertModel{
				MarketID: marketID,
				Name:     outcome.Name,
				Order:    outcome.Order,
				Odds:     outcome.Odds,
			})
		}

		query, args, err := qb.InsertModels("outcomes", outcomes, `ON CONFLICT (market_id, name) DO UPDATE SET
    odds = EXCLUDED.odds,
    sort_order = EXCLUDED.sort_order,
    updated_at = NOW()`)
		if err != nil {
			return fmt.Errorf("build upsert outcomes query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert outcomes market_id=%d: %w", marketID, err)
		}
	}
	return nil
}
