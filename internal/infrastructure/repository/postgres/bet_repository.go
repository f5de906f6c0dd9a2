package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/oddsline/internal/domain/bet"
	qb "github.com/riskibarqy/oddsline/internal/platform/querybuilder"
	"github.com/shopspring/decimal"
)

type BetRepository struct {
	db *sqlx.DB
}

func NewBetRepository(db *sqlx.DB) *BetRepository {
	return &BetRepository{db: db}
}

func (r *BetRepository) ListPendingIDs(ctx context.Context, matchID int64) ([]int64, error) {
	query, args, err := qb.Select("id").From("bets").
		Where(
			qb.Eq("match_id", matchID),
			qb.Eq("status", string(bet.StatusPending)),
		).
		OrderBy("id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select pending bets query: %w", err)
	}

	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("select pending bets match_id=%d: %w", matchID, err)
	}
	return ids, nil
}

// Settle resolves one bet in its own transaction. The bet row is locked first
// and re-checked, so concurrent settlers credit a win at most once.
func (r *BetRepository) Settle(ctx context.Context, betID int64, resolve bet.Resolver) (bet.Settlement, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return bet.Settlement{}, fmt.Errorf("begin tx settle bet: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query, args, err := qb.Select("id", "user_id", "match_id", "bet_type", "odds", "stake", "potential_payout", "status", "settled_at", "created_at").
		From("bets").
		Where(qb.Eq("id", betID)).
		ForUpdate().
		ToSQL()
	if err != nil {
		return bet.Settlement{}, fmt.Errorf("build lock bet query: %w", err)
	}
	var row betTableModel
	if err := tx.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return bet.Settlement{}, fmt.Errorf("%w: id=%d", bet.ErrNotFound, betID)
		}
		return bet.Settlement{}, fmt.Errorf("lock bet id=%d: %w", betID, err)
	}

	item := row.toDomain()
	result := bet.Settlement{BetID: item.ID, UserID: item.UserID, Status: item.Status, Credited: decimal.Zero}
	if item.Status != bet.StatusPending {
		result.Skipped = true
		return result, nil
	}

	status, err := resolve(item)
	if err != nil {
		return bet.Settlement{}, fmt.Errorf("resolve bet id=%d: %w", betID, err)
	}

	if status == bet.StatusWon {
		if err := creditAccount(ctx, tx, item.UserID, item.PotentialPayout); err != nil {
			return bet.Settlement{}, err
		}
		result.Credited = item.PotentialPayout
	}

	updateQuery, updateArgs, err := qb.Update("bets").
		Set("status", string(status)).
		SetExpr("settled_at", "NOW()").
		Where(qb.Eq("id", betID)).
		ToSQL()
	if err != nil {
		return bet.Settlement{}, fmt.Errorf("build settle bet query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, updateQuery, updateArgs...); err != nil {
		return bet.Settlement{}, fmt.Errorf("settle bet id=%d: %w", betID, err)
	}

	if err := tx.Commit(); err != nil {
		return bet.Settlement{}, fmt.Errorf("commit settle bet tx: %w", err)
	}
	result.Status = status
	return result, nil
}

func (r *BetRepository) CountPending(ctx context.Context) (int, error) {
	query, args, err := qb.Select("COUNT(*)").From("bets").
		Where(qb.Eq("status", string(bet.StatusPending))).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build count pending bets query: %w", err)
	}

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count pending bets: %w", err)
	}
	return count, nil
}
