package postgres

import (
	"database/sql"
	"time"

	"github.com/riskibarqy/oddsline/internal/domain/bet"
	"github.com/shopspring/decimal"
)

type betTableModel struct {
	ID              int64           `db:"id"`
	UserID          int64           `db:"user_id"`
	MatchID         int64           `db:"match_id"`
	Type            string          `db:"bet_type"`
	Odds            decimal.Decimal `db:"odds"`
	Stake           decimal.Decimal `db:"stake"`
	PotentialPayout decimal.Decimal `db:"potential_payout"`
	Status          string          `db:"status"`
	SettledAt       sql.NullTime    `db:"settled_at"`
	CreatedAt       time.Time       `db:"created_at"`
}

func (row betTableModel) toDomain() bet.Bet {
	out := bet.Bet{
		ID:              row.ID,
		UserID:          row.UserID,
		MatchID:         row.MatchID,
		Type:            bet.Type(row.Type),
		Odds:            row.Odds,
		Stake:           row.Stake,
		PotentialPayout: row.PotentialPayout,
		Status:          bet.Status(row.Status),
		CreatedAt:       row.CreatedAt.UTC(),
	}
	if row.SettledAt.Valid {
		settledAt := row.SettledAt.Time.UTC()
		out.SettledAt = &settledAt
	}
	return out
}

type accountTableModel struct {
	UserID  int64           `db:"user_id"`
	Balance decimal.Decimal `db:"balance"`
}
