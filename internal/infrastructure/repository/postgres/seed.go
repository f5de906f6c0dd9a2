package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/oddsline/internal/domain/wallet"
)

// BootstrapSeed opens the dev accounts on an empty database. It never touches
// a database that already holds accounts.
func BootstrapSeed(ctx context.Context, db *sqlx.DB) error {
	var count int
	if err := db.GetContext(ctx, &count, `SELECT COUNT(1) FROM accounts`); err != nil {
		return fmt.Errorf("count accounts for bootstrap seed: %w", err)
	}
	if count > 0 {
		return nil
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, userID := range wallet.DevAccountIDs {
		sqlQuery, args, err := sqlx.Named(`
INSERT INTO accounts (user_id, balance)
VALUES (:user_id, 0)
ON CONFLICT (user_id) DO NOTHING`, map[string]any{
			"user_id": userID,
		})
		if err != nil {
			return fmt.Errorf("bind seed account %d query: %w", userID, err)
		}
		sqlQuery = tx.Rebind(sqlQuery)
		if _, err := tx.ExecContext(ctx, sqlQuery, args...); err != nil {
			return fmt.Errorf("seed account %d: %w", userID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed tx: %w", err)
	}
	return nil
}
