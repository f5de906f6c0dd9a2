package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/oddsline/internal/domain/wallet"
	qb "github.com/riskibarqy/oddsline/internal/platform/querybuilder"
	"github.com/shopspring/decimal"
)

type WalletRepository struct {
	db *sqlx.DB
}

func NewWalletRepository(db *sqlx.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) GetByUserID(ctx context.Context, userID int64) (wallet.Account, bool, error) {
	query, args, err := qb.Select("user_id", "balance").From("accounts").
		Where(qb.Eq("user_id", userID)).
		ToSQL()
	if err != nil {
		return wallet.Account{}, false, fmt.Errorf("build select account query: %w", err)
	}

	var row accountTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return wallet.Account{}, false, nil
		}
		return wallet.Account{}, false, fmt.Errorf("select account user_id=%d: %w", userID, err)
	}
	return wallet.Account{UserID: row.UserID, Balance: row.Balance}, true, nil
}

func (r *WalletRepository) Credit(ctx context.Context, userID int64, amount decimal.Decimal) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx credit account: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := creditAccount(ctx, tx, userID, amount); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit credit account tx: %w", err)
	}
	return nil
}

// creditAccount locks the account row and adds amount to its balance within tx.
func creditAccount(ctx context.Context, tx *sqlx.Tx, userID int64, amount decimal.Decimal) error {
	if err := wallet.ValidateCredit(amount); err != nil {
		return err
	}

	query, args, err := qb.Select("user_id", "balance").From("accounts").
		Where(qb.Eq("user_id", userID)).
		ForUpdate().
		ToSQL()
	if err != nil {
		return fmt.Errorf("build lock account query: %w", err)
	}
	var row accountTableModel
	if err := tx.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: user id=%d", wallet.ErrAccountNotFound, userID)
		}
		return fmt.Errorf("lock account user_id=%d: %w", userID, err)
	}

	updateQuery, updateArgs, err := qb.Update("accounts").
		Set("balance", row.Balance.Add(amount)).
		SetExpr("updated_at", "NOW()").
		Where(qb.Eq("user_id", userID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build credit account query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, updateQuery, updateArgs...); err != nil {
		return fmt.Errorf("credit account user_id=%d: %w", userID, err)
	}
	return nil
}
