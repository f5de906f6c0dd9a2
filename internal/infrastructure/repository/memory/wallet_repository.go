package memory

import (
	"context"
	"fmt"

	"github.com/riskibarqy/oddsline/internal/domain/wallet"
	"github.com/shopspring/decimal"
)

type WalletRepository struct {
	store *Store
}

func (r *WalletRepository) GetByUserID(_ context.Context, userID int64) (wallet.Account, bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	account, ok := r.store.accounts[userID]
	return account, ok, nil
}

func (r *WalletRepository) Credit(_ context.Context, userID int64, amount decimal.Decimal) error {
	if err := wallet.ValidateCredit(amount); err != nil {
		return err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	account, ok := r.store.accounts[userID]
	if !ok {
		return fmt.Errorf("%w: user id=%d", wallet.ErrAccountNotFound, userID)
	}
	account.Balance = account.Balance.Add(amount)
	r.store.accounts[userID] = account
	return nil
}
