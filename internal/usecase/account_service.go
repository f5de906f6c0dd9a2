package usecase

import (
	"context"
	"fmt"

	"github.com/riskibarqy/oddsline/internal/domain/wallet"
)

// AccountService exposes the balances settlement credits into.
type AccountService struct {
	wallets wallet.Repository
}

func NewAccountService(wallets wallet.Repository) *AccountService {
	return &AccountService{wallets: wallets}
}

func (s *AccountService) Get(ctx context.Context, userID int64) (wallet.Account, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.AccountService.Get")
	defer span.End()

	if userID <= 0 {
		return wallet.Account{}, fmt.Errorf("%w: user id must be positive", ErrInvalidInput)
	}
	account, ok, err := s.wallets.GetByUserID(ctx, userID)
	if err != nil {
		return wallet.Account{}, fmt.Errorf("get account: %w", err)
	}
	if !ok {
		return wallet.Account{}, fmt.Errorf("%w: account for user id=%d", ErrNotFound, userID)
	}
	return account, nil
}
