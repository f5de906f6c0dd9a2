package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/riskibarqy/oddsline/internal/domain/bet"
	"github.com/riskibarqy/oddsline/internal/domain/wallet"
	"github.com/shopspring/decimal"
)

type BetRepository struct {
	store *Store
}

func (r *BetRepository) ListPendingIDs(_ context.Context, matchID int64) ([]int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	out := make([]int64, 0)
	for _, item := range r.store.bets {
		if item.MatchID == matchID && item.Status == bet.StatusPending {
			out = append(out, item.ID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (r *BetRepository) Settle(_ context.Context, betID int64, resolve bet.Resolver) (bet.Settlement, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	item, ok := r.store.bets[betID]
	if !ok {
		return bet.Settlement{}, fmt.Errorf("%w: id=%d", bet.ErrNotFound, betID)
	}
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
		if err := wallet.ValidateCredit(item.PotentialPayout); err != nil {
			return bet.Settlement{}, err
		}
		account, ok := r.store.accounts[item.UserID]
		if !ok {
			return bet.Settlement{}, fmt.Errorf("%w: user id=%d", wallet.ErrAccountNotFound, item.UserID)
		}
		account.Balance = account.Balance.Add(item.PotentialPayout)
		r.store.accounts[item.UserID] = account
		result.Credited = item.PotentialPayout
	}

	settledAt := r.store.now().UTC()
	item.Status = status
	item.SettledAt = &settledAt
	r.store.bets[betID] = item
	result.Status = status
	return result, nil
}

func (r *BetRepository) CountPending(_ context.Context) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	count := 0
	for _, item := range r.store.bets {
		if item.Status == bet.StatusPending {
			count++
		}
	}
	return count, nil
}

// GetByID is used by tests and the dev seed to inspect settled bets.
func (r *BetRepository) GetByID(_ context.Context, betID int64) (bet.Bet, bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	item, ok := r.store.bets[betID]
	return item, ok, nil
}
