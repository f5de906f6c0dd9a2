package bet

import "context"

// Repository exposes the settlement side of bets. Bets are created by the
// bet placement path, never here.
type Repository interface {
	ListPendingIDs(ctx context.Context, matchID int64) ([]int64, error)
	// Settle locks the bet, re-checks it is still pending, applies resolve and
	// credits the owner's account with PotentialPayout on a win, all atomically.
	// A bet that is no longer pending comes back with Skipped set.
	Settle(ctx context.Context, betID int64, resolve Resolver) (Settlement, error)
	CountPending(ctx context.Context) (int, error)
}
