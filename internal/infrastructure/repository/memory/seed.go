package memory

import "github.com/shopspring/decimal"

func SeedAccounts(store *Store, userIDs []int64) {
	for _, userID := range userIDs {
		store.OpenAccount(userID, decimal.Zero)
	}
}
