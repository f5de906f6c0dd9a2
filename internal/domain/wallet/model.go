package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrNegativeAmount  = errors.New("credit amount must not be negative")
)

// DevAccountIDs are opened with a zero balance on dev databases, standing in
// for the external registration flow.
var DevAccountIDs = []int64{1, 2, 3}

// Account is the balance owned by a user profile.
type Account struct {
	UserID  int64
	Balance decimal.Decimal
}

// ValidateCredit rejects amounts a credit may not carry.
func ValidateCredit(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: %s", ErrNegativeAmount, amount.String())
	}
	return nil
}

// Repository is the wallet collaborator used by settlement.
type Repository interface {
	GetByUserID(ctx context.Context, userID int64) (Account, bool, error)
	// Credit adds amount (>= 0) to the user's balance.
	Credit(ctx context.Context, userID int64, amount decimal.Decimal) error
}
