package wallet

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestValidateCredit(t *testing.T) {
	t.Parallel()

	if err := ValidateCredit(decimal.Zero); err != nil {
		t.Fatalf("zero credit must be allowed: %v", err)
	}
	if err := ValidateCredit(decimal.RequireFromString("12.50")); err != nil {
		t.Fatalf("positive credit must be allowed: %v", err)
	}
	if err := ValidateCredit(decimal.RequireFromString("-0.01")); !errors.Is(err, ErrNegativeAmount) {
		t.Fatalf("expected ErrNegativeAmount, got %v", err)
	}
}
