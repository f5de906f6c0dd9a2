package bet

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrUnknownType = errors.New("unknown bet type")
	ErrNotFound    = errors.New("bet not found")
)

type Status string

const (
	StatusPending Status = "pending"
	StatusWon     Status = "won"
	StatusLost    Status = "lost"
)

type Type string

const (
	TypeHome         Type = "home"
	TypeDraw         Type = "draw"
	TypeAway         Type = "away"
	TypeHomeOrDraw   Type = "1x"
	TypeHomeOrAway   Type = "12"
	TypeDrawOrAway   Type = "x2"
	TypeOver25       Type = "over_2_5"
	TypeUnder25      Type = "under_2_5"
	TypeHandicapHome Type = "handicap_home"
	TypeHandicapAway Type = "handicap_away"
	TypeBTTSYes      Type = "btts_yes"
	TypeBTTSNo       Type = "btts_no"
)

var predicates = map[Type]func(home, away int) bool{
	TypeHome:         func(h, a int) bool { return h > a },
	TypeDraw:         func(h, a int) bool { return h == a },
	TypeAway:         func(h, a int) bool { return a > h },
	TypeHomeOrDraw:   func(h, a int) bool { return h >= a },
	TypeHomeOrAway:   func(h, a int) bool { return h != a },
	TypeDrawOrAway:   func(h, a int) bool { return a >= h },
	TypeOver25:       func(h, a int) bool { return float64(h+a) > 2.5 },
	TypeUnder25:      func(h, a int) bool { return float64(h+a) < 2.5 },
	TypeHandicapHome: func(h, a int) bool { return float64(h)-1.5 > float64(a) },
	TypeHandicapAway: func(h, a int) bool { return float64(a)+1.5 > float64(h) },
	TypeBTTSYes:      func(h, a int) bool { return h > 0 && a > 0 },
	TypeBTTSNo:       func(h, a int) bool { return h == 0 || a == 0 },
}

func ParseType(v string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(v)))
	if _, ok := predicates[t]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownType, v)
	}
	return t, nil
}

// Wins evaluates the bet type against a final score.
func (t Type) Wins(home, away int) (bool, error) {
	predicate, ok := predicates[t]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownType, string(t))
	}
	return predicate(home, away), nil
}

// Bet is a wager placed elsewhere; this service only settles it.
type Bet struct {
	ID              int64
	UserID          int64
	MatchID         int64
	Type            Type
	Odds            decimal.Decimal
	Stake           decimal.Decimal
	PotentialPayout decimal.Decimal
	Status          Status
	SettledAt       *time.Time
	CreatedAt       time.Time
}

// Outcome resolves the bet against a final score. PotentialPayout is fixed at
// placement and is never recomputed here.
func (b Bet) Outcome(home, away int) (Status, error) {
	won, err := b.Type.Wins(home, away)
	if err != nil {
		return "", err
	}
	if won {
		return StatusWon, nil
	}
	return StatusLost, nil
}

// Settlement reports what happened to one bet.
type Settlement struct {
	BetID    int64
	UserID   int64
	Status   Status
	Credited decimal.Decimal
	// Skipped is set when the bet was no longer pending once locked.
	Skipped bool
}

// Resolver decides the final status of a locked, pending bet.
type Resolver func(b Bet) (Status, error)
