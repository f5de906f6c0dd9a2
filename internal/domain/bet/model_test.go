package bet

import (
	"errors"
	"testing"
)

func TestTypeWins_PredicateTable(t *testing.T) {
	t.Parallel()

	cases := []struct {
		betType Type
		home    int
		away    int
		want    bool
	}{
		{TypeHome, 2, 1, true},
		{TypeHome, 1, 1, false},
		{TypeDraw, 1, 1, true},
		{TypeDraw, 2, 1, false},
		{TypeAway, 0, 1, true},
		{TypeAway, 2, 1, false},
		{TypeHomeOrDraw, 1, 1, true},
		{TypeHomeOrDraw, 0, 1, false},
		{TypeHomeOrAway, 2, 1, true},
		{TypeHomeOrAway, 2, 2, false},
		{TypeDrawOrAway, 2, 2, true},
		{TypeDrawOrAway, 2, 1, false},
		{TypeOver25, 2, 1, true},
		{TypeOver25, 1, 1, false},
		{TypeUnder25, 1, 1, true},
		{TypeUnder25, 2, 1, false},
		{TypeHandicapHome, 3, 1, true},
		{TypeHandicapHome, 2, 1, false},
		{TypeHandicapAway, 2, 1, true},
		{TypeHandicapAway, 3, 1, false},
		{TypeBTTSYes, 2, 1, true},
		{TypeBTTSYes, 2, 0, false},
		{TypeBTTSNo, 0, 0, true},
		{TypeBTTSNo, 1, 1, false},
	}

	for _, tc := range cases {
		got, err := tc.betType.Wins(tc.home, tc.away)
		if err != nil {
			t.Fatalf("%s %d-%d: unexpected error %v", tc.betType, tc.home, tc.away, err)
		}
		if got != tc.want {
			t.Fatalf("%s %d-%d: got=%v want=%v", tc.betType, tc.home, tc.away, got, tc.want)
		}
	}
}

func TestTypeWins_HomeTwoAwayOne(t *testing.T) {
	t.Parallel()

	winners := map[Type]bool{
		TypeHome: true, TypeHomeOrDraw: true, TypeHomeOrAway: true,
		TypeOver25: true, TypeHandicapAway: true, TypeBTTSYes: true,
	}
	for betType := range predicates {
		got, err := betType.Wins(2, 1)
		if err != nil {
			t.Fatalf("%s: %v", betType, err)
		}
		if got != winners[betType] {
			t.Fatalf("%s at 2-1: got=%v want=%v", betType, got, winners[betType])
		}
	}
}

func TestTypeWins_UnknownType(t *testing.T) {
	t.Parallel()

	if _, err := Type("correct_score").Wins(1, 0); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
	if _, err := ParseType(" OVER_2_5 "); err != nil {
		t.Fatalf("parse known type: %v", err)
	}
}

func TestOutcome(t *testing.T) {
	t.Parallel()

	status, err := Bet{Type: TypeDraw}.Outcome(0, 0)
	if err != nil || status != StatusWon {
		t.Fatalf("expected won, got %s err=%v", status, err)
	}
	status, err = Bet{Type: TypeDraw}.Outcome(1, 0)
	if err != nil || status != StatusLost {
		t.Fatalf("expected lost, got %s err=%v", status, err)
	}
}
