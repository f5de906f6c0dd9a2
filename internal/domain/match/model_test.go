package match

import (
	"testing"

	"github.com/shopspring/decimal"
)

func intPtr(v int) *int { return &v }

func dec(v string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.RequireFromString(v), Valid: true}
}

func TestApplyScore_NeverErasesKnownScore(t *testing.T) {
	t.Parallel()

	m := Match{HomeScore: intPtr(1), AwayScore: intPtr(0)}
	if changed := m.ApplyScore(nil, nil); changed {
		t.Fatalf("nil score must not report a change")
	}
	if *m.HomeScore != 1 || *m.AwayScore != 0 {
		t.Fatalf("known score lost: %d-%d", *m.HomeScore, *m.AwayScore)
	}

	if changed := m.ApplyScore(intPtr(2), nil); !changed {
		t.Fatalf("expected change for new home score")
	}
	if *m.HomeScore != 2 || *m.AwayScore != 0 {
		t.Fatalf("unexpected score %d-%d", *m.HomeScore, *m.AwayScore)
	}
}

func TestAdvanceStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{name: "upcoming to live", from: StatusUpcoming, to: StatusLive, want: true},
		{name: "live to halftime", from: StatusLive, to: StatusHalftime, want: true},
		{name: "halftime back to live", from: StatusHalftime, to: StatusLive, want: true},
		{name: "live back to upcoming", from: StatusLive, to: StatusUpcoming, want: false},
		{name: "finished is terminal", from: StatusFinished, to: StatusLive, want: false},
		{name: "canceled is terminal", from: StatusCanceled, to: StatusLive, want: false},
		{name: "finish goes through settlement", from: StatusLive, to: StatusFinished, want: false},
	}

	for _, tc := range cases {
		m := Match{Status: tc.from}
		if got := m.AdvanceStatus(tc.to); got != tc.want {
			t.Fatalf("%s: got=%v want=%v", tc.name, got, tc.want)
		}
	}
}

func TestSettleable(t *testing.T) {
	t.Parallel()

	m := Match{Status: StatusFinished, HomeScore: intPtr(1), AwayScore: intPtr(1)}
	if !m.Settleable() {
		t.Fatalf("expected finished match with score to be settleable")
	}
	m.Unresolved = true
	if m.Settleable() {
		t.Fatalf("unresolved match must not be settleable")
	}
	m = Match{Status: StatusFinished, HomeScore: intPtr(1)}
	if m.Settleable() {
		t.Fatalf("match without away score must not be settleable")
	}
}

func TestIdentityKeys(t *testing.T) {
	t.Parallel()

	if got, want := TeamKey("  Real  Madrid ", "BARCELONA"), TeamKey("real madrid", "barcelona"); got != want {
		t.Fatalf("team key must be case and space insensitive: %q vs %q", got, want)
	}
	if TeamKey("A", "B") == TeamKey("B", "A") {
		t.Fatalf("team key must keep home/away order")
	}
	if got := URLKey(" https://book.example/event/123/?ref=x "); got != "url:https://book.example/event/123" {
		t.Fatalf("unexpected url key %q", got)
	}
	if got := Identifier("", "A", "B"); got != TeamKey("A", "B") {
		t.Fatalf("expected team key fallback, got %q", got)
	}
}

func TestRecomputeDerivedOdds_FromPrimary(t *testing.T) {
	t.Parallel()

	m := Match{Odds: Odds{Home: dec("2.00"), Draw: dec("3.40"), Away: dec("3.80")}}
	m.RecomputeDerivedOdds()

	d := m.Derived
	for name, v := range map[string]decimal.NullDecimal{
		"1x": d.DoubleChance1X, "12": d.DoubleChance12, "x2": d.DoubleChanceX2,
		"over": d.Over25, "under": d.Under25, "hcp home": d.HandicapHome,
		"hcp away": d.HandicapAway, "btts yes": d.BTTSYes, "btts no": d.BTTSNo,
	} {
		if !v.Valid {
			t.Fatalf("%s: expected derived price", name)
		}
		if v.Decimal.LessThan(minDerivedOdds) {
			t.Fatalf("%s: price %s below floor", name, v.Decimal)
		}
	}

	if !d.DoubleChance1X.Decimal.LessThan(m.Odds.Home.Decimal) {
		t.Fatalf("1X (%s) must be shorter than home win (%s)", d.DoubleChance1X.Decimal, m.Odds.Home.Decimal)
	}
	if !d.HandicapHome.Decimal.GreaterThan(m.Odds.Home.Decimal) {
		t.Fatalf("home -1.5 (%s) must be longer than home win (%s)", d.HandicapHome.Decimal, m.Odds.Home.Decimal)
	}

	again := Match{Odds: m.Odds}
	again.RecomputeDerivedOdds()
	if !again.Derived.Over25.Decimal.Equal(d.Over25.Decimal) {
		t.Fatalf("derived odds must be deterministic")
	}
}

func TestRecomputeDerivedOdds_ObservedMarketWins(t *testing.T) {
	t.Parallel()

	m := Match{
		Odds: Odds{Home: dec("2.10"), Draw: dec("3.30"), Away: dec("3.50")},
		Markets: []Market{{
			Name: "Total",
			Outcomes: []Outcome{
				{Name: "Over 2.5", Odds: decimal.RequireFromString("1.87")},
				{Name: "Under 2.5", Odds: decimal.RequireFromString("1.95")},
			},
		}},
	}
	m.RecomputeDerivedOdds()

	if got := m.Derived.Over25.Decimal.String(); got != "1.87" {
		t.Fatalf("expected observed over price, got %s", got)
	}
	if got := m.Derived.Under25.Decimal.String(); got != "1.95" {
		t.Fatalf("expected observed under price, got %s", got)
	}
}

func TestSetOdds_IgnoresIncompletePrimary(t *testing.T) {
	t.Parallel()

	m := Match{Odds: Odds{Home: dec("1.50"), Draw: dec("4.00"), Away: dec("6.00")}}
	m.RecomputeDerivedOdds()

	if changed := m.SetOdds(Odds{Home: dec("1.40")}, nil); changed {
		t.Fatalf("incomplete odds must not replace stored prices")
	}
	if got := m.Odds.Home.Decimal.String(); got != "1.5" {
		t.Fatalf("home odds changed unexpectedly: %s", got)
	}

	if changed := m.SetOdds(Odds{Home: dec("1.40"), Draw: dec("4.20"), Away: dec("7.00")}, nil); !changed {
		t.Fatalf("expected change for new complete odds")
	}
	if !m.Derived.DoubleChance1X.Valid {
		t.Fatalf("derived odds must be recomputed")
	}
}
