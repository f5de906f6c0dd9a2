package match

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusUpcoming Status = "upcoming"
	StatusLive     Status = "live"
	StatusHalftime Status = "halftime"
	StatusFinished Status = "finished"
	StatusCanceled Status = "canceled"
)

// ActiveStatuses are the non-terminal states reconciliation may touch.
var ActiveStatuses = []Status{StatusUpcoming, StatusLive, StatusHalftime}

func ParseStatus(v string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(v))) {
	case StatusUpcoming:
		return StatusUpcoming, true
	case StatusLive:
		return StatusLive, true
	case StatusHalftime:
		return StatusHalftime, true
	case StatusFinished:
		return StatusFinished, true
	case StatusCanceled:
		return StatusCanceled, true
	default:
		return "", false
	}
}

func (s Status) IsTerminal() bool {
	return s == StatusFinished || s == StatusCanceled
}

func (s Status) IsActive() bool {
	return s == StatusUpcoming || s == StatusLive || s == StatusHalftime
}

func (s Status) IsInPlay() bool {
	return s == StatusLive || s == StatusHalftime
}

// Odds are the primary 1X2 prices.
type Odds struct {
	Home decimal.NullDecimal
	Draw decimal.NullDecimal
	Away decimal.NullDecimal
}

func (o Odds) Complete() bool {
	return o.Home.Valid && o.Draw.Valid && o.Away.Valid
}

func (o Odds) IsZero() bool {
	return !o.Home.Valid && !o.Draw.Valid && !o.Away.Valid
}

func (o Odds) Equal(other Odds) bool {
	return nullDecimalEqual(o.Home, other.Home) &&
		nullDecimalEqual(o.Draw, other.Draw) &&
		nullDecimalEqual(o.Away, other.Away)
}

type DerivedOdds struct {
	DoubleChance1X decimal.NullDecimal
	DoubleChance12 decimal.NullDecimal
	DoubleChanceX2 decimal.NullDecimal
	Over25         decimal.NullDecimal
	Under25        decimal.NullDecimal
	HandicapHome   decimal.NullDecimal
	HandicapAway   decimal.NullDecimal
	BTTSYes        decimal.NullDecimal
	BTTSNo         decimal.NullDecimal
}

type Outcome struct {
	Name  string
	Order int
	Odds  decimal.Decimal
}

type Market struct {
	Name     string
	Order    int
	Outcomes []Outcome
}

// Match is one fixture mirrored from the bookmaker listing.
type Match struct {
	ID            int64
	HomeTeamID    int64
	AwayTeamID    int64
	HomeTeam      string
	AwayTeam      string
	League        string
	LeagueOrder   int
	KickoffAt     time.Time
	Status        Status
	HomeScore     *int
	AwayScore     *int
	Unresolved    bool
	SourceURL     string
	LastScrapedAt time.Time
	// MissedCycles counts consecutive main-list cycles without a sighting.
	MissedCycles int
	Odds         Odds
	Derived      DerivedOdds
	Markets      []Market
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (m Match) HasScore() bool {
	return m.HomeScore != nil && m.AwayScore != nil
}

// ApplyScore stores the observed score. Missing values never erase a known
// score. Reports whether anything changed.
func (m *Match) ApplyScore(home, away *int) bool {
	changed := false
	if home != nil && (m.HomeScore == nil || *m.HomeScore != *home) {
		v := *home
		m.HomeScore = &v
		changed = true
	}
	if away != nil && (m.AwayScore == nil || *m.AwayScore != *away) {
		v := *away
		m.AwayScore = &v
		changed = true
	}
	return changed
}

// SetOdds replaces the primary prices, merges the observed markets into the
// known ones and recomputes derived odds when anything moved. Incomplete
// observations keep the previous 1X2.
func (m *Match) SetOdds(odds Odds, markets []Market) bool {
	changed := false
	if odds.Complete() && !odds.Equal(m.Odds) {
		m.Odds = odds
		changed = true
	}
	if len(markets) > 0 {
		merged := MergeMarkets(m.Markets, markets)
		if !marketsEqual(m.Markets, merged) {
			m.Markets = merged
			changed = true
		}
	}
	if changed {
		m.RecomputeDerivedOdds()
	}
	return changed
}

// AdvanceStatus moves the match forward through upcoming → live ⇄ halftime.
// Terminal states and backwards moves are refused.
func (m *Match) AdvanceStatus(next Status) bool {
	if m.Status.IsTerminal() || next == m.Status {
		return false
	}
	switch next {
	case StatusLive, StatusHalftime:
		m.Status = next
		return true
	default:
		return false
	}
}

func (m Match) CanFinish() bool {
	return m.Status.IsActive()
}

// Settleable reports whether bets on the match may be resolved.
func (m Match) Settleable() bool {
	return m.Status == StatusFinished && !m.Unresolved && m.HasScore()
}

// Keys returns the identity keys of the match: the source URL key (may be empty)
// and the team-pair key.
func (m Match) Keys() (string, string) {
	return URLKey(m.SourceURL), TeamKey(m.HomeTeam, m.AwayTeam)
}

func nullDecimalEqual(a, b decimal.NullDecimal) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.Decimal.Equal(b.Decimal)
}

func marketsEqual(a, b []Market) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || a[i].Order != b[i].Order || len(a[i].Outcomes) != len(b[i].Outcomes) {
			return false
		}
		for j := range a[i].Outcomes {
			x, y := a[i].Outcomes[j], b[i].Outcomes[j]
			if x.Name != y.Name || x.Order != y.Order || !x.Odds.Equal(y.Odds) {
				return false
			}
		}
	}
	return true
}

// MergeMarkets upserts incoming markets and outcomes by (market, name) over
// the stored ones. Stored entries missing from incoming are kept.
func MergeMarkets(stored, incoming []Market) []Market {
	out := cloneMarkets(stored)
	index := make(map[string]int, len(out))
	for i, item := range out {
		index[item.Name] = i
	}
	for _, item := range incoming {
		pos, ok := index[item.Name]
		if !ok {
			copied := item
			copied.Outcomes = append([]Outcome(nil), item.Outcomes...)
			index[item.Name] = len(out)
			out = append(out, copied)
			continue
		}
		out[pos].Order = item.Order
		outcomeIndex := make(map[string]int, len(out[pos].Outcomes))
		for j, outcome := range out[pos].Outcomes {
			outcomeIndex[outcome.Name] = j
		}
		for _, outcome := range item.Outcomes {
			if j, ok := outcomeIndex[outcome.Name]; ok {
				out[pos].Outcomes[j] = outcome
				continue
			}
			outcomeIndex[outcome.Name] = len(out[pos].Outcomes)
			out[pos].Outcomes = append(out[pos].Outcomes, outcome)
		}
	}
	return out
}

func cloneMarkets(items []Market) []Market {
	out := make([]Market, 0, len(items))
	for _, item := range items {
		copied := item
		copied.Outcomes = append([]Outcome(nil), item.Outcomes...)
		out = append(out, copied)
	}
	return out
}
