package match

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

const derivedMargin = 1.05

var minDerivedOdds = decimal.RequireFromString("1.01")

// derivedLine identifies a secondary price and the outcome labels under which the
// bookmaker may list it directly.
type derivedLine int

const (
	lineDoubleChance1X derivedLine = iota
	lineDoubleChance12
	lineDoubleChanceX2
	lineOver25
	lineUnder25
	lineHandicapHome
	lineHandicapAway
	lineBTTSYes
	lineBTTSNo
)

var observedAliases = map[string]derivedLine{
	"1x":                        lineDoubleChance1X,
	"double chance 1x":          lineDoubleChance1X,
	"12":                        lineDoubleChance12,
	"double chance 12":          lineDoubleChance12,
	"x2":                        lineDoubleChanceX2,
	"double chance x2":          lineDoubleChanceX2,
	"over 2.5":                  lineOver25,
	"total over 2.5":            lineOver25,
	"total goals over 2.5":      lineOver25,
	"under 2.5":                 lineUnder25,
	"total under 2.5":           lineUnder25,
	"total goals under 2.5":     lineUnder25,
	"handicap 1 (-1.5)":         lineHandicapHome,
	"handicap home -1.5":        lineHandicapHome,
	"handicap 2 (+1.5)":         lineHandicapAway,
	"handicap away +1.5":        lineHandicapAway,
	"both teams to score yes":   lineBTTSYes,
	"btts yes":                  lineBTTSYes,
	"both teams to score - yes": lineBTTSYes,
	"both teams to score no":    lineBTTSNo,
	"btts no":                   lineBTTSNo,
	"both teams to score - no":  lineBTTSNo,
}

// RecomputeDerivedOdds prices the secondary lines from the primary 1X2 odds.
// Prices listed directly in the stored markets take precedence.
func (m *Match) RecomputeDerivedOdds() {
	out := DerivedOdds{}
	if m.Odds.Complete() {
		out = deriveFromPrimary(m.Odds)
	}

	for line, price := range observedLines(m.Markets) {
		setLine(&out, line, decimal.NullDecimal{Decimal: price, Valid: true})
	}
	m.Derived = out
}

func deriveFromPrimary(odds Odds) DerivedOdds {
	h := odds.Home.Decimal.InexactFloat64()
	d := odds.Draw.Decimal.InexactFloat64()
	a := odds.Away.Decimal.InexactFloat64()
	if h <= 1 || d <= 1 || a <= 1 {
		return DerivedOdds{}
	}

	// Implied probabilities with the book margin removed.
	pH, pD, pA := 1/h, 1/d, 1/a
	total := pH + pD + pA
	pH, pD, pA = pH/total, pD/total, pA/total

	over := clamp(1.06-2*pD, 0.2, 0.8)
	handicapHome := pH * 0.55
	bttsYes := clamp(0.5+(math.Min(pH, pA)-0.25)*0.6, 0.25, 0.75)

	return DerivedOdds{
		DoubleChance1X: priceFromProbability(pH + pD),
		DoubleChance12: priceFromProbability(pH + pA),
		DoubleChanceX2: priceFromProbability(pD + pA),
		Over25:         priceFromProbability(over),
		Under25:        priceFromProbability(1 - over),
		HandicapHome:   priceFromProbability(handicapHome),
		HandicapAway:   priceFromProbability(1 - handicapHome),
		BTTSYes:        priceFromProbability(bttsYes),
		BTTSNo:         priceFromProbability(1 - bttsYes),
	}
}

func priceFromProbability(p float64) decimal.NullDecimal {
	if p <= 0 || math.IsNaN(p) {
		return decimal.NullDecimal{}
	}
	price := decimal.NewFromFloat(1 / (p * derivedMargin)).Round(2)
	if price.LessThan(minDerivedOdds) {
		price = minDerivedOdds
	}
	return decimal.NullDecimal{Decimal: price, Valid: true}
}

func observedLines(markets []Market) map[derivedLine]decimal.Decimal {
	out := make(map[derivedLine]decimal.Decimal)
	for _, market := range markets {
		marketName := normalizeLabel(market.Name)
		for _, outcome := range market.Outcomes {
			if !outcome.Odds.GreaterThan(decimal.NewFromInt(1)) {
				continue
			}
			outcomeName := normalizeLabel(outcome.Name)
			if line, ok := observedAliases[marketName+" "+outcomeName]; ok {
				out[line] = outcome.Odds
				continue
			}
			if line, ok := observedAliases[outcomeName]; ok {
				out[line] = outcome.Odds
			}
		}
	}
	return out
}

func setLine(out *DerivedOdds, line derivedLine, v decimal.NullDecimal) {
	switch line {
	case lineDoubleChance1X:
		out.DoubleChance1X = v
	case lineDoubleChance12:
		out.DoubleChance12 = v
	case lineDoubleChanceX2:
		out.DoubleChanceX2 = v
	case lineOver25:
		out.Over25 = v
	case lineUnder25:
		out.Under25 = v
	case lineHandicapHome:
		out.HandicapHome = v
	case lineHandicapAway:
		out.HandicapAway = v
	case lineBTTSYes:
		out.BTTSYes = v
	case lineBTTSNo:
		out.BTTSNo = v
	}
}

func normalizeLabel(v string) string {
	return strings.Join(strings.Fields(strings.ToLower(v)), " ")
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
