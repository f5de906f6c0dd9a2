package snapshot

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Normalizer turns raw page text into validated records. Records that fail
// are counted in Snapshot.Dropped and never reach reconciliation.
type Normalizer struct {
	validator *validator.Validate
	location  *time.Location
	baseURL   *url.URL
	now       func() time.Time
}

func NewNormalizer(location *time.Location, baseURL string) (*Normalizer, error) {
	if location == nil {
		location = time.UTC
	}
	var base *url.URL
	if strings.TrimSpace(baseURL) != "" {
		parsed, err := url.Parse(strings.TrimSpace(baseURL))
		if err != nil {
			return nil, fmt.Errorf("parse base url: %w", err)
		}
		base = parsed
	}
	return &Normalizer{
		validator: validator.New(),
		location:  location,
		baseURL:   base,
		now:       time.Now,
	}, nil
}

func (n *Normalizer) Normalize(ctx context.Context, source Source, raws []RawRecord) Snapshot {
	out := Snapshot{
		Source:     source,
		CapturedAt: n.now().UTC(),
		Records:    make([]Record, 0, len(raws)),
	}
	for _, raw := range raws {
		record, droppedOutcomes, err := n.NormalizeRecord(ctx, raw)
		out.DroppedOutcomes += droppedOutcomes
		if err != nil {
			out.Dropped++
			continue
		}
		out.Records = append(out.Records, record)
	}
	return out
}

// NormalizeRecord returns the record plus the number of outcomes dropped for
// unparseable odds.
func (n *Normalizer) NormalizeRecord(ctx context.Context, raw RawRecord) (Record, int, error) {
	record := Record{
		League:      collapseSpaces(raw.League),
		LeagueOrder: raw.LeagueOrder,
		HomeTeam:    collapseSpaces(raw.HomeTeam),
		AwayTeam:    collapseSpaces(raw.AwayTeam),
		HomeLogo:    n.resolve(raw.HomeLogo),
		AwayLogo:    n.resolve(raw.AwayLogo),
		MatchURL:    n.resolve(raw.Href),
		ScheduledAt: ParseKickoff(raw.Date, raw.Clock, n.now(), n.location),
		StatusHint:  NormalizeStatusHint(raw.StatusText),
		HomeOdds:    parseNullOdds(raw.HomeOdds),
		DrawOdds:    parseNullOdds(raw.DrawOdds),
		AwayOdds:    parseNullOdds(raw.AwayOdds),
	}
	if record.League == "" {
		record.League = "Other"
	}

	if strings.TrimSpace(raw.ScoreText) != "" {
		record.HomeScore, record.AwayScore = ParseScore(raw.ScoreText)
	} else if raw.HomeScoreText != "" || raw.AwayScoreText != "" {
		record.HomeScore, record.AwayScore = ParseScore(raw.HomeScoreText + "-" + raw.AwayScoreText)
	}
	// A listed score with no status text means the match is running.
	if record.HasScore() && record.StatusHint == HintNone {
		record.StatusHint = HintLive
	}

	dropped := 0
	for _, rawMarket := range raw.Markets {
		market := Market{Name: collapseSpaces(rawMarket.Name)}
		for _, rawOutcome := range rawMarket.Outcomes {
			odds, err := ParseOdds(rawOutcome.Odds)
			if err != nil {
				dropped++
				continue
			}
			market.Outcomes = append(market.Outcomes, Outcome{Name: collapseSpaces(rawOutcome.Name), Odds: odds})
		}
		if market.Name == "" || len(market.Outcomes) == 0 {
			continue
		}
		record.Markets = append(record.Markets, market)
	}

	if record.ScheduledAt.IsZero() {
		return Record{}, dropped, fmt.Errorf("%w: missing kickoff", ErrInvalidRecord)
	}
	if strings.EqualFold(record.HomeTeam, record.AwayTeam) {
		return Record{}, dropped, fmt.Errorf("%w: home and away are the same team", ErrInvalidRecord)
	}
	if err := n.validator.StructCtx(ctx, record); err != nil {
		return Record{}, dropped, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return record, dropped, nil
}

func (n *Normalizer) resolve(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "javascript:") || href == "#" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		return ref.String()
	}
	// Relative links without a base cannot serve as identity.
	if n.baseURL == nil {
		return ""
	}
	return n.baseURL.ResolveReference(ref).String()
}

func parseNullOdds(text string) decimal.NullDecimal {
	odds, err := ParseOdds(text)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: odds, Valid: true}
}

func collapseSpaces(v string) string {
	return strings.Join(strings.Fields(v), " ")
}
