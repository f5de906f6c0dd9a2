package snapshot

import (
	"time"

	"github.com/shopspring/decimal"
)

// Source names the listing a snapshot was taken from.
type Source string

const (
	SourceMain Source = "main"
	SourceLive Source = "live"
)

func (s Source) Valid() bool {
	return s == SourceMain || s == SourceLive
}

// StatusHint is the normalized status text shown next to a match.
type StatusHint string

const (
	HintNone     StatusHint = ""
	HintLive     StatusHint = "live"
	HintHalftime StatusHint = "halftime"
	HintFinished StatusHint = "finished"
	HintCanceled StatusHint = "canceled"
)

type Outcome struct {
	Name string `validate:"required,max=200"`
	Odds decimal.Decimal
}

type Market struct {
	Name     string    `validate:"required,max=200"`
	Outcomes []Outcome `validate:"dive"`
}

// Record is one match as observed on the page, after normalization.
type Record struct {
	League      string `validate:"required,max=200"`
	LeagueOrder int    `validate:"gte=0"`
	HomeTeam    string `validate:"required,max=200"`
	AwayTeam    string `validate:"required,max=200,nefield=HomeTeam"`
	HomeLogo    string `validate:"omitempty,max=500"`
	AwayLogo    string `validate:"omitempty,max=500"`
	MatchURL    string `validate:"omitempty,url,max=500"`
	ScheduledAt time.Time
	HomeScore   *int       `validate:"omitempty,gte=0,lt=50"`
	AwayScore   *int       `validate:"omitempty,gte=0,lt=50"`
	StatusHint  StatusHint `validate:"omitempty,oneof=live halftime finished canceled"`
	HomeOdds    decimal.NullDecimal
	DrawOdds    decimal.NullDecimal
	AwayOdds    decimal.NullDecimal
	Markets     []Market `validate:"dive"`
}

func (r Record) HasScore() bool {
	return r.HomeScore != nil && r.AwayScore != nil
}

// Snapshot is one point-in-time extraction of a listing.
type Snapshot struct {
	Source     Source
	CapturedAt time.Time
	Records    []Record
	// Dropped counts records rejected by normalization or validation.
	Dropped int
	// DroppedOutcomes counts outcomes whose odds could not be parsed.
	DroppedOutcomes int
}

// Empty reports a snapshot with no usable records. It must never be read as
// "every match disappeared".
func (s Snapshot) Empty() bool {
	return len(s.Records) == 0
}

// RawOutcome, RawMarket and RawRecord carry page text before normalization.
type RawOutcome struct {
	Name string
	Odds string
}

type RawMarket struct {
	Name     string
	Outcomes []RawOutcome
}

type RawRecord struct {
	League        string
	LeagueOrder   int
	HomeTeam      string
	AwayTeam      string
	HomeLogo      string
	AwayLogo      string
	Href          string
	Date          string
	Clock         string
	ScoreText     string
	HomeScoreText string
	AwayScoreText string
	StatusText    string
	HomeOdds      string
	DrawOdds      string
	AwayOdds      string
	Markets       []RawMarket
}
