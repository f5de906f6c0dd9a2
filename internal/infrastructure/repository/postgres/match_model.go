package postgres

import (
	"database/sql"
	"time"

	"github.com/riskibarqy/oddsline/internal/domain/match"
	"github.com/shopspring/decimal"
)

type matchTableModel struct {
	ID             int64               `db:"id,readonly"`
	HomeTeamID     int64               `db:"home_team_id"`
	AwayTeamID     int64               `db:"away_team_id"`
	HomeTeam       string              `db:"home_team,readonly"`
	AwayTeam       string              `db:"away_team,readonly"`
	League         string              `db:"league"`
	LeagueOrder    int                 `db:"league_order"`
	KickoffAt      time.Time           `db:"kickoff_at"`
	Status         string              `db:"status"`
	HomeScore      sql.NullInt64       `db:"home_score"`
	AwayScore      sql.NullInt64       `db:"away_score"`
	Unresolved     bool                `db:"unresolved"`
	SourceURL      string              `db:"source_url"`
	LastScrapedAt  time.Time           `db:"last_scraped_at"`
	MissedCycles   int                 `db:"missed_cycles"`
	HomeOdds       decimal.NullDecimal `db:"home_odds"`
	DrawOdds       decimal.NullDecimal `db:"draw_odds"`
	AwayOdds       decimal.NullDecimal `db:"away_odds"`
	DoubleChance1X decimal.NullDecimal `db:"dc_1x_odds"`
	DoubleChance12 decimal.NullDecimal `db:"dc_12_odds"`
	DoubleChanceX2 decimal.NullDecimal `db:"dc_x2_odds"`
	Over25         decimal.NullDecimal `db:"over_2_5_odds"`
	Under25        decimal.NullDecimal `db:"under_2_5_odds"`
	HandicapHome   decimal.NullDecimal `db:"handicap_home_odds"`
	HandicapAway   decimal.NullDecimal `db:"handicap_away_odds"`
	BTTSYes        decimal.NullDecimal `db:"btts_yes_odds"`
	BTTSNo         decimal.NullDecimal `db:"btts_no_odds"`
	CreatedAt      time.Time           `db:"created_at,readonly"`
	UpdatedAt      time.Time           `db:"updated_at,readonly"`
}

// matchColumns selects a match joined with its team names. Queries alias
// matches as m and the teams as th and ta.
var matchColumns = []string{
	"m.id", "m.home_team_id", "m.away_team_id",
	"th.name AS home_team", "ta.name AS away_team",
	"m.league", "m.league_order", "m.kickoff_at", "m.status",
	"m.home_score", "m.away_score", "m.unresolved", "m.source_url",
	"m.last_scraped_at", "m.missed_cycles",
	"m.home_odds", "m.draw_odds", "m.away_odds",
	"m.dc_1x_odds", "m.dc_12_odds", "m.dc_x2_odds",
	"m.over_2_5_odds", "m.under_2_5_odds",
	"m.handicap_home_odds", "m.handicap_away_odds",
	"m.btts_yes_odds", "m.btts_no_odds",
	"m.created_at", "m.updated_at",
}

const matchFrom = "matches m JOIN teams th ON th.id = m.home_team_id JOIN teams ta ON ta.id = m.away_team_id"

func matchModelFromDomain(m match.Match) matchTableModel {
	return matchTableModel{
		HomeTeamID:     m.HomeTeamID,
		AwayTeamID:     m.AwayTeamID,
		League:         m.League,
		LeagueOrder:    m.LeagueOrder,
		KickoffAt:      m.KickoffAt.UTC(),
		Status:         string(m.Status),
		HomeScore:      nullIntFromPtr(m.HomeScore),
		AwayScore:      nullIntFromPtr(m.AwayScore),
		Unresolved:     m.Unresolved,
		SourceURL:      m.SourceURL,
		LastScrapedAt:  m.LastScrapedAt.UTC(),
		MissedCycles:   m.MissedCycles,
		HomeOdds:       m.Odds.Home,
		DrawOdds:       m.Odds.Draw,
		AwayOdds:       m.Odds.Away,
		DoubleChance1X: m.Derived.DoubleChance1X,
		DoubleChance12: m.Derived.DoubleChance12,
		DoubleChanceX2: m.Derived.DoubleChanceX2,
		Over25:         m.Derived.Over25,
		Under25:        m.Derived.Under25,
		HandicapHome:   m.Derived.HandicapHome,
		HandicapAway:   m.Derived.HandicapAway,
		BTTSYes:        m.Derived.BTTSYes,
		BTTSNo:         m.Derived.BTTSNo,
	}
}

func (row matchTableModel) toDomain() match.Match {
	return match.Match{
		ID:            row.ID,
		HomeTeamID:    row.HomeTeamID,
		AwayTeamID:    row.AwayTeamID,
		HomeTeam:      row.HomeTeam,
		AwayTeam:      row.AwayTeam,
		League:        row.League,
		LeagueOrder:   row.LeagueOrder,
		KickoffAt:     row.KickoffAt.UTC(),
		Status:        match.Status(row.Status),
		HomeScore:     ptrFromNullInt(row.HomeScore),
		AwayScore:     ptrFromNullInt(row.AwayScore),
		Unresolved:    row.Unresolved,
		SourceURL:     row.SourceURL,
		LastScrapedAt: row.LastScrapedAt.UTC(),
		MissedCycles:  row.MissedCycles,
		Odds: match.Odds{
			Home: row.HomeOdds,
			Draw: row.DrawOdds,
			Away: row.AwayOdds,
		},
		Derived: match.DerivedOdds{
			DoubleChance1X: row.DoubleChance1X,
			DoubleChance12: row.DoubleChance12,
			DoubleChanceX2: row.DoubleChanceX2,
			Over25:         row.Over25,
			Under25:        row.Under25,
			HandicapHome:   row.HandicapHome,
			HandicapAway:   row.HandicapAway,
			BTTSYes:        row.BTTSYes,
			BTTSNo:         row.BTTSNo,
		},
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}

type outcomeInsertModel struct {
	MarketID int64           `db:"market_id"`
	Name     string          `db:"name"`
	Order    int             `db:"sort_order"`
	Odds     decimal.Decimal `db:"odds"`
}

type marketOutcomeRow struct {
	MatchID      int64           `db:"match_id"`
	MarketName   string          `db:"market_name"`
	MarketOrder  int             `db:"market_order"`
	OutcomeName  string          `db:"outcome_name"`
	OutcomeOrder int             `db:"outcome_order"`
	Odds         decimal.Decimal `db:"odds"`
}

type statusCountRow struct {
	Status string `db:"status"`
	Total  int    `db:"total"`
}
