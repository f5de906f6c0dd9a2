package httpapi

import (
	"time"

	"github.com/riskibarqy/oddsline/internal/domain/match"
	"github.com/riskibarqy/oddsline/internal/usecase"
	"github.com/shopspring/decimal"
)

type scraperStatusDTO struct {
	Name           string         `json:"name"`
	Running        bool           `json:"running"`
	Stopping       bool           `json:"stopping"`
	Interval       string         `json:"interval"`
	LastRunAt      string         `json:"lastRunAt,omitempty"`
	LastDurationMs int64          `json:"lastDurationMs"`
	LastError      string         `json:"lastError,omitempty"`
	LastStats      map[string]any `json:"lastStats,omitempty"`
	Cycles         int64          `json:"cycles"`
	Failures       int64          `json:"failures"`
	RecentLogLines []string       `json:"recentLogLines"`
}

type combinedStatusDTO struct {
	Total       int                `json:"total"`
	Running     int                `json:"running"`
	Supervisors []scraperStatusDTO `json:"supervisors"`
}

type controlOutcomeDTO struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type scraperLogsDTO struct {
	Name  string   `json:"name"`
	Lines []string `json:"lines"`
}

type statsDTO struct {
	MatchesByStatus map[string]int `json:"matchesByStatus"`
	TotalMatches    int            `json:"totalMatches"`
	Teams           int            `json:"teams"`
	PendingBets     int            `json:"pendingBets"`
	ScrapedLastHour int            `json:"scrapedLastHour"`
	ScrapedLastDay  int            `json:"scrapedLast24h"`
	GeneratedAt     string         `json:"generatedAt"`
}

type oddsDTO struct {
	Home *string `json:"home,omitempty"`
	Draw *string `json:"draw,omitempty"`
	Away *string `json:"away,omitempty"`
}

type outcomeDTO struct {
	Name string `json:"name"`
	Odds string `json:"odds"`
}

type marketDTO struct {
	Name     string       `json:"name"`
	Outcomes []outcomeDTO `json:"outcomes"`
}

type matchDTO struct {
	ID            int64       `json:"id"`
	League        string      `json:"league"`
	HomeTeam      string      `json:"homeTeam"`
	AwayTeam      string      `json:"awayTeam"`
	Kickoff       string      `json:"kickoffAt"`
	Status        string      `json:"status"`
	HomeScore     *int        `json:"homeScore,omitempty"`
	AwayScore     *int        `json:"awayScore,omitempty"`
	Unresolved    bool        `json:"unresolved,omitempty"`
	SourceURL     string      `json:"sourceUrl,omitempty"`
	LastScrapedAt string      `json:"lastScrapedAt,omitempty"`
	Odds          oddsDTO     `json:"odds"`
	Markets       []marketDTO `json:"markets,omitempty"`
}

type settleResultDTO struct {
	MatchID  int64  `json:"matchId"`
	Pending  int    `json:"pending"`
	Won      int    `json:"won"`
	Lost     int    `json:"lost"`
	Skipped  int    `json:"skipped"`
	Failed   int    `json:"failed"`
	Credited string `json:"credited"`
}

type finishResultDTO struct {
	MatchID         int64           `json:"matchId"`
	AlreadyFinished bool            `json:"alreadyFinished"`
	Settlement      settleResultDTO `json:"settlement"`
}

type accountDTO struct {
	UserID  int64  `json:"userId"`
	Balance string `json:"balance"`
}

type taskDTO struct {
	ID           string `json:"id"`
	Kind         string `json:"kind"`
	MatchID      int64  `json:"matchId,omitempty"`
	Status       string `json:"status"`
	DedupKey     string `json:"dedupKey"`
	Deduplicated bool   `json:"deduplicated,omitempty"`
	ScheduledFor string `json:"scheduledFor"`
	StartedAt    string `json:"startedAt,omitempty"`
	FinishedAt   string `json:"finishedAt,omitempty"`
	Error        string `json:"error,omitempty"`
	CreatedAt    string `json:"createdAt"`
}

type scoreRequest struct {
	HomeScore *int `json:"home_score" validate:"required,min=0,max=99"`
	AwayScore *int `json:"away_score" validate:"required,min=0,max=99"`
}

type enqueueTaskRequest struct {
	Kind         string `json:"kind" validate:"required,max=64"`
	MatchID      int64  `json:"match_id" validate:"omitempty,min=1"`
	DelaySeconds int64  `json:"delay_seconds" validate:"omitempty,min=0,max=86400"`
}

func scraperStatusToDTO(v usecase.SupervisorStatus) scraperStatusDTO {
	lines := v.RecentLogLines
	if lines == nil {
		lines = []string{}
	}
	return scraperStatusDTO{
		Name:           v.Name,
		Running:        v.Running,
		Stopping:       v.Stopping,
		Interval:       v.Interval,
		LastRunAt:      formatOptionalTime(v.LastRunAt),
		LastDurationMs: v.LastDurationMs,
		LastError:      v.LastError,
		LastStats:      v.LastStats,
		Cycles:         v.Cycles,
		Failures:       v.Failures,
		RecentLogLines: lines,
	}
}

func combinedStatusToDTO(v usecase.CombinedStatus) combinedStatusDTO {
	items := make([]scraperStatusDTO, 0, len(v.Supervisors))
	for _, s := range v.Supervisors {
		items = append(items, scraperStatusToDTO(s))
	}
	return combinedStatusDTO{Total: v.Total, Running: v.Running, Supervisors: items}
}

func statsToDTO(v usecase.Dashboard) statsDTO {
	byStatus := make(map[string]int, len(v.MatchesByStatus))
	for status, count := range v.MatchesByStatus {
		byStatus[string(status)] = count
	}
	return statsDTO{
		MatchesByStatus: byStatus,
		TotalMatches:    v.TotalMatches,
		Teams:           v.Teams,
		PendingBets:     v.PendingBets,
		ScrapedLastHour: v.ScrapedLastHour,
		ScrapedLastDay:  v.ScrapedLastDay,
		GeneratedAt:     v.GeneratedAt.UTC().Format(time.RFC3339),
	}
}

func matchToDTO(v match.Match) matchDTO {
	markets := make([]marketDTO, 0, len(v.Markets))
	for _, m := range v.Markets {
		outcomes := make([]outcomeDTO, 0, len(m.Outcomes))
		for _, o := range m.Outcomes {
			outcomes = append(outcomes, outcomeDTO{Name: o.Name, Odds: o.Odds.String()})
		}
		markets = append(markets, marketDTO{Name: m.Name, Outcomes: outcomes})
	}

	out := matchDTO{
		ID:         v.ID,
		League:     v.League,
		HomeTeam:   v.HomeTeam,
		AwayTeam:   v.AwayTeam,
		Kickoff:    v.KickoffAt.UTC().Format(time.RFC3339),
		Status:     string(v.Status),
		HomeScore:  v.HomeScore,
		AwayScore:  v.AwayScore,
		Unresolved: v.Unresolved,
		SourceURL:  v.SourceURL,
		Odds: oddsDTO{
			Home: nullDecimalString(v.Odds.Home),
			Draw: nullDecimalString(v.Odds.Draw),
			Away: nullDecimalString(v.Odds.Away),
		},
		Markets: markets,
	}
	if !v.LastScrapedAt.IsZero() {
		out.LastScrapedAt = v.LastScrapedAt.UTC().Format(time.RFC3339)
	}
	return out
}

func settleResultToDTO(v usecase.SettleResult) settleResultDTO {
	return settleResultDTO{
		MatchID:  v.MatchID,
		Pending:  v.Pending,
		Won:      v.Won,
		Lost:     v.Lost,
		Skipped:  v.Skipped,
		Failed:   v.Failed,
		Credited: v.Credited.StringFixed(2),
	}
}

func finishResultToDTO(v usecase.FinishResult) finishResultDTO {
	return finishResultDTO{
		MatchID:         v.MatchID,
		AlreadyFinished: v.AlreadyFinished,
		Settlement:      settleResultToDTO(v.Settlement),
	}
}

func taskToDTO(v usecase.Task) taskDTO {
	return taskDTO{
		ID:           v.ID,
		Kind:         string(v.Kind),
		MatchID:      v.MatchID,
		Status:       string(v.Status),
		DedupKey:     v.DedupKey,
		Deduplicated: v.Deduplicated,
		ScheduledFor: v.ScheduledFor.UTC().Format(time.RFC3339),
		StartedAt:    formatOptionalTime(v.StartedAt),
		FinishedAt:   formatOptionalTime(v.FinishedAt),
		Error:        v.Error,
		CreatedAt:    v.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func nullDecimalString(v decimal.NullDecimal) *string {
	if !v.Valid {
		return nil
	}
	out := v.Decimal.String()
	return &out
}

func formatOptionalTime(v *time.Time) string {
	if v == nil {
		return ""
	}
	return v.UTC().Format(time.RFC3339)
}
