package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/riskibarqy/oddsline/internal/domain/bet"
	"github.com/riskibarqy/oddsline/internal/domain/match"
	"github.com/riskibarqy/oddsline/internal/domain/team"
	"github.com/riskibarqy/oddsline/internal/platform/cache"
)

const (
	defaultRecentMatches = 20
	maxRecentMatches     = 100
	dashboardStatsKey    = "dashboard:stats"
)

type Dashboard struct {
	MatchesByStatus map[match.Status]int `json:"matches_by_status"`
	TotalMatches    int                  `json:"total_matches"`
	Teams           int                  `json:"teams"`
	PendingBets     int                  `json:"pending_bets"`
	ScrapedLastHour int                  `json:"scraped_last_hour"`
	ScrapedLastDay  int                  `json:"scraped_last_24h"`
	GeneratedAt     time.Time            `json:"generated_at"`
}

// DashboardService serves the counters of the admin stats view. Results are
// cached briefly since every refresh of the view hits several counts.
type DashboardService struct {
	matchRepo match.Repository
	teamRepo  team.Repository
	betRepo   bet.Repository
	cache     *cache.Store[Dashboard]
	now       func() time.Time
}

func NewDashboardService(
	matchRepo match.Repository,
	teamRepo team.Repository,
	betRepo bet.Repository,
	cacheTTL time.Duration,
) *DashboardService {
	return &DashboardService{
		matchRepo: matchRepo,
		teamRepo:  teamRepo,
		betRepo:   betRepo,
		cache:     cache.NewStore[Dashboard](cacheTTL),
		now:       time.Now,
	}
}

func (s *DashboardService) Get(ctx context.Context) (Dashboard, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.DashboardService.Get")
	defer span.End()

	return s.cache.GetOrLoad(ctx, dashboardStatsKey, s.load)
}

func (s *DashboardService) Invalidate(ctx context.Context) {
	s.cache.Delete(ctx, dashboardStatsKey)
}

func (s *DashboardService) RecentMatches(ctx context.Context, limit int) ([]match.Match, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.DashboardService.RecentMatches")
	defer span.End()

	if limit == 0 {
		limit = defaultRecentMatches
	}
	if limit < 0 || limit > maxRecentMatches {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidInput, maxRecentMatches)
	}

	items, err := s.matchRepo.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent matches: %w", err)
	}
	return items, nil
}

func (s *DashboardService) load(ctx context.Context) (Dashboard, error) {
	now := s.now().UTC()

	byStatus, err := s.matchRepo.CountByStatus(ctx)
	if err != nil {
		return Dashboard{}, fmt.Errorf("count matches by status: %w", err)
	}
	teams, err := s.teamRepo.Count(ctx)
	if err != nil {
		return Dashboard{}, fmt.Errorf("count teams: %w", err)
	}
	pending, err := s.betRepo.CountPending(ctx)
	if err != nil {
		return Dashboard{}, fmt.Errorf("count pending bets: %w", err)
	}
	lastHour, err := s.matchRepo.CountScrapedSince(ctx, now.Add(-time.Hour))
	if err != nil {
		return Dashboard{}, fmt.Errorf("count matches scraped last hour: %w", err)
	}
	lastDay, err := s.matchRepo.CountScrapedSince(ctx, now.Add(-24*time.Hour))
	if err != nil {
		return Dashboard{}, fmt.Errorf("count matches scraped last day: %w", err)
	}

	out := Dashboard{
		MatchesByStatus: make(map[match.Status]int, len(byStatus)),
		Teams:           teams,
		PendingBets:     pending,
		ScrapedLastHour: lastHour,
		ScrapedLastDay:  lastDay,
		GeneratedAt:     now,
	}
	for _, status := range []match.Status{match.StatusUpcoming, match.StatusLive, match.StatusHalftime, match.StatusFinished, match.StatusCanceled} {
		out.MatchesByStatus[status] = byStatus[status]
		out.TotalMatches += byStatus[status]
	}
	return out, nil
}
