package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/riskibarqy/oddsline/internal/domain/match"
	"github.com/riskibarqy/oddsline/internal/domain/snapshot"
	"github.com/riskibarqy/oddsline/internal/domain/team"
	"github.com/riskibarqy/oddsline/internal/platform/logging"
)

type ReconcileConfig struct {
	RetirementWindow    time.Duration
	RetirementMinMisses int
	StaleSweepCooldown  time.Duration
	StaleAfter          time.Duration
}

type ReconcileOptions struct {
	// Retire enables missed-cycle retirement and the stale sweep. Only the
	// main listing sees every upcoming match, so only it may retire.
	Retire bool
}

type ReconcileResult struct {
	Source     string `json:"source"`
	Records    int    `json:"records"`
	Dropped    int    `json:"dropped"`
	Created    int    `json:"created"`
	Updated    int    `json:"updated"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
	Missed     int    `json:"missed"`
	Deleted    int    `json:"deleted"`
	Canceled   int    `json:"canceled"`
	StaleSwept bool   `json:"stale_swept"`
}

type StaleSweepResult struct {
	Candidates int  `json:"candidates"`
	Deleted    int  `json:"deleted"`
	Canceled   int  `json:"canceled"`
	Skipped    bool `json:"skipped"`
}

type ReconciliationService struct {
	matchRepo match.Repository
	teamRepo  team.Repository
	cfg       ReconcileConfig
	metrics   PipelineMetrics
	logger    *logging.Logger
	now       func() time.Time

	// cycleMu keeps the main and live passes from writing back each other's
	// stale copies of the same match.
	cycleMu sync.Mutex

	mu             sync.Mutex
	lastStaleSweep time.Time
}

func NewReconciliationService(
	matchRepo match.Repository,
	teamRepo team.Repository,
	cfg ReconcileConfig,
	metrics PipelineMetrics,
	logger *logging.Logger,
) *ReconciliationService {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.RetirementWindow <= 0 {
		cfg.RetirementWindow = time.Hour
	}
	if cfg.RetirementMinMisses <= 0 {
		cfg.RetirementMinMisses = 2
	}
	if cfg.StaleSweepCooldown <= 0 {
		cfg.StaleSweepCooldown = 30 * time.Minute
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 6 * time.Hour
	}

	return &ReconciliationService{
		matchRepo: matchRepo,
		teamRepo:  teamRepo,
		cfg:       cfg,
		metrics:   metricsOrNoop(metrics),
		logger:    logger,
		now:       time.Now,
	}
}

func (s *ReconciliationService) Reconcile(ctx context.Context, snap snapshot.Snapshot, opts ReconcileOptions) (ReconcileResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ReconciliationService.Reconcile")
	defer span.End()

	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	now := s.now().UTC()
	result := ReconcileResult{
		Source:  string(snap.Source),
		Records: len(snap.Records),
		Dropped: snap.Dropped,
	}
	s.metrics.AddRecords(string(snap.Source), len(snap.Records), snap.Dropped)

	active, err := s.matchRepo.ListActive(ctx)
	if err != nil {
		return result, fmt.Errorf("list active matches: %w", err)
	}
	// Matches created during this pass are indexed but never retired in it.
	retirable := len(active)
	idx := newMatchIndex(active)

	teams, err := s.ensureTeams(ctx, snap.Records)
	if err != nil {
		return result, err
	}

	for _, rec := range snap.Records {
		if err := s.reconcileRecord(ctx, idx, teams, rec, now, &result); err != nil {
			result.Failed++
			s.logger.WarnContext(ctx, "reconcile record failed",
				"source", snap.Source,
				"home_team", rec.HomeTeam,
				"away_team", rec.AwayTeam,
				"error", err,
			)
		}
	}

	if snap.Empty() {
		if opts.Retire {
			s.logger.WarnContext(ctx, "empty snapshot, retirement skipped", "source", snap.Source)
		}
		s.recordMatchMetrics(result)
		return result, nil
	}

	if opts.Retire {
		seen := newSeenSet(snap.Records)
		for i := 0; i < retirable; i++ {
			s.trackMiss(ctx, &active[i], seen, now, &result)
		}

		sweep, err := s.sweepStale(ctx, now, false)
		if err != nil {
			s.logger.WarnContext(ctx, "stale sweep failed", "error", err)
		}
		result.StaleSwept = !sweep.Skipped && err == nil
		result.Deleted += sweep.Deleted
		result.Canceled += sweep.Canceled
	}

	s.recordMatchMetrics(result)
	return result, nil
}

// SweepStale retires upcoming matches the listing has not shown for
// StaleAfter, ignoring the cooldown.
func (s *ReconciliationService) SweepStale(ctx context.Context) (StaleSweepResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ReconciliationService.SweepStale")
	defer span.End()

	result, err := s.sweepStale(ctx, s.now().UTC(), true)
	s.metrics.AddMatches("deleted", result.Deleted)
	s.metrics.AddMatches("canceled", result.Canceled)
	return result, err
}

func (s *ReconciliationService) reconcileRecord(
	ctx context.Context,
	idx *matchIndex,
	teams map[string]team.Team,
	rec snapshot.Record,
	now time.Time,
	result *ReconcileResult,
) error {
	odds := match.Odds{Home: rec.HomeOdds, Draw: rec.DrawOdds, Away: rec.AwayOdds}
	markets := toMatchMarkets(rec.Markets)

	if existing, ok := idx.resolve(rec); ok {
		existing.ApplyScore(rec.HomeScore, rec.AwayScore)
		existing.SetOdds(odds, markets)
		if rec.League != "" {
			existing.League = rec.League
		}
		existing.LeagueOrder = rec.LeagueOrder
		if existing.SourceURL == "" && rec.MatchURL != "" {
			existing.SourceURL = rec.MatchURL
			idx.reindexURL(existing)
		}
		switch rec.StatusHint {
		case snapshot.HintLive:
			existing.AdvanceStatus(match.StatusLive)
		case snapshot.HintHalftime:
			existing.AdvanceStatus(match.StatusHalftime)
		}
		existing.MissedCycles = 0
		existing.LastScrapedAt = now

		updated, err := s.matchRepo.Update(ctx, *existing)
		if err != nil {
			return fmt.Errorf("update match id=%d: %w", existing.ID, err)
		}
		if !updated {
			result.Skipped++
			s.logger.InfoContext(ctx, "match left active state during reconcile, update skipped", "match_id", existing.ID)
			return nil
		}
		result.Updated++
		return nil
	}

	if !rec.ScheduledAt.After(now) {
		result.Skipped++
		return nil
	}

	home, okHome := teams[team.NormalizeName(rec.HomeTeam)]
	away, okAway := teams[team.NormalizeName(rec.AwayTeam)]
	if !okHome || !okAway {
		return fmt.Errorf("%w: teams not resolved for %s vs %s", ErrNotFound, rec.HomeTeam, rec.AwayTeam)
	}

	item := match.Match{
		HomeTeamID:    home.ID,
		AwayTeamID:    away.ID,
		HomeTeam:      home.Name,
		AwayTeam:      away.Name,
		League:        rec.League,
		LeagueOrder:   rec.LeagueOrder,
		KickoffAt:     rec.ScheduledAt,
		Status:        match.StatusUpcoming,
		SourceURL:     rec.MatchURL,
		LastScrapedAt: now,
	}
	item.SetOdds(odds, markets)

	created, err := s.matchRepo.Create(ctx, item)
	if err != nil {
		return fmt.Errorf("create match: %w", err)
	}
	idx.add(&created)
	result.Created++
	return nil
}

// trackMiss counts a missed sighting of an upcoming match and retires it once
// it has been missing long enough close to kickoff.
func (s *ReconciliationService) trackMiss(ctx context.Context, m *match.Match, seen seenSet, now time.Time, result *ReconcileResult) {
	if m.Status != match.StatusUpcoming || seen.contains(*m) || !m.KickoffAt.After(now) {
		return
	}

	m.MissedCycles++
	result.Missed++
	if m.MissedCycles >= s.cfg.RetirementMinMisses && m.KickoffAt.Sub(now) <= s.cfg.RetirementWindow {
		deleted, err := s.retire(ctx, *m)
		if err != nil {
			result.Failed++
			s.logger.WarnContext(ctx, "retire match failed", "match_id", m.ID, "error", err)
			return
		}
		if deleted {
			result.Deleted++
		} else {
			result.Canceled++
		}
		return
	}

	if _, err := s.matchRepo.Update(ctx, *m); err != nil {
		result.Failed++
		s.logger.WarnContext(ctx, "record missed cycle failed", "match_id", m.ID, "error", err)
	}
}

func (s *ReconciliationService) sweepStale(ctx context.Context, now time.Time, force bool) (StaleSweepResult, error) {
	s.mu.Lock()
	if !force && !s.lastStaleSweep.IsZero() && now.Sub(s.lastStaleSweep) < s.cfg.StaleSweepCooldown {
		s.mu.Unlock()
		return StaleSweepResult{Skipped: true}, nil
	}
	s.lastStaleSweep = now
	s.mu.Unlock()

	stale, err := s.matchRepo.ListStale(ctx, now.Add(-s.cfg.StaleAfter))
	if err != nil {
		return StaleSweepResult{}, fmt.Errorf("list stale matches: %w", err)
	}

	result := StaleSweepResult{Candidates: len(stale)}
	var errs []error
	for _, item := range stale {
		deleted, err := s.retire(ctx, item)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if deleted {
			result.Deleted++
		} else {
			result.Canceled++
		}
	}
	if len(stale) > 0 {
		s.logger.InfoContext(ctx, "stale sweep done",
			"candidates", result.Candidates,
			"deleted", result.Deleted,
			"canceled", result.Canceled,
		)
	}
	return result, errors.Join(errs...)
}

// retire deletes a match nobody bet on; otherwise it is canceled so its bets
// stay visible. Reports whether the match was deleted.
func (s *ReconciliationService) retire(ctx context.Context, m match.Match) (bool, error) {
	deleted, err := s.matchRepo.Delete(ctx, m.ID)
	if err != nil {
		return false, fmt.Errorf("delete match id=%d: %w", m.ID, err)
	}
	if deleted {
		s.logger.InfoContext(ctx, "match retired", "match_id", m.ID, "home_team", m.HomeTeam, "away_team", m.AwayTeam)
		return true, nil
	}
	if _, err := s.matchRepo.Cancel(ctx, m.ID); err != nil {
		return false, fmt.Errorf("cancel match id=%d: %w", m.ID, err)
	}
	s.logger.InfoContext(ctx, "match with bets canceled", "match_id", m.ID, "home_team", m.HomeTeam, "away_team", m.AwayTeam)
	return false, nil
}

// ensureTeams returns every team named in records, creating unseen names.
// A concurrent creator winning the insert is resolved by the second lookup.
func (s *ReconciliationService) ensureTeams(ctx context.Context, records []snapshot.Record) (map[string]team.Team, error) {
	logos := make(map[string]string, len(records)*2)
	names := make([]string, 0, len(records)*2)
	addName := func(name, logo string) {
		name = team.NormalizeName(name)
		if name == "" {
			return
		}
		if _, ok := logos[name]; !ok {
			names = append(names, name)
			logos[name] = ""
		}
		if logos[name] == "" && logo != "" {
			logos[name] = logo
		}
	}
	for _, rec := range records {
		addName(rec.HomeTeam, rec.HomeLogo)
		addName(rec.AwayTeam, rec.AwayLogo)
	}
	if len(names) == 0 {
		return map[string]team.Team{}, nil
	}

	found, err := s.teamRepo.FindByNames(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("find teams: %w", err)
	}

	missing := make([]team.Team, 0)
	for _, name := range names {
		if _, ok := found[name]; !ok {
			missing = append(missing, team.Team{Name: name, LogoURL: logos[name]})
		}
	}
	if len(missing) > 0 {
		if err := s.teamRepo.CreateMany(ctx, missing); err != nil && !errors.Is(err, team.ErrAlreadyExists) {
			return nil, fmt.Errorf("create teams: %w", err)
		}
		found, err = s.teamRepo.FindByNames(ctx, names)
		if err != nil {
			return nil, fmt.Errorf("find teams after create: %w", err)
		}
	}

	for name, item := range found {
		if item.LogoURL != "" || logos[name] == "" {
			continue
		}
		if err := s.teamRepo.UpdateLogo(ctx, item.ID, logos[name]); err != nil {
			s.logger.WarnContext(ctx, "update team logo failed", "team_id", item.ID, "error", err)
			continue
		}
		item.LogoURL = logos[name]
		found[name] = item
	}
	return found, nil
}

func (s *ReconciliationService) recordMatchMetrics(result ReconcileResult) {
	s.metrics.AddMatches("created", result.Created)
	s.metrics.AddMatches("updated", result.Updated)
	s.metrics.AddMatches("deleted", result.Deleted)
	s.metrics.AddMatches("canceled", result.Canceled)
}

func toMatchMarkets(items []snapshot.Market) []match.Market {
	if len(items) == 0 {
		return nil
	}
	out := make([]match.Market, 0, len(items))
	for i, item := range items {
		market := match.Market{Name: item.Name, Order: i, Outcomes: make([]match.Outcome, 0, len(item.Outcomes))}
		for j, outcome := range item.Outcomes {
			market.Outcomes = append(market.Outcomes, match.Outcome{Name: outcome.Name, Order: j, Odds: outcome.Odds})
		}
		out = append(out, market)
	}
	return out
}
