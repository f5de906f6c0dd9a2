package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/riskibarqy/oddsline/internal/domain/bet"
	"github.com/riskibarqy/oddsline/internal/domain/match"
	"github.com/riskibarqy/oddsline/internal/platform/logging"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

type SettlementConfig struct {
	MaxWorkers int
	SweepBatch int
}

type SettleResult struct {
	MatchID  int64           `json:"match_id"`
	Pending  int             `json:"pending"`
	Won      int             `json:"won"`
	Lost     int             `json:"lost"`
	Skipped  int             `json:"skipped"`
	Failed   int             `json:"failed"`
	Credited decimal.Decimal `json:"credited"`
}

type FinishResult struct {
	MatchID         int64        `json:"match_id"`
	AlreadyFinished bool         `json:"already_finished"`
	Settlement      SettleResult `json:"settlement"`
}

type SweepResult struct {
	Matches     int             `json:"matches"`
	WorkerCount int             `json:"worker_count"`
	Won         int             `json:"won"`
	Lost        int             `json:"lost"`
	Skipped     int             `json:"skipped"`
	Failed      int             `json:"failed"`
	Credited    decimal.Decimal `json:"credited"`
	Items       []SettleResult  `json:"items"`
}

type SettlementService struct {
	matchRepo match.Repository
	betRepo   bet.Repository
	cfg       SettlementConfig
	metrics   PipelineMetrics
	logger    *logging.Logger
}

func NewSettlementService(
	matchRepo match.Repository,
	betRepo bet.Repository,
	cfg SettlementConfig,
	metrics PipelineMetrics,
	logger *logging.Logger,
) *SettlementService {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 4
	}
	if cfg.SweepBatch <= 0 {
		cfg.SweepBatch = 100
	}

	return &SettlementService{
		matchRepo: matchRepo,
		betRepo:   betRepo,
		cfg:       cfg,
		metrics:   metricsOrNoop(metrics),
		logger:    logger,
	}
}

// Finish ends an active match with its final score and settles its bets.
// Finishing an already finished match is a no-op.
func (s *SettlementService) Finish(ctx context.Context, matchID int64, home, away int) (FinishResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SettlementService.Finish", attribute.Int64("match.id", matchID))
	defer span.End()

	if home < 0 || away < 0 {
		return FinishResult{}, fmt.Errorf("%w: scores must not be negative", ErrInvalidInput)
	}

	item, err := s.getMatch(ctx, matchID)
	if err != nil {
		return FinishResult{}, err
	}
	result := FinishResult{MatchID: matchID}
	if item.Status == match.StatusFinished {
		result.AlreadyFinished = true
		return result, nil
	}
	if !item.CanFinish() {
		return FinishResult{}, fmt.Errorf("%w: match id=%d is %s", ErrMatchNotFinishable, matchID, item.Status)
	}

	marked, err := s.matchRepo.MarkFinished(ctx, matchID, home, away)
	if err != nil {
		return FinishResult{}, fmt.Errorf("mark match finished: %w", err)
	}
	if !marked {
		// Another writer moved the match first.
		current, err := s.getMatch(ctx, matchID)
		if err != nil {
			return FinishResult{}, err
		}
		if current.Status == match.StatusFinished {
			result.AlreadyFinished = true
			return result, nil
		}
		return FinishResult{}, fmt.Errorf("%w: match id=%d is %s", ErrMatchNotFinishable, matchID, current.Status)
	}

	settlement, err := s.SettleMatch(ctx, matchID)
	if err != nil {
		return FinishResult{}, err
	}
	result.Settlement = settlement
	return result, nil
}

// FinishUnresolved ends an active match whose score is unknown. Its bets wait
// for ResolveScore.
func (s *SettlementService) FinishUnresolved(ctx context.Context, matchID int64) (bool, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SettlementService.FinishUnresolved", attribute.Int64("match.id", matchID))
	defer span.End()

	ok, err := s.matchRepo.MarkUnresolved(ctx, matchID)
	if err != nil {
		return false, fmt.Errorf("mark match unresolved: %w", err)
	}
	return ok, nil
}

func (s *SettlementService) ResolveScore(ctx context.Context, matchID int64, home, away int) (FinishResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SettlementService.ResolveScore", attribute.Int64("match.id", matchID))
	defer span.End()

	if home < 0 || away < 0 {
		return FinishResult{}, fmt.Errorf("%w: scores must not be negative", ErrInvalidInput)
	}
	item, err := s.getMatch(ctx, matchID)
	if err != nil {
		return FinishResult{}, err
	}
	if item.Status != match.StatusFinished || !item.Unresolved {
		return FinishResult{}, fmt.Errorf("%w: match id=%d has no unresolved score", ErrConflict, matchID)
	}

	ok, err := s.matchRepo.ResolveScore(ctx, matchID, home, away)
	if err != nil {
		return FinishResult{}, fmt.Errorf("resolve match score: %w", err)
	}
	if !ok {
		return FinishResult{}, fmt.Errorf("%w: match id=%d was resolved concurrently", ErrConflict, matchID)
	}
	s.metrics.IncFinish(finishTriggerManual)

	settlement, err := s.SettleMatch(ctx, matchID)
	if err != nil {
		return FinishResult{}, err
	}
	return FinishResult{MatchID: matchID, Settlement: settlement}, nil
}

// SettleMatch resolves every pending bet of a finished match. A failing bet
// stays pending and does not stop the others. Safe to re-run.
func (s *SettlementService) SettleMatch(ctx context.Context, matchID int64) (SettleResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SettlementService.SettleMatch", attribute.Int64("match.id", matchID))
	defer span.End()

	item, err := s.getMatch(ctx, matchID)
	if err != nil {
		return SettleResult{}, err
	}
	if !item.Settleable() {
		return SettleResult{}, fmt.Errorf("%w: match id=%d is not settleable", ErrConflict, matchID)
	}
	home, away := *item.HomeScore, *item.AwayScore

	betIDs, err := s.betRepo.ListPendingIDs(ctx, matchID)
	if err != nil {
		return SettleResult{}, fmt.Errorf("list pending bets: %w", err)
	}

	result := SettleResult{MatchID: matchID, Pending: len(betIDs), Credited: decimal.Zero}
	resolve := func(b bet.Bet) (bet.Status, error) {
		return b.Outcome(home, away)
	}
	for _, betID := range betIDs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		settlement, err := s.betRepo.Settle(ctx, betID, resolve)
		if err != nil {
			result.Failed++
			s.logger.ErrorContext(ctx, "settle bet failed", "match_id", matchID, "bet_id", betID, "error", err)
			continue
		}
		if settlement.Skipped {
			result.Skipped++
			continue
		}
		switch settlement.Status {
		case bet.StatusWon:
			result.Won++
			result.Credited = result.Credited.Add(settlement.Credited)
			s.metrics.AddPayout(settlement.Credited)
		case bet.StatusLost:
			result.Lost++
		}
		s.metrics.IncBetSettled(string(settlement.Status))
	}

	if result.Pending > 0 {
		s.logger.InfoContext(ctx, "match settled",
			"match_id", matchID,
			"home_score", home,
			"away_score", away,
			"won", result.Won,
			"lost", result.Lost,
			"skipped", result.Skipped,
			"failed", result.Failed,
			"credited", result.Credited.String(),
		)
	}
	return result, nil
}

// Sweep settles finished matches that still have pending bets. Matches run
// concurrently, bets within a match sequentially.
func (s *SettlementService) Sweep(ctx context.Context) (SweepResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SettlementService.Sweep")
	defer span.End()

	matches, err := s.matchRepo.ListFinishedWithPendingBets(ctx, s.cfg.SweepBatch)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list finished matches with pending bets: %w", err)
	}

	workerCount := s.cfg.MaxWorkers
	if len(matches) < workerCount {
		workerCount = len(matches)
	}
	result := SweepResult{
		Matches:     len(matches),
		WorkerCount: workerCount,
		Credited:    decimal.Zero,
		Items:       make([]SettleResult, 0, len(matches)),
	}
	if len(matches) == 0 {
		return result, nil
	}

	pool, err := ants.NewPool(workerCount)
	if err != nil {
		return SweepResult{}, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	results := make(chan SettleResult, len(matches))
	var workers sync.WaitGroup
	for _, item := range matches {
		item := item
		workers.Add(1)
		if err := pool.Submit(func() {
			defer workers.Done()

			start := time.Now()
			row, err := s.SettleMatch(ctx, item.ID)
			if err != nil {
				s.logger.WarnContext(ctx, "sweep settle match failed", "match_id", item.ID, "error", err)
				row = SettleResult{MatchID: item.ID, Failed: 1, Credited: decimal.Zero}
			}
			s.logger.DebugContext(ctx, "sweep match done", "match_id", item.ID, "duration_ms", time.Since(start).Milliseconds())
			results <- row
		}); err != nil {
			workers.Done()
			return SweepResult{}, fmt.Errorf("submit match to worker pool: %w", err)
		}
	}

	workers.Wait()
	close(results)

	for row := range results {
		result.Won += row.Won
		result.Lost += row.Lost
		result.Skipped += row.Skipped
		result.Failed += row.Failed
		result.Credited = result.Credited.Add(row.Credited)
		result.Items = append(result.Items, row)
	}
	sort.SliceStable(result.Items, func(i, j int) bool {
		return result.Items[i].MatchID < result.Items[j].MatchID
	})
	return result, nil
}

func (s *SettlementService) getMatch(ctx context.Context, matchID int64) (match.Match, error) {
	if matchID <= 0 {
		return match.Match{}, fmt.Errorf("%w: match id is required", ErrInvalidInput)
	}
	item, ok, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		return match.Match{}, fmt.Errorf("get match: %w", err)
	}
	if !ok {
		return match.Match{}, fmt.Errorf("%w: match id=%d", ErrNotFound, matchID)
	}
	return item, nil
}
