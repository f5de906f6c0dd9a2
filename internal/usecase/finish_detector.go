package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/riskibarqy/oddsline/internal/domain/match"
	"github.com/riskibarqy/oddsline/internal/domain/snapshot"
	"github.com/riskibarqy/oddsline/internal/platform/logging"
)

const (
	finishTriggerExplicit    = "explicit"
	finishTriggerDisappeared = "disappeared"
	finishTriggerUnresolved  = "unresolved"
	finishTriggerManual      = "manual"
)

type FinishDetectorConfig struct {
	// DisappearanceMisses is how many consecutive live cycles an in-play match
	// must be absent before it is considered finished.
	DisappearanceMisses int
}

type DetectOptions struct {
	Disappearance bool
}

type DetectResult struct {
	Finished   int `json:"finished"`
	Unresolved int `json:"unresolved"`
	Canceled   int `json:"canceled"`
	Missing    int `json:"missing"`
	Settled    int `json:"settled"`
	Failed     int `json:"failed"`
}

// matchFinisher is the single entry point for ending a match.
type matchFinisher interface {
	Finish(ctx context.Context, matchID int64, home, away int) (FinishResult, error)
	FinishUnresolved(ctx context.Context, matchID int64) (bool, error)
}

type FinishDetector struct {
	matchRepo match.Repository
	finisher  matchFinisher
	cfg       FinishDetectorConfig
	metrics   PipelineMetrics
	logger    *logging.Logger
	now       func() time.Time

	mu sync.Mutex
	// seenLive holds in-play matches observed in an earlier live cycle.
	seenLive map[int64]struct{}
	misses   map[int64]int
}

func NewFinishDetector(
	matchRepo match.Repository,
	finisher matchFinisher,
	cfg FinishDetectorConfig,
	metrics PipelineMetrics,
	logger *logging.Logger,
) *FinishDetector {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.DisappearanceMisses <= 0 {
		cfg.DisappearanceMisses = 3
	}

	return &FinishDetector{
		matchRepo: matchRepo,
		finisher:  finisher,
		cfg:       cfg,
		metrics:   metricsOrNoop(metrics),
		logger:    logger,
		now:       time.Now,
		seenLive:  make(map[int64]struct{}),
		misses:    make(map[int64]int),
	}
}

func (d *FinishDetector) Detect(ctx context.Context, snap snapshot.Snapshot, opts DetectOptions) (DetectResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.FinishDetector.Detect")
	defer span.End()

	active, err := d.matchRepo.ListActive(ctx)
	if err != nil {
		return DetectResult{}, fmt.Errorf("list active matches: %w", err)
	}

	now := d.now().UTC()
	idx := newMatchIndex(active)
	handled := make(map[int64]struct{})
	result := DetectResult{}

	for _, rec := range snap.Records {
		m, ok := idx.resolve(rec)
		if !ok {
			continue
		}
		if m.Status == match.StatusUpcoming && m.KickoffAt.After(now) {
			continue
		}

		switch rec.StatusHint {
		case snapshot.HintFinished:
			handled[m.ID] = struct{}{}
			home, away := rec.HomeScore, rec.AwayScore
			if home == nil || away == nil {
				home, away = m.HomeScore, m.AwayScore
			}
			d.finish(ctx, *m, home, away, finishTriggerExplicit, &result)
		case snapshot.HintCanceled:
			if m.Status != match.StatusUpcoming {
				continue
			}
			handled[m.ID] = struct{}{}
			if _, err := d.matchRepo.Cancel(ctx, m.ID); err != nil {
				result.Failed++
				d.logger.WarnContext(ctx, "cancel match failed", "match_id", m.ID, "error", err)
				continue
			}
			result.Canceled++
			d.logger.InfoContext(ctx, "match canceled by listing", "match_id", m.ID)
		}
	}

	if opts.Disappearance && !snap.Empty() {
		d.detectDisappeared(ctx, active, newSeenSet(snap.Records), handled, &result)
	}
	return result, nil
}

func (d *FinishDetector) detectDisappeared(
	ctx context.Context,
	active []match.Match,
	seen seenSet,
	handled map[int64]struct{},
	result *DetectResult,
) {
	due := make([]match.Match, 0)

	d.mu.Lock()
	inPlay := make(map[int64]struct{}, len(active))
	for _, item := range active {
		if !item.Status.IsInPlay() {
			continue
		}
		inPlay[item.ID] = struct{}{}
		if _, ok := handled[item.ID]; ok {
			delete(d.seenLive, item.ID)
			delete(d.misses, item.ID)
			continue
		}
		if seen.contains(item) {
			d.seenLive[item.ID] = struct{}{}
			delete(d.misses, item.ID)
			continue
		}
		if _, ok := d.seenLive[item.ID]; !ok {
			continue
		}
		d.misses[item.ID]++
		result.Missing++
		if d.misses[item.ID] >= d.cfg.DisappearanceMisses {
			due = append(due, item)
			delete(d.seenLive, item.ID)
			delete(d.misses, item.ID)
		}
	}
	for id := range d.seenLive {
		if _, ok := inPlay[id]; !ok {
			delete(d.seenLive, id)
			delete(d.misses, id)
		}
	}
	d.mu.Unlock()

	for _, item := range due {
		d.finish(ctx, item, item.HomeScore, item.AwayScore, finishTriggerDisappeared, result)
	}
}

func (d *FinishDetector) finish(ctx context.Context, m match.Match, home, away *int, trigger string, result *DetectResult) {
	if home == nil || away == nil {
		ok, err := d.finisher.FinishUnresolved(ctx, m.ID)
		if err != nil {
			result.Failed++
			d.logger.WarnContext(ctx, "mark match unresolved failed", "match_id", m.ID, "trigger", trigger, "error", err)
			return
		}
		if ok {
			result.Unresolved++
			d.metrics.IncFinish(finishTriggerUnresolved)
			d.logger.WarnContext(ctx, "match finished without score", "match_id", m.ID, "trigger", trigger)
		}
		return
	}

	out, err := d.finisher.Finish(ctx, m.ID, *home, *away)
	if err != nil {
		result.Failed++
		d.logger.WarnContext(ctx, "finish match failed", "match_id", m.ID, "trigger", trigger, "error", err)
		return
	}
	if out.AlreadyFinished {
		return
	}
	result.Finished++
	result.Settled += out.Settlement.Won + out.Settlement.Lost
	d.metrics.IncFinish(trigger)
	d.logger.InfoContext(ctx, "match finished",
		"match_id", m.ID,
		"trigger", trigger,
		"home_score", *home,
		"away_score", *away,
	)
}
