package usecase

import (
	"context"
	"fmt"

	"github.com/riskibarqy/oddsline/internal/domain/snapshot"
	"github.com/riskibarqy/oddsline/internal/platform/logging"
	"go.opentelemetry.io/otel/attribute"
)

const (
	SupervisorMain       = "main"
	SupervisorLive       = "live"
	SupervisorSettlement = "settlement"
)

// SnapshotProducer extracts the current state of a bookmaker listing.
type SnapshotProducer interface {
	Snapshot(ctx context.Context, source snapshot.Source) (snapshot.Snapshot, error)
}

// PipelineService wires producer, reconciliation, detection and settlement
// into the cycles run by the supervisors.
type PipelineService struct {
	producer   SnapshotProducer
	reconciler *ReconciliationService
	detector   *FinishDetector
	settlement *SettlementService
}

func NewPipelineService(
	producer SnapshotProducer,
	reconciler *ReconciliationService,
	detector *FinishDetector,
	settlement *SettlementService,
) *PipelineService {
	return &PipelineService{
		producer:   producer,
		reconciler: reconciler,
		detector:   detector,
		settlement: settlement,
	}
}

// MainCycle ingests the prematch listing. It may retire vanished matches and
// finishes only on an explicit status.
func (p *PipelineService) MainCycle(ctx context.Context, logger *logging.Logger) (map[string]any, error) {
	return p.ingest(ctx, logger, snapshot.SourceMain, ReconcileOptions{Retire: true}, DetectOptions{})
}

// LiveCycle ingests the live listing. It never retires, and also finishes
// in-play matches that stopped appearing.
func (p *PipelineService) LiveCycle(ctx context.Context, logger *logging.Logger) (map[string]any, error) {
	return p.ingest(ctx, logger, snapshot.SourceLive, ReconcileOptions{}, DetectOptions{Disappearance: true})
}

func (p *PipelineService) SettlementCycle(ctx context.Context, logger *logging.Logger) (map[string]any, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.PipelineService.SettlementCycle")
	defer span.End()

	result, err := p.settlement.Sweep(ctx)
	if err != nil {
		return nil, err
	}
	if result.Matches > 0 {
		logger.InfoContext(ctx, "settlement sweep",
			"matches", result.Matches,
			"won", result.Won,
			"lost", result.Lost,
			"failed", result.Failed,
			"credited", result.Credited.String(),
		)
	}
	return map[string]any{
		"matches":  result.Matches,
		"won":      result.Won,
		"lost":     result.Lost,
		"skipped":  result.Skipped,
		"failed":   result.Failed,
		"credited": result.Credited.String(),
	}, nil
}

func (p *PipelineService) ingest(
	ctx context.Context,
	logger *logging.Logger,
	source snapshot.Source,
	reconcileOpts ReconcileOptions,
	detectOpts DetectOptions,
) (map[string]any, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.PipelineService.ingest", attribute.String("snapshot.source", string(source)))
	defer span.End()

	snap, err := p.producer.Snapshot(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", source, err)
	}
	logger.InfoContext(ctx, "snapshot captured",
		"source", source,
		"records", len(snap.Records),
		"dropped", snap.Dropped,
		"dropped_outcomes", snap.DroppedOutcomes,
	)

	reconciled, err := p.reconciler.Reconcile(ctx, snap, reconcileOpts)
	if err != nil {
		return nil, fmt.Errorf("reconcile %s: %w", source, err)
	}
	logger.InfoContext(ctx, "reconciled",
		"created", reconciled.Created,
		"updated", reconciled.Updated,
		"skipped", reconciled.Skipped,
		"failed", reconciled.Failed,
		"deleted", reconciled.Deleted,
		"canceled", reconciled.Canceled,
	)

	detected, err := p.detector.Detect(ctx, snap, detectOpts)
	if err != nil {
		return nil, fmt.Errorf("detect finished %s: %w", source, err)
	}
	if detected.Finished > 0 || detected.Unresolved > 0 || detected.Canceled > 0 {
		logger.InfoContext(ctx, "finish detection",
			"finished", detected.Finished,
			"unresolved", detected.Unresolved,
			"canceled", detected.Canceled,
			"settled", detected.Settled,
		)
	}

	return map[string]any{
		"source":     string(source),
		"records":    len(snap.Records),
		"dropped":    snap.Dropped,
		"created":    reconciled.Created,
		"updated":    reconciled.Updated,
		"skipped":    reconciled.Skipped,
		"failed":     reconciled.Failed + detected.Failed,
		"missed":     reconciled.Missed,
		"deleted":    reconciled.Deleted,
		"canceled":   reconciled.Canceled + detected.Canceled,
		"finished":   detected.Finished,
		"unresolved": detected.Unresolved,
		"settled":    detected.Settled,
	}, nil
}
