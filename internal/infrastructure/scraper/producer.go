package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"

	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/oddsline/internal/domain/snapshot"
	"github.com/riskibarqy/oddsline/internal/platform/logging"
	"github.com/riskibarqy/oddsline/internal/platform/resilience"
	"github.com/riskibarqy/oddsline/internal/usecase"
)

type ProducerConfig struct {
	MainURL        string
	LiveURL        string
	Fetcher        PageFetcher
	Extractor      *Extractor
	Normalizer     *snapshot.Normalizer
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Producer takes snapshots of the bookmaker listings: fetch, extract, then
// normalize. Only transient fetch failures count against the breaker.
type Producer struct {
	urls       map[snapshot.Source]string
	fetcher    PageFetcher
	extractor  *Extractor
	normalizer *snapshot.Normalizer
	logger     *logging.Logger
	breaker    *resilience.CircuitBreaker
}

var _ usecase.SnapshotProducer = (*Producer)(nil)

func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if cfg.Fetcher == nil {
		return nil, crerr.New("scraper producer requires a page fetcher")
	}
	if cfg.Normalizer == nil {
		return nil, crerr.New("scraper producer requires a normalizer")
	}
	if cfg.Extractor == nil {
		cfg.Extractor = NewExtractor(Selectors{})
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}

	var breaker *resilience.CircuitBreaker
	if cfg.CircuitBreaker.Enabled {
		breakerCfg := cfg.CircuitBreaker
		breakerCfg.Trips = IsTransient
		breaker = resilience.NewCircuitBreaker("bookmaker", breakerCfg)
	}

	return &Producer{
		urls: map[snapshot.Source]string{
			snapshot.SourceMain: strings.TrimSpace(cfg.MainURL),
			snapshot.SourceLive: strings.TrimSpace(cfg.LiveURL),
		},
		fetcher:    cfg.Fetcher,
		extractor:  cfg.Extractor,
		normalizer: cfg.Normalizer,
		logger:     cfg.Logger,
		breaker:    breaker,
	}, nil
}

func (p *Producer) Snapshot(ctx context.Context, source snapshot.Source) (snapshot.Snapshot, error) {
	url := p.urls[source]
	if url == "" {
		return snapshot.Snapshot{}, fmt.Errorf("%w: no url configured for the %q listing", usecase.ErrInvalidInput, source)
	}

	page, err := p.fetch(ctx, url)
	if err != nil {
		return snapshot.Snapshot{}, err
	}

	raws, err := p.extractor.Extract(page)
	if err != nil {
		return snapshot.Snapshot{}, crerr.Wrapf(err, "extract %s listing", source)
	}

	snap := p.normalizer.Normalize(ctx, source, raws)
	if len(raws) == 0 {
		p.logger.WarnContext(ctx, "listing has no events, selectors may be out of date",
			"source", source,
			"bytes", len(page),
		)
	}
	if snap.Dropped > 0 || snap.DroppedOutcomes > 0 {
		p.logger.InfoContext(ctx, "dropped unusable rows",
			"source", source,
			"records_dropped", snap.Dropped,
			"outcomes_dropped", snap.DroppedOutcomes,
		)
	}
	return snap, nil
}

// Breaker reports the circuit state; the zero value means no breaker.
func (p *Producer) Breaker() resilience.CircuitSnapshot {
	if p.breaker == nil {
		return resilience.CircuitSnapshot{}
	}
	return p.breaker.Snapshot()
}

func (p *Producer) Close() error {
	return p.fetcher.Close()
}

func (p *Producer) fetch(ctx context.Context, url string) ([]byte, error) {
	var page []byte
	err := p.breaker.Execute(func() error {
		var fetchErr error
		page, fetchErr = p.fetcher.Fetch(ctx, url)
		return fetchErr
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		p.logger.WarnContext(ctx, "bookmaker circuit breaker rejected fetch", "state", p.breaker.State())
		return nil, fmt.Errorf("%w: bookmaker source is temporarily unavailable", usecase.ErrDependencyUnavailable)
	}
	if err != nil {
		return nil, err
	}
	return page, nil
}
