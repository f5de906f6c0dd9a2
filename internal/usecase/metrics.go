package usecase

import (
	"time"

	"github.com/shopspring/decimal"
)

// PipelineMetrics receives counters from the scrape-ingest-settle pipeline.
type PipelineMetrics interface {
	ObserveCycle(supervisor string, duration time.Duration, err error)
	AddRecords(source string, ingested, dropped int)
	AddMatches(action string, n int)
	IncFinish(trigger string)
	IncBetSettled(result string)
	AddPayout(amount decimal.Decimal)
}

type noopPipelineMetrics struct{}

func (noopPipelineMetrics) ObserveCycle(string, time.Duration, error) {}
func (noopPipelineMetrics) AddRecords(string, int, int)               {}
func (noopPipelineMetrics) AddMatches(string, int)                    {}
func (noopPipelineMetrics) IncFinish(string)                          {}
func (noopPipelineMetrics) IncBetSettled(string)                      {}
func (noopPipelineMetrics) AddPayout(decimal.Decimal)                 {}

func NewNoopPipelineMetrics() PipelineMetrics {
	return noopPipelineMetrics{}
}

func metricsOrNoop(m PipelineMetrics) PipelineMetrics {
	if m == nil {
		return noopPipelineMetrics{}
	}
	return m
}
