package main

import (
	"context"
	"errors"
	"testing"

	"github.com/riskibarqy/oddsline/internal/config"
	"github.com/riskibarqy/oddsline/internal/platform/logging"
	"github.com/riskibarqy/oddsline/internal/usecase"
	"github.com/stretchr/testify/require"
)

func TestRun_RejectsNegativeMatch(t *testing.T) {
	err := run(context.Background(), config.Config{StorageDriver: config.StorageMemory}, -1, logging.NewNop())
	require.True(t, errors.Is(err, usecase.ErrInvalidInput))
}

func TestRun_SweepOnEmptyMemoryStore(t *testing.T) {
	err := run(context.Background(), config.Config{StorageDriver: config.StorageMemory}, 0, logging.NewNop())
	require.NoError(t, err)
}

func TestRun_UnknownMatch(t *testing.T) {
	err := run(context.Background(), config.Config{StorageDriver: config.StorageMemory}, 42, logging.NewNop())
	require.True(t, errors.Is(err, usecase.ErrNotFound))
}
