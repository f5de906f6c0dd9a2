package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSteps(t *testing.T) {
	steps, err := parseSteps(nil)
	require.NoError(t, err)
	assert.Equal(t, 1, steps)

	steps, err = parseSteps([]string{" 3 "})
	require.NoError(t, err)
	assert.Equal(t, 3, steps)

	_, err = parseSteps([]string{"0"})
	require.Error(t, err)
	_, err = parseSteps([]string{"x"})
	require.Error(t, err)
}

func TestParseVersionAndTarget(t *testing.T) {
	v, err := parseVersion("12")
	require.NoError(t, err)
	assert.Equal(t, 12, v)

	_, err = parseVersion("-1")
	require.Error(t, err)

	target, err := parseTarget("7")
	require.NoError(t, err)
	assert.Equal(t, uint(7), target)

	_, err = parseTarget("-7")
	require.Error(t, err)
}
