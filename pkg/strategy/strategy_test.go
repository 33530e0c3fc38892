package strategy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zainhoda/sij-manager-sub003/pkg/strategy"
)

func TestGetKnownStrategies(t *testing.T) {
	cfg, err := strategy.Get(strategy.MeetDeadlines)
	require.NoError(t, err)
	assert.True(t, cfg.AllowOvertime)
	assert.Equal(t, 240, cfg.OvertimeCapMinutesPerDay)
	assert.Equal(t, 1.5, cfg.PriorityWeight)

	cfg, err = strategy.Get(strategy.MinimizeCost)
	require.NoError(t, err)
	assert.False(t, cfg.AllowOvertime)
	assert.Equal(t, 0, cfg.OvertimeCapMinutesPerDay)

	cfg, err = strategy.Get(strategy.Balanced)
	require.NoError(t, err)
	assert.True(t, cfg.AllowOvertime)
	assert.Equal(t, 120, cfg.OvertimeCapMinutesPerDay)
}

func TestGetUnknownStrategy(t *testing.T) {
	_, err := strategy.Get("nonexistent")
	assert.Error(t, err)
}

func TestAllReturnsThreeInCanonicalOrder(t *testing.T) {
	all := strategy.All()
	require.Len(t, all, 3)
	assert.Equal(t, strategy.MeetDeadlines, all[0].Name)
	assert.Equal(t, strategy.MinimizeCost, all[1].Name)
	assert.Equal(t, strategy.Balanced, all[2].Name)
}
