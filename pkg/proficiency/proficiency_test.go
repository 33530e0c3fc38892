package proficiency_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zainhoda/sij-manager-sub003/pkg/proficiency"
)

func TestEfficiencyPct(t *testing.T) {
	start := time.Date(2026, 7, 29, 7, 0, 0, 0, time.UTC)
	end := start.Add(50 * time.Minute)
	b := proficiency.CompletedBlock{ActualOutput: 10, TimePerPieceSeconds: 300, Start: start, End: end}
	// planned = 10*300=3000s, actual=3000s -> 100%.
	assert.InDelta(t, 100.0, proficiency.EfficiencyPct(b), 0.01)
}

func TestDeriveLevelBands(t *testing.T) {
	assert.Equal(t, proficiency.Level(5), proficiency.DeriveLevel(130))
	assert.Equal(t, proficiency.Level(4), proficiency.DeriveLevel(120))
	assert.Equal(t, proficiency.Level(3), proficiency.DeriveLevel(90))
	assert.Equal(t, proficiency.Level(2), proficiency.DeriveLevel(75))
	assert.Equal(t, proficiency.Level(1), proficiency.DeriveLevel(50))
}

func TestAutoAdjustProposesIncrease(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	var blocks []proficiency.CompletedBlock
	for i := 0; i < 5; i++ {
		start := now.Add(-time.Duration(i) * 24 * time.Hour)
		blocks = append(blocks, proficiency.CompletedBlock{
			WorkerID: 1, StepID: 1, ActualOutput: 10, TimePerPieceSeconds: 300,
			Start: start, End: start.Add(20 * time.Minute), CompletedAt: start,
		})
	}
	adjustments := proficiency.AutoAdjust(blocks, now, func(workerID, stepID uint) proficiency.Level { return 3 })
	require.Len(t, adjustments, 1)
	assert.Equal(t, proficiency.ReasonAutoIncrease, adjustments[0].Reason)
	assert.Equal(t, proficiency.Level(4), adjustments[0].ToLevel)
}

func TestAutoAdjustIgnoresStaleBlocks(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	var blocks []proficiency.CompletedBlock
	for i := 0; i < 5; i++ {
		start := now.Add(-time.Duration(60+i) * 24 * time.Hour)
		blocks = append(blocks, proficiency.CompletedBlock{
			WorkerID: 1, StepID: 1, ActualOutput: 10, TimePerPieceSeconds: 300,
			Start: start, End: start.Add(20 * time.Minute), CompletedAt: start,
		})
	}
	adjustments := proficiency.AutoAdjust(blocks, now, func(workerID, stepID uint) proficiency.Level { return 3 })
	assert.Empty(t, adjustments)
}

func TestAutoAdjustRequiresFiveSamples(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	var blocks []proficiency.CompletedBlock
	for i := 0; i < 4; i++ {
		start := now.Add(-time.Duration(i) * 24 * time.Hour)
		blocks = append(blocks, proficiency.CompletedBlock{
			WorkerID: 1, StepID: 1, ActualOutput: 10, TimePerPieceSeconds: 300,
			Start: start, End: start.Add(20 * time.Minute), CompletedAt: start,
		})
	}
	adjustments := proficiency.AutoAdjust(blocks, now, func(workerID, stepID uint) proficiency.Level { return 3 })
	assert.Empty(t, adjustments)
}

func TestDeriveTrendRequiresTwoSamples(t *testing.T) {
	_, ok := proficiency.DeriveTrend([]proficiency.OutputSample{{Output: 1, RecordedAt: time.Now()}})
	assert.False(t, ok)
}

func TestDeriveTrendComputesSpeedup(t *testing.T) {
	base := time.Date(2026, 7, 29, 7, 0, 0, 0, time.UTC)
	samples := []proficiency.OutputSample{
		{Output: 0, RecordedAt: base},
		{Output: 5, RecordedAt: base.Add(10 * time.Minute)},
		{Output: 10, RecordedAt: base.Add(18 * time.Minute)},
		{Output: 15, RecordedAt: base.Add(24 * time.Minute)},
		{Output: 20, RecordedAt: base.Add(28 * time.Minute)},
	}
	trend, ok := proficiency.DeriveTrend(samples)
	require.True(t, ok)
	assert.Greater(t, trend.SpeedupPct, 0.0)
	assert.Equal(t, 5, trend.SampleCount)
}
