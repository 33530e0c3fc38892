package validate_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/zainhoda/sij-manager-sub003/pkg/calendar"
	"github.com/zainhoda/sij-manager-sub003/pkg/qualify"
	"github.com/zainhoda/sij-manager-sub003/pkg/validate"
)

func baseCtx() validate.Context {
	return validate.Context{
		KnownWorkers: map[uint]qualify.Worker{
			1: {ID: 1, Status: qualify.StatusActive},
			2: {ID: 2, Status: qualify.StatusInactive},
		},
		KnownSteps: map[uint]qualify.Step{
			1: {},
		},
		Now: time.Now(),
	}
}

func TestValidateAcceptsCleanSchedule(t *testing.T) {
	blocks := []validate.Block{
		{ID: 1, StepID: 1, WorkerIDs: []uint{1}, Date: calendar.NewDate(2026, 7, 29), StartMinute: 420, EndMinute: 480, PlannedOutput: 5},
	}
	res := validate.Validate(blocks, baseCtx())
	assert.True(t, res.OK())
	assert.Empty(t, res.Warnings)
}

func TestValidateRejectsUnknownWorker(t *testing.T) {
	blocks := []validate.Block{
		{ID: 1, StepID: 1, WorkerIDs: []uint{99}, Date: calendar.NewDate(2026, 7, 29), StartMinute: 420, EndMinute: 480, PlannedOutput: 5},
	}
	res := validate.Validate(blocks, baseCtx())
	assert.False(t, res.OK())
}

func TestValidateRejectsEndBeforeStart(t *testing.T) {
	blocks := []validate.Block{
		{ID: 1, StepID: 1, WorkerIDs: []uint{1}, Date: calendar.NewDate(2026, 7, 29), StartMinute: 480, EndMinute: 420, PlannedOutput: 5},
	}
	res := validate.Validate(blocks, baseCtx())
	assert.False(t, res.OK())
}

func TestValidateRejectsNonPositiveOutput(t *testing.T) {
	blocks := []validate.Block{
		{ID: 1, StepID: 1, WorkerIDs: []uint{1}, Date: calendar.NewDate(2026, 7, 29), StartMinute: 420, EndMinute: 480, PlannedOutput: 0},
	}
	res := validate.Validate(blocks, baseCtx())
	assert.False(t, res.OK())
}

func TestValidateRejectsOverlap(t *testing.T) {
	blocks := []validate.Block{
		{ID: 1, StepID: 1, WorkerIDs: []uint{1}, Date: calendar.NewDate(2026, 7, 29), StartMinute: 420, EndMinute: 480, PlannedOutput: 5},
		{ID: 2, StepID: 1, WorkerIDs: []uint{1}, Date: calendar.NewDate(2026, 7, 29), StartMinute: 450, EndMinute: 500, PlannedOutput: 5},
	}
	res := validate.Validate(blocks, baseCtx())
	assert.False(t, res.OK())
}

func TestValidateWarnsOnInactiveWorker(t *testing.T) {
	blocks := []validate.Block{
		{ID: 1, StepID: 1, WorkerIDs: []uint{2}, Date: calendar.NewDate(2026, 7, 29), StartMinute: 420, EndMinute: 480, PlannedOutput: 5},
	}
	res := validate.Validate(blocks, baseCtx())
	assert.True(t, res.OK())
	assert.NotEmpty(t, res.Warnings)
}

func TestValidateWarnsOnNoWorkers(t *testing.T) {
	blocks := []validate.Block{
		{ID: 1, StepID: 1, WorkerIDs: nil, Date: calendar.NewDate(2026, 7, 29), StartMinute: 420, EndMinute: 480, PlannedOutput: 5},
	}
	res := validate.Validate(blocks, baseCtx())
	assert.True(t, res.OK())
	assert.NotEmpty(t, res.Warnings)
}

func TestValidateRejectsMissingCertification(t *testing.T) {
	equip := uint(9)
	ctx := baseCtx()
	ctx.KnownSteps[1] = qualify.Step{EquipmentID: &equip}
	blocks := []validate.Block{
		{ID: 1, StepID: 1, WorkerIDs: []uint{1}, Date: calendar.NewDate(2026, 7, 29), StartMinute: 420, EndMinute: 480, PlannedOutput: 5},
	}
	res := validate.Validate(blocks, ctx)
	assert.False(t, res.OK())
}
