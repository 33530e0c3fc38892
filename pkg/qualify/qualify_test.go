package qualify_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/zainhoda/sij-manager-sub003/pkg/qualify"
)

func TestQualifiedRejectsInactiveWorker(t *testing.T) {
	step := qualify.Step{}
	worker := qualify.Worker{ID: 1, Status: qualify.StatusInactive}
	assert.False(t, qualify.Qualified(step, worker, nil, time.Now()))
}

func TestQualifiedNoEquipmentNeedsNoCert(t *testing.T) {
	step := qualify.Step{}
	worker := qualify.Worker{ID: 1, Status: qualify.StatusActive}
	assert.True(t, qualify.Qualified(step, worker, nil, time.Now()))
}

func TestQualifiedRequiresCertWhenEquipmentSet(t *testing.T) {
	equip := uint(9)
	step := qualify.Step{EquipmentID: &equip}
	worker := qualify.Worker{ID: 1, Status: qualify.StatusActive}
	assert.False(t, qualify.Qualified(step, worker, nil, time.Now()))

	certs := map[qualify.CertKey]qualify.Certification{
		{WorkerID: 1, EquipmentID: 9}: {},
	}
	assert.True(t, qualify.Qualified(step, worker, certs, time.Now()))
}

func TestQualifiedRejectsExpiredCert(t *testing.T) {
	equip := uint(9)
	step := qualify.Step{EquipmentID: &equip}
	worker := qualify.Worker{ID: 1, Status: qualify.StatusActive}
	past := time.Now().Add(-time.Hour)
	certs := map[qualify.CertKey]qualify.Certification{
		{WorkerID: 1, EquipmentID: 9}: {ExpiresAt: &past},
	}
	assert.False(t, qualify.Qualified(step, worker, certs, time.Now()))
}

func TestQualifiedAcceptsFutureExpiry(t *testing.T) {
	equip := uint(9)
	step := qualify.Step{EquipmentID: &equip}
	worker := qualify.Worker{ID: 1, Status: qualify.StatusActive}
	future := time.Now().Add(time.Hour)
	certs := map[qualify.CertKey]qualify.Certification{
		{WorkerID: 1, EquipmentID: 9}: {ExpiresAt: &future},
	}
	assert.True(t, qualify.Qualified(step, worker, certs, time.Now()))
}

func TestFilterSortsByWorkerID(t *testing.T) {
	step := qualify.Step{}
	workers := []qualify.Worker{
		{ID: 3, Status: qualify.StatusActive},
		{ID: 1, Status: qualify.StatusActive},
		{ID: 2, Status: qualify.StatusInactive},
	}
	got := qualify.Filter(step, workers, nil, time.Now())
	if assert.Len(t, got, 2) {
		assert.Equal(t, uint(1), got[0].ID)
		assert.Equal(t, uint(3), got[1].ID)
	}
}
