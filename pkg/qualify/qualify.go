// Package qualify implements the qualified-worker selector:
// an active-status and equipment-certification filter over a worker list.
package qualify

import (
	"sort"
	"time"
)

// WorkerStatus mirrors the subset of models.WorkerStatus this package cares
// about, kept local so qualify has no dependency on pkg/models.
type WorkerStatus string

const (
	StatusActive   WorkerStatus = "active"
	StatusInactive WorkerStatus = "inactive"
	StatusOnLeave  WorkerStatus = "on_leave"
)

// Worker is the subset of worker fields the qualifier needs.
type Worker struct {
	ID     uint
	Status WorkerStatus
}

// Step is the subset of step fields the qualifier needs.
type Step struct {
	EquipmentID *uint
}

// CertKey identifies a (worker, equipment) certification.
type CertKey struct {
	WorkerID    uint
	EquipmentID uint
}

// Certification is a worker's certification on one piece of equipment.
// ExpiresAt nil means it never expires.
type Certification struct {
	ExpiresAt *time.Time
}

// Qualified reports whether worker may be assigned step, given the
// certification map and the current instant: the worker must be active, and
// if the step requires equipment, the worker must hold a non-expired
// certification for it. Work-category is descriptive only and is never
// consulted here — a caller that wants to restrict by category must
// pre-filter the worker list it passes in.
func Qualified(step Step, worker Worker, certs map[CertKey]Certification, now time.Time) bool {
	if worker.Status != StatusActive {
		return false
	}
	if step.EquipmentID == nil {
		return true
	}
	cert, ok := certs[CertKey{WorkerID: worker.ID, EquipmentID: *step.EquipmentID}]
	if !ok {
		return false
	}
	if cert.ExpiresAt != nil && !cert.ExpiresAt.After(now) {
		return false
	}
	return true
}

// Filter returns the subset of workers qualified for step, sorted by
// WorkerID for a deterministic order.
func Filter(step Step, workers []Worker, certs map[CertKey]Certification, now time.Time) []Worker {
	var out []Worker
	for _, w := range workers {
		if Qualified(step, w, certs, now) {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
