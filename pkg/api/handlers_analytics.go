package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/zainhoda/sij-manager-sub003/pkg/calendar"
	"github.com/zainhoda/sij-manager-sub003/pkg/capacity"
	"github.com/zainhoda/sij-manager-sub003/pkg/models"
	"github.com/zainhoda/sij-manager-sub003/pkg/planner"
	"github.com/zainhoda/sij-manager-sub003/pkg/proficiency"
	"github.com/zainhoda/sij-manager-sub003/pkg/repository"
)

// workerProductivity handles GET /api/analytics/workers/:id/productivity
func (s *Server) workerProductivity(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid worker ID"})
		return
	}

	days := 30
	if v := c.Query("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid days"})
			return
		}
		days = n
	}
	since := time.Now().AddDate(0, 0, -days)

	summary, err := s.engine.WorkerProductivity(c.Request.Context(), uint(id), since)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// AdjustmentView is one applied proficiency change in the recalculation
// response.
type AdjustmentView struct {
	WorkerID      uint    `json:"worker_id"`
	StepID        uint    `json:"step_id"`
	FromLevel     int     `json:"from_level"`
	ToLevel       int     `json:"to_level"`
	Reason        string  `json:"reason"`
	AvgEfficiency float64 `json:"avg_efficiency"`
	SampleSize    int     `json:"sample_size"`
}

// recalculateProficiencies handles POST /api/analytics/recalculate-proficiencies
func (s *Server) recalculateProficiencies(c *gin.Context) {
	applied, err := planner.RecalcProficiencies(
		c.Request.Context(), s.repo, time.Now(), planner.StepSecondsResolver(s.repo))
	if err != nil {
		respondError(c, err)
		return
	}

	views := make([]AdjustmentView, len(applied))
	for i, a := range applied {
		views[i] = AdjustmentView{
			WorkerID:      a.WorkerID,
			StepID:        a.StepID,
			FromLevel:     int(a.FromLevel),
			ToLevel:       int(a.ToLevel),
			Reason:        string(a.Reason),
			AvgEfficiency: a.AvgEfficiency,
			SampleSize:    a.SampleSize,
		}
	}
	c.JSON(http.StatusOK, gin.H{"applied": len(views), "adjustments": views})
}

// assignmentTrend handles GET /api/analytics/assignments/:id/trend: the
// output-history pace summary for one plan task.
func (s *Server) assignmentTrend(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plan task ID"})
		return
	}
	history, err := s.repo.GetOutputHistory(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	samples := make([]proficiency.OutputSample, len(history))
	for i, h := range history {
		samples[i] = proficiency.OutputSample{Output: h.Output, RecordedAt: h.RecordedAt}
	}
	trend, ok := proficiency.DeriveTrend(samples)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"trend": nil, "samples": len(samples)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trend": trend, "samples": len(samples)})
}

// capacityReport handles GET /api/analytics/capacity?start=&end=: the
// scenario-agnostic available-vs-required hours report over a horizon.
func (s *Server) capacityReport(c *gin.Context) {
	start, err := calendar.ParseDate(c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start"})
		return
	}
	end, err := calendar.ParseDate(c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end"})
		return
	}
	if end.Before(start) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end precedes start"})
		return
	}

	workers, err := s.repo.GetActiveWorkers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	capWorkers := make([]capacity.Worker, len(workers))
	for i, w := range workers {
		capWorkers[i] = capacity.Worker{ID: w.ID, Active: w.Status == models.WorkerActive}
	}

	entries, err := s.repo.GetDemandEntries(c.Request.Context(), repository.DemandFilter{
		Statuses: []models.DemandStatus{models.DemandPending, models.DemandPlanned, models.DemandInProgress},
	})
	if err != nil {
		respondError(c, err)
		return
	}
	demand := make([]capacity.Demand, 0, len(entries))
	for _, e := range entries {
		bom, err := s.repo.GetBOMStepsWithDeps(c.Request.Context(), e.ProductID)
		if err != nil {
			respondError(c, err)
			return
		}
		steps := make([]capacity.DemandStep, len(bom.Steps))
		for i, sw := range bom.Steps {
			steps[i] = capacity.DemandStep{TimePerPieceSeconds: sw.Step.TimePerPieceSeconds}
		}
		demand = append(demand, capacity.Demand{
			ID:       e.ID,
			Quantity: e.Quantity,
			DueDate:  calendar.FromTime(e.DueDate),
			Steps:    steps,
		})
	}

	report := capacity.Analyze(start, end, capWorkers, nil, demand, nil, nil)
	c.JSON(http.StatusOK, gin.H{
		"available_hours":  report.AvailableHours,
		"deadline_risk":    report.Risks,
		"weekly_breakdown": report.WeeklyBreakdown,
	})
}
