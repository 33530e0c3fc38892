package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/zainhoda/sij-manager-sub003/pkg/calendar"
	"github.com/zainhoda/sij-manager-sub003/pkg/planner"
	"github.com/zainhoda/sij-manager-sub003/pkg/replan"
)

// ReplanRequest is the payload for drafting a replan.
type ReplanRequest struct {
	DemandEntryID uint `json:"demand_entry_id" binding:"required"`

	// Now overrides the wall clock, "YYYY-MM-DD HH:MM". Empty means the
	// server's current time.
	Now string `json:"now"`
}

// DraftEntryView is one draft block in a replan response.
type DraftEntryView struct {
	DemandEntryID    uint   `json:"demand_entry_id"`
	ProductStepID    uint   `json:"product_step_id"`
	BatchNumber      int    `json:"batch_number"`
	BatchQuantity    int    `json:"batch_quantity"`
	Date             string `json:"date"`
	StartTime        string `json:"start_time"`
	EndTime          string `json:"end_time"`
	PlannedOutput    int    `json:"planned_output"`
	WorkerIDs        []uint `json:"worker_ids"`
	AssignmentReason string `json:"assignment_reason"`
	IsOvertime       bool   `json:"is_overtime"`
}

// OvertimeSuggestionView is one proposed overtime block.
type OvertimeSuggestionView struct {
	Date            string `json:"date"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	StepID          uint   `json:"step_id"`
	WorkerID        uint   `json:"worker_id"`
	IsOvertime      bool   `json:"is_overtime"`
	IsAutoSuggested bool   `json:"is_auto_suggested"`
}

// ReplanResponse is the replan draft returned to the operator.
type ReplanResponse struct {
	DraftEntries        []DraftEntryView         `json:"draft_entries"`
	OvertimeSuggestions []OvertimeSuggestionView `json:"overtime_suggestions"`
	RegularHoursNeeded  float64                  `json:"regular_hours_needed"`
	OvertimeHoursNeeded float64                  `json:"overtime_hours_needed"`
	CanMeetDeadline     bool                     `json:"can_meet_deadline"`
	AvailableWorkers    []uint                   `json:"available_workers"`
	Warnings            []string                 `json:"warnings"`
}

// replanSchedule handles POST /api/schedules/:id/replan
func (s *Server) replanSchedule(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid schedule ID"})
		return
	}
	var req ReplanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	now := time.Now()
	if req.Now != "" {
		parsed, err := time.Parse("2006-01-02 15:04", req.Now)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid now, want YYYY-MM-DD HH:MM"})
			return
		}
		now = parsed
	}

	res, err := s.engine.Replan(c.Request.Context(), planner.ReplanRequest{
		RunID:         runID,
		DemandEntryID: req.DemandEntryID,
		Now:           now,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, replanResponse(res))
}

func replanResponse(res *replan.Result) ReplanResponse {
	out := ReplanResponse{
		RegularHoursNeeded:  res.RegularHoursNeeded,
		OvertimeHoursNeeded: res.OvertimeHoursNeeded,
		CanMeetDeadline:     res.CanMeetDeadline,
		AvailableWorkers:    res.AvailableWorkers,
		Warnings:            res.Warnings,
	}
	for _, b := range res.DraftEntries {
		out.DraftEntries = append(out.DraftEntries, DraftEntryView{
			DemandEntryID:    b.DemandID,
			ProductStepID:    b.BOMStepID,
			BatchNumber:      b.BatchNumber,
			BatchQuantity:    b.BatchQuantity,
			Date:             b.Date.String(),
			StartTime:        calendar.MinutesToTime(b.StartMinute),
			EndTime:          calendar.MinutesToTime(b.EndMinute),
			PlannedOutput:    b.PlannedOutput,
			WorkerIDs:        b.WorkerIDs,
			AssignmentReason: b.AssignmentReason,
			IsOvertime:       b.IsOvertime,
		})
	}
	for _, o := range res.OvertimeSuggestions {
		out.OvertimeSuggestions = append(out.OvertimeSuggestions, OvertimeSuggestionView{
			Date:            o.Date.String(),
			StartTime:       calendar.MinutesToTime(o.StartMinute),
			EndTime:         calendar.MinutesToTime(o.EndMinute),
			StepID:          o.StepID,
			WorkerID:        o.WorkerID,
			IsOvertime:      o.IsOvertime,
			IsAutoSuggested: o.IsAutoSuggested,
		})
	}
	return out
}

// CommitEntryRequest is one operator-chosen block in a replan commit.
type CommitEntryRequest struct {
	DemandEntryID  uint     `json:"demand_entry_id" binding:"required"`
	ProductStepID  uint     `json:"product_step_id" binding:"required"`
	BatchNumber    int      `json:"batch_number"`
	BatchQuantity  int      `json:"batch_quantity"`
	Date           string   `json:"date" binding:"required"`
	StartTime      string   `json:"start_time" binding:"required"`
	EndTime        string   `json:"end_time" binding:"required"`
	PlannedOutput  int      `json:"planned_output"`
	WorkerIDs      []uint   `json:"worker_ids"`
	NewWorkerNames []string `json:"new_worker_names"`
}

// CommitReplanRequest is the payload for committing a replan draft.
type CommitReplanRequest struct {
	Entries []CommitEntryRequest `json:"entries" binding:"required"`
}

// commitReplan handles POST /api/schedules/:id/replan/commit
func (s *Server) commitReplan(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid schedule ID"})
		return
	}
	var req CommitReplanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entries := make([]planner.CommitEntry, 0, len(req.Entries))
	for _, e := range req.Entries {
		date, err := calendar.ParseDate(e.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid entry date"})
			return
		}
		start, err := calendar.TimeToMinutes(e.StartTime)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid entry start_time"})
			return
		}
		end, err := calendar.TimeToMinutes(e.EndTime)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid entry end_time"})
			return
		}
		entries = append(entries, planner.CommitEntry{
			DemandEntryID:  e.DemandEntryID,
			ProductStepID:  e.ProductStepID,
			BatchNumber:    e.BatchNumber,
			BatchQuantity:  e.BatchQuantity,
			Date:           date,
			StartMinute:    start,
			EndMinute:      end,
			PlannedOutput:  e.PlannedOutput,
			WorkerIDs:      e.WorkerIDs,
			NewWorkerNames: e.NewWorkerNames,
		})
	}

	tasks, err := s.engine.CommitReplan(c.Request.Context(), planner.CommitRequest{
		RunID:   runID,
		Entries: entries,
		Now:     time.Now(),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedule": tasks})
}
