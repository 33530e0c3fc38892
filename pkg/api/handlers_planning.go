package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/zainhoda/sij-manager-sub003/pkg/calendar"
	"github.com/zainhoda/sij-manager-sub003/pkg/models"
	"github.com/zainhoda/sij-manager-sub003/pkg/planner"
	"github.com/zainhoda/sij-manager-sub003/pkg/repository"
)

// CreateRunRequest is the payload for creating a planning run.
type CreateRunRequest struct {
	Name      string `json:"name" binding:"required"`
	StartDate string `json:"start_date" binding:"required"`
	EndDate   string `json:"end_date" binding:"required"`
	DemandIDs []uint `json:"demand_ids"`
	CreatedBy string `json:"created_by"`
}

// createPlanningRun handles POST /api/planning/runs
func (s *Server) createPlanningRun(c *gin.Context) {
	var req CreateRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.validator.ValidateNote(req.Name); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	start, err := calendar.ParseDate(req.StartDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_date"})
		return
	}
	end, err := calendar.ParseDate(req.EndDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_date"})
		return
	}

	run, err := s.engine.GenerateRun(c.Request.Context(), planner.RunRequest{
		Name:      req.Name,
		StartDate: start,
		EndDate:   end,
		DemandIDs: req.DemandIDs,
		CreatedBy: req.CreatedBy,
		Now:       time.Now(),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"run": run})
}

// listPlanningRuns handles GET /api/planning/runs
func (s *Server) listPlanningRuns(c *gin.Context) {
	var status *models.PlanningRunStatus
	if v := c.Query("status"); v != "" {
		st := models.PlanningRunStatus(v)
		status = &st
	}
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	runs, err := s.repo.ListPlanningRuns(c.Request.Context(), status, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// getActiveRun handles GET /api/planning/runs/active
func (s *Server) getActiveRun(c *gin.Context) {
	run, err := s.repo.GetActiveRun(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run})
}

// getPlanningRun handles GET /api/planning/runs/:id
func (s *Server) getPlanningRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run ID"})
		return
	}
	run, err := s.repo.GetPlanningRun(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	demandIDs := collectDemandIDs(run.Scenarios)
	var demand []models.DemandEntry
	if len(demandIDs) > 0 {
		demand, err = s.repo.GetDemandEntries(c.Request.Context(), repository.DemandFilter{IDs: demandIDs})
		if err != nil {
			respondError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"run": run, "demand": demand})
}

// acceptScenario handles POST /api/planning/runs/:id/accept/:scenarioId
func (s *Server) acceptScenario(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run ID"})
		return
	}
	scenarioID, err := uuid.Parse(c.Param("scenarioId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scenario ID"})
		return
	}

	created, err := s.engine.Accept(c.Request.Context(), runID, scenarioID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "tasksCreated": created})
}

// archiveRun handles POST /api/planning/runs/:id/archive
func (s *Server) archiveRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run ID"})
		return
	}
	if err := s.engine.Archive(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DemandProjectionView is the per-demand completion projection derived from
// a scenario's blocks.
type DemandProjectionView struct {
	DemandEntryID           uint   `json:"demand_entry_id"`
	ProjectedCompletionDate string `json:"projected_completion_date"`
	DueDate                 string `json:"due_date"`
	CanMeetTarget           bool   `json:"can_meet_target"`
}

// getScenario handles GET /api/planning/scenarios/:id
func (s *Server) getScenario(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scenario ID"})
		return
	}
	scenario, err := s.repo.GetScenario(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	projections, err := s.projectScenario(c, scenario)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"scenario":    scenario,
		"projections": projections,
		"schedule":    scenario.ScheduleBlocks,
		"warnings":    scenario.Warnings,
	})
}

// projectScenario derives per-demand completion projections from the
// scenario's block list and the demand due dates.
func (s *Server) projectScenario(c *gin.Context, scenario *models.PlanningScenario) ([]DemandProjectionView, error) {
	latest := make(map[uint]string)
	var order []uint
	for _, b := range scenario.ScheduleBlocks {
		if _, seen := latest[b.DemandEntryID]; !seen {
			order = append(order, b.DemandEntryID)
		}
		if b.Date > latest[b.DemandEntryID] {
			latest[b.DemandEntryID] = b.Date
		}
	}
	if len(order) == 0 {
		return nil, nil
	}

	demand, err := s.repo.GetDemandEntries(c.Request.Context(), repository.DemandFilter{IDs: order})
	if err != nil {
		return nil, err
	}
	dueByID := make(map[uint]string, len(demand))
	for _, d := range demand {
		dueByID[d.ID] = calendar.FromTime(d.DueDate).String()
	}

	projections := make([]DemandProjectionView, 0, len(order))
	for _, id := range order {
		due := dueByID[id]
		projections = append(projections, DemandProjectionView{
			DemandEntryID:           id,
			ProjectedCompletionDate: latest[id],
			DueDate:                 due,
			CanMeetTarget:           due == "" || latest[id] <= due,
		})
	}
	return projections, nil
}

// ScenarioComparison is one scenario's metric row in the comparison table.
type ScenarioComparison struct {
	ID                   uuid.UUID               `json:"id"`
	Name                 string                  `json:"name"`
	Strategy             models.ScenarioStrategy `json:"strategy"`
	LaborHours           float64                 `json:"labor_hours"`
	OvertimeHours        float64                 `json:"overtime_hours"`
	LaborCost            float64                 `json:"labor_cost"`
	EquipmentCost        float64                 `json:"equipment_cost"`
	DeadlinesMet         int                     `json:"deadlines_met"`
	DeadlinesMissed      int                     `json:"deadlines_missed"`
	LatestCompletionDate string                  `json:"latest_completion_date"`
	WarningCount         int                     `json:"warning_count"`
}

// compareScenarios handles GET /api/planning/compare/:runId
func (s *Server) compareScenarios(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("runId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run ID"})
		return
	}
	run, err := s.repo.GetPlanningRun(c.Request.Context(), runID)
	if err != nil {
		respondError(c, err)
		return
	}
	scenarios, err := s.repo.ListScenariosForRun(c.Request.Context(), runID)
	if err != nil {
		respondError(c, err)
		return
	}

	rows := make([]ScenarioComparison, len(scenarios))
	for i, sc := range scenarios {
		rows[i] = ScenarioComparison{
			ID:                   sc.ID,
			Name:                 sc.Name,
			Strategy:             sc.Strategy,
			LaborHours:           sc.LaborHours,
			OvertimeHours:        sc.OvertimeHours,
			LaborCost:            sc.LaborCost,
			EquipmentCost:        sc.EquipmentCost,
			DeadlinesMet:         sc.DeadlinesMet,
			DeadlinesMissed:      sc.DeadlinesMissed,
			LatestCompletionDate: calendar.FromTime(sc.LatestCompletionDate).String(),
			WarningCount:         len(sc.Warnings),
		}
	}
	c.JSON(http.StatusOK, gin.H{"run": run, "scenarios": rows})
}

func collectDemandIDs(scenarios []models.PlanningScenario) []uint {
	seen := make(map[uint]bool)
	var ids []uint
	for _, sc := range scenarios {
		for _, b := range sc.ScheduleBlocks {
			if !seen[b.DemandEntryID] {
				seen[b.DemandEntryID] = true
				ids = append(ids, b.DemandEntryID)
			}
		}
	}
	return ids
}
