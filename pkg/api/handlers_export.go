package api

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// exportScenario handles POST /api/planning/scenarios/:id/export: it renders
// the scenario's schedule as CSV and stores it through the artifact store,
// returning the reference.
func (s *Server) exportScenario(c *gin.Context) {
	if s.artifacts == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "artifact storage not configured"})
		return
	}
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

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{
		"demand_entry_id", "product_step_id", "batch_number", "batch_quantity",
		"date", "start_time", "end_time", "planned_output", "worker_ids",
		"is_overtime", "assignment_reason",
	})
	for _, b := range scenario.ScheduleBlocks {
		workerIDs := ""
		for i, wid := range b.WorkerIDs {
			if i > 0 {
				workerIDs += " "
			}
			workerIDs += strconv.FormatUint(uint64(wid), 10)
		}
		_ = w.Write([]string{
			strconv.FormatUint(uint64(b.DemandEntryID), 10),
			strconv.FormatUint(uint64(b.ProductStepID), 10),
			strconv.Itoa(b.BatchNumber),
			strconv.Itoa(b.BatchQuantity),
			b.Date,
			b.StartTime,
			b.EndTime,
			strconv.Itoa(b.PlannedOutput),
			workerIDs,
			strconv.FormatBool(b.IsOvertime),
			b.AssignmentReason,
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		respondError(c, err)
		return
	}

	artifactID := fmt.Sprintf("scenario-%s-%d.csv", scenario.ID, time.Now().Unix())
	reference, err := s.artifacts.Save(c.Request.Context(), artifactID, buf.Bytes(), "text/csv")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"reference": reference, "rows": len(scenario.ScheduleBlocks)})
}
