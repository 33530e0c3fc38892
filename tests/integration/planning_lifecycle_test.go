package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/zainhoda/sij-manager-sub003/pkg/api"
	"github.com/zainhoda/sij-manager-sub003/pkg/models"
	"github.com/zainhoda/sij-manager-sub003/pkg/planner"
	"github.com/zainhoda/sij-manager-sub003/pkg/storage/postgres"
)

// PlanningLifecycleSuite drives the full run lifecycle through the HTTP API
// against a real Postgres. Skipped unless TEST_DB_DSN is set.
type PlanningLifecycleSuite struct {
	suite.Suite
	store *postgres.PostgresStore
	db    *gorm.DB
	srv   *httptest.Server

	productID uint
	stepID    uint
	workerID  uint
	demandID  uint
}

func TestPlanningLifecycle(t *testing.T) {
	if os.Getenv("TEST_DB_DSN") == "" {
		t.Skip("TEST_DB_DSN not set; skipping integration suite")
	}
	suite.Run(t, new(PlanningLifecycleSuite))
}

func (s *PlanningLifecycleSuite) SetupSuite() {
	dsn := os.Getenv("TEST_DB_DSN")

	store, err := postgres.NewPostgresStore(dsn)
	s.Require().NoError(err)
	s.store = store

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{})
	s.Require().NoError(err)
	s.db = db

	engine := planner.New(store, nil)
	server := api.NewServer(api.Config{Port: "0", Engine: engine, Repo: store})
	s.srv = httptest.NewServer(server.Router())
}

func (s *PlanningLifecycleSuite) TearDownSuite() {
	if s.srv != nil {
		s.srv.Close()
	}
	if s.store != nil {
		s.store.Close()
	}
}

func (s *PlanningLifecycleSuite) SetupTest() {
	for _, table := range []string{
		"plan_tasks", "scenario_demand_links", "planning_scenarios",
		"planning_runs", "demand_entries", "step_dependencies",
		"product_steps", "products", "workers",
	} {
		s.Require().NoError(s.db.Exec("DELETE FROM " + table).Error)
	}

	product := models.Product{Name: "Canvas tote"}
	s.Require().NoError(s.db.Create(&product).Error)
	s.productID = product.ID

	step := models.ProductStep{
		ProductID:           product.ID,
		Name:                "Cut panels",
		StepCode:            "CUT-1",
		Category:            models.CategoryCutting,
		TimePerPieceSeconds: 300,
		Sequence:            1,
	}
	s.Require().NoError(s.db.Create(&step).Error)
	s.stepID = step.ID

	worker := models.Worker{Name: "Dana", Status: models.WorkerActive}
	s.Require().NoError(s.db.Create(&worker).Error)
	s.workerID = worker.ID

	demand := models.DemandEntry{
		Source:    models.DemandSourceInternal,
		ProductID: product.ID,
		Quantity:  10,
		DueDate:   time.Now().AddDate(0, 0, 14),
		Priority:  1,
		Status:    models.DemandPending,
	}
	s.Require().NoError(s.db.Create(&demand).Error)
	s.demandID = demand.ID
}

func (s *PlanningLifecycleSuite) postJSON(path string, body any) *http.Response {
	payload, err := json.Marshal(body)
	s.Require().NoError(err)
	resp, err := http.Post(s.srv.URL+path, "application/json", bytes.NewReader(payload))
	s.Require().NoError(err)
	return resp
}

func (s *PlanningLifecycleSuite) getJSON(path string, out any) int {
	resp, err := http.Get(s.srv.URL + path)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

type runEnvelope struct {
	Run struct {
		ID        string `json:"id"`
		Status    string `json:"status"`
		Scenarios []struct {
			ID       string `json:"id"`
			Strategy string `json:"strategy"`
		} `json:"scenarios"`
	} `json:"run"`
}

func (s *PlanningLifecycleSuite) createRun() runEnvelope {
	start := time.Now().Format("2006-01-02")
	end := time.Now().AddDate(0, 0, 14).Format("2006-01-02")
	resp := s.postJSON("/api/planning/runs", map[string]any{
		"name":       "integration run",
		"start_date": start,
		"end_date":   end,
	})
	defer resp.Body.Close()
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	var env runEnvelope
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&env))
	return env
}

func (s *PlanningLifecycleSuite) TestRunGeneratesThreeScenarios() {
	env := s.createRun()
	require.Len(s.T(), env.Run.Scenarios, 3)
	require.Equal(s.T(), "pending", env.Run.Status)
}

func (s *PlanningLifecycleSuite) TestAcceptCreatesPlanTasksAndMarksDemandPlanned() {
	env := s.createRun()

	resp := s.postJSON(fmt.Sprintf("/api/planning/runs/%s/accept/%s", env.Run.ID, env.Run.Scenarios[0].ID), map[string]any{})
	defer resp.Body.Close()
	require.Equal(s.T(), http.StatusOK, resp.StatusCode)

	var out struct {
		Success      bool `json:"success"`
		TasksCreated int  `json:"tasksCreated"`
	}
	require.NoError(s.T(), json.NewDecoder(resp.Body).Decode(&out))
	require.True(s.T(), out.Success)
	require.Greater(s.T(), out.TasksCreated, 0)

	var demand models.DemandEntry
	require.NoError(s.T(), s.db.First(&demand, s.demandID).Error)
	require.Equal(s.T(), models.DemandPlanned, demand.Status)

	var active runEnvelope
	status := s.getJSON("/api/planning/runs/active", &active)
	require.Equal(s.T(), http.StatusOK, status)
	require.Equal(s.T(), env.Run.ID, active.Run.ID)
}

func (s *PlanningLifecycleSuite) TestSecondAcceptConflicts() {
	env := s.createRun()

	resp := s.postJSON(fmt.Sprintf("/api/planning/runs/%s/accept/%s", env.Run.ID, env.Run.Scenarios[0].ID), map[string]any{})
	resp.Body.Close()
	require.Equal(s.T(), http.StatusOK, resp.StatusCode)

	resp = s.postJSON(fmt.Sprintf("/api/planning/runs/%s/accept/%s", env.Run.ID, env.Run.Scenarios[1].ID), map[string]any{})
	defer resp.Body.Close()
	require.Equal(s.T(), http.StatusConflict, resp.StatusCode)
}

func (s *PlanningLifecycleSuite) TestCompareListsAllScenarios() {
	env := s.createRun()

	var out struct {
		Scenarios []struct {
			Strategy      string  `json:"strategy"`
			OvertimeHours float64 `json:"overtime_hours"`
		} `json:"scenarios"`
	}
	status := s.getJSON("/api/planning/compare/"+env.Run.ID, &out)
	require.Equal(s.T(), http.StatusOK, status)
	require.Len(s.T(), out.Scenarios, 3)

	for _, sc := range out.Scenarios {
		if sc.Strategy == "minimize_cost" {
			require.Equal(s.T(), 0.0, sc.OvertimeHours)
		}
	}
}

func (s *PlanningLifecycleSuite) TestReplanDraftAfterAccept() {
	env := s.createRun()

	resp := s.postJSON(fmt.Sprintf("/api/planning/runs/%s/accept/%s", env.Run.ID, env.Run.Scenarios[0].ID), map[string]any{})
	resp.Body.Close()
	require.Equal(s.T(), http.StatusOK, resp.StatusCode)

	resp = s.postJSON(fmt.Sprintf("/api/schedules/%s/replan", env.Run.ID), map[string]any{
		"demand_entry_id": s.demandID,
	})
	defer resp.Body.Close()
	require.Equal(s.T(), http.StatusOK, resp.StatusCode)

	var out struct {
		DraftEntries     []map[string]any `json:"draft_entries"`
		CanMeetDeadline  bool             `json:"can_meet_deadline"`
		AvailableWorkers []uint           `json:"available_workers"`
	}
	require.NoError(s.T(), json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(s.T(), out.DraftEntries)
	require.Contains(s.T(), out.AvailableWorkers, s.workerID)
}

func (s *PlanningLifecycleSuite) TestArchiveRun() {
	env := s.createRun()

	resp := s.postJSON(fmt.Sprintf("/api/planning/runs/%s/archive", env.Run.ID), map[string]any{})
	defer resp.Body.Close()
	require.Equal(s.T(), http.StatusOK, resp.StatusCode)

	var fetched runEnvelope
	status := s.getJSON("/api/planning/runs/"+env.Run.ID, &fetched)
	require.Equal(s.T(), http.StatusOK, status)
	require.Equal(s.T(), "archived", fetched.Run.Status)
}

func (s *PlanningLifecycleSuite) TestUnknownRunReturns404() {
	var out map[string]any
	status := s.getJSON("/api/planning/runs/00000000-0000-0000-0000-000000000001", &out)
	require.Equal(s.T(), http.StatusNotFound, status)
}
