// Package models holds the GORM-mapped entities of the planning domain:
// products, steps, dependencies, build versions, equipment, workers,
// certifications, demand, planning runs/scenarios, schedule blocks, and
// the proficiency and output-history streams. Enumerations are closed
// string types; step category and dependency kind have validation
// functions (ValidStepCategory, ValidDependencyKind).
package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StepCategory is the fixed set of production-step categories.
type StepCategory string

const (
	CategoryCutting    StepCategory = "CUTTING"
	CategorySilkscreen StepCategory = "SILKSCREEN"
	CategoryPrep       StepCategory = "PREP"
	CategorySewing     StepCategory = "SEWING"
	CategoryInspection StepCategory = "INSPECTION"
)

func ValidStepCategory(c StepCategory) error {
	switch c {
	case CategoryCutting, CategorySilkscreen, CategoryPrep, CategorySewing, CategoryInspection:
		return nil
	}
	return fmt.Errorf("invalid step category %q", c)
}

// DependencyKind is the relationship strength between two BOM steps.
type DependencyKind string

const (
	// DependencyFinish requires depends_on_step to be completed for the
	// same batch before the dependent step may start.
	DependencyFinish DependencyKind = "finish"
	// DependencyStart requires only that depends_on_step has started.
	DependencyStart DependencyKind = "start"
)

func ValidDependencyKind(k DependencyKind) error {
	switch k {
	case DependencyFinish, DependencyStart:
		return nil
	}
	return fmt.Errorf("invalid dependency kind %q", k)
}

// BuildVersionStatus is the lifecycle of a recipe revision.
type BuildVersionStatus string

const (
	BuildVersionDraft      BuildVersionStatus = "draft"
	BuildVersionActive     BuildVersionStatus = "active"
	BuildVersionDeprecated BuildVersionStatus = "deprecated"
)

// EquipmentStatus is the operational state of a piece of equipment.
type EquipmentStatus string

const (
	EquipmentAvailable   EquipmentStatus = "available"
	EquipmentInUse       EquipmentStatus = "in_use"
	EquipmentMaintenance EquipmentStatus = "maintenance"
	EquipmentRetired     EquipmentStatus = "retired"
)

// WorkerStatus is the employment state of a worker.
type WorkerStatus string

const (
	WorkerActive   WorkerStatus = "active"
	WorkerInactive WorkerStatus = "inactive"
	WorkerOnLeave  WorkerStatus = "on_leave"
)

// DemandSource identifies where a demand entry originated.
type DemandSource string

const (
	DemandSourceInternal   DemandSource = "internal"
	DemandSourceExternalSO DemandSource = "external-SO"
	DemandSourceExternalWO DemandSource = "external-WO"
)

// DemandStatus is the lifecycle of a demand entry.
type DemandStatus string

const (
	DemandPending    DemandStatus = "pending"
	DemandPlanned    DemandStatus = "planned"
	DemandInProgress DemandStatus = "in_progress"
	DemandCompleted  DemandStatus = "completed"
)

// PlanningRunStatus is the lifecycle of a planning run.
type PlanningRunStatus string

const (
	RunDraft    PlanningRunStatus = "draft"
	RunPending  PlanningRunStatus = "pending"
	RunAccepted PlanningRunStatus = "accepted"
	RunArchived PlanningRunStatus = "archived"
)

// ScenarioStrategy names the strategy a scenario was generated under.
type ScenarioStrategy string

const (
	StrategyMeetDeadlines ScenarioStrategy = "meet_deadlines"
	StrategyMinimizeCost  ScenarioStrategy = "minimize_cost"
	StrategyBalanced      ScenarioStrategy = "balanced"
	// StrategyCustom is never generated; it only arises from forking an
	// edited scenario.
	StrategyCustom ScenarioStrategy = "custom"
)

// ProficiencyAdjustmentReason distinguishes manual overrides from the two
// automatic adjustment directions the proficiency engine proposes.
type ProficiencyAdjustmentReason string

const (
	ReasonManual       ProficiencyAdjustmentReason = "manual"
	ReasonAutoIncrease ProficiencyAdjustmentReason = "auto_increase"
	ReasonAutoDecrease ProficiencyAdjustmentReason = "auto_decrease"
)

// --- JSONB helpers ---

// StepDependencyList is the JSONB-stored dependency edge list for a step.
type StepDependencyList []StepDependencyEdge

// StepDependencyEdge is one dependency edge, embedded inside StepDependencyList.
type StepDependencyEdge struct {
	DependsOnStepID uint           `json:"depends_on_step_id"`
	Kind            DependencyKind `json:"kind"`
}

func (l *StepDependencyList) Scan(value interface{}) error {
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed for StepDependencyList")
	}
	return json.Unmarshal(bytes, l)
}

func (l StepDependencyList) Value() (driver.Value, error) {
	return json.Marshal(l)
}

// StringList is a generic JSONB string array, used for ScheduleBlock's
// ConstraintNotes and PlanningScenario's Warnings.
type StringList []string

func (l *StringList) Scan(value interface{}) error {
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed for StringList")
	}
	return json.Unmarshal(bytes, l)
}

func (l StringList) Value() (driver.Value, error) {
	return json.Marshal(l)
}

// UintList is a generic JSONB uint array, used for ScheduleBlock's WorkerIDs.
type UintList []uint

func (l *UintList) Scan(value interface{}) error {
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed for UintList")
	}
	return json.Unmarshal(bytes, l)
}

func (l UintList) Value() (driver.Value, error) {
	return json.Marshal(l)
}

// ScheduleBlockList is the JSONB-serialized schedule blob stored on a
// PlanningScenario.
type ScheduleBlockList []ScheduleBlockDTO

func (l *ScheduleBlockList) Scan(value interface{}) error {
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed for ScheduleBlockList")
	}
	return json.Unmarshal(bytes, l)
}

func (l ScheduleBlockList) Value() (driver.Value, error) {
	return json.Marshal(l)
}

// ScheduleBlockDTO is the serialized shape of one ScheduleBlock inside a
// scenario's blob, mirroring kernel.Block but safe for JSON round-tripping.
type ScheduleBlockDTO struct {
	DemandEntryID    uint     `json:"demand_entry_id"`
	ProductStepID    uint     `json:"product_step_id"`
	BatchNumber      int      `json:"batch_number"`
	BatchQuantity    int      `json:"batch_quantity"`
	Date             string   `json:"date"` // YYYY-MM-DD
	StartTime        string   `json:"start_time"` // HH:MM
	EndTime          string   `json:"end_time"`   // HH:MM
	PlannedOutput    int      `json:"planned_output"`
	WorkerIDs        []uint   `json:"worker_ids"`
	AssignmentReason string   `json:"assignment_reason"`
	ConstraintNotes  []string `json:"constraint_notes,omitempty"`
	IsOvertime       bool     `json:"is_overtime,omitempty"`
}

// --- Catalog entities ---

// Product is a finished garment/assembly identity. Owns ProductSteps.
type Product struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Name      string         `json:"name" gorm:"not null"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// ProductStep is one step of a product's bill of materials.
type ProductStep struct {
	ID                  uint         `json:"id" gorm:"primaryKey"`
	ProductID           uint         `json:"product_id" gorm:"not null;index"`
	Name                string       `json:"name" gorm:"not null"`
	StepCode            string       `json:"step_code" gorm:"not null;uniqueIndex:idx_product_stepcode"`
	Category            StepCategory `json:"category" gorm:"type:varchar(20);not null"`
	TimePerPieceSeconds int          `json:"time_per_piece_seconds" gorm:"not null"`
	Sequence            int          `json:"sequence" gorm:"not null"`
	EquipmentID         *uint        `json:"equipment_id"`
	WorkCategory        *string      `json:"work_category"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

// BeforeSave enforces that per-piece time is positive.
func (s *ProductStep) BeforeSave(tx *gorm.DB) error {
	if s.TimePerPieceSeconds <= 0 {
		return fmt.Errorf("time_per_piece_seconds must be positive, got %d", s.TimePerPieceSeconds)
	}
	return ValidStepCategory(s.Category)
}

// StepDependency is an ordered (step, depends_on_step) edge with a kind.
type StepDependency struct {
	ID              uint           `json:"id" gorm:"primaryKey"`
	StepID          uint           `json:"step_id" gorm:"not null;index;uniqueIndex:idx_step_depends"`
	DependsOnStepID uint           `json:"depends_on_step_id" gorm:"not null;uniqueIndex:idx_step_depends"`
	Kind            DependencyKind `json:"kind" gorm:"type:varchar(10);not null"`
	CreatedAt       time.Time      `json:"created_at"`
}

// BuildVersion is a named, ordered selection of ProductSteps — a recipe
// revision. At most one per product may be marked IsDefault (enforced at
// the repository boundary via a partial unique index / transactional check).
type BuildVersion struct {
	ID        uint               `json:"id" gorm:"primaryKey"`
	ProductID uint               `json:"product_id" gorm:"not null;index"`
	Name      string             `json:"name" gorm:"not null"`
	Status    BuildVersionStatus `json:"status" gorm:"type:varchar(20);not null;default:'draft'"`
	IsDefault bool               `json:"is_default" gorm:"not null;default:false"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Equipment is a piece of production machinery.
type Equipment struct {
	ID           uint            `json:"id" gorm:"primaryKey"`
	Name         string          `json:"name" gorm:"not null;uniqueIndex"`
	Status       EquipmentStatus `json:"status" gorm:"type:varchar(20);not null;default:'available'"`
	StationCount *int            `json:"station_count"`
	HourlyCost   *float64        `json:"hourly_cost"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	DeletedAt    gorm.DeletedAt  `json:"-" gorm:"index"`
}

// Worker is a production-floor employee.
type Worker struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	Name         string         `json:"name" gorm:"not null"`
	EmployeeID   *string        `json:"employee_id" gorm:"uniqueIndex"`
	Status       WorkerStatus   `json:"status" gorm:"type:varchar(20);not null;default:'active'"`
	WorkCategory *string        `json:"work_category"`
	CostPerHour  *float64       `json:"cost_per_hour"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`
}

// BeforeSave enforces cost_per_hour >= 0 when present.
func (w *Worker) BeforeSave(tx *gorm.DB) error {
	if w.CostPerHour != nil && *w.CostPerHour < 0 {
		return errors.New("cost_per_hour must be >= 0")
	}
	return nil
}

// EquipmentCertification attests a worker is cleared to operate a piece of
// equipment. At most one row per (worker, equipment) pair.
type EquipmentCertification struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	WorkerID    uint       `json:"worker_id" gorm:"not null;uniqueIndex:idx_worker_equipment"`
	EquipmentID uint       `json:"equipment_id" gorm:"not null;uniqueIndex:idx_worker_equipment"`
	CertifiedAt time.Time  `json:"certified_at" gorm:"not null"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

// ValidAt reports whether the certification is valid at instant t.
func (c EquipmentCertification) ValidAt(t time.Time) bool {
	return c.ExpiresAt == nil || c.ExpiresAt.After(t)
}

// --- Demand ---

// DemandEntry is an external request for N units of a product by a date —
// the scheduler's input unit of work.
type DemandEntry struct {
	ID             uint         `json:"id" gorm:"primaryKey"`
	Source         DemandSource `json:"source" gorm:"type:varchar(20);not null"`
	ProductID      uint         `json:"product_id" gorm:"not null;index"`
	BuildVersionID *uint        `json:"build_version_id"`
	Quantity       int          `json:"quantity" gorm:"not null"`
	DueDate        time.Time    `json:"due_date" gorm:"type:date;not null;index"`
	CustomerName   *string      `json:"customer_name"`
	Priority       int          `json:"priority" gorm:"not null;default:3"`
	Status         DemandStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending'"`
	MinBatchSize   *int         `json:"min_batch_size"`
	MaxBatchSize   *int         `json:"max_batch_size"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// BeforeSave enforces quantity > 0 and 1 <= priority <= 5.
func (d *DemandEntry) BeforeSave(tx *gorm.DB) error {
	if d.Quantity <= 0 {
		return errors.New("quantity must be positive")
	}
	if d.Priority < 1 || d.Priority > 5 {
		return errors.New("priority must be in [1,5]")
	}
	return nil
}

// --- Planning ---

// PlanningRun is a named, dated attempt to schedule a chosen subset of
// demand. Owns 1..N PlanningScenarios, of which at most one is accepted.
type PlanningRun struct {
	ID                uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey"`
	Name              string            `json:"name" gorm:"not null"`
	StartDate         time.Time         `json:"start_date" gorm:"type:date;not null"`
	EndDate           time.Time         `json:"end_date" gorm:"type:date;not null"`
	Status            PlanningRunStatus `json:"status" gorm:"type:varchar(20);not null;default:'draft'"`
	AcceptedScenarioID *uuid.UUID       `json:"accepted_scenario_id"`
	CreatedBy         string            `json:"created_by"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`

	Scenarios []PlanningScenario `json:"scenarios,omitempty" gorm:"foreignKey:PlanningRunID;constraint:OnDelete:CASCADE"`
}

func (r *PlanningRun) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return
}

// PlanningScenario is one candidate schedule under a named strategy, with
// its metrics, warnings, and serialized block list.
type PlanningScenario struct {
	ID                       uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey"`
	PlanningRunID            uuid.UUID         `json:"planning_run_id" gorm:"type:uuid;not null;index"`
	Name                     string            `json:"name" gorm:"not null"`
	Strategy                 ScenarioStrategy  `json:"strategy" gorm:"type:varchar(20);not null"`
	AllowOvertime            bool              `json:"allow_overtime"`
	OvertimeLimitHoursPerDay float64           `json:"overtime_limit_hours_per_day"`
	LaborHours               float64           `json:"labor_hours"`
	OvertimeHours            float64           `json:"overtime_hours"`
	LaborCost                float64           `json:"labor_cost"`
	EquipmentCost            float64           `json:"equipment_cost"`
	DeadlinesMet             int               `json:"deadlines_met"`
	DeadlinesMissed          int               `json:"deadlines_missed"`
	LatestCompletionDate     time.Time         `json:"latest_completion_date" gorm:"type:date"`
	ScheduleBlocks           ScheduleBlockList `json:"schedule_blocks" gorm:"type:jsonb"`
	Warnings                 StringList        `json:"warnings" gorm:"type:jsonb"`
	ParentScenarioID         *uuid.UUID        `json:"parent_scenario_id" gorm:"type:uuid"`
	CreatedAt                time.Time         `json:"created_at"`
	UpdatedAt                time.Time         `json:"updated_at"`
}

func (s *PlanningScenario) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return
}

// ScenarioDemandLink records which demand entries a scenario was generated
// for.
type ScenarioDemandLink struct {
	ScenarioID    uuid.UUID `json:"scenario_id" gorm:"type:uuid;primaryKey"`
	DemandEntryID uint      `json:"demand_entry_id" gorm:"primaryKey"`
}

// PlanTask is the executable unit materialized when a scenario is accepted
// — one per ScheduleBlock of the accepted scenario.
type PlanTask struct {
	ID              uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	PlanningRunID   uuid.UUID `json:"planning_run_id" gorm:"type:uuid;not null;index"`
	ScenarioID      uuid.UUID `json:"scenario_id" gorm:"type:uuid;not null;index"`
	DemandEntryID   uint      `json:"demand_entry_id" gorm:"not null;index"`
	ProductStepID   uint      `json:"product_step_id" gorm:"not null"`
	BatchNumber     int       `json:"batch_number"`
	BatchQuantity   int       `json:"batch_quantity"`
	Date            time.Time `json:"date" gorm:"type:date"`
	StartTime       string    `json:"start_time"`
	EndTime         string    `json:"end_time"`
	PlannedOutput   int       `json:"planned_output"`
	WorkerIDs       UintList  `json:"worker_ids" gorm:"type:jsonb"`
	ActualOutput    int       `json:"actual_output"`
	StartedAt       *time.Time `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (t *PlanTask) BeforeCreate(tx *gorm.DB) (err error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return
}

// --- Proficiency & history ---

// WorkerProficiency maps (worker, step) to a level, 1..5.
type WorkerProficiency struct {
	WorkerID uint `json:"worker_id" gorm:"primaryKey"`
	StepID   uint `json:"step_id" gorm:"primaryKey"`
	Level    int  `json:"level" gorm:"not null;default:3"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LevelMultiplier maps a proficiency level to its scheduling time
// multiplier.
func LevelMultiplier(level int) float64 {
	switch level {
	case 1:
		return 1.5
	case 2:
		return 1.25
	case 3:
		return 1.0
	case 4:
		return 0.85
	case 5:
		return 0.7
	default:
		return 1.0
	}
}

// ProficiencyHistory is an append-only log of level transitions.
type ProficiencyHistory struct {
	ID           uint                        `json:"id" gorm:"primaryKey"`
	WorkerID     uint                        `json:"worker_id" gorm:"not null;index"`
	StepID       uint                        `json:"step_id" gorm:"not null;index"`
	FromLevel    int                         `json:"from_level"`
	ToLevel      int                         `json:"to_level"`
	Reason       ProficiencyAdjustmentReason `json:"reason" gorm:"type:varchar(20);not null"`
	AvgEfficiency *float64                   `json:"avg_efficiency"`
	SampleSize    *int                       `json:"sample_size"`
	CreatedAt    time.Time                   `json:"created_at"`
}

// AssignmentOutputHistory is an append-only (assignment, output, ts) stream
// used to derive time-per-piece trends.
type AssignmentOutputHistory struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	PlanTaskID   uuid.UUID `json:"plan_task_id" gorm:"type:uuid;not null;index"`
	Output       int       `json:"output"`
	RecordedAt   time.Time `json:"recorded_at" gorm:"not null;index"`
}
