package agent

import (
	"github.com/hupe1980/agentsquad/sim"
)

// Message types exchanged between the role agents. The values double as
// subscription keys on the bus.
const (
	TypeSensorData            = "sensor_data"
	TypeIntelReport           = "intel_report"
	TypeProcessedIntelligence = "processed_intelligence"
	TypeProcessedIntelReport  = "processed_intel_report"
	TypeNewIntelligence       = "new_intelligence"
	TypeCoverageAssessment    = "coverage_assessment"
	TypeStrategicAssessment   = "strategic_assessment"
	TypeNewMissionPlan        = "new_mission_plan"
	TypeDroneStatusAlert      = "drone_status_alert"
	TypeIntroduction          = "introduction"
	TypeCasualChat            = "casual_chat"
	TypeMissionDebrief        = "mission_debrief"
)

// SensorDataPayload is raw drone telemetry submitted for processing.
type SensorDataPayload struct {
	DroneID    string         `json:"drone_id"`
	Timestamp  float64        `json:"timestamp,omitempty"`
	Position   *sim.Position  `json:"position,omitempty"`
	SensorData sim.SensorData `json:"sensor_data"`
}

// IntelReportPayload is a free-text intelligence report submitted for
// processing.
type IntelReportPayload struct {
	ReportID  string  `json:"report_id"`
	Source    string  `json:"source,omitempty"`
	Timestamp float64 `json:"timestamp,omitempty"`
	Content   string  `json:"content"`
}

// ReportedEntity is an entity the LLM selected for reporting or COP
// insertion.
type ReportedEntity struct {
	Type        string  `json:"type"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Confidence  float64 `json:"confidence"`
	Description string  `json:"description,omitempty"`
}

// ProcessedIntelligencePayload carries validated sensor intelligence from
// the collection processor to the intelligence analyst.
type ProcessedIntelligencePayload struct {
	Source     string           `json:"source"`
	Entities   []ReportedEntity `json:"entities"`
	Analysis   sim.Analysis     `json:"analysis"`
	Validation sim.Validation   `json:"validation"`
	Confidence float64          `json:"confidence"`
}

// ProcessedIntelReportPayload carries the distilled findings of a text
// report from the collection processor to the intelligence analyst.
type ProcessedIntelReportPayload struct {
	ReportID   string         `json:"report_id"`
	Findings   []string       `json:"findings"`
	Priorities []string       `json:"priorities"`
	Validation sim.Validation `json:"validation"`
}

// NewIntelligencePayload is the broadcast awareness notification sent when
// fresh intelligence enters the pipeline.
type NewIntelligencePayload struct {
	Source        string `json:"source"`
	EntitiesCount int    `json:"entities_count"`
	Message       string `json:"message"`
}

// CoverageGapNote describes one surveillance gap identified during
// analysis.
type CoverageGapNote struct {
	Area     string `json:"area"`
	Priority string `json:"priority"`
	Reason   string `json:"reason,omitempty"`
}

// CoverageAssessmentPayload notifies the mission planner of coverage gaps.
type CoverageAssessmentPayload struct {
	Source             string            `json:"source,omitempty"`
	NewEntitiesCount   int               `json:"new_entities_count,omitempty"`
	CoveragePercentage float64           `json:"coverage_percentage,omitempty"`
	CoverageGaps       []CoverageGapNote `json:"coverage_gaps,omitempty"`
	Gaps               []sim.CoverageGap `json:"gaps,omitempty"`
	PriorityAreas      []sim.CoverageGap `json:"priority_areas,omitempty"`
	AnalysisSummary    string            `json:"analysis_summary,omitempty"`
	Reason             string            `json:"reason,omitempty"`
}

// StrategicAssessmentPayload notifies the mission planner of strategic
// implications extracted from an intelligence report.
type StrategicAssessmentPayload struct {
	ReportID   string   `json:"report_id"`
	Assessment string   `json:"assessment"`
	Priorities []string `json:"priorities"`
	Message    string   `json:"message,omitempty"`
}

// DroneAssignment binds a drone to a target area and task in a mission
// plan.
type DroneAssignment struct {
	DroneID    string `json:"drone_id"`
	TargetArea string `json:"target_area"`
	TaskType   string `json:"task_type"`
	Priority   int    `json:"priority"`
}

// NewMissionPlanPayload hands a mission plan to the collection manager for
// execution.
type NewMissionPlanPayload struct {
	PlanID           int64             `json:"plan_id"`
	PlanName         string            `json:"plan_name"`
	Objectives       string            `json:"objectives,omitempty"`
	DroneAssignments []DroneAssignment `json:"drone_assignments,omitempty"`
	Message          string            `json:"message,omitempty"`
}

// DroneStatusAlertPayload warns the mission planner about a degraded
// drone.
type DroneStatusAlertPayload struct {
	DroneID     string  `json:"drone_id"`
	AlertType   string  `json:"alert_type"`
	FuelPercent float64 `json:"fuel_percent"`
}

// IntroductionPayload is a broadcast self-introduction.
type IntroductionPayload struct {
	Callsign string `json:"callsign"`
	Message  string `json:"message"`
}

// CasualChatPayload is off-duty squad banter.
type CasualChatPayload struct {
	Callsign     string `json:"callsign"`
	Message      string `json:"message"`
	RespondingTo string `json:"responding_to,omitempty"`
}

// MissionDebriefPayload prompts the squad for post-mission reflections.
type MissionDebriefPayload struct {
	Message string `json:"message"`
}
