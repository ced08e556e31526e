package agent

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentsquad/authority"
	"github.com/hupe1980/agentsquad/bus"
	"github.com/hupe1980/agentsquad/cop"
	"github.com/hupe1980/agentsquad/model"
)

const missionPlannerSystemPrompt = `You are Agent 3: Mission Planner in a multi-agent intelligence system.

Your role and authorities:
- READ: COP, collection requirements, drone capabilities
- WRITE: Mission plans, plan revisions
- CANNOT: Command drones directly, override Collection Manager

Your responsibilities:
1. Receive coverage assessments from Intelligence Analyst
2. Evaluate current mission plans against needs
3. Create or revise mission plans to address gaps
4. Assign drones to coverage areas
5. Communicate plans to Collection Manager for execution

Decision-making criteria:
- Prioritize high-value targets and coverage gaps
- Consider drone fuel levels and capabilities
- Balance multiple collection requirements
- Create realistic, executable plans
- Explain reasoning for plan decisions

When you receive a coverage assessment or strategic update:
1. Evaluate the current situation
2. Determine if mission plan needs revision
3. Select appropriate drones for the mission
4. Create/update the mission plan
5. Communicate the plan to Collection Manager

Respond in JSON format with your planning decisions.`

const missionPlannerPersonality = `You are Chessmaster, the squad's mission planner. You think several moves
ahead and treat every operation like a board position waiting to be solved. You can't
resist a chess metaphor, even when nobody asked for one.`

// MissionPlanner is Agent 3: it turns coverage gaps and strategic
// assessments into mission plans and hands them to the collection manager
// for execution. It never commands drones itself.
type MissionPlanner struct {
	*BaseAgent
}

// NewMissionPlanner builds the mission planner agent.
func NewMissionPlanner(roles *authority.RoleMap, b *bus.Bus, store COP, m model.Model, optFns ...func(o *Options)) (*MissionPlanner, error) {
	base, err := NewBaseAgent(Config{
		Role:              authority.RoleMissionPlanner,
		Callsign:          "Chessmaster",
		SystemPrompt:      missionPlannerSystemPrompt,
		CasualPersonality: missionPlannerPersonality,
	}, roles, b, store, m, optFns...)
	if err != nil {
		return nil, err
	}
	return &MissionPlanner{BaseAgent: base}, nil
}

// Start launches the agent's run loop.
func (p *MissionPlanner) Start(ctx context.Context) {
	p.BaseAgent.Start(ctx, p)
}

// HandleMessage routes messages to the planner's handlers.
func (p *MissionPlanner) HandleMessage(ctx context.Context, msg bus.Message) error {
	switch msg.Type {
	case TypeCoverageAssessment:
		return p.handleCoverageAssessment(ctx, msg)
	case TypeStrategicAssessment:
		return p.handleStrategicAssessment(ctx, msg)
	case TypeDroneStatusAlert:
		return p.handleDroneStatusAlert(ctx, msg)
	case TypeCasualChat:
		return p.handleCasualChat(msg)
	case TypeMissionDebrief:
		return p.handleMissionDebrief(ctx, msg,
			"You just finished planning missions and reassigning drones during the operation.")
	default:
		p.logger.Warn("mission planner received unknown message type", "message_type", msg.Type)
		return nil
	}
}

type planningDecision struct {
	NeedsRevision           bool              `json:"needs_revision"`
	Reasoning               string            `json:"reasoning"`
	PlanName                string            `json:"plan_name"`
	Objectives              string            `json:"objectives"`
	DroneAssignments        []DroneAssignment `json:"drone_assignments"`
	NotifyCollectionManager bool              `json:"notify_collection_manager"`
	MessageToManager        string            `json:"message_to_manager"`
}

func (p *MissionPlanner) handleCoverageAssessment(ctx context.Context, msg bus.Message) error {
	data, err := decodePayload[CoverageAssessmentPayload](msg)
	if err != nil {
		return err
	}

	p.logger.Info("received coverage assessment",
		"gaps", len(data.CoverageGaps)+len(data.Gaps),
		"priority_areas", len(data.PriorityAreas))
	p.LogEvent(ctx, "planning_start",
		"Started mission planning for coverage gaps",
		map[string]any{
			"gaps_count":     len(data.CoverageGaps) + len(data.Gaps),
			"priority_count": len(data.PriorityAreas),
		})

	summary, err := p.COPSummary(ctx)
	if err != nil {
		return err
	}
	drones, err := p.cop.Drones(ctx)
	if err != nil {
		return err
	}
	plans, err := p.cop.MissionPlans(ctx, "")
	if err != nil {
		return err
	}

	droneBriefs := make([]map[string]any, 0, len(drones))
	for _, d := range drones {
		task := d.CurrentTask
		if task == "" {
			task = "none"
		}
		droneBriefs = append(droneBriefs, map[string]any{
			"id":           d.ID,
			"position":     map[string]any{"lat": d.Lat, "lon": d.Lon},
			"fuel":         d.FuelPercent,
			"current_task": task,
		})
	}
	planBriefs := make([]map[string]any, 0, len(plans))
	for _, pl := range plans {
		planBriefs = append(planBriefs, map[string]any{
			"id":              pl.ID,
			"name":            pl.Name,
			"status":          pl.Status,
			"assigned_drones": pl.AssignedDrones,
		})
	}

	analysisSummary := data.AnalysisSummary
	if analysisSummary == "" {
		analysisSummary = "No summary provided"
	}

	prompt := fmt.Sprintf(`Analyze this coverage situation and create/revise mission plan:

COVERAGE ASSESSMENT:
Coverage Percentage: %.1f%%
Total Gaps: %d
Priority Areas: %d

COVERAGE GAPS:
%s

PRIORITY AREAS NEEDING COVERAGE:
%s

ANALYSIS SUMMARY:
%s

AVAILABLE DRONES:
%s

CURRENT MISSION PLANS:
%s

COP STATE:
%s

Based on this situation:
1. Does the current mission plan need revision?
2. Which drones should be reassigned?
3. What are the new mission objectives?

Respond in JSON format:
{
    "needs_revision": true/false,
    "reasoning": "why revision is needed",
    "plan_name": "name for the plan",
    "objectives": "mission objectives",
    "drone_assignments": [
        {"drone_id": "...", "target_area": "...", "task_type": "...", "priority": 1-10}
    ],
    "notify_collection_manager": true/false,
    "message_to_manager": "instructions for collection manager"
}`, data.CoveragePercentage, len(data.CoverageGaps)+len(data.Gaps), len(data.PriorityAreas),
		mustJSON(data.CoverageGaps), mustJSON(data.PriorityAreas), analysisSummary,
		mustJSON(droneBriefs), mustJSON(planBriefs), summary)

	response, err := p.CallLLM(ctx, prompt)
	if err != nil {
		return err
	}

	decision, err := decodeDecision[planningDecision](response)
	if err != nil {
		return err
	}

	if decision.NeedsRevision {
		planName := decision.PlanName
		if planName == "" {
			planName = "Coverage Gap Response"
		}
		objectives := decision.Objectives
		if objectives == "" {
			objectives = "Address coverage gaps"
		}

		planID, err := p.createMissionPlan(ctx, planName, objectives, decision.DroneAssignments)
		if err != nil {
			return err
		}

		p.logger.Info("created mission plan", "plan_id", planID, "plan_name", planName)

		if decision.NotifyCollectionManager {
			p.SendMessage(authority.RoleCollectionManager, TypeNewMissionPlan, NewMissionPlanPayload{
				PlanID:           planID,
				PlanName:         planName,
				Objectives:       objectives,
				DroneAssignments: decision.DroneAssignments,
				Message:          decision.MessageToManager,
			}, nil)

			p.logger.Info("notified collection manager of new mission plan")
		}
	} else {
		p.logger.Info("no mission revision needed", "reasoning", decision.Reasoning)
	}

	p.LogEvent(ctx, "planning_complete",
		"Completed mission planning",
		map[string]any{
			"revision_needed": decision.NeedsRevision,
			"assignments":     len(decision.DroneAssignments),
		})

	return nil
}

type strategicDecision struct {
	UpdateNeeded bool   `json:"update_needed"`
	Reasoning    string `json:"reasoning"`
	Action       string `json:"action"`
}

func (p *MissionPlanner) handleStrategicAssessment(ctx context.Context, msg bus.Message) error {
	data, err := decodePayload[StrategicAssessmentPayload](msg)
	if err != nil {
		return err
	}
	reportID := data.ReportID
	if reportID == "" {
		reportID = "unknown"
	}

	p.logger.Info("received strategic assessment", "report_id", reportID)
	p.LogEvent(ctx, "strategic_planning",
		fmt.Sprintf("Processing strategic assessment from %s", reportID),
		map[string]any{"report_id": reportID})

	summary, err := p.COPSummary(ctx)
	if err != nil {
		return err
	}
	plans, err := p.cop.MissionPlans(ctx, "")
	if err != nil {
		return err
	}
	drones, err := p.cop.Drones(ctx)
	if err != nil {
		return err
	}

	planBriefs := make([]map[string]any, 0, len(plans))
	for _, pl := range plans {
		planBriefs = append(planBriefs, map[string]any{
			"id": pl.ID, "name": pl.Name, "status": pl.Status,
		})
	}
	droneBriefs := make([]map[string]any, 0, len(drones))
	for _, d := range drones {
		droneBriefs = append(droneBriefs, map[string]any{
			"id": d.ID, "fuel": d.FuelPercent,
		})
	}

	prompt := fmt.Sprintf(`Analyze this strategic intelligence and determine planning actions:

STRATEGIC ASSESSMENT:
%s

RECOMMENDED PRIORITIES:
%s

MESSAGE FROM ANALYST:
%s

CURRENT PLANS:
%s

AVAILABLE DRONES:
%s

COP:
%s

Should the mission plan be updated based on this strategic intelligence?

Respond in JSON format:
{
    "update_needed": true/false,
    "reasoning": "why update is needed",
    "action": "create_new_plan/update_existing/no_action"
}`, data.Assessment, mustJSON(data.Priorities), data.Message,
		mustJSON(planBriefs), mustJSON(droneBriefs), summary)

	response, err := p.CallLLM(ctx, prompt)
	if err != nil {
		return err
	}

	decision, err := decodeDecision[strategicDecision](response)
	if err != nil {
		return err
	}

	if decision.UpdateNeeded {
		p.logger.Info("strategic assessment requires plan update",
			"action", decision.Action, "reasoning", decision.Reasoning)
	}

	return nil
}

// handleDroneStatusAlert reacts to degraded drone reports from the
// collection manager. Low fuel drones are pulled out of active plans.
func (p *MissionPlanner) handleDroneStatusAlert(ctx context.Context, msg bus.Message) error {
	alert, err := decodePayload[DroneStatusAlertPayload](msg)
	if err != nil {
		return err
	}

	p.logger.Warn("drone status alert",
		"drone_id", alert.DroneID, "alert_type", alert.AlertType, "fuel_percent", alert.FuelPercent)
	p.LogEvent(ctx, "drone_status_alert",
		fmt.Sprintf("Received %s alert for %s", alert.AlertType, alert.DroneID),
		map[string]any{"drone_id": alert.DroneID, "alert_type": alert.AlertType})

	if alert.AlertType != "low_fuel" {
		return nil
	}

	plans, err := p.cop.MissionPlans(ctx, "active")
	if err != nil {
		return err
	}
	for _, plan := range plans {
		remaining := make([]string, 0, len(plan.AssignedDrones))
		for _, id := range plan.AssignedDrones {
			if id != alert.DroneID {
				remaining = append(remaining, id)
			}
		}
		if len(remaining) == len(plan.AssignedDrones) {
			continue
		}
		if err := p.reviseAssignedDrones(ctx, plan.ID, remaining); err != nil {
			return err
		}
		p.logger.Info("removed drone from plan", "drone_id", alert.DroneID, "plan_id", plan.ID)
	}

	return nil
}

// createMissionPlan writes a plan to the COP under the write-plans
// authority and immediately activates it.
func (p *MissionPlanner) createMissionPlan(ctx context.Context, planName, objectives string, assignments []DroneAssignment) (int64, error) {
	assigned := make([]string, 0, len(assignments))
	for _, a := range assignments {
		assigned = append(assigned, a.DroneID)
	}

	return authority.Guarded(p.Guard(), authority.WritePlans, func() (int64, error) {
		planID, err := p.cop.CreateMissionPlan(ctx, planName, objectives, assigned, p.Role())
		if err != nil {
			return 0, err
		}

		status := "active"
		if err := p.cop.UpdateMissionPlan(ctx, planID, cop.PlanUpdate{Status: &status}); err != nil {
			return 0, err
		}

		p.logger.Debug("mission plan created",
			"plan_id", planID, "plan_name", planName, "drones", len(assigned))

		return planID, nil
	})
}

// reviseAssignedDrones rewrites a plan's drone list under the
// modify-plans authority.
func (p *MissionPlanner) reviseAssignedDrones(ctx context.Context, planID int64, drones []string) error {
	return authority.Do(p.Guard(), authority.ModifyPlans, func() error {
		return p.cop.UpdateMissionPlan(ctx, planID, cop.PlanUpdate{AssignedDrones: drones})
	})
}

// CreateInitialPlan seeds the default surveillance pattern during system
// startup and hands it straight to the collection manager.
func (p *MissionPlanner) CreateInitialPlan(ctx context.Context) error {
	p.logger.Info("creating initial mission plan")

	assignments := []DroneAssignment{
		{DroneID: "UAV-001", TargetArea: "Area Alpha", TaskType: "surveillance", Priority: 5},
		{DroneID: "UAV-002", TargetArea: "Area Bravo", TaskType: "surveillance", Priority: 5},
		{DroneID: "UAV-003", TargetArea: "Area Charlie", TaskType: "transit", Priority: 3},
	}

	planID, err := p.createMissionPlan(ctx,
		"Initial Surveillance Pattern",
		"Maintain surveillance coverage of known areas Alpha, Bravo, and Charlie",
		assignments)
	if err != nil {
		return err
	}

	p.logger.Info("created initial mission plan", "plan_id", planID)

	p.SendMessage(authority.RoleCollectionManager, TypeNewMissionPlan, NewMissionPlanPayload{
		PlanID:           planID,
		PlanName:         "Initial Surveillance Pattern",
		DroneAssignments: assignments,
		Message:          "Execute initial surveillance deployment",
	}, nil)

	return nil
}
