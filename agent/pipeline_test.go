package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentsquad/authority"
	"github.com/hupe1980/agentsquad/bus"
	"github.com/hupe1980/agentsquad/cop"
	"github.com/hupe1980/agentsquad/sim"
)

func mustReceive(t *testing.T, b *bus.Bus, identity string) bus.Message {
	t.Helper()
	msg, err := b.Receive(context.Background(), identity, time.Second)
	require.NoError(t, err)
	require.NotNil(t, msg, "expected a message for %s", identity)
	return *msg
}

func assertNoMessage(t *testing.T, b *bus.Bus, identity string) {
	t.Helper()
	msg, err := b.Receive(context.Background(), identity, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestCollectionProcessor_PublishesIntelligence(t *testing.T) {
	r := newTestRig(t)
	p, err := NewCollectionProcessor(r.roles, r.bus, r.store, r.model)
	require.NoError(t, err)
	r.bus.Register(authority.RoleIntelligenceAnalyst)

	r.model.Script(`{
		"should_publish": true,
		"reasoning": "high quality detections",
		"entities_to_report": [
			{"type": "vehicle", "lat": 34.1, "lon": -118.3, "confidence": 0.9, "description": "convoy"}
		],
		"notify_agents": true,
		"notification_message": "New convoy detected in Area Delta"
	}`)

	err = p.HandleMessage(context.Background(), bus.Message{
		Type: TypeSensorData,
		Content: SensorDataPayload{
			DroneID: "UAV-002",
			SensorData: sim.SensorData{
				Type: "visual",
				Detections: []sim.Detection{
					{Type: "vehicle", Position: sim.Position{Lat: 34.1, Lon: -118.3}},
				},
			},
		},
	})
	require.NoError(t, err)

	msg := mustReceive(t, r.bus, authority.RoleIntelligenceAnalyst)
	assert.Equal(t, TypeProcessedIntelligence, msg.Type)
	assert.Equal(t, authority.RoleCollectionProcessor, msg.Sender)

	intel, err := decodePayload[ProcessedIntelligencePayload](msg)
	require.NoError(t, err)
	assert.Equal(t, "UAV-002", intel.Source)
	require.Len(t, intel.Entities, 1)
	assert.Equal(t, "vehicle", intel.Entities[0].Type)

	// notify_agents also fires the broadcast awareness message.
	broadcast := mustReceive(t, r.bus, authority.RoleIntelligenceAnalyst)
	assert.Equal(t, TypeNewIntelligence, broadcast.Type)

	events, err := r.store.EventLog(context.Background(), 10, authority.RoleCollectionProcessor)
	require.NoError(t, err)
	var types []string
	for _, e := range events {
		types = append(types, e.EventType)
	}
	assert.Contains(t, types, "processing_start")
	assert.Contains(t, types, "processing_complete")
}

func TestCollectionProcessor_WithholdsRejectedIntelligence(t *testing.T) {
	r := newTestRig(t)
	p, err := NewCollectionProcessor(r.roles, r.bus, r.store, r.model)
	require.NoError(t, err)
	r.bus.Register(authority.RoleIntelligenceAnalyst)

	r.model.Script(`{"should_publish": false, "reasoning": "confidence too low"}`)

	err = p.HandleMessage(context.Background(), bus.Message{
		Type:    TypeSensorData,
		Content: SensorDataPayload{DroneID: "UAV-001"},
	})
	require.NoError(t, err)

	assertNoMessage(t, r.bus, authority.RoleIntelligenceAnalyst)
}

func TestCollectionProcessor_ForwardsIntelReport(t *testing.T) {
	r := newTestRig(t)
	p, err := NewCollectionProcessor(r.roles, r.bus, r.store, r.model)
	require.NoError(t, err)
	r.bus.Register(authority.RoleIntelligenceAnalyst)

	r.model.Script(`{
		"should_publish": true,
		"reasoning": "actionable findings",
		"key_findings": ["staging area near Area Delta"],
		"collection_priorities": ["Area Delta"],
		"notify_analyst": true
	}`)

	err = p.HandleMessage(context.Background(), bus.Message{
		Type: TypeIntelReport,
		Content: IntelReportPayload{
			ReportID: "mission_brief_001",
			Source:   "hq",
			Content:  "Reports of increased activity near Area Delta.",
		},
	})
	require.NoError(t, err)

	msg := mustReceive(t, r.bus, authority.RoleIntelligenceAnalyst)
	assert.Equal(t, TypeProcessedIntelReport, msg.Type)

	report, err := decodePayload[ProcessedIntelReportPayload](msg)
	require.NoError(t, err)
	assert.Equal(t, "mission_brief_001", report.ReportID)
	assert.Equal(t, []string{"staging area near Area Delta"}, report.Findings)
}

func TestIntelligenceAnalyst_AddsConfidentEntities(t *testing.T) {
	r := newTestRig(t)
	a, err := NewIntelligenceAnalyst(r.roles, r.bus, r.store, r.model)
	require.NoError(t, err)
	r.bus.Register(authority.RoleMissionPlanner)

	r.model.Script(`{
		"entities_to_add": [
			{"type": "vehicle", "lat": 34.1, "lon": -118.3, "confidence": 0.95, "description": "convoy"},
			{"type": "person", "lat": 34.2, "lon": -118.4, "confidence": 0.5, "description": "unconfirmed"}
		],
		"analysis_summary": "Confirmed convoy movement",
		"coverage_gaps": [
			{"area": "Area Delta", "priority": "high", "reason": "no drone on station"}
		],
		"notify_mission_planner": true,
		"notification_reason": "high-value target uncovered"
	}`)

	err = a.HandleMessage(context.Background(), bus.Message{
		Type:    TypeProcessedIntelligence,
		Content: ProcessedIntelligencePayload{Source: "UAV-002", Confidence: 0.9},
	})
	require.NoError(t, err)

	// Only the confident entity crosses the 0.7 threshold.
	entities, err := r.store.Entities(context.Background(), cop.EntityFilter{})
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "vehicle", entities[0].Type)
	assert.Equal(t, "UAV-002", entities[0].DetectedBy)

	msg := mustReceive(t, r.bus, authority.RoleMissionPlanner)
	assert.Equal(t, TypeCoverageAssessment, msg.Type)

	assessment, err := decodePayload[CoverageAssessmentPayload](msg)
	require.NoError(t, err)
	assert.Equal(t, 1, assessment.NewEntitiesCount)
	require.Len(t, assessment.CoverageGaps, 1)
	assert.Equal(t, "Area Delta", assessment.CoverageGaps[0].Area)
}

func TestIntelligenceAnalyst_DeniedWithoutWriteCOP(t *testing.T) {
	r := newTestRig(t)

	// A role map that revokes the analyst's COP write authority.
	readOnly := authority.NewRoleMap(map[string][]authority.Authority{
		authority.RoleIntelligenceAnalyst: {authority.ReadCOP},
	})
	a, err := NewIntelligenceAnalyst(readOnly, r.bus, r.store, r.model)
	require.NoError(t, err)

	r.model.Script(`{
		"entities_to_add": [{"type": "vehicle", "lat": 34.1, "lon": -118.3, "confidence": 0.95}],
		"notify_mission_planner": false
	}`)

	err = a.HandleMessage(context.Background(), bus.Message{
		Type:    TypeProcessedIntelligence,
		Content: ProcessedIntelligencePayload{Source: "UAV-002"},
	})

	var unauthorized *authority.UnauthorizedError
	require.True(t, errors.As(err, &unauthorized))
	assert.Equal(t, authority.WriteCOP, unauthorized.Required)

	// Denial must leave no trace in the COP.
	entities, err := r.store.Entities(context.Background(), cop.EntityFilter{})
	require.NoError(t, err)
	assert.Empty(t, entities)
}

func TestIntelligenceAnalyst_AssessCoverage(t *testing.T) {
	r := newTestRig(t)
	a, err := NewIntelligenceAnalyst(r.roles, r.bus, r.store, r.model)
	require.NoError(t, err)
	r.bus.Register(authority.RoleMissionPlanner)
	ctx := context.Background()

	require.NoError(t, r.store.UpsertDrone(ctx, cop.Drone{
		ID: "UAV-001", Lat: 34.05, Lon: -118.24, FuelPercent: 80,
	}))
	// One covered entity next to the drone, one high-value entity far away.
	_, err = r.store.AddEntity(ctx, cop.Entity{
		Type: "vehicle", Lat: 34.05, Lon: -118.24, Confidence: 0.8, DetectedBy: "UAV-001",
	})
	require.NoError(t, err)
	_, err = r.store.AddEntity(ctx, cop.Entity{
		Type: "structure", Lat: 36.0, Lon: -120.0, Confidence: 0.95, DetectedBy: "UAV-001",
	})
	require.NoError(t, err)

	require.NoError(t, a.AssessCoverage(ctx))

	msg := mustReceive(t, r.bus, authority.RoleMissionPlanner)
	assert.Equal(t, TypeCoverageAssessment, msg.Type)

	assessment, err := decodePayload[CoverageAssessmentPayload](msg)
	require.NoError(t, err)
	require.Len(t, assessment.PriorityAreas, 1)
	assert.Equal(t, "structure", assessment.PriorityAreas[0].EntityType)
	assert.InDelta(t, 50.0, assessment.CoveragePercentage, 0.01)
}

func TestMissionPlanner_CreatesAndHandsOffPlan(t *testing.T) {
	r := newTestRig(t)
	p, err := NewMissionPlanner(r.roles, r.bus, r.store, r.model)
	require.NoError(t, err)
	r.bus.Register(authority.RoleCollectionManager)
	ctx := context.Background()

	r.model.Script(`{
		"needs_revision": true,
		"reasoning": "uncovered high-value target",
		"plan_name": "Gap Response North",
		"objectives": "Cover Area Delta",
		"drone_assignments": [
			{"drone_id": "UAV-001", "target_area": "Area Delta", "task_type": "surveillance", "priority": 8}
		],
		"notify_collection_manager": true,
		"message_to_manager": "Redeploy UAV-001 to Area Delta"
	}`)

	err = p.HandleMessage(ctx, bus.Message{
		Type: TypeCoverageAssessment,
		Content: CoverageAssessmentPayload{
			CoverageGaps: []CoverageGapNote{{Area: "Area Delta", Priority: "high"}},
		},
	})
	require.NoError(t, err)

	plans, err := r.store.MissionPlans(ctx, "active")
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "Gap Response North", plans[0].Name)
	assert.Equal(t, []string{"UAV-001"}, plans[0].AssignedDrones)
	assert.Equal(t, authority.RoleMissionPlanner, plans[0].CreatedBy)

	msg := mustReceive(t, r.bus, authority.RoleCollectionManager)
	assert.Equal(t, TypeNewMissionPlan, msg.Type)

	plan, err := decodePayload[NewMissionPlanPayload](msg)
	require.NoError(t, err)
	assert.Equal(t, plans[0].ID, plan.PlanID)
	require.Len(t, plan.DroneAssignments, 1)
	assert.Equal(t, "UAV-001", plan.DroneAssignments[0].DroneID)
}

func TestMissionPlanner_NoRevisionNeeded(t *testing.T) {
	r := newTestRig(t)
	p, err := NewMissionPlanner(r.roles, r.bus, r.store, r.model)
	require.NoError(t, err)
	r.bus.Register(authority.RoleCollectionManager)

	r.model.Script(`{"needs_revision": false, "reasoning": "current pattern already covers the gap"}`)

	err = p.HandleMessage(context.Background(), bus.Message{
		Type:    TypeCoverageAssessment,
		Content: CoverageAssessmentPayload{},
	})
	require.NoError(t, err)

	plans, err := r.store.MissionPlans(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, plans)
	assertNoMessage(t, r.bus, authority.RoleCollectionManager)
}

func TestMissionPlanner_LowFuelPullsDroneFromPlans(t *testing.T) {
	r := newTestRig(t)
	p, err := NewMissionPlanner(r.roles, r.bus, r.store, r.model)
	require.NoError(t, err)
	ctx := context.Background()

	planID, err := r.store.CreateMissionPlan(ctx, "Surveillance Pattern", "Cover known areas",
		[]string{"UAV-001", "UAV-002"}, authority.RoleMissionPlanner)
	require.NoError(t, err)
	status := "active"
	require.NoError(t, r.store.UpdateMissionPlan(ctx, planID, cop.PlanUpdate{Status: &status}))

	err = p.HandleMessage(ctx, bus.Message{
		Type:    TypeDroneStatusAlert,
		Content: DroneStatusAlertPayload{DroneID: "UAV-001", AlertType: "low_fuel", FuelPercent: 12},
	})
	require.NoError(t, err)

	plans, err := r.store.MissionPlans(ctx, "active")
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, []string{"UAV-002"}, plans[0].AssignedDrones)
}

func TestMissionPlanner_CreateInitialPlan(t *testing.T) {
	r := newTestRig(t)
	p, err := NewMissionPlanner(r.roles, r.bus, r.store, r.model)
	require.NoError(t, err)
	r.bus.Register(authority.RoleCollectionManager)
	ctx := context.Background()

	require.NoError(t, p.CreateInitialPlan(ctx))

	plans, err := r.store.MissionPlans(ctx, "active")
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "Initial Surveillance Pattern", plans[0].Name)
	assert.Equal(t, []string{"UAV-001", "UAV-002", "UAV-003"}, plans[0].AssignedDrones)

	msg := mustReceive(t, r.bus, authority.RoleCollectionManager)
	assert.Equal(t, TypeNewMissionPlan, msg.Type)
}

func TestCollectionManager_ExecutesPlan(t *testing.T) {
	r := newTestRig(t)
	m, err := NewCollectionManager(r.roles, r.bus, r.store, r.model)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, r.store.UpsertDrone(ctx, cop.Drone{
		ID: "UAV-001", Lat: 34.05, Lon: -118.24, FuelPercent: 90, SensorStatus: "operational",
	}))

	r.model.Script(`{
		"execution_plan": [
			{
				"drone_id": "UAV-001",
				"can_execute": true,
				"reasoning": "full fuel, sensors operational",
				"task_type": "surveillance",
				"target_area": "Area Delta",
				"priority": 7,
				"command": {"command_type": "navigate", "parameters": {"target_lat": 34.1, "target_lon": -118.3}}
			},
			{
				"drone_id": "UAV-999",
				"can_execute": true,
				"reasoning": "phantom drone",
				"task_type": "surveillance"
			}
		],
		"summary": "Deploying UAV-001 to Area Delta"
	}`)

	err = m.HandleMessage(ctx, bus.Message{
		Type: TypeNewMissionPlan,
		Content: NewMissionPlanPayload{
			PlanID:   1,
			PlanName: "Gap Response North",
			DroneAssignments: []DroneAssignment{
				{DroneID: "UAV-001", TargetArea: "Area Delta", TaskType: "surveillance", Priority: 8},
			},
		},
	})
	require.NoError(t, err)

	// The phantom drone is skipped; only the real assignment becomes a task.
	tasks, err := r.store.CollectionTasks(ctx, cop.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "UAV-001", tasks[0].DroneID)
	assert.Equal(t, "Area Delta", tasks[0].TargetArea)
	assert.Equal(t, 7, tasks[0].Priority)
	assert.Equal(t, "pending", tasks[0].Status)
	assert.Equal(t, authority.RoleCollectionManager, tasks[0].CreatedBy)

	events, err := r.store.EventLog(ctx, 20, authority.RoleCollectionManager)
	require.NoError(t, err)
	var complete bool
	for _, e := range events {
		if e.EventType == "execution_complete" {
			complete = true
			assert.Equal(t, 1.0, e.Data["tasks_created"])
		}
	}
	assert.True(t, complete)
}

func TestCollectionManager_SkipsUnexecutableAssignments(t *testing.T) {
	r := newTestRig(t)
	m, err := NewCollectionManager(r.roles, r.bus, r.store, r.model)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, r.store.UpsertDrone(ctx, cop.Drone{ID: "UAV-003", FuelPercent: 8}))

	r.model.Script(`{
		"execution_plan": [
			{"drone_id": "UAV-003", "can_execute": false, "reasoning": "insufficient fuel"}
		],
		"summary": "No executable assignments"
	}`)

	err = m.HandleMessage(ctx, bus.Message{
		Type:    TypeNewMissionPlan,
		Content: NewMissionPlanPayload{PlanID: 1, PlanName: "Fuel Check"},
	})
	require.NoError(t, err)

	tasks, err := r.store.CollectionTasks(ctx, cop.TaskFilter{})
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestCollectionManager_MonitorAndUpdate(t *testing.T) {
	r := newTestRig(t)
	m, err := NewCollectionManager(r.roles, r.bus, r.store, r.model)
	require.NoError(t, err)
	r.bus.Register(authority.RoleMissionPlanner)
	ctx := context.Background()

	require.NoError(t, r.store.UpsertDrone(ctx, cop.Drone{ID: "UAV-001", FuelPercent: 10}))
	require.NoError(t, r.store.UpsertDrone(ctx, cop.Drone{ID: "UAV-002", FuelPercent: 80}))

	require.NoError(t, m.MonitorAndUpdate(ctx))

	msg := mustReceive(t, r.bus, authority.RoleMissionPlanner)
	assert.Equal(t, TypeDroneStatusAlert, msg.Type)

	alert, err := decodePayload[DroneStatusAlertPayload](msg)
	require.NoError(t, err)
	assert.Equal(t, "UAV-001", alert.DroneID)
	assert.Equal(t, "low_fuel", alert.AlertType)

	// The healthy drone raises no alert.
	assertNoMessage(t, r.bus, authority.RoleMissionPlanner)

	events, err := r.store.EventLog(ctx, 10, authority.RoleCollectionManager)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "low_fuel_alert", events[0].EventType)
}

func TestCollectionManager_UpdateTaskStatus(t *testing.T) {
	r := newTestRig(t)
	m, err := NewCollectionManager(r.roles, r.bus, r.store, r.model)
	require.NoError(t, err)
	ctx := context.Background()

	taskID, err := r.store.CreateCollectionTask(ctx, cop.CollectionTask{
		DroneID: "UAV-001", TaskType: "surveillance", TargetArea: "Area Alpha",
		Priority: 5, CreatedBy: authority.RoleCollectionManager,
	})
	require.NoError(t, err)

	require.NoError(t, m.UpdateTaskStatus(ctx, taskID, "completed"))

	tasks, err := r.store.CollectionTasks(ctx, cop.TaskFilter{Status: "completed"})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, taskID, tasks[0].ID)
}
