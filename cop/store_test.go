package cop

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_DroneUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertDrone(ctx, Drone{
		ID: "UAV-001", Lat: 34.05, Lon: -118.24, Altitude: 450,
		FuelPercent: 85.5, SensorStatus: "operational", CurrentTask: "Surveilling Area Alpha",
	}))

	d, err := s.Drone(ctx, "UAV-001")
	require.NoError(t, err)
	assert.Equal(t, 85.5, d.FuelPercent)
	assert.Equal(t, "Surveilling Area Alpha", d.CurrentTask)
	assert.Greater(t, d.LastUpdated, 0.0)

	// Upsert replaces the existing row.
	require.NoError(t, s.UpsertDrone(ctx, Drone{
		ID: "UAV-001", Lat: 34.06, Lon: -118.25, Altitude: 500,
		FuelPercent: 60, SensorStatus: "degraded",
	}))

	d, err = s.Drone(ctx, "UAV-001")
	require.NoError(t, err)
	assert.Equal(t, 60.0, d.FuelPercent)
	assert.Equal(t, "degraded", d.SensorStatus)
	assert.Empty(t, d.CurrentTask)

	drones, err := s.Drones(ctx)
	require.NoError(t, err)
	assert.Len(t, drones, 1)
}

func TestStore_DroneNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Drone(context.Background(), "UAV-404")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Entities(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id1, err := s.AddEntity(ctx, Entity{
		Type: "vehicle", Lat: 34.05, Lon: -118.24, Confidence: 0.9,
		DetectedBy: "UAV-001", Description: "Mobile unit",
	})
	require.NoError(t, err)
	assert.Positive(t, id1)

	_, err = s.AddEntity(ctx, Entity{
		Type: "structure", Lat: 34.06, Lon: -118.25, Confidence: 0.6, DetectedBy: "UAV-002",
	})
	require.NoError(t, err)

	all, err := s.Entities(ctx, EntityFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	confident, err := s.Entities(ctx, EntityFilter{MinConfidence: 0.7})
	require.NoError(t, err)
	require.Len(t, confident, 1)
	assert.Equal(t, "vehicle", confident[0].Type)
	assert.Equal(t, "Mobile unit", confident[0].Description)

	vehicles, err := s.Entities(ctx, EntityFilter{Type: "vehicle"})
	require.NoError(t, err)
	assert.Len(t, vehicles, 1)
}

func TestStore_CollectionTasks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateCollectionTask(ctx, CollectionTask{
		DroneID: "UAV-001", TaskType: "surveillance", TargetArea: "Area Delta",
		Priority: 8, CreatedBy: "collection_manager",
	})
	require.NoError(t, err)

	tasks, err := s.CollectionTasks(ctx, TaskFilter{})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "pending", tasks[0].Status, "new tasks start pending")
	assert.Equal(t, 8, tasks[0].Priority)

	require.NoError(t, s.UpdateTaskStatus(ctx, id, "active"))

	pending, err := s.CollectionTasks(ctx, TaskFilter{Status: "pending"})
	require.NoError(t, err)
	assert.Empty(t, pending)

	byDrone, err := s.CollectionTasks(ctx, TaskFilter{DroneID: "UAV-001"})
	require.NoError(t, err)
	require.Len(t, byDrone, 1)
	assert.Equal(t, "active", byDrone[0].Status)
}

func TestStore_TaskForUnknownDrone(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Tasks may arrive before the drone's status row does; the drone
	// reference is not enforced at write time.
	id, err := s.CreateCollectionTask(ctx, CollectionTask{
		DroneID: "UAV-007", TaskType: "surveillance", TargetArea: "Area Echo",
		Priority: 5, CreatedBy: "collection_manager",
	})
	require.NoError(t, err)
	assert.Positive(t, id)

	require.NoError(t, s.UpdateTaskStatus(ctx, id, "active"))

	tasks, err := s.CollectionTasks(ctx, TaskFilter{DroneID: "UAV-007"})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "active", tasks[0].Status)
}

func TestStore_MissionPlans(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateMissionPlan(ctx,
		"Coverage Gap Response", "Cover Area Delta",
		[]string{"UAV-001", "UAV-002"}, "mission_planner")
	require.NoError(t, err)

	plans, err := s.MissionPlans(ctx, "")
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "draft", plans[0].Status, "new plans start as drafts")
	assert.Equal(t, []string{"UAV-001", "UAV-002"}, plans[0].AssignedDrones)

	status := "active"
	objectives := "Cover Areas Delta and Echo"
	require.NoError(t, s.UpdateMissionPlan(ctx, id, PlanUpdate{
		Status:         &status,
		Objectives:     &objectives,
		AssignedDrones: []string{"UAV-001"},
	}))

	active, err := s.MissionPlans(ctx, "active")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, objectives, active[0].Objectives)
	assert.Equal(t, []string{"UAV-001"}, active[0].AssignedDrones)
	assert.GreaterOrEqual(t, active[0].UpdatedAt, active[0].CreatedAt)

	// Empty update is a no-op.
	require.NoError(t, s.UpdateMissionPlan(ctx, id, PlanUpdate{}))
}

func TestStore_MessageAudit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.LogMessage(ctx, "collection_processor", "intelligence_analyst",
		"processed_intelligence", `{"source":"UAV-002"}`, map[string]any{"hop": 1.0}))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, s.LogMessage(ctx, "intelligence_analyst", "mission_planner",
		"coverage_assessment", "{}", nil))

	records, err := s.MessageHistory(ctx, 10, "")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "coverage_assessment", records[0].MessageType, "newest first")
	assert.Equal(t, map[string]any{"hop": 1.0}, records[1].Metadata)

	bySender, err := s.MessageHistory(ctx, 10, "collection_processor")
	require.NoError(t, err)
	require.Len(t, bySender, 1)
	assert.Equal(t, "processed_intelligence", bySender[0].MessageType)

	limited, err := s.MessageHistory(ctx, 1, "")
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestStore_EventAudit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.LogEvent(ctx, "collection_manager", "drone_command",
		"Commanded UAV-001: navigate", map[string]any{"drone_id": "UAV-001"}))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, s.LogEvent(ctx, "mission_planner", "planning_complete",
		"Completed mission planning", nil))

	events, err := s.EventLog(ctx, 10, "")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "planning_complete", events[0].EventType, "newest first")

	byRole, err := s.EventLog(ctx, 10, "collection_manager")
	require.NoError(t, err)
	require.Len(t, byRole, 1)
	assert.Equal(t, "UAV-001", byRole[0].Data["drone_id"])
	assert.Nil(t, events[0].Data)
}
