package agent

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentsquad/authority"
	"github.com/hupe1980/agentsquad/bus"
	"github.com/hupe1980/agentsquad/cop"
	"github.com/hupe1980/agentsquad/model"
	"github.com/hupe1980/agentsquad/sim"
)

const collectionManagerSystemPrompt = `You are Agent 4: Collection Manager in a multi-agent intelligence system.

Your role and authorities:
- READ: All COP data, plans, drone status
- WRITE: Collection tasks, drone commands
- COMMAND: Drones (within mission parameters)

Your responsibilities:
1. Receive mission plans from Mission Planner
2. Evaluate drone capabilities and status
3. Create collection tasks for drones
4. Issue commands to drones to execute tasks
5. Monitor mission execution

Decision-making criteria:
- Verify drone has sufficient fuel for mission
- Ensure drone capabilities match task requirements
- Issue clear, executable commands
- Stay within mission plan parameters
- Monitor and log all drone commands

When you receive a mission plan:
1. Evaluate each drone assignment
2. Check drone status and capabilities
3. Create collection tasks
4. Issue drone commands
5. Update COP with task assignments
6. Explain your execution decisions

Respond in JSON format with your execution decisions.`

const collectionManagerPersonality = `You are Skywatch, the squad's drone commander. You are hands-on and a
little protective of your birds, always talking about them like they're part of the
crew. Nothing makes you happier than a clean launch and a full fuel tank.`

// lowFuelThreshold is the fuel percentage below which a drone triggers a
// status alert during monitoring.
const lowFuelThreshold = 20.0

// CollectionManager is Agent 4: it executes mission plans by creating
// collection tasks and commanding drones, and monitors drone health.
type CollectionManager struct {
	*BaseAgent
}

// NewCollectionManager builds the collection manager agent.
func NewCollectionManager(roles *authority.RoleMap, b *bus.Bus, store COP, m model.Model, optFns ...func(o *Options)) (*CollectionManager, error) {
	base, err := NewBaseAgent(Config{
		Role:              authority.RoleCollectionManager,
		Callsign:          "Skywatch",
		SystemPrompt:      collectionManagerSystemPrompt,
		CasualPersonality: collectionManagerPersonality,
	}, roles, b, store, m, optFns...)
	if err != nil {
		return nil, err
	}
	return &CollectionManager{BaseAgent: base}, nil
}

// Start launches the agent's run loop.
func (m *CollectionManager) Start(ctx context.Context) {
	m.BaseAgent.Start(ctx, m)
}

// HandleMessage routes messages to the manager's handlers.
func (m *CollectionManager) HandleMessage(ctx context.Context, msg bus.Message) error {
	switch msg.Type {
	case TypeNewMissionPlan:
		return m.executeMissionPlan(ctx, msg)
	case TypeCasualChat:
		return m.handleCasualChat(msg)
	case TypeMissionDebrief:
		return m.handleMissionDebrief(ctx, msg,
			"You just finished commanding drones and executing mission plans during the operation.")
	default:
		m.logger.Warn("collection manager received unknown message type", "message_type", msg.Type)
		return nil
	}
}

type executionItem struct {
	DroneID    string           `json:"drone_id"`
	CanExecute bool             `json:"can_execute"`
	Reasoning  string           `json:"reasoning"`
	TaskType   string           `json:"task_type"`
	TargetArea string           `json:"target_area"`
	Priority   int              `json:"priority"`
	Command    sim.DroneCommand `json:"command"`
}

type executionDecision struct {
	ExecutionPlan []executionItem `json:"execution_plan"`
	Summary       string          `json:"summary"`
}

func (m *CollectionManager) executeMissionPlan(ctx context.Context, msg bus.Message) error {
	data, err := decodePayload[NewMissionPlanPayload](msg)
	if err != nil {
		return err
	}
	planName := data.PlanName
	if planName == "" {
		planName = "Unknown Plan"
	}

	m.logger.Info("executing mission plan",
		"plan_id", data.PlanID, "plan_name", planName, "assignments", len(data.DroneAssignments))
	m.LogEvent(ctx, "execution_start",
		fmt.Sprintf("Started executing mission plan #%d", data.PlanID),
		map[string]any{"plan_id": data.PlanID, "assignments": len(data.DroneAssignments)})

	drones, err := m.cop.Drones(ctx)
	if err != nil {
		return err
	}
	droneStatus := make(map[string]cop.Drone, len(drones))
	for _, d := range drones {
		droneStatus[d.ID] = d
	}

	summary, err := m.COPSummary(ctx)
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
			"id":            d.ID,
			"position":      map[string]any{"lat": d.Lat, "lon": d.Lon},
			"fuel":          d.FuelPercent,
			"sensor_status": d.SensorStatus,
			"current_task":  task,
		})
	}

	objectives := data.Objectives
	if objectives == "" {
		objectives = "Not specified"
	}

	prompt := fmt.Sprintf(`Evaluate this mission plan and determine execution actions:

MISSION PLAN: %s (#%d)
OBJECTIVES: %s

DRONE ASSIGNMENTS:
%s

CURRENT DRONE STATUS:
%s

MESSAGE FROM MISSION PLANNER:
%s

COP STATE:
%s

For each drone assignment:
1. Can the drone execute this task? (check fuel, status, capabilities)
2. Should a collection task be created?
3. What command should be sent to the drone?

Respond in JSON format:
{
    "execution_plan": [
        {
            "drone_id": "...",
            "can_execute": true/false,
            "reasoning": "why/why not",
            "task_type": "surveillance/reconnaissance/tracking",
            "target_area": "description",
            "priority": 1-10,
            "command": {
                "command_type": "navigate/survey/track",
                "parameters": {"target_lat": ..., "target_lon": ..., "altitude": ...}
            }
        }
    ],
    "summary": "execution summary"
}`, planName, data.PlanID, objectives, mustJSON(data.DroneAssignments),
		mustJSON(droneBriefs), data.Message, summary)

	response, err := m.CallLLM(ctx, prompt)
	if err != nil {
		return err
	}

	decision, err := decodeDecision[executionDecision](response)
	if err != nil {
		return err
	}

	tasksCreated := 0
	commandsSent := 0

	for _, item := range decision.ExecutionPlan {
		drone, known := droneStatus[item.DroneID]
		if item.DroneID == "" || !known {
			m.logger.Warn("invalid drone id in execution plan", "drone_id", item.DroneID)
			continue
		}

		if !item.CanExecute {
			m.logger.Info("cannot execute task", "drone_id", item.DroneID, "reasoning", item.Reasoning)
			continue
		}

		taskType := item.TaskType
		if taskType == "" {
			taskType = "surveillance"
		}
		targetArea := item.TargetArea
		if targetArea == "" {
			targetArea = "Unknown"
		}
		priority := item.Priority
		if priority == 0 {
			priority = 5
		}

		taskID, err := m.createCollectionTask(ctx, item.DroneID, taskType, targetArea, priority)
		if err != nil {
			return err
		}
		tasksCreated++

		sent, err := m.sendDroneCommand(ctx, item.DroneID, item.Command)
		if err != nil {
			return err
		}
		if sent {
			commandsSent++

			// Record the assignment on the drone's COP entry.
			drone.CurrentTask = fmt.Sprintf("Task #%d: %s", taskID, taskType)
			if err := m.cop.UpsertDrone(ctx, drone); err != nil {
				return err
			}
		}

		m.logger.Info("assigned task",
			"task_id", taskID, "drone_id", item.DroneID, "task_type", taskType, "target_area", targetArea)
	}

	m.logger.Info("execution complete", "tasks_created", tasksCreated, "commands_sent", commandsSent)

	m.LogEvent(ctx, "execution_complete",
		fmt.Sprintf("Completed executing mission plan #%d", data.PlanID),
		map[string]any{
			"plan_id":       data.PlanID,
			"tasks_created": tasksCreated,
			"commands_sent": commandsSent,
			"summary":       decision.Summary,
		})

	return nil
}

// createCollectionTask writes a collection task under the
// create-collection-tasks authority.
func (m *CollectionManager) createCollectionTask(ctx context.Context, droneID, taskType, targetArea string, priority int) (int64, error) {
	return authority.Guarded(m.Guard(), authority.CreateCollectionTasks, func() (int64, error) {
		taskID, err := m.cop.CreateCollectionTask(ctx, cop.CollectionTask{
			DroneID:    droneID,
			TaskType:   taskType,
			TargetArea: targetArea,
			Priority:   priority,
			CreatedBy:  m.Role(),
		})
		if err != nil {
			return 0, err
		}
		m.logger.Debug("collection task created",
			"task_id", taskID, "drone_id", droneID, "task_type", taskType, "target_area", targetArea)
		return taskID, nil
	})
}

// sendDroneCommand transmits a command under the command-drones
// authority. A false result means the uplink rejected or dropped the
// command.
func (m *CollectionManager) sendDroneCommand(ctx context.Context, droneID string, command sim.DroneCommand) (bool, error) {
	return authority.Guarded(m.Guard(), authority.CommandDrones, func() (bool, error) {
		success := sim.SendDroneCommand(droneID, command)
		if !success {
			m.logger.Warn("failed to send drone command", "drone_id", droneID, "command_type", command.CommandType)
			return false, nil
		}

		m.logger.Info("drone command sent", "drone_id", droneID, "command_type", command.CommandType)
		m.LogEvent(ctx, "drone_command",
			fmt.Sprintf("Commanded %s: %s", droneID, command.CommandType),
			map[string]any{"drone_id": droneID, "command": command})

		return true, nil
	})
}

// MonitorAndUpdate checks drone health and pending tasks, raising a
// drone_status_alert to the mission planner for any low fuel drone. Call
// it periodically during operations.
func (m *CollectionManager) MonitorAndUpdate(ctx context.Context) error {
	m.logger.Info("monitoring drone and task status")

	drones, err := m.cop.Drones(ctx)
	if err != nil {
		return err
	}
	tasks, err := m.cop.CollectionTasks(ctx, cop.TaskFilter{Status: "pending"})
	if err != nil {
		return err
	}

	for _, d := range drones {
		if d.FuelPercent >= lowFuelThreshold {
			continue
		}

		m.logger.Warn("low fuel alert", "drone_id", d.ID, "fuel_percent", d.FuelPercent)
		m.LogEvent(ctx, "low_fuel_alert",
			fmt.Sprintf("Drone %s has low fuel", d.ID),
			map[string]any{"drone_id": d.ID, "fuel_percent": d.FuelPercent})

		m.SendMessage(authority.RoleMissionPlanner, TypeDroneStatusAlert, DroneStatusAlertPayload{
			DroneID:     d.ID,
			AlertType:   "low_fuel",
			FuelPercent: d.FuelPercent,
		}, nil)
	}

	m.logger.Info("monitoring pending tasks", "count", len(tasks))

	return nil
}

// UpdateTaskStatus transitions a collection task and records the change
// in the event log.
func (m *CollectionManager) UpdateTaskStatus(ctx context.Context, taskID int64, status string) error {
	if err := m.cop.UpdateTaskStatus(ctx, taskID, status); err != nil {
		return err
	}

	m.logger.Info("task status updated", "task_id", taskID, "status", status)
	m.LogEvent(ctx, "task_status_update",
		fmt.Sprintf("Updated task #%d to %s", taskID, status),
		map[string]any{"task_id": taskID, "status": status})

	return nil
}
