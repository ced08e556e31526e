package cop

// Drone is the current status and telemetry of a single drone.
type Drone struct {
	ID           string  `json:"id"`
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	Altitude     float64 `json:"altitude"`
	FuelPercent  float64 `json:"fuel_percent"`
	SensorStatus string  `json:"sensor_status"`
	CurrentTask  string  `json:"current_task,omitempty"`
	LastUpdated  float64 `json:"last_updated"`
}

// Entity is a detected entity recorded in the COP.
type Entity struct {
	ID          int64   `json:"id"`
	Type        string  `json:"entity_type"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Confidence  float64 `json:"confidence"`
	DetectedBy  string  `json:"detected_by"`
	DetectedAt  float64 `json:"detected_at"`
	Description string  `json:"description,omitempty"`
}

// CollectionTask is an intelligence collection assignment for a drone.
type CollectionTask struct {
	ID         int64  `json:"id"`
	DroneID    string `json:"drone_id"`
	TaskType   string `json:"task_type"`
	TargetArea string `json:"target_area"`
	Priority   int    `json:"priority"`
	Status     string `json:"status"`
	CreatedBy  string `json:"created_by"`
	CreatedAt  float64 `json:"created_at"`
}

// MissionPlan groups objectives and drone assignments under a named plan.
type MissionPlan struct {
	ID             int64    `json:"id"`
	Name           string   `json:"plan_name"`
	Objectives     string   `json:"objectives"`
	AssignedDrones []string `json:"assigned_drones"`
	Status         string   `json:"status"`
	CreatedBy      string   `json:"created_by"`
	CreatedAt      float64  `json:"created_at"`
	UpdatedAt      float64  `json:"updated_at"`
}

// MessageRecord is one row of the append-only message audit trail.
type MessageRecord struct {
	ID          int64          `json:"id"`
	Timestamp   float64        `json:"timestamp"`
	Sender      string         `json:"sender"`
	Recipient   string         `json:"recipient"`
	MessageType string         `json:"message_type"`
	Content     string         `json:"content"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// EventRecord is one row of the append-only agent event log.
type EventRecord struct {
	ID          int64          `json:"id"`
	Timestamp   float64        `json:"timestamp"`
	AgentRole   string         `json:"agent_role"`
	EventType   string         `json:"event_type"`
	Description string         `json:"description"`
	Data        map[string]any `json:"data,omitempty"`
}

// EntityFilter narrows Entities queries.
type EntityFilter struct {
	Type          string
	MinConfidence float64
}

// TaskFilter narrows CollectionTasks queries.
type TaskFilter struct {
	DroneID string
	Status  string
}

// PlanUpdate carries the optional fields of a mission plan update. Nil
// fields are left unchanged.
type PlanUpdate struct {
	Objectives     *string
	AssignedDrones []string
	Status         *string
}
