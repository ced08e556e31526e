package cop

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hupe1980/agentsquad/logging"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = fmt.Errorf("not found")
)

// Options configures a Store.
type Options struct {
	// Logger receives store diagnostics.
	Logger logging.Logger
}

// Store manages the Common Operating Picture in SQLite: drone telemetry,
// detected entities, collection tasks, mission plans and the append-only
// message/event audit trail. All methods are safe for concurrent use; the
// driver serializes writes via the busy timeout.
type Store struct {
	db     *sql.DB
	logger logging.Logger
}

// Open opens (or creates) the COP database at dbPath and applies the
// schema. Use ":memory:" for an ephemeral in-process database.
func Open(dbPath string, optFns ...func(o *Options)) (*Store, error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	// Foreign keys stay declarative only: tasks and plans may reference
	// drones before their status rows arrive.
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open cop db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	opts.Logger.Info("cop store initialized", "db_path", dbPath)
	return &Store{db: db, logger: opts.Logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func now() float64 { return float64(time.Now().UnixNano()) / 1e9 }

// UpsertDrone inserts or updates drone status. LastUpdated is always set
// to the current time.
func (s *Store) UpsertDrone(ctx context.Context, d Drone) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO drones (id, lat, lon, altitude, fuel_percent, sensor_status, current_task, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			lat=excluded.lat,
			lon=excluded.lon,
			altitude=excluded.altitude,
			fuel_percent=excluded.fuel_percent,
			sensor_status=excluded.sensor_status,
			current_task=excluded.current_task,
			last_updated=excluded.last_updated`,
		d.ID, d.Lat, d.Lon, d.Altitude, d.FuelPercent, d.SensorStatus, nullString(d.CurrentTask), now())
	if err != nil {
		return fmt.Errorf("failed to upsert drone %s: %w", d.ID, err)
	}
	s.logger.Debug("updated drone", "drone_id", d.ID)
	return nil
}

// Drone returns a drone by ID or ErrNotFound.
func (s *Store) Drone(ctx context.Context, droneID string) (*Drone, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, lat, lon, altitude, fuel_percent, sensor_status, current_task, last_updated
		FROM drones WHERE id = ?`, droneID)

	d, err := scanDrone(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("drone %s: %w", droneID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get drone %s: %w", droneID, err)
	}
	return d, nil
}

// Drones returns the status of all drones.
func (s *Store) Drones(ctx context.Context) ([]Drone, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, lat, lon, altitude, fuel_percent, sensor_status, current_task, last_updated
		FROM drones ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list drones: %w", err)
	}
	defer rows.Close()

	var out []Drone
	for rows.Next() {
		d, err := scanDrone(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan drone: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDrone(row rowScanner) (*Drone, error) {
	var d Drone
	var task sql.NullString
	if err := row.Scan(&d.ID, &d.Lat, &d.Lon, &d.Altitude, &d.FuelPercent, &d.SensorStatus, &task, &d.LastUpdated); err != nil {
		return nil, err
	}
	d.CurrentTask = task.String
	return &d, nil
}

// AddEntity records a detected entity and returns its ID.
func (s *Store) AddEntity(ctx context.Context, e Entity) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO entities (entity_type, lat, lon, confidence, detected_by, detected_at, description)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Type, e.Lat, e.Lon, e.Confidence, e.DetectedBy, now(), nullString(e.Description))
	if err != nil {
		return 0, fmt.Errorf("failed to add entity: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get entity id: %w", err)
	}
	s.logger.Debug("added entity", "entity_id", id, "entity_type", e.Type)
	return id, nil
}

// Entities returns entities matching the filter.
func (s *Store) Entities(ctx context.Context, filter EntityFilter) ([]Entity, error) {
	query := `
		SELECT id, entity_type, lat, lon, confidence, detected_by, detected_at, description
		FROM entities WHERE confidence >= ?`
	args := []any{filter.MinConfidence}
	if filter.Type != "" {
		query += " AND entity_type = ?"
		args = append(args, filter.Type)
	}
	query += " ORDER BY detected_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	defer rows.Close()

	var out []Entity
	for rows.Next() {
		var e Entity
		var desc sql.NullString
		if err := rows.Scan(&e.ID, &e.Type, &e.Lat, &e.Lon, &e.Confidence, &e.DetectedBy, &e.DetectedAt, &desc); err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		e.Description = desc.String
		out = append(out, e)
	}
	return out, rows.Err()
}

// CreateCollectionTask creates a pending collection task and returns its ID.
func (s *Store) CreateCollectionTask(ctx context.Context, t CollectionTask) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO collection_tasks (drone_id, task_type, target_area, priority, status, created_by, created_at)
		VALUES (?, ?, ?, ?, 'pending', ?, ?)`,
		t.DroneID, t.TaskType, t.TargetArea, t.Priority, t.CreatedBy, now())
	if err != nil {
		return 0, fmt.Errorf("failed to create collection task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get task id: %w", err)
	}
	s.logger.Debug("created collection task", "task_id", id, "drone_id", t.DroneID)
	return id, nil
}

// UpdateTaskStatus transitions a collection task to a new status.
func (s *Store) UpdateTaskStatus(ctx context.Context, taskID int64, status string) error {
	if _, err := s.db.ExecContext(ctx,
		"UPDATE collection_tasks SET status = ? WHERE id = ?", status, taskID); err != nil {
		return fmt.Errorf("failed to update task %d: %w", taskID, err)
	}
	s.logger.Debug("updated task status", "task_id", taskID, "status", status)
	return nil
}

// CollectionTasks returns tasks matching the filter.
func (s *Store) CollectionTasks(ctx context.Context, filter TaskFilter) ([]CollectionTask, error) {
	query := `
		SELECT id, drone_id, task_type, target_area, priority, status, created_by, created_at
		FROM collection_tasks WHERE 1=1`
	var args []any
	if filter.DroneID != "" {
		query += " AND drone_id = ?"
		args = append(args, filter.DroneID)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list collection tasks: %w", err)
	}
	defer rows.Close()

	var out []CollectionTask
	for rows.Next() {
		var t CollectionTask
		if err := rows.Scan(&t.ID, &t.DroneID, &t.TaskType, &t.TargetArea, &t.Priority, &t.Status, &t.CreatedBy, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan collection task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CreateMissionPlan creates a draft mission plan and returns its ID.
func (s *Store) CreateMissionPlan(ctx context.Context, name, objectives string, assignedDrones []string, createdBy string) (int64, error) {
	dronesJSON, err := json.Marshal(assignedDrones)
	if err != nil {
		return 0, fmt.Errorf("failed to encode drone list: %w", err)
	}
	ts := now()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO mission_plans (plan_name, objectives, assigned_drones, status, created_by, created_at, updated_at)
		VALUES (?, ?, ?, 'draft', ?, ?, ?)`,
		name, objectives, string(dronesJSON), createdBy, ts, ts)
	if err != nil {
		return 0, fmt.Errorf("failed to create mission plan: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get plan id: %w", err)
	}
	s.logger.Debug("created mission plan", "plan_id", id, "plan_name", name)
	return id, nil
}

// UpdateMissionPlan applies the non-nil fields of the update. UpdatedAt is
// refreshed whenever any field changes.
func (s *Store) UpdateMissionPlan(ctx context.Context, planID int64, update PlanUpdate) error {
	var sets []string
	var args []any

	if update.Objectives != nil {
		sets = append(sets, "objectives = ?")
		args = append(args, *update.Objectives)
	}
	if update.AssignedDrones != nil {
		dronesJSON, err := json.Marshal(update.AssignedDrones)
		if err != nil {
			return fmt.Errorf("failed to encode drone list: %w", err)
		}
		sets = append(sets, "assigned_drones = ?")
		args = append(args, string(dronesJSON))
	}
	if update.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *update.Status)
	}
	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, now(), planID)

	query := fmt.Sprintf("UPDATE mission_plans SET %s WHERE id = ?", strings.Join(sets, ", "))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update mission plan %d: %w", planID, err)
	}
	s.logger.Debug("updated mission plan", "plan_id", planID)
	return nil
}

// MissionPlans returns plans, optionally filtered by status.
func (s *Store) MissionPlans(ctx context.Context, status string) ([]MissionPlan, error) {
	query := `
		SELECT id, plan_name, objectives, assigned_drones, status, created_by, created_at, updated_at
		FROM mission_plans`
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list mission plans: %w", err)
	}
	defer rows.Close()

	var out []MissionPlan
	for rows.Next() {
		var p MissionPlan
		var dronesJSON string
		if err := rows.Scan(&p.ID, &p.Name, &p.Objectives, &dronesJSON, &p.Status, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan mission plan: %w", err)
		}
		if err := json.Unmarshal([]byte(dronesJSON), &p.AssignedDrones); err != nil {
			return nil, fmt.Errorf("failed to decode drone list for plan %d: %w", p.ID, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// LogMessage appends one row to the message audit trail.
func (s *Store) LogMessage(ctx context.Context, sender, recipient, messageType, content string, metadata map[string]any) error {
	metadataJSON, err := encodeJSONMap(metadata)
	if err != nil {
		return fmt.Errorf("failed to encode message metadata: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO message_history (timestamp, sender, recipient, message_type, content, metadata)
		VALUES (?, ?, ?, ?, ?, ?)`,
		now(), sender, recipient, messageType, content, metadataJSON); err != nil {
		return fmt.Errorf("failed to log message: %w", err)
	}
	return nil
}

// LogEvent appends one row to the agent event log.
func (s *Store) LogEvent(ctx context.Context, agentRole, eventType, description string, data map[string]any) error {
	dataJSON, err := encodeJSONMap(data)
	if err != nil {
		return fmt.Errorf("failed to encode event data: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO event_log (timestamp, agent_role, event_type, description, data)
		VALUES (?, ?, ?, ?, ?)`,
		now(), agentRole, eventType, description, dataJSON); err != nil {
		return fmt.Errorf("failed to log event: %w", err)
	}
	return nil
}

// MessageHistory returns logged messages newest first, optionally filtered
// by sender.
func (s *Store) MessageHistory(ctx context.Context, limit int, sender string) ([]MessageRecord, error) {
	query := "SELECT id, timestamp, sender, recipient, message_type, content, metadata FROM message_history"
	var args []any
	if sender != "" {
		query += " WHERE sender = ?"
		args = append(args, sender)
	}
	query += " ORDER BY timestamp DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list message history: %w", err)
	}
	defer rows.Close()

	var out []MessageRecord
	for rows.Next() {
		var r MessageRecord
		var metadataJSON sql.NullString
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.Sender, &r.Recipient, &r.MessageType, &r.Content, &metadataJSON); err != nil {
			return nil, fmt.Errorf("failed to scan message record: %w", err)
		}
		if r.Metadata, err = decodeJSONMap(metadataJSON); err != nil {
			return nil, fmt.Errorf("failed to decode message metadata: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// EventLog returns logged events newest first, optionally filtered by
// agent role.
func (s *Store) EventLog(ctx context.Context, limit int, agentRole string) ([]EventRecord, error) {
	query := "SELECT id, timestamp, agent_role, event_type, description, data FROM event_log"
	var args []any
	if agentRole != "" {
		query += " WHERE agent_role = ?"
		args = append(args, agentRole)
	}
	query += " ORDER BY timestamp DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list event log: %w", err)
	}
	defer rows.Close()

	var out []EventRecord
	for rows.Next() {
		var r EventRecord
		var dataJSON sql.NullString
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.AgentRole, &r.EventType, &r.Description, &dataJSON); err != nil {
			return nil, fmt.Errorf("failed to scan event record: %w", err)
		}
		if r.Data, err = decodeJSONMap(dataJSON); err != nil {
			return nil, fmt.Errorf("failed to decode event data: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func encodeJSONMap(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func decodeJSONMap(ns sql.NullString) (map[string]any, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(ns.String), &m); err != nil {
		return nil, err
	}
	return m, nil
}
