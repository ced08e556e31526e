package cop

// Schema creates the Common Operating Picture tables. Applied on every
// open; all statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS drones (
	id TEXT PRIMARY KEY,
	lat REAL,
	lon REAL,
	altitude REAL,
	fuel_percent REAL,
	sensor_status TEXT,
	current_task TEXT,
	last_updated REAL
);

CREATE TABLE IF NOT EXISTS entities (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	entity_type TEXT,
	lat REAL,
	lon REAL,
	confidence REAL,
	detected_by TEXT,
	detected_at REAL,
	description TEXT
);

CREATE TABLE IF NOT EXISTS collection_tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	drone_id TEXT,
	task_type TEXT,
	target_area TEXT,
	priority INTEGER,
	status TEXT,
	created_by TEXT,
	created_at REAL,
	FOREIGN KEY(drone_id) REFERENCES drones(id)
);

CREATE TABLE IF NOT EXISTS mission_plans (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	plan_name TEXT,
	objectives TEXT,
	assigned_drones TEXT,
	status TEXT,
	created_by TEXT,
	created_at REAL,
	updated_at REAL
);

CREATE TABLE IF NOT EXISTS message_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp REAL,
	sender TEXT,
	recipient TEXT,
	message_type TEXT,
	content TEXT,
	metadata TEXT
);

CREATE TABLE IF NOT EXISTS event_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp REAL,
	agent_role TEXT,
	event_type TEXT,
	description TEXT,
	data TEXT
);
`
