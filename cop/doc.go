// Package cop persists the Common Operating Picture: the shared SQLite
// database holding drone telemetry, detected entities, collection tasks,
// mission plans and the append-only message/event audit trail that every
// agent writes to. The agent runtime only depends on the audit-log subset
// (LogMessage/LogEvent); the rest is domain CRUD used by the role agents
// and the report CLI.
package cop
