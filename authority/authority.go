package authority

import (
	"fmt"
	"sort"
)

// Authority is a discrete permission token gating a privileged operation.
// The string value is stable and safe to use in logs and configuration.
type Authority string

// All authorities recognized by the system.
const (
	// Read authorities.
	ReadSensorData  Authority = "read_sensor_data"
	ReadIntel       Authority = "read_intel"
	ReadCOP         Authority = "read_cop"
	ReadPlans       Authority = "read_plans"
	ReadDroneStatus Authority = "read_drone_status"

	// Write authorities.
	WriteProcessedIntel  Authority = "write_processed_intel"
	WriteCOP             Authority = "write_cop"
	WritePlans           Authority = "write_plans"
	WriteCollectionTasks Authority = "write_collection_tasks"

	// Command authorities.
	CommandDrones         Authority = "command_drones"
	CreateCollectionTasks Authority = "create_collection_tasks"
	ModifyPlans           Authority = "modify_plans"
)

// String returns the stable token for the authority.
func (a Authority) String() string { return string(a) }

// Role identifiers for the four built-in agent roles.
const (
	RoleCollectionProcessor = "collection_processor"
	RoleIntelligenceAnalyst = "intelligence_analyst"
	RoleMissionPlanner      = "mission_planner"
	RoleCollectionManager   = "collection_manager"
)

// Set is an unordered collection of authorities.
type Set map[Authority]struct{}

// NewSet builds a Set from the given authorities.
func NewSet(auths ...Authority) Set {
	s := make(Set, len(auths))
	for _, a := range auths {
		s[a] = struct{}{}
	}
	return s
}

// Contains reports whether the set holds the given authority.
func (s Set) Contains(a Authority) bool {
	_, ok := s[a]
	return ok
}

// Clone returns an independent copy of the set.
func (s Set) Clone() Set {
	c := make(Set, len(s))
	for a := range s {
		c[a] = struct{}{}
	}
	return c
}

// Slice returns the authorities in sorted order for stable output.
func (s Set) Slice() []Authority {
	out := make([]Authority, 0, len(s))
	for a := range s {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// UnknownRoleError is returned when a role is absent from the role map.
type UnknownRoleError struct {
	Role string
}

// Error implements the error interface.
func (e *UnknownRoleError) Error() string {
	return fmt.Sprintf("unknown role: %s", e.Role)
}

// UnauthorizedError is returned when a role attempts an operation without
// the required authority. The guarded operation body never runs.
type UnauthorizedError struct {
	Role     string
	Required Authority
}

// Error implements the error interface.
func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("role %q lacks required authority: %s", e.Role, e.Required)
}

// RoleMap is an immutable role to authority-set table. It is constructed
// explicitly and passed by reference to every component that needs it, so
// tests can substitute alternate maps. It must not be mutated after
// construction; all accessors copy.
type RoleMap struct {
	roles map[string]Set
}

// NewRoleMap builds a RoleMap from role name to authority list.
func NewRoleMap(roles map[string][]Authority) *RoleMap {
	m := &RoleMap{roles: make(map[string]Set, len(roles))}
	for role, auths := range roles {
		m.roles[role] = NewSet(auths...)
	}
	return m
}

// DefaultRoleMap returns the built-in four-role permission table.
func DefaultRoleMap() *RoleMap {
	return NewRoleMap(map[string][]Authority{
		RoleCollectionProcessor: {
			ReadSensorData,
			ReadIntel,
			WriteProcessedIntel,
		},
		RoleIntelligenceAnalyst: {
			ReadCOP,
			WriteCOP,
		},
		RoleMissionPlanner: {
			ReadCOP,
			ReadPlans,
			ReadDroneStatus,
			WritePlans,
			ModifyPlans,
		},
		RoleCollectionManager: {
			ReadCOP,
			ReadPlans,
			ReadDroneStatus,
			WriteCollectionTasks,
			CreateCollectionTasks,
			CommandDrones,
		},
	})
}

// Authorities returns a copy of the authority set granted to a role. It
// fails with UnknownRoleError for roles absent from the map, which lets
// agent constructors reject misconfigured roles before anything starts.
func (m *RoleMap) Authorities(role string) (Set, error) {
	s, ok := m.roles[role]
	if !ok {
		return nil, &UnknownRoleError{Role: role}
	}
	return s.Clone(), nil
}

// Has reports whether a role holds a specific authority. It is a pure
// predicate: unknown roles yield false, never an error.
func (m *RoleMap) Has(role string, a Authority) bool {
	s, ok := m.roles[role]
	if !ok {
		return false
	}
	return s.Contains(a)
}

// Roles returns the sorted role names defined in the map.
func (m *RoleMap) Roles() []string {
	out := make([]string, 0, len(m.roles))
	for r := range m.roles {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}
