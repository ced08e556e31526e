package authority

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRoleMap_Permissions(t *testing.T) {
	m := DefaultRoleMap()

	tests := []struct {
		role string
		want []Authority
	}{
		{RoleCollectionProcessor, []Authority{ReadSensorData, ReadIntel, WriteProcessedIntel}},
		{RoleIntelligenceAnalyst, []Authority{ReadCOP, WriteCOP}},
		{RoleMissionPlanner, []Authority{ReadCOP, ReadPlans, ReadDroneStatus, WritePlans, ModifyPlans}},
		{RoleCollectionManager, []Authority{ReadCOP, ReadPlans, ReadDroneStatus, WriteCollectionTasks, CreateCollectionTasks, CommandDrones}},
	}

	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			got, err := m.Authorities(tt.role)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, got.Slice())
		})
	}
}

func TestDefaultRoleMap_SeparationOfDuties(t *testing.T) {
	m := DefaultRoleMap()

	// The processor can never write the COP or command drones.
	assert.False(t, m.Has(RoleCollectionProcessor, WriteCOP))
	assert.False(t, m.Has(RoleCollectionProcessor, CommandDrones))

	// The analyst can never command drones or create tasks.
	assert.False(t, m.Has(RoleIntelligenceAnalyst, CommandDrones))
	assert.False(t, m.Has(RoleIntelligenceAnalyst, CreateCollectionTasks))

	// The planner plans but never commands.
	assert.True(t, m.Has(RoleMissionPlanner, WritePlans))
	assert.False(t, m.Has(RoleMissionPlanner, CommandDrones))

	// Only the manager commands drones.
	assert.True(t, m.Has(RoleCollectionManager, CommandDrones))
}

func TestRoleMap_UnknownRole(t *testing.T) {
	m := DefaultRoleMap()

	_, err := m.Authorities("saboteur")
	var unknown *UnknownRoleError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "saboteur", unknown.Role)

	// Has is a pure predicate: unknown roles yield false, never an error.
	assert.False(t, m.Has("saboteur", ReadCOP))
}

func TestRoleMap_AuthoritiesReturnsCopy(t *testing.T) {
	m := DefaultRoleMap()

	s1, err := m.Authorities(RoleIntelligenceAnalyst)
	require.NoError(t, err)
	s1[CommandDrones] = struct{}{}

	s2, err := m.Authorities(RoleIntelligenceAnalyst)
	require.NoError(t, err)
	assert.False(t, s2.Contains(CommandDrones), "mutating a returned set must not leak into the map")
	assert.False(t, m.Has(RoleIntelligenceAnalyst, CommandDrones))
}

func TestRoleMap_Roles(t *testing.T) {
	m := DefaultRoleMap()
	assert.Equal(t, []string{
		RoleCollectionManager,
		RoleCollectionProcessor,
		RoleIntelligenceAnalyst,
		RoleMissionPlanner,
	}, m.Roles())
}

func TestSet_Basics(t *testing.T) {
	s := NewSet(ReadCOP, WritePlans)
	assert.True(t, s.Contains(ReadCOP))
	assert.False(t, s.Contains(CommandDrones))

	c := s.Clone()
	c[CommandDrones] = struct{}{}
	assert.False(t, s.Contains(CommandDrones))

	assert.Len(t, s.Slice(), 2)
}
