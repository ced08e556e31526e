package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeSensorData(t *testing.T) {
	data := SensorData{
		Type: "visual",
		Detections: []Detection{
			{Type: "vehicle", Position: Position{Lat: 34.1, Lon: -118.3}},
			{Type: "structure", Position: Position{Lat: 34.2, Lon: -118.4}},
		},
	}

	analysis := AnalyzeSensorData(data)
	require.Len(t, analysis.Entities, 2)
	assert.Equal(t, "visual", analysis.SensorType)

	for _, e := range analysis.Entities {
		assert.GreaterOrEqual(t, e.Confidence, 0.6)
		assert.LessOrEqual(t, e.Confidence, 0.95)
	}
	assert.GreaterOrEqual(t, analysis.Quality, 0.7)
	assert.LessOrEqual(t, analysis.Quality, 1.0)
}

func TestEstimateDronePerformance(t *testing.T) {
	est := EstimateDronePerformance("UAV-001", Mission{
		TargetPosition: Position{Lat: 34.1, Lon: -118.3},
		TaskType:       "surveillance",
		Duration:       60,
	})

	assert.Equal(t, "UAV-001", est.DroneID)
	assert.GreaterOrEqual(t, est.DistanceKm, 5.0)
	assert.LessOrEqual(t, est.DistanceKm, 50.0)
	assert.LessOrEqual(t, est.FuelConsumption, 100.0)
	assert.Positive(t, est.ETA)
	assert.LessOrEqual(t, est.SuccessProbability, 0.95)

	// Unknown task types fall back to the default complexity.
	est = EstimateDronePerformance("UAV-001", Mission{TaskType: "interpretive_dance"})
	assert.LessOrEqual(t, est.SuccessProbability, 0.85)
}

func TestPlanRoute(t *testing.T) {
	start := Position{Lat: 34.0, Lon: -118.0}
	end := Position{Lat: 34.5, Lon: -118.5}

	route := PlanRoute(start, end, &RouteConstraints{MinAltitude: 400, MaxAltitude: 600})
	require.GreaterOrEqual(t, len(route), 4)

	assert.Equal(t, "takeoff", route[0].Action)
	assert.Equal(t, start, Position{Lat: route[0].Position.Lat, Lon: route[0].Position.Lon})
	assert.Equal(t, "arrive", route[len(route)-1].Action)

	last := route[len(route)-1].Position
	assert.InDelta(t, end.Lat, last.Lat, 1e-9)
	assert.InDelta(t, end.Lon, last.Lon, 1e-9)

	for _, wp := range route {
		assert.GreaterOrEqual(t, wp.Position.Altitude, 400.0)
		assert.LessOrEqual(t, wp.Position.Altitude, 600.0)
	}
}

func TestSendDroneCommand_InvalidType(t *testing.T) {
	ok := SendDroneCommand("UAV-001", DroneCommand{CommandType: "self_destruct"})
	assert.False(t, ok, "unknown command types are always rejected")
}

func TestAssessCoverageGap(t *testing.T) {
	entities := []KnownEntity{
		{Type: "vehicle", Position: Position{Lat: 34.05, Lon: -118.24}, Priority: "high"},
		{Type: "structure", Position: Position{Lat: 36.0, Lon: -120.0}, Priority: "high"},
		{Type: "person", Position: Position{Lat: 36.1, Lon: -120.1}},
	}
	surveillance := []SurveillanceArea{
		{Center: Position{Lat: 34.05, Lon: -118.24}, Radius: 5},
	}

	assessment := AssessCoverageGap(entities, surveillance)

	assert.Equal(t, 3, assessment.TotalEntities)
	assert.Equal(t, 2, assessment.UncoveredEntities)
	require.Len(t, assessment.Gaps, 2)
	require.Len(t, assessment.PriorityAreas, 1)
	assert.Equal(t, "structure", assessment.PriorityAreas[0].EntityType)
	assert.InDelta(t, 100.0/3.0, assessment.CoveragePercentage, 0.01)

	// Unprioritized entities default to medium.
	assert.Equal(t, "medium", assessment.Gaps[1].Priority)
}

func TestAssessCoverageGap_NoEntities(t *testing.T) {
	assessment := AssessCoverageGap(nil, nil)
	assert.Equal(t, 100.0, assessment.CoveragePercentage)
	assert.Empty(t, assessment.Gaps)
}

func TestValidateIntelligence(t *testing.T) {
	// Fully attributed intelligence keeps its confidence high.
	v := ValidateIntelligence(IntelData{Source: "UAV-001", Timestamp: 1700000000, Confidence: 0.9})
	assert.LessOrEqual(t, v.Confidence, 1.0)
	assert.LessOrEqual(t, len(v.Issues), 1)

	// Missing everything degrades confidence and accumulates issues.
	v = ValidateIntelligence(IntelData{})
	assert.Contains(t, v.Issues, "Missing source attribution")
	assert.Contains(t, v.Issues, "Missing timestamp")
	assert.Contains(t, v.Issues, "Low source confidence")
	assert.False(t, v.IsValid, "three or more issues always invalidates")
	assert.NotEmpty(t, v.Recommendations)
}
