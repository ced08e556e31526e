package sim

import (
	"math"
	"math/rand/v2"
)

// Position is a geographic point, altitude in meters.
type Position struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Altitude float64 `json:"altitude,omitempty"`
}

// Detection is a raw sensor detection prior to analysis.
type Detection struct {
	Type       string         `json:"type"`
	Position   Position       `json:"position"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// SensorData is the raw payload delivered by a drone sensor.
type SensorData struct {
	Type       string      `json:"type"` // visual, thermal, radar
	Detections []Detection `json:"detections"`
}

// DetectedEntity is an analyzed detection with a confidence score.
type DetectedEntity struct {
	Type       string         `json:"type"`
	Position   Position       `json:"position"`
	Confidence float64        `json:"confidence"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Anomaly flags unusual sensor behavior observed during analysis.
type Anomaly struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

// Analysis is the result of sensor data analysis.
type Analysis struct {
	Entities   []DetectedEntity `json:"entities"`
	Quality    float64          `json:"quality"`
	Anomalies  []Anomaly        `json:"anomalies"`
	SensorType string           `json:"sensor_type"`
}

// AnalyzeSensorData simulates sensor data analysis, returning detected
// entities with randomized confidence scores and an overall quality
// assessment.
func AnalyzeSensorData(data SensorData) Analysis {
	entities := make([]DetectedEntity, 0, len(data.Detections))
	for _, d := range data.Detections {
		entities = append(entities, DetectedEntity{
			Type:       d.Type,
			Position:   d.Position,
			Confidence: randFloat(0.6, 0.95),
			Attributes: d.Attributes,
		})
	}

	var anomalies []Anomaly
	if rand.Float64() < 0.1 {
		anomalies = append(anomalies, Anomaly{
			Type:        "signal_interference",
			Severity:    "low",
			Description: "Brief signal interference detected",
		})
	}

	return Analysis{
		Entities:   entities,
		Quality:    randFloat(0.7, 1.0),
		Anomalies:  anomalies,
		SensorType: data.Type,
	}
}

// Mission describes the parameters a performance estimate is computed for.
type Mission struct {
	TargetPosition Position `json:"target_position"`
	TaskType       string   `json:"task_type"`
	Duration       float64  `json:"duration"` // minutes on station
}

// PerformanceEstimate summarizes expected drone performance for a mission.
type PerformanceEstimate struct {
	DroneID            string  `json:"drone_id"`
	FuelConsumption    float64 `json:"fuel_consumption"` // percent
	ETA                float64 `json:"eta"`              // minutes
	SuccessProbability float64 `json:"success_probability"`
	CapabilitiesMatch  float64 `json:"capabilities_match"`
	DistanceKm         float64 `json:"distance_km"`
}

var taskComplexity = map[string]float64{
	"surveillance":     0.95,
	"reconnaissance":   0.90,
	"tracking":         0.85,
	"close_inspection": 0.80,
}

// EstimateDronePerformance simulates a mission performance estimate for a
// drone: fuel for transit and on-station time, ETA at 60 km/h and a
// success probability derived from task complexity.
func EstimateDronePerformance(droneID string, mission Mission) PerformanceEstimate {
	distance := randFloat(5, 50) // km

	eta := distance / 60 * 60 // minutes at 60 km/h

	fuelForTransit := (distance / 100) * 10 // 10% per 100km
	fuelForTask := (mission.Duration / 60) * 5
	totalFuel := fuelForTransit*2 + fuelForTask // round trip

	base, ok := taskComplexity[mission.TaskType]
	if !ok {
		base = 0.85
	}

	return PerformanceEstimate{
		DroneID:            droneID,
		FuelConsumption:    math.Min(totalFuel, 100),
		ETA:                eta,
		SuccessProbability: base * randFloat(0.95, 1.0),
		CapabilitiesMatch:  randFloat(0.7, 1.0),
		DistanceKm:         distance,
	}
}

// RouteConstraints bound the altitudes a planned route may use.
type RouteConstraints struct {
	MinAltitude float64 `json:"min_altitude,omitempty"`
	MaxAltitude float64 `json:"max_altitude,omitempty"`
}

// Waypoint is one step of a planned route.
type Waypoint struct {
	Position Position `json:"position"`
	ETA      float64  `json:"eta"` // minutes from start
	Action   string   `json:"action"`
}

// PlanRoute simulates route planning between two points: straight-line
// interpolation with a waypoint roughly every 10km, randomized altitudes
// within the constraints and occasional survey points.
func PlanRoute(start, end Position, constraints *RouteConstraints) []Waypoint {
	minAlt, maxAlt := 300.0, 1000.0
	if constraints != nil {
		if constraints.MinAltitude > 0 {
			minAlt = constraints.MinAltitude
		}
		if constraints.MaxAltitude > 0 {
			maxAlt = constraints.MaxAltitude
		}
	}

	dlat := end.Lat - start.Lat
	dlon := end.Lon - start.Lon
	distance := math.Sqrt(dlat*dlat+dlon*dlon) * 111 // rough km

	numWaypoints := max(3, int(distance/10))
	waypoints := make([]Waypoint, 0, numWaypoints+1)

	for i := 0; i <= numWaypoints; i++ {
		t := float64(i) / float64(numWaypoints)

		action := "navigate"
		switch {
		case i == 0:
			action = "takeoff"
		case i == numWaypoints:
			action = "arrive"
		case rand.Float64() < 0.2:
			action = "survey"
		}

		waypoints = append(waypoints, Waypoint{
			Position: Position{
				Lat:      start.Lat + dlat*t,
				Lon:      start.Lon + dlon*t,
				Altitude: randFloat(minAlt, maxAlt),
			},
			ETA:    (distance * t) / 60 * 60,
			Action: action,
		})
	}
	return waypoints
}

// DroneCommand is a command issued to a drone.
type DroneCommand struct {
	CommandType string         `json:"command_type"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

var validCommands = map[string]struct{}{
	"navigate":       {},
	"survey":         {},
	"track":          {},
	"return_to_base": {},
	"hold_position":  {},
}

// SendDroneCommand simulates transmitting a command to a drone. Unknown
// command types are rejected; known commands succeed with 95% probability
// to model communication reliability.
func SendDroneCommand(droneID string, command DroneCommand) bool {
	if _, ok := validCommands[command.CommandType]; !ok {
		return false
	}
	return rand.Float64() < 0.95
}

// KnownEntity is an entity position considered during coverage assessment.
type KnownEntity struct {
	Type     string   `json:"type"`
	Position Position `json:"position"`
	Priority string   `json:"priority,omitempty"`
}

// SurveillanceArea is a circular area currently under surveillance.
type SurveillanceArea struct {
	Center Position `json:"center"`
	Radius float64  `json:"radius"` // km
}

// CoverageGap marks an entity outside all surveilled areas.
type CoverageGap struct {
	Position   Position `json:"position"`
	EntityType string   `json:"entity_type"`
	Priority   string   `json:"priority"`
}

// CoverageAssessment summarizes surveillance coverage of known entities.
type CoverageAssessment struct {
	Gaps               []CoverageGap `json:"gaps"`
	PriorityAreas      []CoverageGap `json:"priority_areas"`
	CoveragePercentage float64       `json:"coverage_percentage"`
	TotalEntities      int           `json:"total_entities"`
	UncoveredEntities  int           `json:"uncovered_entities"`
}

// AssessCoverageGap simulates surveillance coverage gap detection against
// the currently surveilled areas.
func AssessCoverageGap(entities []KnownEntity, surveillance []SurveillanceArea) CoverageAssessment {
	var gaps, priorityAreas []CoverageGap

	for _, entity := range entities {
		covered := false
		for _, area := range surveillance {
			radius := area.Radius
			if radius == 0 {
				radius = 5
			}
			latDiff := entity.Position.Lat - area.Center.Lat
			lonDiff := entity.Position.Lon - area.Center.Lon
			distance := math.Sqrt(latDiff*latDiff+lonDiff*lonDiff) * 111
			if distance <= radius {
				covered = true
				break
			}
		}

		if !covered {
			priority := entity.Priority
			if priority == "" {
				priority = "medium"
			}
			gap := CoverageGap{Position: entity.Position, EntityType: entity.Type, Priority: priority}
			gaps = append(gaps, gap)
			if priority == "high" {
				priorityAreas = append(priorityAreas, gap)
			}
		}
	}

	coverage := 100.0
	if len(entities) > 0 {
		coverage = float64(len(entities)-len(gaps)) / float64(len(entities)) * 100
	}

	return CoverageAssessment{
		Gaps:               gaps,
		PriorityAreas:      priorityAreas,
		CoveragePercentage: coverage,
		TotalEntities:      len(entities),
		UncoveredEntities:  len(gaps),
	}
}

// IntelData is raw intelligence submitted for validation.
type IntelData struct {
	Source     string  `json:"source,omitempty"`
	Timestamp  float64 `json:"timestamp,omitempty"`
	Confidence float64 `json:"confidence"`
	Data       any     `json:"data,omitempty"`
}

// Validation is the outcome of an intelligence quality check.
type Validation struct {
	IsValid         bool     `json:"is_valid"`
	Confidence      float64  `json:"confidence"`
	Issues          []string `json:"issues"`
	Recommendations []string `json:"recommendations"`
}

// ValidateIntelligence simulates intelligence validation: randomized base
// confidence degraded by missing attribution, missing timestamps, weak
// source confidence and occasional consistency warnings.
func ValidateIntelligence(intel IntelData) Validation {
	var issues []string
	confidence := randFloat(0.7, 1.0)

	if intel.Source == "" {
		issues = append(issues, "Missing source attribution")
		confidence *= 0.9
	}
	if intel.Timestamp == 0 {
		issues = append(issues, "Missing timestamp")
		confidence *= 0.95
	}
	if intel.Confidence < 0.5 {
		issues = append(issues, "Low source confidence")
		confidence *= 0.8
	}
	if rand.Float64() < 0.1 {
		issues = append(issues, "Data consistency warning")
		confidence *= 0.9
	}

	isValid := confidence >= 0.6 && len(issues) < 3

	var recommendations []string
	if !isValid {
		recommendations = append(recommendations,
			"Requires additional verification",
			"Consider cross-referencing with other sources")
	} else if confidence < 0.8 {
		recommendations = append(recommendations, "Recommend follow-up collection")
	}

	return Validation{
		IsValid:         isValid,
		Confidence:      confidence,
		Issues:          issues,
		Recommendations: recommendations,
	}
}

func randFloat(lo, hi float64) float64 {
	return lo + rand.Float64()*(hi-lo)
}
