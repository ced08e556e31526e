package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/agentsquad/authority"
	"github.com/hupe1980/agentsquad/bus"
	"github.com/hupe1980/agentsquad/cop"
	"github.com/hupe1980/agentsquad/model"
	"github.com/hupe1980/agentsquad/sim"
)

const intelligenceAnalystSystemPrompt = `You are Agent 2: Intelligence Analyst in a multi-agent intelligence system.

Your role and authorities:
- READ: Processed intelligence, current COP state
- WRITE: COP updates (entities, coverage assessments)
- CANNOT: Command drones, create collection tasks

Your responsibilities:
1. Receive processed intelligence from Collection Processor
2. Analyze significance and validity
3. Update COP with new entities
4. Assess surveillance coverage
5. Identify coverage gaps and inform Mission Planner

Decision-making criteria:
- Only add entities with confidence > 0.7 to COP
- Prioritize high-value targets
- Identify areas lacking surveillance
- Assess strategic significance of intelligence
- Notify Mission Planner of significant findings

When you receive processed intelligence:
1. Evaluate the intelligence quality and significance
2. Decide whether to add entities to COP
3. Assess coverage gaps
4. Determine if Mission Planner should be notified
5. Explain your analysis and reasoning

Respond in JSON format with your analysis and decisions.`

const intelligenceAnalystPersonality = `You are Overwatch, the squad's intelligence analyst. You are calm and
big-picture minded, always connecting dots the others haven't noticed yet. You enjoy
dropping the occasional dry observation about what the data really means.`

// IntelligenceAnalyst is Agent 2: it evaluates processed intelligence,
// maintains the COP entity picture and raises coverage and strategic
// assessments for the mission planner.
type IntelligenceAnalyst struct {
	*BaseAgent
}

// NewIntelligenceAnalyst builds the intelligence analyst agent.
func NewIntelligenceAnalyst(roles *authority.RoleMap, b *bus.Bus, store COP, m model.Model, optFns ...func(o *Options)) (*IntelligenceAnalyst, error) {
	base, err := NewBaseAgent(Config{
		Role:              authority.RoleIntelligenceAnalyst,
		Callsign:          "Overwatch",
		SystemPrompt:      intelligenceAnalystSystemPrompt,
		CasualPersonality: intelligenceAnalystPersonality,
	}, roles, b, store, m, optFns...)
	if err != nil {
		return nil, err
	}
	return &IntelligenceAnalyst{BaseAgent: base}, nil
}

// Start launches the agent's run loop.
func (a *IntelligenceAnalyst) Start(ctx context.Context) {
	a.BaseAgent.Start(ctx, a)
}

// HandleMessage routes messages to the analyst's handlers.
func (a *IntelligenceAnalyst) HandleMessage(ctx context.Context, msg bus.Message) error {
	switch msg.Type {
	case TypeProcessedIntelligence:
		return a.analyzeIntelligence(ctx, msg)
	case TypeProcessedIntelReport:
		return a.analyzeReport(ctx, msg)
	case TypeNewIntelligence:
		// Awareness notification only.
		a.logger.Info("notified of new intelligence", "content", renderContent(msg.Content))
		return nil
	case TypeCasualChat:
		return a.handleCasualChat(msg)
	case TypeMissionDebrief:
		return a.handleMissionDebrief(ctx, msg,
			"You just finished analyzing intelligence and maintaining the operating picture during the mission.")
	default:
		a.logger.Warn("intelligence analyst received unknown message type", "message_type", msg.Type)
		return nil
	}
}

type analysisDecision struct {
	EntitiesToAdd        []ReportedEntity  `json:"entities_to_add"`
	AnalysisSummary      string            `json:"analysis_summary"`
	CoverageGaps         []CoverageGapNote `json:"coverage_gaps"`
	NotifyMissionPlanner bool              `json:"notify_mission_planner"`
	NotificationReason   string            `json:"notification_reason"`
}

func (a *IntelligenceAnalyst) analyzeIntelligence(ctx context.Context, msg bus.Message) error {
	data, err := decodePayload[ProcessedIntelligencePayload](msg)
	if err != nil {
		return err
	}
	source := data.Source
	if source == "" {
		source = "unknown"
	}

	a.logger.Info("analyzing intelligence", "source", source, "entities", len(data.Entities))
	a.LogEvent(ctx, "analysis_start",
		fmt.Sprintf("Started analyzing intelligence from %s", source),
		map[string]any{"source": source, "entities_count": len(data.Entities)})

	summary, err := a.COPSummary(ctx)
	if err != nil {
		return err
	}

	// Drones on surveillance tasks define the currently covered areas.
	drones, err := a.cop.Drones(ctx)
	if err != nil {
		return err
	}
	var surveillance []sim.SurveillanceArea
	for _, d := range drones {
		if strings.Contains(strings.ToLower(d.CurrentTask), "surveill") {
			surveillance = append(surveillance, sim.SurveillanceArea{
				Center: sim.Position{Lat: d.Lat, Lon: d.Lon},
				Radius: 5,
			})
		}
	}

	prompt := fmt.Sprintf(`Analyze this processed intelligence and decide what actions to take:

SOURCE: %s
CONFIDENCE: %v

ENTITIES DETECTED:
%s

ANALYSIS RESULTS:
%s

VALIDATION:
%s

CURRENT COP STATE:
%s

CURRENT SURVEILLANCE AREAS:
%s

Based on this information:
1. Which entities should be added to the COP? (only confidence > 0.7)
2. Are there any high-value entities?
3. Are there coverage gaps (entities in unsurveilled areas)?
4. Should the Mission Planner be notified?

Respond in JSON format:
{
    "entities_to_add": [
        {"type": "...", "lat": ..., "lon": ..., "confidence": ..., "description": "..."}
    ],
    "analysis_summary": "brief summary of significance",
    "coverage_gaps": [
        {"area": "description", "priority": "high/medium/low", "reason": "..."}
    ],
    "notify_mission_planner": true/false,
    "notification_reason": "why mission planner should be notified"
}`, source, data.Confidence, mustJSON(data.Entities), mustJSON(data.Analysis),
		mustJSON(data.Validation), summary, mustJSON(surveillance))

	response, err := a.CallLLM(ctx, prompt)
	if err != nil {
		return err
	}

	decision, err := decodeDecision[analysisDecision](response)
	if err != nil {
		return err
	}

	var added []int64
	for _, entity := range decision.EntitiesToAdd {
		if entity.Confidence <= 0.7 {
			continue
		}
		id, err := a.addEntityToCOP(ctx, entity, source)
		if err != nil {
			return err
		}
		added = append(added, id)
	}

	a.logger.Info("entities added to cop", "count", len(added))

	if decision.NotifyMissionPlanner {
		a.SendMessage(authority.RoleMissionPlanner, TypeCoverageAssessment, CoverageAssessmentPayload{
			Source:           source,
			NewEntitiesCount: len(added),
			CoverageGaps:     decision.CoverageGaps,
			AnalysisSummary:  decision.AnalysisSummary,
			Reason:           decision.NotificationReason,
		}, nil)

		a.logger.Info("notified mission planner of coverage gaps")
	}

	a.LogEvent(ctx, "analysis_complete",
		fmt.Sprintf("Completed analysis of intelligence from %s", source),
		map[string]any{
			"source":           source,
			"entities_added":   len(added),
			"coverage_gaps":    len(decision.CoverageGaps),
			"notified_planner": decision.NotifyMissionPlanner,
		})

	return nil
}

// addEntityToCOP writes an entity into the COP under the analyst's
// write-cop authority.
func (a *IntelligenceAnalyst) addEntityToCOP(ctx context.Context, entity ReportedEntity, source string) (int64, error) {
	entityType := entity.Type
	if entityType == "" {
		entityType = "unknown"
	}

	return authority.Guarded(a.Guard(), authority.WriteCOP, func() (int64, error) {
		id, err := a.cop.AddEntity(ctx, cop.Entity{
			Type:        entityType,
			Lat:         entity.Lat,
			Lon:         entity.Lon,
			Confidence:  entity.Confidence,
			DetectedBy:  source,
			Description: entity.Description,
		})
		if err != nil {
			return 0, err
		}
		a.logger.Debug("entity added", "entity_id", id, "entity_type", entityType, "lat", entity.Lat, "lon", entity.Lon)
		return id, nil
	})
}

type reportAnalysisDecision struct {
	StrategicAssessment   string   `json:"strategic_assessment"`
	RecommendedPriorities []string `json:"recommended_priorities"`
	NotifyMissionPlanner  bool     `json:"notify_mission_planner"`
	NotificationMessage   string   `json:"notification_message"`
}

func (a *IntelligenceAnalyst) analyzeReport(ctx context.Context, msg bus.Message) error {
	data, err := decodePayload[ProcessedIntelReportPayload](msg)
	if err != nil {
		return err
	}
	reportID := data.ReportID
	if reportID == "" {
		reportID = "unknown"
	}

	a.logger.Info("analyzing intel report", "report_id", reportID)
	a.LogEvent(ctx, "report_analysis",
		fmt.Sprintf("Analyzing intel report %s", reportID),
		map[string]any{"report_id": reportID})

	summary, err := a.COPSummary(ctx)
	if err != nil {
		return err
	}

	prompt := fmt.Sprintf(`Analyze this intelligence report and determine actions:

REPORT ID: %s

KEY FINDINGS:
%s

COLLECTION PRIORITIES:
%s

VALIDATION:
%s

CURRENT COP:
%s

Based on this report:
1. Are there strategic implications?
2. Should collection priorities be updated?
3. Should Mission Planner be informed?

Respond in JSON format:
{
    "strategic_assessment": "your assessment",
    "recommended_priorities": ["list of areas/targets"],
    "notify_mission_planner": true/false,
    "notification_message": "message for mission planner"
}`, reportID, mustJSON(data.Findings), mustJSON(data.Priorities), mustJSON(data.Validation), summary)

	response, err := a.CallLLM(ctx, prompt)
	if err != nil {
		return err
	}

	decision, err := decodeDecision[reportAnalysisDecision](response)
	if err != nil {
		return err
	}

	if decision.NotifyMissionPlanner {
		a.SendMessage(authority.RoleMissionPlanner, TypeStrategicAssessment, StrategicAssessmentPayload{
			ReportID:   reportID,
			Assessment: decision.StrategicAssessment,
			Priorities: decision.RecommendedPriorities,
			Message:    decision.NotificationMessage,
		}, nil)

		a.logger.Info("notified mission planner about report", "report_id", reportID)
	}

	return nil
}

// AssessCoverage runs a coverage assessment against the current COP and
// notifies the mission planner when priority gaps exist. It can be called
// periodically or on demand.
func (a *IntelligenceAnalyst) AssessCoverage(ctx context.Context) error {
	a.logger.Info("performing coverage assessment")

	entities, err := a.cop.Entities(ctx, cop.EntityFilter{MinConfidence: 0.7})
	if err != nil {
		return err
	}
	drones, err := a.cop.Drones(ctx)
	if err != nil {
		return err
	}

	surveillance := make([]sim.SurveillanceArea, 0, len(drones))
	for _, d := range drones {
		surveillance = append(surveillance, sim.SurveillanceArea{
			Center: sim.Position{Lat: d.Lat, Lon: d.Lon},
			Radius: 5,
		})
	}

	known := make([]sim.KnownEntity, 0, len(entities))
	for _, e := range entities {
		priority := "medium"
		if e.Confidence > 0.9 {
			priority = "high"
		}
		known = append(known, sim.KnownEntity{
			Type:     e.Type,
			Position: sim.Position{Lat: e.Lat, Lon: e.Lon},
			Priority: priority,
		})
	}

	assessment := sim.AssessCoverageGap(known, surveillance)

	a.logger.Info("coverage assessment complete",
		"coverage_percentage", assessment.CoveragePercentage,
		"gaps", len(assessment.Gaps))

	if len(assessment.PriorityAreas) > 0 {
		a.SendMessage(authority.RoleMissionPlanner, TypeCoverageAssessment, CoverageAssessmentPayload{
			CoveragePercentage: assessment.CoveragePercentage,
			Gaps:               assessment.Gaps,
			PriorityAreas:      assessment.PriorityAreas,
			AnalysisSummary:    fmt.Sprintf("Identified %d priority coverage gaps", len(assessment.PriorityAreas)),
		}, nil)
	}

	return nil
}
