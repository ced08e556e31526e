package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hupe1980/agentsquad/authority"
	"github.com/hupe1980/agentsquad/bus"
	"github.com/hupe1980/agentsquad/model"
	"github.com/hupe1980/agentsquad/sim"
)

const collectionProcessorSystemPrompt = `You are Agent 1: Collection Processor in a multi-agent intelligence system.

Your role and authorities:
- READ: Sensor data, documents, raw intelligence
- WRITE: Processed intelligence records (only)
- CANNOT: Modify COP directly, command drones, or change plans

Your responsibilities:
1. Process incoming sensor data from drones
2. Analyze and validate intelligence reports
3. Extract relevant information (entities, positions, confidence scores)
4. Publish processed intelligence for other agents

Decision-making criteria:
- Only process intelligence with confidence > 0.5
- Flag anomalies or quality issues
- Provide clear entity descriptions
- Always include source attribution

When you receive sensor data or intelligence:
1. Validate the data quality
2. Extract key information
3. Assess confidence levels
4. Decide whether to publish to other agents
5. Explain your reasoning clearly

Respond in JSON format with your analysis and decisions.`

const collectionProcessorPersonality = `You are DataHawk, the squad's data specialist. You are sharp-eyed and a
bit of a perfectionist about data quality. You take pride in catching details others miss
and you like a good-natured jab about sloppy sensor feeds.`

// CollectionProcessor is Agent 1: it validates incoming sensor data and
// intelligence reports and publishes processed intelligence for the
// analyst. It holds no COP write authority beyond processed intel.
type CollectionProcessor struct {
	*BaseAgent
}

// NewCollectionProcessor builds the collection processor agent.
func NewCollectionProcessor(roles *authority.RoleMap, b *bus.Bus, store COP, m model.Model, optFns ...func(o *Options)) (*CollectionProcessor, error) {
	base, err := NewBaseAgent(Config{
		Role:              authority.RoleCollectionProcessor,
		Callsign:          "DataHawk",
		SystemPrompt:      collectionProcessorSystemPrompt,
		CasualPersonality: collectionProcessorPersonality,
	}, roles, b, store, m, optFns...)
	if err != nil {
		return nil, err
	}
	return &CollectionProcessor{BaseAgent: base}, nil
}

// Start launches the agent's run loop.
func (p *CollectionProcessor) Start(ctx context.Context) {
	p.BaseAgent.Start(ctx, p)
}

// HandleMessage routes messages to the processor's handlers.
func (p *CollectionProcessor) HandleMessage(ctx context.Context, msg bus.Message) error {
	switch msg.Type {
	case TypeSensorData:
		return p.processSensorData(ctx, msg)
	case TypeIntelReport:
		return p.processIntelReport(ctx, msg)
	case TypeCasualChat:
		return p.handleCasualChat(msg)
	case TypeMissionDebrief:
		return p.handleMissionDebrief(ctx, msg,
			"You just finished processing sensor data and intelligence during the mission.")
	default:
		p.logger.Warn("collection processor received unknown message type", "message_type", msg.Type)
		return nil
	}
}

type sensorDecision struct {
	ShouldPublish       bool             `json:"should_publish"`
	Reasoning           string           `json:"reasoning"`
	EntitiesToReport    []ReportedEntity `json:"entities_to_report"`
	NotifyAgents        bool             `json:"notify_agents"`
	NotificationMessage string           `json:"notification_message"`
}

func (p *CollectionProcessor) processSensorData(ctx context.Context, msg bus.Message) error {
	data, err := decodePayload[SensorDataPayload](msg)
	if err != nil {
		return err
	}
	droneID := data.DroneID
	if droneID == "" {
		droneID = "unknown"
	}

	p.logger.Info("processing sensor data", "drone_id", droneID)
	p.LogEvent(ctx, "processing_start",
		fmt.Sprintf("Started processing sensor data from %s", droneID),
		map[string]any{"drone_id": droneID})

	analysis := sim.AnalyzeSensorData(data.SensorData)
	validation := sim.ValidateIntelligence(sim.IntelData{
		Source:     droneID,
		Timestamp:  data.Timestamp,
		Confidence: analysis.Quality,
		Data:       analysis,
	})

	summary, err := p.COPSummary(ctx)
	if err != nil {
		return err
	}

	prompt := fmt.Sprintf(`Analyze this sensor data and decide what action to take:

SENSOR DATA FROM: %s
Timestamp: %v
Position: %s

ANALYSIS RESULTS:
%s

VALIDATION RESULTS:
%s

CURRENT COP STATE:
%s

Based on this information:
1. Should we publish this intelligence? (only if confidence > 0.5 and valid)
2. What entities should be reported?
3. What should other agents be informed about?

Respond in JSON format:
{
    "should_publish": true/false,
    "reasoning": "your reasoning",
    "entities_to_report": [list of entities with type, position, confidence],
    "notify_agents": true/false,
    "notification_message": "message for other agents"
}`, droneID, data.Timestamp, mustJSON(data.Position), mustJSON(analysis), mustJSON(validation), summary)

	response, err := p.CallLLM(ctx, prompt)
	if err != nil {
		return err
	}

	decision, err := decodeDecision[sensorDecision](response)
	if err != nil {
		return err
	}

	if decision.ShouldPublish {
		if err := p.publishIntelligence(droneID, decision.EntitiesToReport, analysis, validation); err != nil {
			return err
		}

		if decision.NotifyAgents {
			p.SendMessage(bus.Broadcast, TypeNewIntelligence, NewIntelligencePayload{
				Source:        droneID,
				EntitiesCount: len(decision.EntitiesToReport),
				Message:       decision.NotificationMessage,
			}, nil)
		}

		p.logger.Info("published intelligence",
			"drone_id", droneID, "entities", len(decision.EntitiesToReport))
	} else {
		p.logger.Info("intelligence not published",
			"drone_id", droneID, "reasoning", decision.Reasoning)
	}

	p.LogEvent(ctx, "processing_complete",
		fmt.Sprintf("Completed processing sensor data from %s", droneID),
		map[string]any{
			"drone_id":       droneID,
			"published":      decision.ShouldPublish,
			"entities_count": len(decision.EntitiesToReport),
		})

	return nil
}

// publishIntelligence hands processed intelligence to the analyst. The
// processor cannot touch the COP entity table itself; it only feeds the
// analyst who holds that authority.
func (p *CollectionProcessor) publishIntelligence(droneID string, entities []ReportedEntity, analysis sim.Analysis, validation sim.Validation) error {
	return authority.Do(p.Guard(), authority.WriteProcessedIntel, func() error {
		p.SendMessage(authority.RoleIntelligenceAnalyst, TypeProcessedIntelligence, ProcessedIntelligencePayload{
			Source:     droneID,
			Entities:   entities,
			Analysis:   analysis,
			Validation: validation,
			Confidence: validation.Confidence,
		}, nil)
		return nil
	})
}

type reportDecision struct {
	ShouldPublish        bool     `json:"should_publish"`
	Reasoning            string   `json:"reasoning"`
	KeyFindings          []string `json:"key_findings"`
	CollectionPriorities []string `json:"collection_priorities"`
	NotifyAnalyst        bool     `json:"notify_analyst"`
}

func (p *CollectionProcessor) processIntelReport(ctx context.Context, msg bus.Message) error {
	data, err := decodePayload[IntelReportPayload](msg)
	if err != nil {
		return err
	}
	reportID := data.ReportID
	if reportID == "" {
		reportID = "unknown"
	}

	p.logger.Info("processing intel report", "report_id", reportID)
	p.LogEvent(ctx, "processing_start",
		fmt.Sprintf("Started processing intel report %s", reportID),
		map[string]any{"report_id": reportID})

	validation := sim.ValidateIntelligence(sim.IntelData{
		Source:    data.Source,
		Timestamp: data.Timestamp,
		// Text reports carry no numeric confidence of their own.
		Confidence: 0.7,
		Data:       data.Content,
	})

	summary, err := p.COPSummary(ctx)
	if err != nil {
		return err
	}

	prompt := fmt.Sprintf(`Analyze this intelligence report and extract key information:

REPORT ID: %s
SOURCE: %s
TIMESTAMP: %v

REPORT CONTENT:
%s

VALIDATION RESULTS:
%s

CURRENT COP STATE:
%s

Extract and analyze:
1. Key entities mentioned (with positions if available)
2. Collection priorities
3. Target areas
4. Confidence assessment

Respond in JSON format:
{
    "should_publish": true/false,
    "reasoning": "your reasoning",
    "key_findings": ["list of key findings"],
    "collection_priorities": ["list of priorities"],
    "notify_analyst": true/false
}`, reportID, data.Source, data.Timestamp, data.Content, mustJSON(validation), summary)

	response, err := p.CallLLM(ctx, prompt)
	if err != nil {
		return err
	}

	decision, err := decodeDecision[reportDecision](response)
	if err != nil {
		return err
	}

	if decision.ShouldPublish || decision.NotifyAnalyst {
		p.SendMessage(authority.RoleIntelligenceAnalyst, TypeProcessedIntelReport, ProcessedIntelReportPayload{
			ReportID:   reportID,
			Findings:   decision.KeyFindings,
			Priorities: decision.CollectionPriorities,
			Validation: validation,
		}, nil)

		p.logger.Info("forwarded processed report to analyst", "report_id", reportID)
	}

	p.LogEvent(ctx, "processing_complete",
		fmt.Sprintf("Completed processing intel report %s", reportID),
		map[string]any{"report_id": reportID})

	return nil
}

// ProcessFile ingests a sensor data JSON file or a text intel report from
// disk and runs it through the corresponding pipeline. It drives test
// scenarios without a live drone feed.
func (p *CollectionProcessor) ProcessFile(ctx context.Context, path, fileType string) error {
	p.logger.Info("processing file", "path", path, "file_type", fileType)

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	switch fileType {
	case TypeSensorData:
		var data SensorDataPayload
		if err := json.Unmarshal(raw, &data); err != nil {
			return fmt.Errorf("decode sensor data file %s: %w", path, err)
		}
		return p.processSensorData(ctx, bus.Message{Type: TypeSensorData, Content: data})

	case TypeIntelReport:
		data := IntelReportPayload{
			ReportID: filepath.Base(path),
			Source:   "file",
			Content:  string(raw),
		}
		return p.processIntelReport(ctx, bus.Message{Type: TypeIntelReport, Content: data})

	default:
		return fmt.Errorf("unknown file type %q", fileType)
	}
}
