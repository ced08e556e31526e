// Package agentsquad provides a high-level façade over the drone
// intelligence squad: the message bus, the COP store, the authority role
// map and the four role agents. Most applications interact with this
// package by:
//  1. Creating a Squad via New() with a model (and optional overrides)
//  2. Seeding the initial operating picture
//  3. Starting the agents and injecting sensor data or intel reports
//
// All defaults are safe for local development; production deployments
// typically supply a file-backed COP path and a structured logger.
package agentsquad

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentsquad/agent"
	"github.com/hupe1980/agentsquad/authority"
	"github.com/hupe1980/agentsquad/bus"
	"github.com/hupe1980/agentsquad/cop"
	"github.com/hupe1980/agentsquad/logging"
	"github.com/hupe1980/agentsquad/model"
)

// Options configures the Squad instance.
type Options struct {
	// DBPath is the COP database path (defaults to in-memory).
	DBPath string

	// RoleMap is the authority table (defaults to the built-in four-role
	// map).
	RoleMap *authority.RoleMap

	// HistorySize bounds the bus message history.
	HistorySize int

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// Squad aggregates the coordination substrate and the four role agents.
type Squad struct {
	bus    *bus.Bus
	store  *cop.Store
	roles  *authority.RoleMap
	logger logging.Logger

	Processor *agent.CollectionProcessor
	Analyst   *agent.IntelligenceAnalyst
	Planner   *agent.MissionPlanner
	Manager   *agent.CollectionManager
}

// New creates a Squad backed by the given model: it opens the COP store,
// builds the bus, constructs the four role agents and wires their
// subscriptions.
func New(m model.Model, optFns ...func(o *Options)) (*Squad, error) {
	opts := Options{
		DBPath:  ":memory:",
		RoleMap: authority.DefaultRoleMap(),
		Logger:  logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	store, err := cop.Open(opts.DBPath, func(o *cop.Options) {
		o.Logger = opts.Logger
	})
	if err != nil {
		return nil, fmt.Errorf("open cop store: %w", err)
	}

	b := bus.New(func(o *bus.Options) {
		if opts.HistorySize > 0 {
			o.HistorySize = opts.HistorySize
		}
		o.Logger = opts.Logger
	})

	s := &Squad{
		bus:    b,
		store:  store,
		roles:  opts.RoleMap,
		logger: opts.Logger,
	}

	agentOpts := func(o *agent.Options) {
		o.Logger = opts.Logger
	}

	if s.Processor, err = agent.NewCollectionProcessor(opts.RoleMap, b, store, m, agentOpts); err != nil {
		store.Close()
		return nil, err
	}
	if s.Analyst, err = agent.NewIntelligenceAnalyst(opts.RoleMap, b, store, m, agentOpts); err != nil {
		store.Close()
		return nil, err
	}
	if s.Planner, err = agent.NewMissionPlanner(opts.RoleMap, b, store, m, agentOpts); err != nil {
		store.Close()
		return nil, err
	}
	if s.Manager, err = agent.NewCollectionManager(opts.RoleMap, b, store, m, agentOpts); err != nil {
		store.Close()
		return nil, err
	}

	// Route pipeline message types past the addressed recipient so the
	// agents also see broadcasts and third-party traffic of interest.
	b.Subscribe(authority.RoleIntelligenceAnalyst, agent.TypeNewIntelligence)
	b.Subscribe(authority.RoleIntelligenceAnalyst, agent.TypeProcessedIntelligence)
	b.Subscribe(authority.RoleIntelligenceAnalyst, agent.TypeProcessedIntelReport)

	b.Subscribe(authority.RoleMissionPlanner, agent.TypeCoverageAssessment)
	b.Subscribe(authority.RoleMissionPlanner, agent.TypeStrategicAssessment)
	b.Subscribe(authority.RoleMissionPlanner, agent.TypeDroneStatusAlert)

	b.Subscribe(authority.RoleCollectionManager, agent.TypeNewMissionPlan)

	opts.Logger.Info("squad initialized", "agents", 4)

	return s, nil
}

// Bus returns the shared message bus.
func (s *Squad) Bus() *bus.Bus { return s.bus }

// Store returns the COP store.
func (s *Squad) Store() *cop.Store { return s.store }

// Agents returns the four role agents in pipeline order.
func (s *Squad) Agents() []*agent.BaseAgent {
	return []*agent.BaseAgent{
		s.Processor.BaseAgent,
		s.Analyst.BaseAgent,
		s.Planner.BaseAgent,
		s.Manager.BaseAgent,
	}
}

// StartAgents launches every agent's run loop.
func (s *Squad) StartAgents(ctx context.Context) {
	s.logger.Info("starting all agents")
	s.Processor.Start(ctx)
	s.Analyst.Start(ctx)
	s.Planner.Start(ctx)
	s.Manager.Start(ctx)
}

// StopAgents stops every agent and waits for their run loops to exit.
func (s *Squad) StopAgents() {
	s.logger.Info("stopping all agents")
	for _, a := range s.Agents() {
		a.Stop()
	}
}

// Close stops the agents and releases the COP store.
func (s *Squad) Close() error {
	s.StopAgents()
	return s.store.Close()
}

// SetMode switches every agent's communication mode.
func (s *Squad) SetMode(mode string) {
	for _, a := range s.Agents() {
		a.SetMode(mode)
	}
}

// IntroduceAll has every agent broadcast its one-time introduction.
func (s *Squad) IntroduceAll(ctx context.Context) error {
	for _, a := range s.Agents() {
		if err := a.IntroduceSelf(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Debrief broadcasts a post-mission debrief prompt. Agents in relaxed
// mode answer it with casual chat.
func (s *Squad) Debrief(prompt string) {
	s.bus.Send("system", bus.Broadcast, agent.TypeMissionDebrief, agent.MissionDebriefPayload{
		Message: prompt,
	}, nil)
}

// SeedInitialState loads the baseline operating picture: three drones on
// station and two known entities in Area Alpha.
func (s *Squad) SeedInitialState(ctx context.Context) error {
	s.logger.Info("seeding initial cop state")

	drones := []cop.Drone{
		{ID: "UAV-001", Lat: 34.0522, Lon: -118.2437, Altitude: 450, FuelPercent: 85.5,
			SensorStatus: "operational", CurrentTask: "Surveilling Area Alpha"},
		{ID: "UAV-002", Lat: 34.08, Lon: -118.30, Altitude: 500, FuelPercent: 82.5,
			SensorStatus: "operational", CurrentTask: "Surveilling Area Bravo"},
		{ID: "UAV-003", Lat: 34.065, Lon: -118.255, Altitude: 400, FuelPercent: 68.5,
			SensorStatus: "operational", CurrentTask: "In transit to Area Charlie"},
	}
	for _, d := range drones {
		if err := s.store.UpsertDrone(ctx, d); err != nil {
			return fmt.Errorf("seed drone %s: %w", d.ID, err)
		}
	}

	entities := []cop.Entity{
		{Type: "structure", Lat: 34.053, Lon: -118.244, Confidence: 0.85,
			DetectedBy: "UAV-001", Description: "Known facility in Area Alpha"},
		{Type: "vehicle", Lat: 34.054, Lon: -118.245, Confidence: 0.75,
			DetectedBy: "UAV-001", Description: "Mobile unit in Area Alpha"},
	}
	for _, e := range entities {
		if _, err := s.store.AddEntity(ctx, e); err != nil {
			return fmt.Errorf("seed entity %s: %w", e.Type, err)
		}
	}

	return nil
}
