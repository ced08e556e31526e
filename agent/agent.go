package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/agentsquad/authority"
	"github.com/hupe1980/agentsquad/bus"
	"github.com/hupe1980/agentsquad/cop"
	"github.com/hupe1980/agentsquad/logging"
	"github.com/hupe1980/agentsquad/model"
)

// Communication modes. Mode selects the system prompt flavor used for LLM
// calls and whether agents engage in banter.
const (
	ModeCasual       = "casual"
	ModeProfessional = "professional"
	ModeRelaxed      = "relaxed"
)

// DefaultReceiveTimeout bounds each blocking bus receive so the run loop
// can observe cancellation between messages.
const DefaultReceiveTimeout = time.Second

// introReplyChance is the probability of replying casually to another
// agent's introduction.
const introReplyChance = 0.3

// Handler processes one delivered message. The run loop logs and swallows
// the returned error so one bad message never stops the agent.
type Handler interface {
	HandleMessage(ctx context.Context, msg bus.Message) error
}

// COP is the slice of the common operating picture store the agents
// depend on. *cop.Store satisfies it.
type COP interface {
	LogMessage(ctx context.Context, sender, recipient, messageType, content string, metadata map[string]any) error
	LogEvent(ctx context.Context, agentRole, eventType, description string, data map[string]any) error
	Drones(ctx context.Context) ([]cop.Drone, error)
	UpsertDrone(ctx context.Context, d cop.Drone) error
	Entities(ctx context.Context, filter cop.EntityFilter) ([]cop.Entity, error)
	AddEntity(ctx context.Context, e cop.Entity) (int64, error)
	CollectionTasks(ctx context.Context, filter cop.TaskFilter) ([]cop.CollectionTask, error)
	CreateCollectionTask(ctx context.Context, t cop.CollectionTask) (int64, error)
	UpdateTaskStatus(ctx context.Context, taskID int64, status string) error
	MissionPlans(ctx context.Context, status string) ([]cop.MissionPlan, error)
	CreateMissionPlan(ctx context.Context, name, objectives string, assignedDrones []string, createdBy string) (int64, error)
	UpdateMissionPlan(ctx context.Context, planID int64, update cop.PlanUpdate) error
}

// Config identifies a role agent and its prompting material.
type Config struct {
	// Role is the bus identity and the key into the role map. It must name
	// a known role.
	Role string

	// Callsign is the agent's short nickname used in squad chatter.
	Callsign string

	// SystemPrompt describes the role, its authorities and its
	// decision-making criteria to the LLM.
	SystemPrompt string

	// CasualPersonality flavors introductions and off-duty chat.
	CasualPersonality string
}

// Options configures a BaseAgent.
type Options struct {
	// Logger receives lifecycle and delivery logs (defaults to NoOpLogger).
	Logger logging.Logger

	// ReceiveTimeout bounds each blocking receive in the run loop.
	ReceiveTimeout time.Duration
}

// BaseAgent is the shared runtime of every role agent: bus registration,
// the receive loop, message auditing, guarded authority access and LLM
// calls. Role agents embed it and provide a Handler.
type BaseAgent struct {
	cfg         Config
	authorities authority.Set
	guard       *authority.Guard
	bus         *bus.Bus
	cop         COP
	model       model.Model
	logger      logging.Logger

	receiveTimeout time.Duration

	mu         sync.Mutex
	mode       string
	introduced bool
	running    bool
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewBaseAgent validates the role against the role map, registers it on
// the bus and prepares the authority guard. Construction fails for a role
// the map does not know.
func NewBaseAgent(cfg Config, roles *authority.RoleMap, b *bus.Bus, store COP, m model.Model, optFns ...func(o *Options)) (*BaseAgent, error) {
	opts := Options{
		Logger:         logging.NoOpLogger{},
		ReceiveTimeout: DefaultReceiveTimeout,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	auths, err := roles.Authorities(cfg.Role)
	if err != nil {
		return nil, fmt.Errorf("agent %q: %w", cfg.Role, err)
	}

	a := &BaseAgent{
		cfg:            cfg,
		authorities:    auths,
		bus:            b,
		cop:            store,
		model:          m,
		logger:         opts.Logger,
		receiveTimeout: opts.ReceiveTimeout,
		mode:           ModeCasual,
	}
	a.guard = authority.NewGuard(roles, a, func(o *authority.GuardOptions) {
		o.Logger = opts.Logger
	})

	b.Register(cfg.Role)

	opts.Logger.Info("agent initialized", "role", cfg.Role, "authorities", len(auths))

	return a, nil
}

// Role returns the agent's role identity. It also satisfies
// authority.RoleHolder for the guard.
func (a *BaseAgent) Role() string { return a.cfg.Role }

// Callsign returns the agent's squad nickname.
func (a *BaseAgent) Callsign() string { return a.cfg.Callsign }

// Mode returns the current communication mode.
func (a *BaseAgent) Mode() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

// SetMode switches the communication mode.
func (a *BaseAgent) SetMode(mode string) {
	a.mu.Lock()
	a.mode = mode
	a.mu.Unlock()
	a.logger.Info("agent mode switched", "role", a.cfg.Role, "mode", mode)
}

// HasAuthority reports whether the agent's role grants the authority.
func (a *BaseAgent) HasAuthority(auth authority.Authority) bool {
	return a.authorities.Contains(auth)
}

// Guard returns the agent's authority guard for wrapping privileged
// operations.
func (a *BaseAgent) Guard() *authority.Guard { return a.guard }

// Start launches the run loop feeding the handler. Starting a running
// agent is a no-op.
func (a *BaseAgent) Start(ctx context.Context, h Handler) {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		a.logger.Warn("agent already running", "role", a.cfg.Role)
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	a.running = true
	a.cancel = cancel
	a.done = make(chan struct{})
	done := a.done
	a.mu.Unlock()

	a.logger.Info("agent started", "role", a.cfg.Role)

	go a.runLoop(runCtx, h, done)
}

// Stop cancels the run loop and waits for it to exit. After Stop returns
// no further message is handled. Stopping a stopped agent is a no-op.
func (a *BaseAgent) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	cancel, done := a.cancel, a.done
	a.mu.Unlock()

	cancel()
	<-done

	a.logger.Info("agent stopped", "role", a.cfg.Role)
}

func (a *BaseAgent) runLoop(ctx context.Context, h Handler, done chan struct{}) {
	defer close(done)

	a.logger.Debug("agent entering run loop", "role", a.cfg.Role)

	for {
		if ctx.Err() != nil {
			a.logger.Debug("agent exiting run loop", "role", a.cfg.Role)
			return
		}

		msg, err := a.bus.Receive(ctx, a.cfg.Role, a.receiveTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			a.logger.Error("receive failed", "role", a.cfg.Role, "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		if msg == nil {
			// Receive timed out with nothing queued.
			continue
		}

		a.consume(ctx, h, *msg)
	}
}

// consume audits the message to the COP and dispatches it. Audit failures
// are logged but never block delivery; handler errors are logged and the
// loop keeps running.
func (a *BaseAgent) consume(ctx context.Context, h Handler, msg bus.Message) {
	a.logger.Info("message received",
		"role", a.cfg.Role,
		"sender", msg.Sender,
		"message_type", msg.Type,
	)

	if err := a.cop.LogMessage(ctx, msg.Sender, a.cfg.Role, msg.Type, renderContent(msg.Content), msg.Metadata); err != nil {
		a.logger.Warn("message audit failed", "role", a.cfg.Role, "error", err)
	}

	var err error
	if msg.Type == TypeIntroduction {
		err = a.handleIntroduction(ctx, msg)
	} else {
		err = h.HandleMessage(ctx, msg)
	}
	if err != nil {
		a.logger.Error("message handling failed",
			"role", a.cfg.Role,
			"sender", msg.Sender,
			"message_type", msg.Type,
			"error", err,
		)
	}
}

// IntroduceSelf broadcasts a one-time LLM-generated casual introduction.
// Subsequent calls are no-ops.
func (a *BaseAgent) IntroduceSelf(ctx context.Context) error {
	a.mu.Lock()
	if a.introduced {
		a.mu.Unlock()
		return nil
	}
	a.introduced = true
	a.mu.Unlock()

	prompt := fmt.Sprintf(`You are %s in a multi-agent squad.

%s

The squad is gathering for a mission briefing. Introduce yourself to the team in a casual, friendly way.
Keep it brief (2-3 sentences), mention your role, and show your personality.
You're talking to your fellow agents before the serious work begins.

Respond as if you're speaking directly to the team.`, a.cfg.Callsign, a.cfg.CasualPersonality)

	introduction, err := a.CallLLM(ctx, prompt, func(o *CallOptions) {
		o.MaxTokens = 200
		o.Temperature = 0.9
	})
	if err != nil {
		return fmt.Errorf("introduction for %s: %w", a.cfg.Role, err)
	}

	a.SendMessage(bus.Broadcast, TypeIntroduction, IntroductionPayload{
		Callsign: a.cfg.Callsign,
		Message:  strings.TrimSpace(introduction),
	}, nil)

	a.logger.Info("agent introduced", "role", a.cfg.Role, "callsign", a.cfg.Callsign)

	return nil
}

// handleIntroduction logs another agent's introduction and, in casual mode
// before introducing itself, occasionally fires back a short reply.
func (a *BaseAgent) handleIntroduction(ctx context.Context, msg bus.Message) error {
	if msg.Sender == a.cfg.Role {
		return nil
	}

	intro, err := decodePayload[IntroductionPayload](msg)
	if err != nil {
		return fmt.Errorf("decode introduction: %w", err)
	}
	if intro.Callsign == "" {
		intro.Callsign = msg.Sender
	}

	a.logger.Info("introduction heard", "role", a.cfg.Role, "from", intro.Callsign, "message", intro.Message)

	a.mu.Lock()
	reply := a.mode == ModeCasual && !a.introduced
	a.mu.Unlock()

	if !reply || rand.Float64() >= introReplyChance {
		return nil
	}

	prompt := fmt.Sprintf(`Another agent just introduced themselves: %q

%s

Respond briefly and casually to their introduction. Keep it short (1 sentence) and friendly.
You haven't introduced yourself yet, so don't give away too much about your role.`, intro.Message, a.cfg.CasualPersonality)

	response, err := a.CallLLM(ctx, prompt, func(o *CallOptions) {
		o.MaxTokens = 100
		o.Temperature = 0.8
		o.UsePersonality = true
	})
	if err != nil {
		return fmt.Errorf("introduction reply: %w", err)
	}

	a.SendMessage(bus.Broadcast, TypeCasualChat, CasualChatPayload{
		Callsign:     a.cfg.Callsign,
		Message:      strings.TrimSpace(response),
		RespondingTo: intro.Callsign,
	}, nil)

	return nil
}

// CallOptions configures one LLM call.
type CallOptions struct {
	MaxTokens   int64
	Temperature float64

	// UsePersonality swaps the role system prompt for the casual
	// personality in casual and relaxed modes.
	UsePersonality bool
}

// CallLLM sends a prompt to the model under the mode-appropriate system
// prompt and audits the call to the COP event log.
func (a *BaseAgent) CallLLM(ctx context.Context, userMessage string, optFns ...func(o *CallOptions)) (string, error) {
	opts := CallOptions{MaxTokens: 4096, Temperature: 1.0}
	for _, fn := range optFns {
		fn(&opts)
	}

	mode := a.Mode()
	a.logger.Debug("calling llm", "role", a.cfg.Role, "mode", mode)

	var system string
	switch {
	case opts.UsePersonality && mode == ModeCasual:
		system = a.cfg.CasualPersonality + "\n\nYou are speaking casually with your team before operations begin."
	case opts.UsePersonality && mode == ModeRelaxed:
		system = a.cfg.CasualPersonality + "\n\nThe mission is complete. You can relax and speak casually with your team."
	case mode == ModeProfessional:
		system = a.cfg.SystemPrompt + "\n\nYou are in professional military mode. Use clear, concise, military-style communication. Address others by callsign when appropriate."
	default:
		system = a.cfg.SystemPrompt
	}

	start := time.Now()
	resp, err := a.model.Generate(ctx, model.Request{
		System:      system,
		Prompt:      userMessage,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	})
	dur := time.Since(start)

	info := a.model.Info()
	tokens := 0
	if err == nil && resp.Usage != nil {
		tokens = resp.Usage.TotalTokens
	}
	if sl, ok := a.logger.(*logging.SquadLogger); ok {
		sl.LogLLMCall(info.Name, tokens, dur, err == nil, err)
	}
	if err != nil {
		return "", fmt.Errorf("llm call for %s: %w", a.cfg.Role, err)
	}

	a.LogEvent(ctx, "llm_call",
		fmt.Sprintf("Called LLM with %d char prompt", len(userMessage)),
		map[string]any{
			"model":           info.Name,
			"prompt_length":   len(userMessage),
			"response_length": len(resp.Text),
		})

	return resp.Text, nil
}

// MakeDecision asks the model a question against the given context and
// audits the decision to the event log.
func (a *BaseAgent) MakeDecision(ctx context.Context, background, question string) (string, error) {
	response, err := a.CallLLM(ctx, background+"\n\n"+question)
	if err != nil {
		return "", err
	}

	a.LogEvent(ctx, "decision",
		fmt.Sprintf("Made decision: %s", truncate(question, 100)),
		map[string]any{
			"question":         question,
			"response_preview": truncate(response, 200),
		})

	return response, nil
}

// SendMessage publishes a message from this agent on the bus.
func (a *BaseAgent) SendMessage(recipient, messageType string, content any, metadata map[string]any) {
	a.bus.Send(a.cfg.Role, recipient, messageType, content, metadata)
	a.logger.Debug("message sent", "role", a.cfg.Role, "recipient", recipient, "message_type", messageType)
}

// LogEvent records an event to the COP event log under the agent's role.
// Audit failures are logged and swallowed.
func (a *BaseAgent) LogEvent(ctx context.Context, eventType, description string, data map[string]any) {
	if err := a.cop.LogEvent(ctx, a.cfg.Role, eventType, description, data); err != nil {
		a.logger.Warn("event audit failed", "role", a.cfg.Role, "event_type", eventType, "error", err)
	}
}

// COPSummary renders the current operating picture as prompt context:
// drones, the ten most recent entities, tasks and plans.
func (a *BaseAgent) COPSummary(ctx context.Context) (string, error) {
	drones, err := a.cop.Drones(ctx)
	if err != nil {
		return "", fmt.Errorf("cop summary: %w", err)
	}
	entities, err := a.cop.Entities(ctx, cop.EntityFilter{})
	if err != nil {
		return "", fmt.Errorf("cop summary: %w", err)
	}
	tasks, err := a.cop.CollectionTasks(ctx, cop.TaskFilter{})
	if err != nil {
		return "", fmt.Errorf("cop summary: %w", err)
	}
	plans, err := a.cop.MissionPlans(ctx, "")
	if err != nil {
		return "", fmt.Errorf("cop summary: %w", err)
	}

	var b strings.Builder
	b.WriteString("=== COMMON OPERATING PICTURE ===\n\n")

	fmt.Fprintf(&b, "DRONES (%d):\n", len(drones))
	for _, d := range drones {
		task := d.CurrentTask
		if task == "" {
			task = "none"
		}
		fmt.Fprintf(&b, "  - %s: (%.4f, %.4f) alt=%.0fm, fuel=%.1f%%, sensors=%s, task=%s\n",
			d.ID, d.Lat, d.Lon, d.Altitude, d.FuelPercent, d.SensorStatus, task)
	}

	fmt.Fprintf(&b, "\nENTITIES (%d):\n", len(entities))
	shown := entities
	if len(shown) > 10 {
		shown = shown[:10]
	}
	for _, e := range shown {
		fmt.Fprintf(&b, "  - #%d %s: (%.4f, %.4f) confidence=%.2f, detected_by=%s\n",
			e.ID, e.Type, e.Lat, e.Lon, e.Confidence, e.DetectedBy)
	}
	if len(entities) > 10 {
		fmt.Fprintf(&b, "  ... and %d more\n", len(entities)-10)
	}

	fmt.Fprintf(&b, "\nCOLLECTION TASKS (%d):\n", len(tasks))
	for _, t := range tasks {
		fmt.Fprintf(&b, "  - #%d %s for %s: %s, priority=%d, status=%s\n",
			t.ID, t.TaskType, t.DroneID, t.TargetArea, t.Priority, t.Status)
	}

	fmt.Fprintf(&b, "\nMISSION PLANS (%d):\n", len(plans))
	for _, p := range plans {
		fmt.Fprintf(&b, "  - #%d %s: status=%s, drones=%v\n",
			p.ID, p.Name, p.Status, p.AssignedDrones)
	}

	return b.String(), nil
}

// renderContent serializes message content for the audit trail.
func renderContent(content any) string {
	if s, ok := content.(string); ok {
		return s
	}
	b, err := json.Marshal(content)
	if err != nil {
		return fmt.Sprintf("%v", content)
	}
	return string(b)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
