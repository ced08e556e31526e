package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/agentsquad/bus"
)

// handleCasualChat logs squad banter. Agents listen but do not chain
// replies to replies.
func (a *BaseAgent) handleCasualChat(msg bus.Message) error {
	if msg.Sender == a.cfg.Role {
		return nil
	}

	chat, err := decodePayload[CasualChatPayload](msg)
	if err != nil {
		return fmt.Errorf("decode casual chat: %w", err)
	}
	if chat.Callsign == "" {
		chat.Callsign = msg.Sender
	}

	a.logger.Info("squad chatter", "role", a.cfg.Role, "from", chat.Callsign, "message", chat.Message)

	return nil
}

// handleMissionDebrief answers a debrief prompt in relaxed mode. The
// perspective line tells the model what this role just spent the mission
// doing. Outside relaxed mode debriefs are ignored.
func (a *BaseAgent) handleMissionDebrief(ctx context.Context, msg bus.Message, perspective string) error {
	if a.Mode() != ModeRelaxed {
		return nil
	}

	debrief, err := decodePayload[MissionDebriefPayload](msg)
	if err != nil {
		return fmt.Errorf("decode mission debrief: %w", err)
	}

	prompt := fmt.Sprintf(`The mission is complete and the team is debriefing. Someone asked: %q

%s

%s
Respond in a relaxed, casual way about how the mission went from your perspective.
Keep it brief (1-2 sentences) and show your personality.`, debrief.Message, a.cfg.CasualPersonality, perspective)

	response, err := a.CallLLM(ctx, prompt, func(o *CallOptions) {
		o.MaxTokens = 150
		o.Temperature = 0.8
		o.UsePersonality = true
	})
	if err != nil {
		return fmt.Errorf("mission debrief reply: %w", err)
	}

	a.SendMessage(bus.Broadcast, TypeCasualChat, CasualChatPayload{
		Callsign: a.cfg.Callsign,
		Message:  strings.TrimSpace(response),
	}, nil)

	return nil
}
