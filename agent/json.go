package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/agentsquad/bus"
)

// decodePayload converts a message's content into the typed payload for
// its message type. Content is either the payload struct itself (local
// senders) or a generic map (deserialized input), so it goes through a
// JSON round trip.
func decodePayload[T any](msg bus.Message) (T, error) {
	var out T
	if v, ok := msg.Content.(T); ok {
		return v, nil
	}
	b, err := json.Marshal(msg.Content)
	if err != nil {
		return out, fmt.Errorf("encode %s content: %w", msg.Type, err)
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("decode %s content: %w", msg.Type, err)
	}
	return out, nil
}

// decodeDecision extracts the JSON object embedded in an LLM response and
// unmarshals it. Models wrap JSON in prose or code fences, so everything
// from the first '{' to the last '}' is taken as the object. A response
// with no JSON object yields the zero decision without error, matching
// the treat-as-no-op handling of unusable responses.
func decodeDecision[T any](response string) (T, error) {
	var out T

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start < 0 || end <= start {
		return out, nil
	}

	if err := json.Unmarshal([]byte(response[start:end+1]), &out); err != nil {
		return out, fmt.Errorf("decode llm decision: %w", err)
	}
	return out, nil
}

// mustJSON renders a value as indented JSON for prompt embedding.
func mustJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
