package gemini

import (
	"encoding/json"
	"testing"

	"github.com/ada-assistant/ada-core/core/llms"
)

func parseServerMessage(t *testing.T, raw string) serverMessage {
	t.Helper()
	var msg serverMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatalf("failed to parse server message: %v", err)
	}
	return msg
}

func TestTranslateServerMessageModelTurn(t *testing.T) {
	msg := parseServerMessage(t, `{
		"serverContent": {
			"modelTurn": {"parts": [{"text": "Hello"}, {"text": " there"}]},
			"turnComplete": true
		}
	}`)

	translated := translateServerMessage(msg)
	if len(translated) != 3 {
		t.Fatalf("expected 3 events, got %d", len(translated))
	}
	if delta, ok := translated[0].(llms.TextDelta); !ok || delta.Text != "Hello" {
		t.Fatalf("expected the first text delta, got %#v", translated[0])
	}
	if delta, ok := translated[1].(llms.TextDelta); !ok || delta.Text != " there" {
		t.Fatalf("expected the second text delta, got %#v", translated[1])
	}
	if _, ok := translated[2].(llms.TurnComplete); !ok {
		t.Fatalf("expected a turn completion, got %#v", translated[2])
	}
}

func TestTranslateServerMessageToolCalls(t *testing.T) {
	msg := parseServerMessage(t, `{
		"toolCall": {
			"functionCalls": [
				{"id": "call-1", "name": "get_weather", "args": {"location": "Paris"}},
				{"id": "call-2", "name": "search_web"}
			]
		}
	}`)

	translated := translateServerMessage(msg)
	if len(translated) != 2 {
		t.Fatalf("expected 2 tool call requests, got %d", len(translated))
	}

	first, ok := translated[0].(llms.ToolCallRequest)
	if !ok || first.ID != "call-1" || first.Name != "get_weather" {
		t.Fatalf("unexpected first tool call: %#v", translated[0])
	}
	var args map[string]string
	if err := json.Unmarshal([]byte(first.Arguments), &args); err != nil || args["location"] != "Paris" {
		t.Fatalf("expected the raw arguments to round-trip, got %q", first.Arguments)
	}

	second, ok := translated[1].(llms.ToolCallRequest)
	if !ok || second.Arguments != "{}" {
		t.Fatalf("expected empty arguments to default to an empty object, got %#v", translated[1])
	}
}

func TestTranslateServerMessageInterruption(t *testing.T) {
	msg := parseServerMessage(t, `{"serverContent": {"interrupted": true}}`)

	translated := translateServerMessage(msg)
	if len(translated) != 1 {
		t.Fatalf("expected 1 event, got %d", len(translated))
	}
	if _, ok := translated[0].(llms.Interrupted); !ok {
		t.Fatalf("expected an interruption event, got %#v", translated[0])
	}
}

func TestTranslateServerMessageSetupCompleteYieldsNothing(t *testing.T) {
	msg := parseServerMessage(t, `{"setupComplete": {}}`)

	if translated := translateServerMessage(msg); len(translated) != 0 {
		t.Fatalf("expected no events for setup confirmation, got %#v", translated)
	}
}
