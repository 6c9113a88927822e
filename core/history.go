package session

import (
	"sync"
	"time"

	"github.com/jinzhu/copier"

	"github.com/ada-assistant/ada-core/core/tools"
)

// Role tags who produced a history entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// TurnRecord is one completed turn as the session observed it.
type TurnRecord struct {
	ID        string
	Role      Role
	Text      string
	ToolCalls []tools.Result
	At        time.Time
}

// history keeps a per-session record of turns. The backend holds the
// authoritative conversation context; this record exists for observability
// and client-side replay.
type history struct {
	mu    sync.Mutex
	turns []TurnRecord
}

func (h *history) appendUserTurn(id, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, TurnRecord{ID: id, Role: RoleUser, Text: text, At: time.Now()})
}

func (h *history) appendAssistantTurn(text string, calls []tools.Result) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, TurnRecord{Role: RoleAssistant, Text: text, ToolCalls: calls, At: time.Now()})
}

// Snapshot returns a deep copy of the recorded turns, safe to retain and
// mutate.
func (h *history) Snapshot() []TurnRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	turns := []TurnRecord{}
	if err := copier.CopyWithOption(&turns, &h.turns, copier.Option{DeepCopy: true}); err != nil {
		logger.Error("copying conversation history", "error", err)
		return nil
	}
	return turns
}
