// Package session keeps per-conversation chat history in memory.
package session

import (
	"sync"
	"time"

	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/orchestrator"
)

type Turn struct {
	Question string              `json:"question"`
	Markdown string              `json:"markdown"`
	Extras   orchestrator.Extras `json:"extras"`
	At       time.Time           `json:"at"`
}

// History is an append-only list of turns until Clear is called.
type History struct {
	mu    sync.Mutex
	turns []Turn
}

func (h *History) Append(turn Turn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, turn)
}

// Turns returns a copy in insertion order.
func (h *History) Turns() []Turn {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}

func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = nil
}
