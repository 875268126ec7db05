package generation

import (
	"context"
	"fmt"
	"sync"
)

type Reply struct {
	Text string
	Err  error
}

// Scripted replays queued replies in order and records every prompt it was
// given. It stands in for a real model in tests and offline runs.
type Scripted struct {
	mu      sync.Mutex
	replies []Reply
	prompts []string
}

func NewScripted(replies ...Reply) *Scripted {
	return &Scripted{replies: replies}
}

// Texts is shorthand for a script of successful replies.
func Texts(texts ...string) *Scripted {
	replies := make([]Reply, 0, len(texts))
	for _, text := range texts {
		replies = append(replies, Reply{Text: text})
	}
	return NewScripted(replies...)
}

func (s *Scripted) Generate(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(s.replies) == 0 {
		return "", fmt.Errorf("scripted generator exhausted after %d calls", len(s.prompts)-1)
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return reply.Text, reply.Err
}

func (s *Scripted) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.prompts))
	copy(out, s.prompts)
	return out
}

func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}
