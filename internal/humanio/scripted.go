package humanio

import (
	"context"
	"fmt"
	"sync"

	crucerrors "github.com/crucidev/crucible/internal/errors"
)

// Scripted is an Interactor that replays canned replies in order.
// It backs unattended runs and tests; each call consumes one reply.
type Scripted struct {
	mu       sync.Mutex
	confirms []bool
	selects  []string
	inputs   []string

	// Prompts records every prompt shown, for assertions.
	Prompts []string
}

// NewScripted creates a Scripted interactor with the given reply queues.
func NewScripted(confirms []bool, selects, inputs []string) *Scripted {
	return &Scripted{confirms: confirms, selects: selects, inputs: inputs}
}

// Confirm replays the next scripted confirmation.
func (s *Scripted) Confirm(_ context.Context, prompt string, _ bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Prompts = append(s.Prompts, prompt)
	if len(s.confirms) == 0 {
		return false, fmt.Errorf("no scripted confirmation for %q: %w", prompt, crucerrors.ErrNonInteractiveMode)
	}
	v := s.confirms[0]
	s.confirms = s.confirms[1:]
	return v, nil
}

// Select replays the next scripted selection.
func (s *Scripted) Select(_ context.Context, prompt string, options []string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Prompts = append(s.Prompts, prompt)
	if len(s.selects) == 0 {
		return "", fmt.Errorf("no scripted selection for %q: %w", prompt, crucerrors.ErrNonInteractiveMode)
	}
	v := s.selects[0]
	s.selects = s.selects[1:]

	for _, opt := range options {
		if opt == v {
			return v, nil
		}
	}
	return "", fmt.Errorf("scripted selection %q not among options %v: %w", v, options, crucerrors.ErrEmptyValue)
}

// Input replays the next scripted input.
func (s *Scripted) Input(_ context.Context, prompt, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Prompts = append(s.Prompts, prompt)
	if len(s.inputs) == 0 {
		return "", fmt.Errorf("no scripted input for %q: %w", prompt, crucerrors.ErrNonInteractiveMode)
	}
	v := s.inputs[0]
	s.inputs = s.inputs[1:]
	return v, nil
}
