package dispatch

import (
	"context"
	"errors"
	"sync"
)

// ErrNotReady is returned by Submit outside the Input phase or without an eligible service.
var ErrNotReady = errors.New("submission not allowed")

// Phase is the state of the submit control.
type Phase int

const (
	PhaseInitialize Phase = iota
	PhaseInput
	PhaseProcess
	PhaseOutput
)

func (p Phase) String() string {
	switch p {
	case PhaseInput:
		return "Input"
	case PhaseProcess:
		return "Process"
	case PhaseOutput:
		return "Output"
	default:
		return "Initialize"
	}
}

// Label is the caption shown on the submit control.
func (p Phase) Label() string {
	switch p {
	case PhaseProcess:
		return "Multiposting"
	case PhaseOutput:
		return "Multiposted"
	default:
		return "Multipost"
	}
}

// Submitter guards a single submission: Initialize → Input → Process → Output.
type Submitter struct {
	mu    sync.Mutex
	phase Phase
}

// Phase returns the current phase.
func (s *Submitter) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Ready moves an initialized (or finished) submitter to Input.
func (s *Submitter) Ready() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseInitialize || s.phase == PhaseOutput {
		s.phase = PhaseInput
	}
}

// CanSubmit reports whether Submit would be accepted.
func (s *Submitter) CanSubmit(hasService bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase == PhaseInput && hasService
}

// Submit enters Process, runs fn to completion and only then enters Output,
// whatever fn returns.
func (s *Submitter) Submit(ctx context.Context, hasService bool, fn func(context.Context) error) error {
	s.mu.Lock()
	if s.phase != PhaseInput || !hasService {
		s.mu.Unlock()
		return ErrNotReady
	}
	s.phase = PhaseProcess
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.phase = PhaseOutput
		s.mu.Unlock()
	}()
	return fn(ctx)
}
