package forwarder

import (
	"errors"

	"github.com/yachaflex/pairing/internal/model/biometric"
	"github.com/yachaflex/pairing/internal/model/pairing"
)

var (
	ErrNoDescriptor = errors.New("no descriptor set")
	ErrStale        = errors.New("result belongs to a superseded descriptor")
	ErrEmptyPayload = errors.New("payload is empty")
)

// Collected is one fetch result: the payload, its wire form and the text shown
// to the user.
type Collected struct {
	Payload biometric.Payload
	Body    []byte
	Summary string
}

// SessionState is the mutable record of one pairing attempt. It is not safe
// for concurrent use; the Orchestrator loop is its only writer.
type SessionState struct {
	descriptor *pairing.Descriptor
	payload    *Collected
	generation uint64
}

// StateSnapshot is an immutable copy of SessionState.
type StateSnapshot struct {
	Descriptor  *pairing.Descriptor
	Payload     *Collected
	ReadyToSend bool
	Generation  uint64
}

// SetDescriptor replaces the descriptor, drops any payload fetched under the
// previous one and returns the new generation.
func (s *SessionState) SetDescriptor(d pairing.Descriptor) uint64 {
	s.descriptor = &d
	s.payload = nil
	s.generation++
	return s.generation
}

// SetPayload stores a fetch result started under generation gen.
func (s *SessionState) SetPayload(gen uint64, c Collected) error {
	if s.descriptor == nil {
		return ErrNoDescriptor
	}
	if gen != s.generation {
		return ErrStale
	}
	if len(c.Body) == 0 {
		return ErrEmptyPayload
	}
	s.payload = &c
	return nil
}

// Clear resets the state to empty and invalidates anything still in flight.
func (s *SessionState) Clear() {
	s.descriptor = nil
	s.payload = nil
	s.generation++
}

// Current reports whether gen is still the live generation.
func (s *SessionState) Current(gen uint64) bool {
	return gen == s.generation
}

// Snapshot copies the state.
func (s *SessionState) Snapshot() StateSnapshot {
	snap := StateSnapshot{Generation: s.generation}
	if s.descriptor != nil {
		d := *s.descriptor
		snap.Descriptor = &d
	}
	if s.payload != nil {
		c := *s.payload
		c.Body = append([]byte(nil), s.payload.Body...)
		snap.Payload = &c
		snap.ReadyToSend = true
	}
	return snap
}
