// Package session is the Session State Machine (spec §4.5): owns the
// current-mode variable, the recording/clozing flags, and the active
// keycode→action table. Only the Input Dispatcher goroutine may drive
// transitions (spec §5); the mutex here guards against a programmer error
// introducing a second writer, not genuine concurrent access.
package session

import (
	"errors"
	"fmt"
	"sync"

	"audioassistant/internal/keymap"
)

// ErrInvalidState is returned when an operation is attempted from a mode
// that cannot reach it (spec §7). A contract bug, not a user error.
var ErrInvalidState = errors.New("session: invalid state")

// Debug controls whether ErrInvalidState is also panicked instead of just
// returned (spec §7: "it may panic in debug builds").
var Debug = false

// QueueID names one of the five queue identities a Session can be loaded
// with (spec §4.4).
type QueueID string

const (
	GlobalTopic   QueueID = "global-topic"
	GlobalExtract QueueID = "global-extract"
	GlobalItem    QueueID = "global-item"
	LocalExtract  QueueID = "local-extract"
	LocalItem     QueueID = "local-item"
)

// State is a read-only snapshot of the four state variables (spec §4.5).
type State struct {
	CurrentQueue QueueID
	Mode         keymap.Mode
	Recording    bool
	Clozing      bool
	ActiveKeys   keymap.Table
}

// Session holds the mutable state machine. The zero value is not usable;
// construct with New.
type Session struct {
	mu    sync.Mutex
	state State
}

// New returns a Session in its initial state: global-topic, Topic mode,
// recording and clozing both false (spec §4.5).
func New(topicKeys keymap.Table) *Session {
	return &Session{
		state: State{
			CurrentQueue: GlobalTopic,
			Mode:         keymap.ModeTopic,
			ActiveKeys:   topicKeys,
		},
	}
}

// Snapshot returns the current state. Safe to call from any goroutine; the
// returned value is a copy.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) fail(format string, args ...any) error {
	err := fmt.Errorf("%w: "+format, append([]any{ErrInvalidState}, args...)...)
	if Debug {
		panic(err)
	}
	return err
}

// LoadQueue switches to a new queue identity and its action table (spec
// §4.4 step 5). Valid from any mode except Recording or Clozing — a queue
// switch mid-capture is a contract bug (the dispatcher must stop recording/
// clozing first).
func (s *Session) LoadQueue(q QueueID, mode keymap.Mode, keys keymap.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Recording || s.state.Clozing {
		return s.fail("cannot switch queue while recording=%v clozing=%v", s.state.Recording, s.state.Clozing)
	}
	s.state.CurrentQueue = q
	s.state.Mode = mode
	s.state.ActiveKeys = keys
	return nil
}

// EnterRecording transitions Topic → Recording (spec §4.5). Valid only from
// global-topic (spec §4.4).
func (s *Session) EnterRecording(keys keymap.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.CurrentQueue != GlobalTopic || s.state.Mode != keymap.ModeTopic {
		return s.fail("start_recording requires global-topic, got queue=%s mode=%s", s.state.CurrentQueue, s.state.Mode)
	}
	s.state.Recording = true
	s.state.Mode = keymap.ModeRecording
	s.state.ActiveKeys = keys
	return nil
}

// ExitRecording transitions Recording → Topic (spec §4.5).
func (s *Session) ExitRecording(topicKeys keymap.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Recording {
		return s.fail("stop_recording requires an active recording")
	}
	s.state.Recording = false
	s.state.Mode = keymap.ModeTopic
	s.state.ActiveKeys = topicKeys
	return nil
}

// EnterClozing transitions Extract → Clozing (spec §4.5). Valid only from
// an extract queue (spec §4.4).
func (s *Session) EnterClozing(keys keymap.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Mode != keymap.ModeExtract {
		return s.fail("start_clozing requires extract mode, got %s", s.state.Mode)
	}
	s.state.Clozing = true
	s.state.Mode = keymap.ModeClozing
	s.state.ActiveKeys = keys
	return nil
}

// ExitClozing transitions Clozing → Extract (spec §4.5).
func (s *Session) ExitClozing(extractKeys keymap.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Clozing {
		return s.fail("stop_clozing requires an active cloze")
	}
	s.state.Clozing = false
	s.state.Mode = keymap.ModeExtract
	s.state.ActiveKeys = extractKeys
	return nil
}
