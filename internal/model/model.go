// Package model defines the content-graph entities shared by the store,
// queue engine, and audio pipeline: Topic, Extract, Item, and their Events.
package model

import "time"

// EventKind is the playback state an Event observes.
type EventKind string

const (
	EventPlay  EventKind = "play"
	EventPause EventKind = "pause"
	EventStop  EventKind = "stop"
)

// Topic is one audio recording plus metadata (spec §3).
type Topic struct {
	ID               string
	Filepath         string
	DurationSeconds  float64
	SourceID         string
	Title            string
	PlaybackRate     float64
	CurrentTimestamp float64
	Downloaded       bool
	Archived         bool
	Deleted          bool
	SMElementID      string
	SMPriority       int
	CreatedAt        time.Time
}

// Progress returns current position as a fraction of duration in [0, 1].
// Returns 0 when duration is not yet known.
func (t *Topic) Progress() float64 {
	if t.DurationSeconds <= 0 {
		return 0
	}
	p := t.CurrentTimestamp / t.DurationSeconds
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// Extract is a contiguous segment recorded from a parent Topic (spec §3).
type Extract struct {
	ID         string
	TopicID    string
	Filepath   string
	Startstamp float64
	// Endstamp is nil until recording stops.
	Endstamp *float64
	Archived  bool
	Deleted   bool
	Exported  bool
	ToExport  bool
	CreatedAt time.Time
}

// Length returns Endstamp-Startstamp, or 0 if Endstamp is not yet set.
func (e *Extract) Length() float64 {
	if e.Endstamp == nil {
		return 0
	}
	return *e.Endstamp - e.Startstamp
}

// Item is a (question, answer) audio pair built from a cloze span inside a
// parent Extract (spec §3).
type Item struct {
	ID                string
	ExtractID         string
	QuestionFilepath  *string
	AnswerFilepath    *string
	ClozeStartstamp   float64
	ClozeEndstamp     *float64
	Archived          bool
	Deleted           bool
	Exported          bool
	CreatedAt         time.Time
}

// Event is an observation of playback state (spec §3). Subject identifies
// the owning Topic/Extract/Item by ID; the store keeps events in separate
// per-entity tables but they share this shape.
type Event struct {
	ID          int64
	SubjectID   string
	Kind        EventKind
	Position    float64
	DurationSec float64
	CreatedAt   time.Time
}
