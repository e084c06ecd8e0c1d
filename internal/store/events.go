package store

import (
	"fmt"
	"time"

	"audioassistant/internal/model"
)

// SubjectKind names the events table of an entity kind. Events are owned by
// their subject and have no independent lifecycle (spec §3).
type SubjectKind string

const (
	SubjectTopic   SubjectKind = "topic_events"
	SubjectExtract SubjectKind = "extract_events"
	SubjectItem    SubjectKind = "item_events"
)

// AppendEvent inserts a new Event row for subjectID.
func (s *Store) AppendEvent(table SubjectKind, subjectID string, kind model.EventKind, position float64) (int64, error) {
	now := time.Now().UTC()
	res, err := s.db.Exec(`INSERT INTO `+string(table)+` (subject_id, kind, position, duration_sec, created_at)
		VALUES (?,?,?,0,?)`, subjectID, string(kind), position, now)
	if err != nil {
		return 0, fmt.Errorf("%w: append event: %v", ErrStorage, err)
	}
	return res.LastInsertId()
}

// LatestEvent returns the most recently created event for subjectID, or nil
// if none exists.
func (s *Store) LatestEvent(table SubjectKind, subjectID string) (*model.Event, error) {
	row := s.db.QueryRow(`SELECT id, subject_id, kind, position, duration_sec, created_at
		FROM `+string(table)+` WHERE subject_id = ? ORDER BY id DESC LIMIT 1`, subjectID)
	var e model.Event
	var kind string
	if err := row.Scan(&e.ID, &e.SubjectID, &kind, &e.Position, &e.DurationSec, &e.CreatedAt); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: latest event: %v", ErrStorage, err)
	}
	e.Kind = model.EventKind(kind)
	return &e, nil
}

// ExtendEvent increases an existing event's duration counter (spec §4.7:
// "extend by increasing its duration field").
func (s *Store) ExtendEvent(table SubjectKind, id int64, addSeconds float64) error {
	_, err := s.db.Exec(`UPDATE `+string(table)+` SET duration_sec = duration_sec + ? WHERE id = ?`,
		addSeconds, id)
	if err != nil {
		return fmt.Errorf("%w: extend event: %v", ErrStorage, err)
	}
	return nil
}

// RecordPlaybackObservation appends or extends the current event for
// subjectID, matching §4.7's progress-sampler rule: extend when the kind
// matches the most recent event, otherwise start a new one.
func (s *Store) RecordPlaybackObservation(table SubjectKind, subjectID string, kind model.EventKind, position float64, elapsedSinceLast float64) error {
	latest, err := s.LatestEvent(table, subjectID)
	if err != nil {
		return err
	}
	if latest != nil && latest.Kind == kind {
		return s.ExtendEvent(table, latest.ID, elapsedSinceLast)
	}
	_, err = s.AppendEvent(table, subjectID, kind, position)
	return err
}
