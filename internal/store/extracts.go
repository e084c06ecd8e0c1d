package store

import (
	"database/sql"
	"fmt"
	"time"

	"audioassistant/internal/model"

	"github.com/google/uuid"
)

const extractColumns = `id, topic_id, filepath, startstamp, endstamp, archived, deleted, exported, to_export, created_at`

func scanExtract(row interface{ Scan(...any) error }) (*model.Extract, error) {
	var e model.Extract
	var archived, deleted, exported, toExport int
	var endstamp sql.NullFloat64
	if err := row.Scan(
		&e.ID, &e.TopicID, &e.Filepath, &e.Startstamp, &endstamp,
		&archived, &deleted, &exported, &toExport, &e.CreatedAt,
	); err != nil {
		return nil, err
	}
	if endstamp.Valid {
		v := endstamp.Float64
		e.Endstamp = &v
	}
	e.Archived = archived != 0
	e.Deleted = deleted != 0
	e.Exported = exported != 0
	e.ToExport = toExport != 0
	return &e, nil
}

// CreateExtract inserts a new Extract. Created when the user starts a
// recording (spec §3); Endstamp is nil until recording stops.
func (s *Store) CreateExtract(e *model.Extract) (*model.Extract, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if _, err := s.GetTopic(e.TopicID); err != nil {
		return nil, fmt.Errorf("%w: parent topic %q", ErrNotFound, e.TopicID)
	}
	_, err := s.db.Exec(`INSERT INTO extracts
		(id, topic_id, filepath, startstamp, endstamp, archived, deleted, exported, to_export, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		e.ID, e.TopicID, e.Filepath, e.Startstamp, nullableFloat(e.Endstamp),
		boolInt(e.Archived), boolInt(e.Deleted), boolInt(e.Exported), boolInt(e.ToExport), e.CreatedAt,
	)
	if isUniqueConflict(err) {
		return nil, fmt.Errorf("%w: extract filepath already exists", ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: create extract: %v", ErrStorage, err)
	}
	return e, nil
}

// GetExtract fetches an Extract by id.
func (s *Store) GetExtract(id string) (*model.Extract, error) {
	row := s.db.QueryRow(`SELECT `+extractColumns+` FROM extracts WHERE id = ?`, id)
	e, err := scanExtract(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: extract %q", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get extract: %v", ErrStorage, err)
	}
	return e, nil
}

// FindExtractByPath is an exactly-one-or-none lookup by stored canonical path.
func (s *Store) FindExtractByPath(path string) (*model.Extract, error) {
	row := s.db.QueryRow(`SELECT `+extractColumns+` FROM extracts WHERE filepath = ?`, path)
	e, err := scanExtract(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find extract by path: %v", ErrStorage, err)
	}
	return e, nil
}

// ExtractsOutstanding returns non-deleted extracts ordered by creation time
// descending (spec §4.1).
func (s *Store) ExtractsOutstanding() ([]*model.Extract, error) {
	return s.queryExtracts(`SELECT ` + extractColumns + ` FROM extracts
		WHERE deleted = 0 ORDER BY created_at DESC`)
}

// ExtractsByTopic returns the non-deleted children of a Topic, oldest first
// (used by local-extract queue loading, spec §4.4).
func (s *Store) ExtractsByTopic(topicID string) ([]*model.Extract, error) {
	return s.queryExtracts(`SELECT `+extractColumns+` FROM extracts
		WHERE topic_id = ? AND deleted = 0 ORDER BY created_at ASC`, topicID)
}

func (s *Store) queryExtracts(query string, args ...any) ([]*model.Extract, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query extracts: %v", ErrStorage, err)
	}
	defer rows.Close()

	var out []*model.Extract
	for rows.Next() {
		e, err := scanExtract(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan extract: %v", ErrStorage, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// StopExtractRecording fills in Endstamp. Invariant enforced: startstamp < endstamp.
func (s *Store) StopExtractRecording(id string, endstamp float64) error {
	e, err := s.GetExtract(id)
	if err != nil {
		return err
	}
	if endstamp <= e.Startstamp {
		return fmt.Errorf("%w: endstamp %.3f must exceed startstamp %.3f", ErrConflict, endstamp, e.Startstamp)
	}
	_, err = s.db.Exec(`UPDATE extracts SET endstamp = ? WHERE id = ?`, endstamp, id)
	if err != nil {
		return fmt.Errorf("%w: stop extract recording: %v", ErrStorage, err)
	}
	return nil
}

// SetExtractArchived sets or clears the archived flag. Idempotent.
func (s *Store) SetExtractArchived(id string, archived bool) error {
	res, err := s.db.Exec(`UPDATE extracts SET archived = ? WHERE id = ?`, boolInt(archived), id)
	if err != nil {
		return fmt.Errorf("%w: set extract archived: %v", ErrStorage, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: extract %q", ErrNotFound, id)
	}
	return nil
}

// SetExtractToExport toggles the to_export flag (spec §6 keymap: toggle-to-export).
func (s *Store) SetExtractToExport(id string, toExport bool) error {
	_, err := s.db.Exec(`UPDATE extracts SET to_export = ? WHERE id = ?`, boolInt(toExport), id)
	if err != nil {
		return fmt.Errorf("%w: set extract to_export: %v", ErrStorage, err)
	}
	return nil
}

// SetExtractDeleted marks an extract deleted. Used only by GC.
func (s *Store) SetExtractDeleted(id string) error {
	_, err := s.db.Exec(`UPDATE extracts SET deleted = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: set extract deleted: %v", ErrStorage, err)
	}
	return nil
}

func nullableFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
