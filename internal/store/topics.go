package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"audioassistant/internal/model"

	"github.com/google/uuid"
)

// topicArchiveThreshold is the progress fraction above which a Topic
// auto-archives during a GC sweep (spec §3, §9 — resolved as a fraction,
// never a percentage).
const topicArchiveThreshold = 0.9

func scanTopic(row interface{ Scan(...any) error }) (*model.Topic, error) {
	var t model.Topic
	var downloaded, archived, deleted int
	if err := row.Scan(
		&t.ID, &t.Filepath, &t.DurationSeconds, &t.SourceID, &t.Title,
		&t.PlaybackRate, &t.CurrentTimestamp, &downloaded, &archived, &deleted,
		&t.SMElementID, &t.SMPriority, &t.CreatedAt,
	); err != nil {
		return nil, err
	}
	t.Downloaded = downloaded != 0
	t.Archived = archived != 0
	t.Deleted = deleted != 0
	return &t, nil
}

const topicColumns = `id, filepath, duration_seconds, source_id, title, playback_rate,
	current_timestamp, downloaded, archived, deleted, sm_element_id, sm_priority, created_at`

// CreateTopic inserts a new Topic created by ingestion. Downloaded is stored
// as the caller set it.
func (s *Store) CreateTopic(t *model.Topic) (*model.Topic, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.PlaybackRate == 0 {
		t.PlaybackRate = 1.0
	}
	_, err := s.db.Exec(`INSERT INTO topics
		(id, filepath, duration_seconds, source_id, title, playback_rate,
		 current_timestamp, downloaded, archived, deleted, sm_element_id, sm_priority, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Filepath, t.DurationSeconds, t.SourceID, t.Title, t.PlaybackRate,
		t.CurrentTimestamp, boolInt(t.Downloaded), boolInt(t.Archived), boolInt(t.Deleted),
		t.SMElementID, t.SMPriority, t.CreatedAt,
	)
	if isUniqueConflict(err) {
		return nil, fmt.Errorf("%w: topic filepath or source_id already exists", ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: create topic: %v", ErrStorage, err)
	}
	return t, nil
}

// GetTopic fetches a Topic by id.
func (s *Store) GetTopic(id string) (*model.Topic, error) {
	row := s.db.QueryRow(`SELECT `+topicColumns+` FROM topics WHERE id = ?`, id)
	t, err := scanTopic(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: topic %q", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get topic: %v", ErrStorage, err)
	}
	return t, nil
}

// FindTopicByPath is an exactly-one-or-none lookup by stored canonical path.
func (s *Store) FindTopicByPath(path string) (*model.Topic, error) {
	row := s.db.QueryRow(`SELECT `+topicColumns+` FROM topics WHERE filepath = ?`, path)
	t, err := scanTopic(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find topic by path: %v", ErrStorage, err)
	}
	return t, nil
}

// TopicsOutstanding returns non-deleted, non-archived topics whose progress
// is below the archive threshold, ordered by creation time ascending
// (spec §4.1).
func (s *Store) TopicsOutstanding() ([]*model.Topic, error) {
	rows, err := s.db.Query(`SELECT ` + topicColumns + ` FROM topics
		WHERE deleted = 0 AND archived = 0
		  AND (duration_seconds <= 0 OR current_timestamp / duration_seconds < ` +
		ftoa(topicArchiveThreshold) + `)
		ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("%w: topics outstanding: %v", ErrStorage, err)
	}
	defer rows.Close()

	var out []*model.Topic
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan topic: %v", ErrStorage, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateTopicTimestamp applies a monotone non-decreasing write to
// current_timestamp: the write is only applied if strictly greater than the
// stored value (spec §5).
func (s *Store) UpdateTopicTimestamp(id string, elapsed float64) error {
	res, err := s.db.Exec(`UPDATE topics SET current_timestamp = ?
		WHERE id = ? AND ? > current_timestamp`, elapsed, id, elapsed)
	if err != nil {
		return fmt.Errorf("%w: update topic timestamp: %v", ErrStorage, err)
	}
	n, _ := res.RowsAffected()
	_ = n // 0 rows affected is not an error: either not-yet-monotone or unknown id
	return nil
}

// SetTopicArchived sets or clears the archived flag. Idempotent.
func (s *Store) SetTopicArchived(id string, archived bool) error {
	res, err := s.db.Exec(`UPDATE topics SET archived = ? WHERE id = ?`, boolInt(archived), id)
	if err != nil {
		return fmt.Errorf("%w: set topic archived: %v", ErrStorage, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: topic %q", ErrNotFound, id)
	}
	return nil
}

// SetTopicDeleted marks a topic deleted. Used only by GC.
func (s *Store) SetTopicDeleted(id string) error {
	_, err := s.db.Exec(`UPDATE topics SET deleted = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: set topic deleted: %v", ErrStorage, err)
	}
	return nil
}

// AutoArchiveTopics archives topics whose progress has crossed the
// threshold. Spec §9: auto-archive is attempted only during a GC sweep, not
// via a DB-side hook.
func (s *Store) AutoArchiveTopics() (int64, error) {
	res, err := s.db.Exec(`UPDATE topics SET archived = 1
		WHERE deleted = 0 AND archived = 0
		  AND duration_seconds > 0
		  AND current_timestamp / duration_seconds > ` + ftoa(topicArchiveThreshold))
	if err != nil {
		return 0, fmt.Errorf("%w: auto-archive topics: %v", ErrStorage, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// IsArchived reports whether sourceID has already been ingested, per the
// archive_file config contract (spec §6).
func (s *Store) IsArchived(sourceID string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM archive_ledger WHERE source_id = ?`, sourceID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: is archived: %v", ErrStorage, err)
	}
	return true, nil
}

// RecordArchived marks sourceID as already ingested. Idempotent.
func (s *Store) RecordArchived(sourceID string) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO archive_ledger (source_id) VALUES (?)`, sourceID)
	if err != nil {
		return fmt.Errorf("%w: record archived: %v", ErrStorage, err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueConflict(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint")
}

// ftoa renders a float64 constant into the literal form SQLite expects when
// spliced into a query string. Only ever called with compile-time constants
// in this package, never user input.
func ftoa(f float64) string {
	return fmt.Sprintf("%g", f)
}
