package store

import (
	"database/sql"
	"fmt"
	"time"

	"audioassistant/internal/model"

	"github.com/google/uuid"
)

const itemColumns = `id, extract_id, question_filepath, answer_filepath,
	cloze_startstamp, cloze_endstamp, archived, deleted, exported, created_at`

func scanItem(row interface{ Scan(...any) error }) (*model.Item, error) {
	var it model.Item
	var archived, deleted, exported int
	var question, answer sql.NullString
	var clozeEnd sql.NullFloat64
	if err := row.Scan(
		&it.ID, &it.ExtractID, &question, &answer,
		&it.ClozeStartstamp, &clozeEnd, &archived, &deleted, &exported, &it.CreatedAt,
	); err != nil {
		return nil, err
	}
	if question.Valid {
		v := question.String
		it.QuestionFilepath = &v
	}
	if answer.Valid {
		v := answer.String
		it.AnswerFilepath = &v
	}
	if clozeEnd.Valid {
		v := clozeEnd.Float64
		it.ClozeEndstamp = &v
	}
	it.Archived = archived != 0
	it.Deleted = deleted != 0
	it.Exported = exported != 0
	return &it, nil
}

// CreateItem inserts a new Item. Created when start_clozing fires inside an
// Extract queue (spec §3); ClozeEndstamp and the media paths are filled in
// later.
func (s *Store) CreateItem(it *model.Item) (*model.Item, error) {
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	if it.CreatedAt.IsZero() {
		it.CreatedAt = time.Now().UTC()
	}
	if _, err := s.GetExtract(it.ExtractID); err != nil {
		return nil, fmt.Errorf("%w: parent extract %q", ErrNotFound, it.ExtractID)
	}
	_, err := s.db.Exec(`INSERT INTO items
		(id, extract_id, question_filepath, answer_filepath, cloze_startstamp, cloze_endstamp,
		 archived, deleted, exported, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		it.ID, it.ExtractID, nullableString(it.QuestionFilepath), nullableString(it.AnswerFilepath),
		it.ClozeStartstamp, nullableFloat(it.ClozeEndstamp),
		boolInt(it.Archived), boolInt(it.Deleted), boolInt(it.Exported), it.CreatedAt,
	)
	if isUniqueConflict(err) {
		return nil, fmt.Errorf("%w: item media path already exists", ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: create item: %v", ErrStorage, err)
	}
	return it, nil
}

// GetItem fetches an Item by id.
func (s *Store) GetItem(id string) (*model.Item, error) {
	row := s.db.QueryRow(`SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	it, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: item %q", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get item: %v", ErrStorage, err)
	}
	return it, nil
}

// FindItemByQuestionPath is an exactly-one-or-none lookup by stored
// canonical question path.
func (s *Store) FindItemByQuestionPath(path string) (*model.Item, error) {
	row := s.db.QueryRow(`SELECT `+itemColumns+` FROM items WHERE question_filepath = ?`, path)
	it, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find item by question path: %v", ErrStorage, err)
	}
	return it, nil
}

// ItemsOutstanding returns non-deleted items with a completed question file
// (spec §4.1).
func (s *Store) ItemsOutstanding() ([]*model.Item, error) {
	return s.queryItems(`SELECT ` + itemColumns + ` FROM items
		WHERE deleted = 0 AND question_filepath IS NOT NULL
		ORDER BY created_at DESC`)
}

// ItemsByExtract returns the non-deleted children of an Extract.
func (s *Store) ItemsByExtract(extractID string) ([]*model.Item, error) {
	return s.queryItems(`SELECT `+itemColumns+` FROM items
		WHERE extract_id = ? AND deleted = 0 ORDER BY created_at ASC`, extractID)
}

func (s *Store) queryItems(query string, args ...any) ([]*model.Item, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query items: %v", ErrStorage, err)
	}
	defer rows.Close()

	var out []*model.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan item: %v", ErrStorage, err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// StopItemClozing fills in ClozeEndstamp. Invariant enforced:
// cloze_startstamp < cloze_endstamp.
func (s *Store) StopItemClozing(id string, clozeEnd float64) error {
	it, err := s.GetItem(id)
	if err != nil {
		return err
	}
	if clozeEnd <= it.ClozeStartstamp {
		return fmt.Errorf("%w: cloze_endstamp %.3f must exceed cloze_startstamp %.3f",
			ErrConflict, clozeEnd, it.ClozeStartstamp)
	}
	_, err = s.db.Exec(`UPDATE items SET cloze_endstamp = ? WHERE id = ?`, clozeEnd, id)
	if err != nil {
		return fmt.Errorf("%w: stop item clozing: %v", ErrStorage, err)
	}
	return nil
}

// SetItemMediaPaths atomically records the Audio Pipeline's cut-job output
// (spec §4.3). Called once the question/answer files exist on disk.
func (s *Store) SetItemMediaPaths(id, questionPath, answerPath string) error {
	res, err := s.db.Exec(`UPDATE items SET question_filepath = ?, answer_filepath = ? WHERE id = ?`,
		questionPath, answerPath, id)
	if isUniqueConflict(err) {
		return fmt.Errorf("%w: item media path already exists", ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("%w: set item media paths: %v", ErrStorage, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: item %q", ErrNotFound, id)
	}
	return nil
}

// SetItemArchived sets or clears the archived flag. Idempotent.
func (s *Store) SetItemArchived(id string, archived bool) error {
	res, err := s.db.Exec(`UPDATE items SET archived = ? WHERE id = ?`, boolInt(archived), id)
	if err != nil {
		return fmt.Errorf("%w: set item archived: %v", ErrStorage, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: item %q", ErrNotFound, id)
	}
	return nil
}

// SetItemDeleted marks an item deleted. Used only by GC.
func (s *Store) SetItemDeleted(id string) error {
	_, err := s.db.Exec(`UPDATE items SET deleted = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: set item deleted: %v", ErrStorage, err)
	}
	return nil
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
