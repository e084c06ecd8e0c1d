package store

import (
	"fmt"
	"log/slog"
	"os"
)

// GCResult tallies what a sweep removed, for logging and tests.
type GCResult struct {
	ItemsDeleted    int
	ExtractsDeleted int
	TopicsDeleted   int
}

// GCFinishedItems deletes items with archived|exported set: both media
// files are removed and deleted is set (spec §4.7). Idempotent — a second
// run finds nothing left to do.
func (s *Store) GCFinishedItems() (int, error) {
	rows, err := s.db.Query(`SELECT id, question_filepath, answer_filepath FROM items
		WHERE deleted = 0 AND (archived = 1 OR exported = 1)`)
	if err != nil {
		return 0, fmt.Errorf("%w: gc finished items query: %v", ErrStorage, err)
	}
	type cand struct {
		id               string
		question, answer *string
	}
	var candidates []cand
	for rows.Next() {
		var c cand
		var q, a interface{}
		if err := rows.Scan(&c.id, &q, &a); err != nil {
			rows.Close()
			return 0, fmt.Errorf("%w: gc finished items scan: %v", ErrStorage, err)
		}
		if v, ok := q.(string); ok {
			c.question = &v
		}
		if v, ok := a.(string); ok {
			c.answer = &v
		}
		candidates = append(candidates, c)
	}
	rows.Close()

	n := 0
	for _, c := range candidates {
		removeFileIfSet(c.question)
		removeFileIfSet(c.answer)
		if err := s.SetItemDeleted(c.id); err != nil {
			return n, err
		}
		n++
	}
	slog.Info("gc: items swept", "count", n)
	return n, nil
}

// GCFinishedExtracts deletes extracts where exported=true OR (archived=true
// AND all children items are archived|deleted), removing the extract file
// (spec §4.7).
func (s *Store) GCFinishedExtracts() (int, error) {
	rows, err := s.db.Query(`SELECT id, filepath FROM extracts WHERE deleted = 0 AND (exported = 1 OR archived = 1)`)
	if err != nil {
		return 0, fmt.Errorf("%w: gc finished extracts query: %v", ErrStorage, err)
	}
	type cand struct{ id, filepath string }
	var candidates []cand
	for rows.Next() {
		var c cand
		if err := rows.Scan(&c.id, &c.filepath); err != nil {
			rows.Close()
			return 0, fmt.Errorf("%w: gc finished extracts scan: %v", ErrStorage, err)
		}
		candidates = append(candidates, c)
	}
	rows.Close()

	n := 0
	for _, c := range candidates {
		e, err := s.GetExtract(c.id)
		if err != nil {
			return n, err
		}
		eligible := e.Exported
		if !eligible && e.Archived {
			allGone, err := s.allItemsArchivedOrDeleted(c.id)
			if err != nil {
				return n, err
			}
			eligible = allGone
		}
		if !eligible {
			continue
		}
		removeFile(c.filepath)
		if err := s.SetExtractDeleted(c.id); err != nil {
			return n, err
		}
		n++
	}
	slog.Info("gc: extracts swept", "count", n)
	return n, nil
}

func (s *Store) allItemsArchivedOrDeleted(extractID string) (bool, error) {
	var remaining int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM items
		WHERE extract_id = ? AND deleted = 0 AND archived = 0`, extractID).Scan(&remaining)
	if err != nil {
		return false, fmt.Errorf("%w: count outstanding items: %v", ErrStorage, err)
	}
	return remaining == 0, nil
}

// GCFinishedTopics deletes topics that are archived, below the progress
// threshold (spec §9: implemented literally per §4.7's "progress < 0.9"),
// and whose extracts are all deleted.
func (s *Store) GCFinishedTopics() (int, error) {
	rows, err := s.db.Query(`SELECT id, filepath FROM topics
		WHERE deleted = 0 AND archived = 1
		  AND (duration_seconds <= 0 OR current_timestamp / duration_seconds < ` + ftoa(topicArchiveThreshold) + `)`)
	if err != nil {
		return 0, fmt.Errorf("%w: gc finished topics query: %v", ErrStorage, err)
	}
	type cand struct{ id, filepath string }
	var candidates []cand
	for rows.Next() {
		var c cand
		if err := rows.Scan(&c.id, &c.filepath); err != nil {
			rows.Close()
			return 0, fmt.Errorf("%w: gc finished topics scan: %v", ErrStorage, err)
		}
		candidates = append(candidates, c)
	}
	rows.Close()

	n := 0
	for _, c := range candidates {
		allDeleted, err := s.allExtractsDeleted(c.id)
		if err != nil {
			return n, err
		}
		if !allDeleted {
			continue
		}
		removeFile(c.filepath)
		if err := s.SetTopicDeleted(c.id); err != nil {
			return n, err
		}
		n++
	}
	slog.Info("gc: topics swept", "count", n)
	return n, nil
}

func (s *Store) allExtractsDeleted(topicID string) (bool, error) {
	var remaining int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM extracts WHERE topic_id = ? AND deleted = 0`, topicID).Scan(&remaining)
	if err != nil {
		return false, fmt.Errorf("%w: count outstanding extracts: %v", ErrStorage, err)
	}
	return remaining == 0, nil
}

// Sweep runs auto-archive followed by all three GC passes, in child-first
// order (items, then extracts, then topics) so a topic that just lost its
// last extract in this same sweep is still eligible.
func (s *Store) Sweep() (GCResult, error) {
	if _, err := s.AutoArchiveTopics(); err != nil {
		return GCResult{}, err
	}
	var r GCResult
	var err error
	if r.ItemsDeleted, err = s.GCFinishedItems(); err != nil {
		return r, err
	}
	if r.ExtractsDeleted, err = s.GCFinishedExtracts(); err != nil {
		return r, err
	}
	if r.TopicsDeleted, err = s.GCFinishedTopics(); err != nil {
		return r, err
	}
	return r, nil
}

func removeFileIfSet(path *string) {
	if path == nil {
		return
	}
	removeFile(*path)
}

func removeFile(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("gc: failed to remove file", "path", path, "error", err)
	}
}
