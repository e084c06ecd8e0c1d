package store

import (
	"path/filepath"
	"testing"

	"audioassistant/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "content.db")
	s, err := Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedTopic(t *testing.T, s *Store, path string, duration, current float64) *model.Topic {
	t.Helper()
	topic, err := s.CreateTopic(&model.Topic{
		Filepath:        path,
		DurationSeconds: duration,
		SourceID:        path,
		Title:           path,
		CurrentTimestamp: current,
	})
	require.NoError(t, err)
	return topic
}

func TestCreateAndGetTopic(t *testing.T) {
	s := newTestStore(t)

	topic, err := s.CreateTopic(&model.Topic{
		Filepath:        "/media/topics/a.mp3",
		DurationSeconds: 600,
		SourceID:        "src-a",
		Title:           "Topic A",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, topic.ID)
	assert.Equal(t, 1.0, topic.PlaybackRate)

	got, err := s.GetTopic(topic.ID)
	require.NoError(t, err)
	assert.Equal(t, topic.Filepath, got.Filepath)
}

func TestCreateTopicDuplicatePathConflicts(t *testing.T) {
	s := newTestStore(t)
	seedTopic(t, s, "/media/topics/dup.mp3", 600, 0)

	_, err := s.CreateTopic(&model.Topic{
		Filepath: "/media/topics/dup.mp3",
		SourceID: "different-source",
	})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestGetTopicNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetTopic("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateTopicTimestampIsMonotone(t *testing.T) {
	s := newTestStore(t)
	topic := seedTopic(t, s, "/media/topics/b.mp3", 600, 10)

	require.NoError(t, s.UpdateTopicTimestamp(topic.ID, 20))
	got, err := s.GetTopic(topic.ID)
	require.NoError(t, err)
	assert.Equal(t, 20.0, got.CurrentTimestamp)

	// A lower timestamp (e.g. a stale resume event) must not regress progress.
	require.NoError(t, s.UpdateTopicTimestamp(topic.ID, 5))
	got, err = s.GetTopic(topic.ID)
	require.NoError(t, err)
	assert.Equal(t, 20.0, got.CurrentTimestamp)
}

func TestTopicsOutstandingExcludesArchivedAndFinished(t *testing.T) {
	s := newTestStore(t)
	fresh := seedTopic(t, s, "/media/topics/fresh.mp3", 600, 0)
	seedTopic(t, s, "/media/topics/finished.mp3", 600, 590) // progress > 0.9
	archived := seedTopic(t, s, "/media/topics/archived.mp3", 600, 0)
	require.NoError(t, s.SetTopicArchived(archived.ID, true))

	outstanding, err := s.TopicsOutstanding()
	require.NoError(t, err)
	require.Len(t, outstanding, 1)
	assert.Equal(t, fresh.ID, outstanding[0].ID)
}

func TestAutoArchiveTopics(t *testing.T) {
	s := newTestStore(t)
	finished := seedTopic(t, s, "/media/topics/finished.mp3", 600, 590)

	n, err := s.AutoArchiveTopics()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := s.GetTopic(finished.ID)
	require.NoError(t, err)
	assert.True(t, got.Archived)
}

func TestArchiveLedger(t *testing.T) {
	s := newTestStore(t)

	ok, err := s.IsArchived("feed-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.RecordArchived("feed-1"))
	// idempotent
	require.NoError(t, s.RecordArchived("feed-1"))

	ok, err = s.IsArchived("feed-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExtractLifecycle(t *testing.T) {
	s := newTestStore(t)
	topic := seedTopic(t, s, "/media/topics/c.mp3", 600, 0)

	extract, err := s.CreateExtract(&model.Extract{
		TopicID:    topic.ID,
		Filepath:   "/media/extracts/c-1.wav",
		Startstamp: 10,
	})
	require.NoError(t, err)
	assert.Nil(t, extract.Endstamp)

	err = s.StopExtractRecording(extract.ID, 5)
	assert.ErrorIs(t, err, ErrConflict, "endstamp before startstamp must be rejected")

	require.NoError(t, s.StopExtractRecording(extract.ID, 20))
	got, err := s.GetExtract(extract.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Endstamp)
	assert.Equal(t, 20.0, *got.Endstamp)
	assert.Equal(t, 10.0, got.Length())
}

func TestCreateExtractRequiresExistingTopic(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateExtract(&model.Extract{
		TopicID:    "missing-topic",
		Filepath:   "/media/extracts/orphan.wav",
		Startstamp: 0,
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestItemLifecycleAndMediaPaths(t *testing.T) {
	s := newTestStore(t)
	topic := seedTopic(t, s, "/media/topics/d.mp3", 600, 0)
	extract, err := s.CreateExtract(&model.Extract{
		TopicID:    topic.ID,
		Filepath:   "/media/extracts/d-1.wav",
		Startstamp: 0,
	})
	require.NoError(t, err)

	item, err := s.CreateItem(&model.Item{
		ExtractID:       extract.ID,
		ClozeStartstamp: 2,
	})
	require.NoError(t, err)
	assert.Nil(t, item.QuestionFilepath)

	err = s.StopItemClozing(item.ID, 1)
	assert.ErrorIs(t, err, ErrConflict)

	require.NoError(t, s.StopItemClozing(item.ID, 4))

	require.NoError(t, s.SetItemMediaPaths(item.ID, "/media/items/d-1-QUESTION.wav", "/media/items/d-1-ANSWER.wav"))
	got, err := s.GetItem(item.ID)
	require.NoError(t, err)
	require.NotNil(t, got.QuestionFilepath)
	assert.Equal(t, "/media/items/d-1-QUESTION.wav", *got.QuestionFilepath)

	outstanding, err := s.ItemsOutstanding()
	require.NoError(t, err)
	require.Len(t, outstanding, 1)
	assert.Equal(t, item.ID, outstanding[0].ID)
}

func TestRecordPlaybackObservationAppendsThenExtends(t *testing.T) {
	s := newTestStore(t)
	topic := seedTopic(t, s, "/media/topics/e.mp3", 600, 0)

	require.NoError(t, s.RecordPlaybackObservation(SubjectTopic, topic.ID, model.EventPlay, 0, 0))
	latest, err := s.LatestEvent(SubjectTopic, topic.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 0.0, latest.DurationSec)
	firstID := latest.ID

	require.NoError(t, s.RecordPlaybackObservation(SubjectTopic, topic.ID, model.EventPlay, 5, 5))
	latest, err = s.LatestEvent(SubjectTopic, topic.ID)
	require.NoError(t, err)
	assert.Equal(t, firstID, latest.ID, "same kind should extend, not append")
	assert.Equal(t, 5.0, latest.DurationSec)

	require.NoError(t, s.RecordPlaybackObservation(SubjectTopic, topic.ID, model.EventPause, 10, 0))
	latest, err = s.LatestEvent(SubjectTopic, topic.ID)
	require.NoError(t, err)
	assert.NotEqual(t, firstID, latest.ID, "kind change should append a new event")
}

func TestGCFinishedItemsRemovesArchivedAndExported(t *testing.T) {
	s := newTestStore(t)
	topic := seedTopic(t, s, "/media/topics/f.mp3", 600, 0)
	extract, err := s.CreateExtract(&model.Extract{TopicID: topic.ID, Filepath: "/media/extracts/f-1.wav", Startstamp: 0})
	require.NoError(t, err)

	item, err := s.CreateItem(&model.Item{ExtractID: extract.ID, ClozeStartstamp: 1})
	require.NoError(t, err)
	require.NoError(t, s.SetItemArchived(item.ID, true))
	_, err = s.CreateItem(&model.Item{ExtractID: extract.ID, ClozeStartstamp: 2, Exported: true})
	require.NoError(t, err)

	n, err := s.GCFinishedItems()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = s.GetItem(item.ID)
	require.NoError(t, err) // rows are marked deleted, not removed from the table
}

func TestGCCascadesTopicAfterExtractsAndItemsGone(t *testing.T) {
	s := newTestStore(t)
	topic := seedTopic(t, s, "/media/topics/g.mp3", 600, 0) // progress < 0.9, archived by the user
	require.NoError(t, s.SetTopicArchived(topic.ID, true))
	extract, err := s.CreateExtract(&model.Extract{TopicID: topic.ID, Filepath: "/media/extracts/g-1.wav", Startstamp: 0})
	require.NoError(t, err)
	require.NoError(t, s.SetExtractArchived(extract.ID, true))

	result, err := s.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 1, result.ExtractsDeleted)
	assert.Equal(t, 1, result.TopicsDeleted)

	gotTopic, err := s.GetTopic(topic.ID)
	require.NoError(t, err)
	assert.True(t, gotTopic.Deleted)
}
