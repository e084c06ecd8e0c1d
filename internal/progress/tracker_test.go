package progress

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"audioassistant/internal/model"
	"audioassistant/internal/player"
	"audioassistant/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlayer struct {
	track *player.Track
	err   error
	vol   int
}

func (f *fakePlayer) CurrentTrack(context.Context) (*player.Track, error) { return f.track, f.err }
func (f *fakePlayer) Volume(context.Context) (int, error)                 { return f.vol, nil }

// memCache is an in-process Cache stand-in, used where a test needs to read
// back what a sample cached instead of merely discarding it (NopCache does
// not retain anything).
type memCache struct {
	positions map[string]float64
	volume    int
	hasVolume bool
}

func (c *memCache) Get(_ context.Context, topicID string) (float64, bool) {
	v, ok := c.positions[topicID]
	return v, ok
}

func (c *memCache) Set(_ context.Context, topicID string, elapsed float64) {
	if c.positions == nil {
		c.positions = map[string]float64{}
	}
	c.positions[topicID] = elapsed
}

func (c *memCache) GetVolume(context.Context) (int, bool) { return c.volume, c.hasVolume }

func (c *memCache) SetVolume(_ context.Context, volume int) {
	c.volume = volume
	c.hasVolume = true
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "content.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSampleSkipsOnStop(t *testing.T) {
	s := newTestStore(t)
	topic, err := s.CreateTopic(&model.Topic{Filepath: "/media/topics/a.mp3", DurationSeconds: 100})
	require.NoError(t, err)

	fp := &fakePlayer{track: &player.Track{Absolute: topic.Filepath, Elapsed: 10, State: "stop"}}
	tr := New(fp, s, NopCache{}, time.Second)

	require.NoError(t, tr.sample(context.Background()))

	got, err := s.GetTopic(topic.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.CurrentTimestamp)
}

func TestSampleAdvancesMonotoneTimestampAndLogsEvent(t *testing.T) {
	s := newTestStore(t)
	topic, err := s.CreateTopic(&model.Topic{Filepath: "/media/topics/a.mp3", DurationSeconds: 100})
	require.NoError(t, err)

	fp := &fakePlayer{track: &player.Track{Absolute: topic.Filepath, Elapsed: 5, State: "play"}}
	tr := New(fp, s, NopCache{}, time.Second)

	require.NoError(t, tr.sample(context.Background()))

	got, err := s.GetTopic(topic.ID)
	require.NoError(t, err)
	assert.Equal(t, 5.0, got.CurrentTimestamp)

	latest, err := s.LatestEvent(store.SubjectTopic, topic.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, model.EventPlay, latest.Kind)

	// A later sample at a lower elapsed (e.g. the player seeked back) must
	// not regress the stored timestamp.
	fp.track.Elapsed = 2
	require.NoError(t, tr.sample(context.Background()))

	got, err = s.GetTopic(topic.ID)
	require.NoError(t, err)
	assert.Equal(t, 5.0, got.CurrentTimestamp)
}

func TestSampleExtendsMatchingEventKind(t *testing.T) {
	s := newTestStore(t)
	topic, err := s.CreateTopic(&model.Topic{Filepath: "/media/topics/a.mp3", DurationSeconds: 100})
	require.NoError(t, err)

	fp := &fakePlayer{track: &player.Track{Absolute: topic.Filepath, Elapsed: 1, State: "play"}}
	tr := New(fp, s, NopCache{}, time.Second)
	require.NoError(t, tr.sample(context.Background()))

	fp.track.Elapsed = 2
	require.NoError(t, tr.sample(context.Background()))

	latest, err := s.LatestEvent(store.SubjectTopic, topic.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	// The first sample opens the event at duration 0; the second extends it
	// by one interval.
	assert.Equal(t, time.Second.Seconds(), latest.DurationSec)
}

func TestSampleCachesVolumeEvenWhenStopped(t *testing.T) {
	s := newTestStore(t)
	topic, err := s.CreateTopic(&model.Topic{Filepath: "/media/topics/a.mp3", DurationSeconds: 100})
	require.NoError(t, err)

	fp := &fakePlayer{track: &player.Track{Absolute: topic.Filepath, State: "stop"}, vol: 42}
	cache := &memCache{}
	tr := New(fp, s, cache, time.Second)

	require.NoError(t, tr.sample(context.Background()))

	vol, ok := cache.GetVolume(context.Background())
	require.True(t, ok)
	assert.Equal(t, 42, vol)
}

func TestSampleIgnoresUnknownPath(t *testing.T) {
	s := newTestStore(t)
	fp := &fakePlayer{track: &player.Track{Absolute: "/media/topics/missing.mp3", Elapsed: 1, State: "play"}}
	tr := New(fp, s, NopCache{}, time.Second)

	assert.NoError(t, tr.sample(context.Background()))
}
