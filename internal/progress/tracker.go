// Package progress is the Progress Tracker (spec §4.7): a periodic sampler
// that reads the Player Gateway's current state and advances the playing
// Topic's stored position and its playback event log.
package progress

import (
	"context"
	"log/slog"
	"time"

	"audioassistant/internal/model"
	"audioassistant/internal/store"
)

// Tracker samples on a fixed interval. The zero value is not usable;
// construct with New.
type Tracker struct {
	player   PlayerGateway
	store    ContentStore
	cache    Cache
	interval time.Duration
}

// New builds a Tracker. interval should be spec §4.7's N (~5s); cache may
// be NopCache{} to disable the side-copy position and volume cache.
func New(player PlayerGateway, store ContentStore, cache Cache, interval time.Duration) *Tracker {
	if cache == nil {
		cache = NopCache{}
	}
	return &Tracker{player: player, store: store, cache: cache, interval: interval}
}

// Run samples every interval until ctx is cancelled (spec §5: "timer-
// driven" background task).
func (t *Tracker) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := t.sample(ctx); err != nil {
				slog.Warn("progress sample failed", "error", err)
			}
		}
	}
}

// classify maps the player's raw state string to the Event kind it
// observes. Callers are expected to have already filtered out "stop".
func classify(state string) model.EventKind {
	if state == "pause" {
		return model.EventPause
	}
	return model.EventPlay
}

// sample implements spec §4.7's progress-sampler rule: cache the player's
// volume whatever its state, then query the current track, skip the rest
// on "stop", otherwise resolve the Topic by absolute path,
// advance its stored timestamp monotonically, and extend or append the
// matching playback Event.
func (t *Tracker) sample(ctx context.Context) error {
	if vol, err := t.player.Volume(ctx); err == nil {
		t.cache.SetVolume(ctx, vol)
	}

	track, err := t.player.CurrentTrack(ctx)
	if err != nil {
		return err
	}
	if track == nil || track.State == "stop" {
		return nil
	}

	topic, err := t.store.FindTopicByPath(track.Absolute)
	if err != nil {
		return err
	}
	if topic == nil {
		return nil
	}

	if cached, ok := t.cache.Get(ctx, topic.ID); !ok || track.Elapsed > cached {
		t.cache.Set(ctx, topic.ID, track.Elapsed)
	}

	if track.Elapsed > topic.CurrentTimestamp {
		if err := t.store.UpdateTopicTimestamp(topic.ID, track.Elapsed); err != nil {
			return err
		}
	}

	return t.store.RecordPlaybackObservation(store.SubjectTopic, topic.ID, classify(track.State), track.Elapsed, t.interval.Seconds())
}
