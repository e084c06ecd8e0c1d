// Package app is the application composition root: it builds every
// collaborator (Content Store, Player Gateway, Audio Pipeline, Queue
// Engine, Session, Input Dispatcher, Progress Tracker) from one Config and
// wires them together, replacing the module-level globals the teacher used.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"audioassistant/internal/audio"
	"audioassistant/internal/config"
	"audioassistant/internal/cue"
	"audioassistant/internal/input"
	"audioassistant/internal/keymap"
	"audioassistant/internal/player"
	"audioassistant/internal/progress"
	"audioassistant/internal/queueengine"
	"audioassistant/internal/session"
	"audioassistant/internal/store"
)

// Application holds every long-lived collaborator built from Config.
type Application struct {
	Config *config.Config

	Store   *store.Store
	Player  *player.Gateway
	Audio   *audio.Pipeline
	Engine  *queueengine.QueueEngine
	Session *session.Session

	Dispatcher *input.Dispatcher
	Tracker    *progress.Tracker

	cache progress.Cache
}

// New constructs every collaborator and wires the Input Dispatcher's
// action table to the Queue Engine's methods (spec §4.4, §4.6). The
// progress cache is best-effort: a Valkey/Redis connection failure logs a
// warning and falls back to progress.NopCache{} rather than failing
// startup, since the cache is advisory (spec's monotone guard lives in the
// Content Store regardless).
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	st, err := store.Open(cfg.ContentDBPath)
	if err != nil {
		return nil, fmt.Errorf("open content store: %w", err)
	}

	pl := player.New(cfg.PlayerHost, cfg.PlayerPort, cfg.MediaRoot)
	ap := audio.New(cfg.RecorderBin, cfg.CutBin, cfg.ExtractExtension)
	sess := session.New(keymap.Build(keymap.ModeTopic, cfg.ControllerKeyMap))

	keys := queueengine.Keys{
		Topic:     keymap.Build(keymap.ModeTopic, cfg.ControllerKeyMap),
		Extract:   keymap.Build(keymap.ModeExtract, cfg.ControllerKeyMap),
		Item:      keymap.Build(keymap.ModeItem, cfg.ControllerKeyMap),
		Recording: keymap.Build(keymap.ModeRecording, cfg.ControllerKeyMap),
		Clozing:   keymap.Build(keymap.ModeClozing, cfg.ControllerKeyMap),
	}

	cues := cue.NopPlayer{}
	engine := queueengine.New(pl, ap, st, sess, cues, keys, cfg.ExtractsDir, cfg.ExtractExtension, cfg.RecordingSink)

	var cache progress.Cache = progress.NopCache{}
	if rc, err := progress.NewRedisCache(ctx, cfg.ValkeyHost, cfg.ValkeyPort, cfg.ProgressSampleInterval*6); err != nil {
		slog.Warn("progress cache disabled", "error", err)
	} else {
		cache = rc
	}

	// Restore the last known volume (original's MpdBase.py reconnect
	// behavior) instead of leaving the daemon at its own default.
	if vol, ok := cache.GetVolume(ctx); ok {
		if err := pl.SetVolume(ctx, vol); err != nil {
			slog.Warn("restore volume failed", "error", err)
		}
	}

	tracker := progress.New(pl, st, cache, cfg.ProgressSampleInterval)

	dispatcher := input.New(
		input.Config{
			DevicesDir:     "/dev/input",
			ControllerName: cfg.ControllerName,
			HeadphonesName: cfg.HeadphonesName,
		},
		sess,
		cues,
		buildActions(engine),
		engine.LoadGlobalTopics,
	)

	return &Application{
		Config:     cfg,
		Store:      st,
		Player:     pl,
		Audio:      ap,
		Engine:     engine,
		Session:    sess,
		Dispatcher: dispatcher,
		Tracker:    tracker,
		cache:      cache,
	}, nil
}

// buildActions binds every keymap.Action the keymaps can produce to the
// Queue Engine method that implements it (spec §4.4, §4.6).
func buildActions(e *queueengine.QueueEngine) input.Actions {
	return input.Actions{
		keymap.Toggle:   e.Toggle,
		keymap.Previous: e.Previous,
		keymap.Next:     e.Next,

		keymap.PrevTopic: e.TopicPrevious,
		keymap.NextTopic: e.TopicNext,

		keymap.SeekBack: e.SeekBack,
		keymap.SeekFwd:  e.SeekFwd,

		keymap.StutterBack: e.StutterBack,
		keymap.StutterFwd:  e.StutterFwd,

		keymap.LoadLocalExtracts: e.TopicLoadLocalExtracts,
		keymap.StartRecording:    e.StartRecording,
		keymap.StopRecording:     e.StopRecording,

		keymap.StartClozing: e.StartClozing,
		keymap.StopClozing:  e.StopClozing,

		keymap.GetExtractTopic: e.GetExtractTopic,
		keymap.GetExtractItems: e.GetExtractItems,
		keymap.GetItemExtract:  e.GetItemExtract,

		keymap.VolUp:   e.VolUp,
		keymap.VolDown: e.VolDown,

		keymap.SwitchGlobalExtracts: e.SwitchGlobalExtracts,
		keymap.SwitchGlobalTopics:   e.SwitchGlobalTopics,

		keymap.ArchiveTopic:   e.ArchiveTopic,
		keymap.ArchiveExtract: e.ArchiveExtract,
		keymap.ArchiveItem:    e.ArchiveItem,

		keymap.ToggleToExport: e.ToggleToExport,
	}
}

// Close releases every collaborator holding an external resource.
func (a *Application) Close() error {
	if closer, ok := a.cache.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	return a.Store.Close()
}
