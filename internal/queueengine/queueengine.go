// Package queueengine is the Queue Engine (spec §4.4): computes the five
// queue identities' candidate sets from the Content Store, filters them
// through the Player Gateway's path-recognition check, applies each queue's
// fixed {repeat, single} policy, and drives the inter-queue navigation and
// recording/clozing actions the Input Dispatcher invokes by keycode.
package queueengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"audioassistant/internal/audio"
	"audioassistant/internal/cue"
	"audioassistant/internal/keymap"
	"audioassistant/internal/model"
	"audioassistant/internal/session"
)

// Default transport step sizes (spec §4.2).
const (
	defaultSeekStep   = 6.0
	defaultVolumeStep = 5
)

type policy struct {
	repeat bool
	single bool
}

// policies is the fixed {repeat, single} table per queue identity (spec
// §4.4). global-item/local-item share global-extract/local-extract's shape.
var policies = map[session.QueueID]policy{
	session.GlobalTopic:   {repeat: true, single: false},
	session.GlobalExtract: {repeat: true, single: true},
	session.LocalExtract:  {repeat: true, single: true},
	session.GlobalItem:    {repeat: true, single: true},
	session.LocalItem:     {repeat: true, single: true},
}

// Keys bundles the action tables the queue engine assigns to a Session when
// it switches queue or sub-mode. Built once at startup via keymap.Build.
type Keys struct {
	Topic     keymap.Table
	Extract   keymap.Table
	Item      keymap.Table
	Recording keymap.Table
	Clozing   keymap.Table
}

// QueueEngine ties the Content Store, Player Gateway, Audio Pipeline and
// Session State Machine together behind the action vocabulary the Input
// Dispatcher dispatches by keycode (spec §4.4, §4.6).
type QueueEngine struct {
	player PlayerGateway
	audio  AudioPipeline
	store  ContentStore
	sess   *session.Session
	cues   cue.Player

	keys Keys

	extractsDir   string
	extractExt    string
	recordingSink string

	// activeExtractID/activeItemID track the in-progress recording/clozing
	// job. Only the Input Dispatcher goroutine touches a QueueEngine, so
	// these need no lock of their own (spec §4.5's concurrent guard).
	activeExtractID string
	activeItemID    string
}

// New builds a QueueEngine. player/audioPipeline/store accept the narrow
// interfaces declared in this package so tests can supply fakes.
func New(player PlayerGateway, audioPipeline AudioPipeline, store ContentStore, sess *session.Session, cues cue.Player, keys Keys, extractsDir, extractExt, recordingSink string) *QueueEngine {
	return &QueueEngine{
		player:        player,
		audio:         audioPipeline,
		store:         store,
		sess:          sess,
		cues:          cues,
		keys:          keys,
		extractsDir:   extractsDir,
		extractExt:    extractExt,
		recordingSink: recordingSink,
	}
}

func (e *QueueEngine) keysFor(q session.QueueID) keymap.Table {
	switch q {
	case session.GlobalTopic:
		return e.keys.Topic
	case session.GlobalExtract, session.LocalExtract:
		return e.keys.Extract
	case session.GlobalItem, session.LocalItem:
		return e.keys.Item
	default:
		return keymap.Table{}
	}
}

func (e *QueueEngine) modeFor(q session.QueueID) keymap.Mode {
	switch q {
	case session.GlobalTopic:
		return keymap.ModeTopic
	case session.GlobalExtract, session.LocalExtract:
		return keymap.ModeExtract
	default:
		return keymap.ModeItem
	}
}

// loadAndSwitch implements the five-step "load a queue of identity Q"
// procedure (spec §4.4). Step 3's path-recognition filter happens inside
// player.LoadQueue. Failures are returned rather than cued here: the Input
// Dispatcher sounds the negative cue for any action it dispatched that came
// back with an error (spec §4.6 step 3, §7).
func (e *QueueEngine) loadAndSwitch(ctx context.Context, q session.QueueID, candidates []string) error {
	if len(candidates) == 0 {
		return ErrEmpty
	}
	skipped, err := e.player.LoadQueue(ctx, candidates)
	if err != nil {
		return err
	}
	if len(skipped) == len(candidates) {
		return ErrEmpty
	}
	p := policies[q]
	if err := e.player.Repeat(ctx, p.repeat); err != nil {
		return err
	}
	if err := e.player.Single(ctx, p.single); err != nil {
		return err
	}
	if err := e.sess.LoadQueue(q, e.modeFor(q), e.keysFor(q)); err != nil {
		return err
	}
	e.cues.Announce(string(q))
	return nil
}

func topicPaths(topics []*model.Topic) []string {
	paths := make([]string, len(topics))
	for i, t := range topics {
		paths[i] = t.Filepath
	}
	return paths
}

func extractPaths(extracts []*model.Extract) []string {
	paths := make([]string, len(extracts))
	for i, x := range extracts {
		paths[i] = x.Filepath
	}
	return paths
}

// playableItemPaths keeps only items whose question file has been cut
// already (spec §4.4's global-item definition: "completed question file").
func playableItemPaths(items []*model.Item) []string {
	var paths []string
	for _, it := range items {
		if it.QuestionFilepath != nil {
			paths = append(paths, *it.QuestionFilepath)
		}
	}
	return paths
}

// LoadGlobalTopics loads every outstanding Topic (spec §4.4).
func (e *QueueEngine) LoadGlobalTopics(ctx context.Context) error {
	topics, err := e.store.TopicsOutstanding()
	if err != nil {
		return err
	}
	return e.loadAndSwitch(ctx, session.GlobalTopic, topicPaths(topics))
}

// LoadGlobalExtracts loads every outstanding Extract (spec §4.4).
func (e *QueueEngine) LoadGlobalExtracts(ctx context.Context) error {
	extracts, err := e.store.ExtractsOutstanding()
	if err != nil {
		return err
	}
	return e.loadAndSwitch(ctx, session.GlobalExtract, extractPaths(extracts))
}

// LoadGlobalItems loads every outstanding Item with a completed question
// file (spec §4.4).
func (e *QueueEngine) LoadGlobalItems(ctx context.Context) error {
	items, err := e.store.ItemsOutstanding()
	if err != nil {
		return err
	}
	return e.loadAndSwitch(ctx, session.GlobalItem, playableItemPaths(items))
}

// LoadLocalExtracts loads topicID's outstanding children (spec §4.4).
func (e *QueueEngine) LoadLocalExtracts(ctx context.Context, topicID string) error {
	extracts, err := e.store.ExtractsByTopic(topicID)
	if err != nil {
		return err
	}
	return e.loadAndSwitch(ctx, session.LocalExtract, extractPaths(extracts))
}

// LoadLocalItems loads extractID's outstanding children (spec §4.4).
func (e *QueueEngine) LoadLocalItems(ctx context.Context, extractID string) error {
	items, err := e.store.ItemsByExtract(extractID)
	if err != nil {
		return err
	}
	return e.loadAndSwitch(ctx, session.LocalItem, playableItemPaths(items))
}

func (e *QueueEngine) currentTopic(ctx context.Context) (*model.Topic, error) {
	track, err := e.player.CurrentTrack(ctx)
	if err != nil {
		return nil, err
	}
	if track == nil {
		return nil, ErrNoCurrentTrack
	}
	topic, err := e.store.FindTopicByPath(track.Absolute)
	if err != nil {
		return nil, err
	}
	if topic == nil {
		return nil, ErrNoCurrentTrack
	}
	return topic, nil
}

func (e *QueueEngine) currentExtract(ctx context.Context) (*model.Extract, error) {
	track, err := e.player.CurrentTrack(ctx)
	if err != nil {
		return nil, err
	}
	if track == nil {
		return nil, ErrNoCurrentTrack
	}
	extract, err := e.store.FindExtractByPath(track.Absolute)
	if err != nil {
		return nil, err
	}
	if extract == nil {
		return nil, ErrNoCurrentTrack
	}
	return extract, nil
}

func (e *QueueEngine) currentItem(ctx context.Context) (*model.Item, error) {
	track, err := e.player.CurrentTrack(ctx)
	if err != nil {
		return nil, err
	}
	if track == nil {
		return nil, ErrNoCurrentTrack
	}
	item, err := e.store.FindItemByQuestionPath(track.Absolute)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrNoCurrentTrack
	}
	return item, nil
}

// TopicLoadLocalExtracts is the Topic → local-extract navigation (spec
// §4.4): load the currently-playing Topic's outstanding children.
func (e *QueueEngine) TopicLoadLocalExtracts(ctx context.Context) error {
	topic, err := e.currentTopic(ctx)
	if err != nil {
		return err
	}
	return e.LoadLocalExtracts(ctx, topic.ID)
}

func reorderTopicsHead(topics []*model.Topic, headID string) []*model.Topic {
	idx := -1
	for i, t := range topics {
		if t.ID == headID {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return topics
	}
	out := make([]*model.Topic, 0, len(topics))
	out = append(out, topics[idx])
	out = append(out, topics[:idx]...)
	out = append(out, topics[idx+1:]...)
	return out
}

func reorderExtractsHead(extracts []*model.Extract, headID string) []*model.Extract {
	idx := -1
	for i, x := range extracts {
		if x.ID == headID {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return extracts
	}
	out := make([]*model.Extract, 0, len(extracts))
	out = append(out, extracts[idx])
	out = append(out, extracts[:idx]...)
	out = append(out, extracts[idx+1:]...)
	return out
}

// GetExtractTopic is the Extract → global-topic navigation (spec §4.4):
// load all outstanding Topics reordered so the currently-playing Extract's
// parent is at the head, then seek to the Extract's startstamp.
func (e *QueueEngine) GetExtractTopic(ctx context.Context) error {
	extract, err := e.currentExtract(ctx)
	if err != nil {
		return err
	}
	topics, err := e.store.TopicsOutstanding()
	if err != nil {
		return err
	}
	reordered := reorderTopicsHead(topics, extract.TopicID)
	if err := e.loadAndSwitch(ctx, session.GlobalTopic, topicPaths(reordered)); err != nil {
		return err
	}
	return e.player.SeekTo(ctx, extract.Startstamp)
}

// GetExtractItems is the Extract → local-item navigation (spec §4.4): load
// the currently-playing Extract's outstanding children.
func (e *QueueEngine) GetExtractItems(ctx context.Context) error {
	extract, err := e.currentExtract(ctx)
	if err != nil {
		return err
	}
	return e.LoadLocalItems(ctx, extract.ID)
}

// GetItemExtract is the Item → local-extract navigation (spec §4.4): load
// the currently-playing Item's parent Extract's siblings, with the parent
// pinned to the head.
func (e *QueueEngine) GetItemExtract(ctx context.Context) error {
	item, err := e.currentItem(ctx)
	if err != nil {
		return err
	}
	extract, err := e.store.GetExtract(item.ExtractID)
	if err != nil {
		return err
	}
	siblings, err := e.store.ExtractsByTopic(extract.TopicID)
	if err != nil {
		return err
	}
	reordered := reorderExtractsHead(siblings, extract.ID)
	return e.loadAndSwitch(ctx, session.LocalExtract, extractPaths(reordered))
}

// SwitchGlobalTopics and SwitchGlobalExtracts are the "A" shortcut (spec
// §4.4), reachable from any mode.
func (e *QueueEngine) SwitchGlobalTopics(ctx context.Context) error   { return e.LoadGlobalTopics(ctx) }
func (e *QueueEngine) SwitchGlobalExtracts(ctx context.Context) error { return e.LoadGlobalExtracts(ctx) }

func (e *QueueEngine) restoreTopicTimestamp(ctx context.Context) error {
	track, err := e.player.CurrentTrack(ctx)
	if err != nil {
		return err
	}
	if track == nil {
		return nil
	}
	topic, err := e.store.FindTopicByPath(track.Absolute)
	if err != nil {
		return err
	}
	if topic == nil {
		return nil
	}
	return e.player.SeekTo(ctx, topic.CurrentTimestamp)
}

// TopicNext and TopicPrevious override the raw transport: after advancing,
// they seek to the new Topic's stored current-timestamp (spec §4.4).
func (e *QueueEngine) TopicNext(ctx context.Context) error {
	if err := e.player.Next(ctx); err != nil {
		return err
	}
	return e.restoreTopicTimestamp(ctx)
}

func (e *QueueEngine) TopicPrevious(ctx context.Context) error {
	if err := e.player.Previous(ctx); err != nil {
		return err
	}
	return e.restoreTopicTimestamp(ctx)
}

// Toggle, Previous and Next are the plain (non-Topic-mode) transport
// passthroughs.
func (e *QueueEngine) Toggle(ctx context.Context) error   { return e.player.Toggle(ctx) }
func (e *QueueEngine) Previous(ctx context.Context) error { return e.player.Previous(ctx) }
func (e *QueueEngine) Next(ctx context.Context) error     { return e.player.Next(ctx) }

// SeekBack and SeekFwd apply the default step (spec §4.2).
func (e *QueueEngine) SeekBack(ctx context.Context) error {
	return e.player.SeekBackward(ctx, defaultSeekStep)
}

func (e *QueueEngine) SeekFwd(ctx context.Context) error {
	return e.player.SeekForward(ctx, defaultSeekStep)
}

func (e *QueueEngine) StutterBack(ctx context.Context) error { return e.player.StutterBackward(ctx) }
func (e *QueueEngine) StutterFwd(ctx context.Context) error  { return e.player.StutterForward(ctx) }

func (e *QueueEngine) VolUp(ctx context.Context) error {
	return e.player.VolumeUp(ctx, defaultVolumeStep)
}

func (e *QueueEngine) VolDown(ctx context.Context) error {
	return e.player.VolumeDown(ctx, defaultVolumeStep)
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// StartRecording captures a new Extract from the live Topic (spec §4.4,
// §4.5). Valid only from global-topic; forces the player into single=1
// while recording is in progress.
func (e *QueueEngine) StartRecording(ctx context.Context) error {
	topic, err := e.currentTopic(ctx)
	if err != nil {
		return err
	}
	track, err := e.player.CurrentTrack(ctx)
	if err != nil {
		return err
	}
	outputPath := filepath.Join(e.extractsDir, fmt.Sprintf("%s-%d%s", stem(topic.Filepath), time.Now().Unix(), e.extractExt))
	if err := e.audio.StartCapture(e.recordingSink, outputPath); err != nil {
		return err
	}
	extract, err := e.store.CreateExtract(&model.Extract{TopicID: topic.ID, Filepath: outputPath, Startstamp: track.Elapsed})
	if err != nil {
		_ = e.audio.StopCapture()
		return err
	}
	if err := e.player.Single(ctx, true); err != nil {
		_ = e.audio.StopCapture()
		return err
	}
	if err := e.sess.EnterRecording(e.keys.Recording); err != nil {
		_ = e.audio.StopCapture()
		return err
	}
	e.activeExtractID = extract.ID
	e.cues.Announce(string(session.GlobalTopic) + "-recording")
	return nil
}

// StopRecording ends the in-progress capture, fills in the Extract's
// endstamp, and restores single=0 (spec §4.4, §4.5).
func (e *QueueEngine) StopRecording(ctx context.Context) error {
	if e.activeExtractID == "" {
		return ErrNotRecording
	}
	extractID := e.activeExtractID
	e.activeExtractID = ""

	if err := e.audio.StopCapture(); err != nil && !errors.Is(err, audio.ErrNotCapturing) {
		slog.Warn("stop capture failed", "error", err)
	}
	if track, err := e.player.CurrentTrack(ctx); err == nil && track != nil {
		_ = e.store.StopExtractRecording(extractID, track.Elapsed)
	}
	if err := e.player.Single(ctx, false); err != nil {
		slog.Warn("restore single mode failed", "error", err)
	}
	if err := e.sess.ExitRecording(e.keys.Topic); err != nil {
		return err
	}
	return nil
}

// StartClozing begins a cloze span inside the currently-playing Extract
// (spec §4.4, §4.5). Valid only from an extract queue.
func (e *QueueEngine) StartClozing(ctx context.Context) error {
	extract, err := e.currentExtract(ctx)
	if err != nil {
		return err
	}
	track, err := e.player.CurrentTrack(ctx)
	if err != nil {
		return err
	}
	item, err := e.store.CreateItem(&model.Item{ExtractID: extract.ID, ClozeStartstamp: track.Elapsed})
	if err != nil {
		return err
	}
	if err := e.sess.EnterClozing(e.keys.Clozing); err != nil {
		return err
	}
	e.activeItemID = item.ID
	return nil
}

// StopClozing ends the cloze span and launches the asynchronous cut job
// that produces the Item's question/answer files (spec §4.3, §4.4).
func (e *QueueEngine) StopClozing(ctx context.Context) error {
	if e.activeItemID == "" {
		return ErrNotClozing
	}
	itemID := e.activeItemID
	e.activeItemID = ""

	track, err := e.player.CurrentTrack(ctx)
	if err != nil || track == nil {
		slog.Warn("stop clozing: no current track", "error", err)
	} else if err := e.store.StopItemClozing(itemID, track.Elapsed); err != nil {
		slog.Warn("stop clozing: store update failed", "error", err)
	} else {
		e.launchCut(itemID)
	}

	if err := e.sess.ExitClozing(e.keys.Extract); err != nil {
		return err
	}
	return nil
}

func (e *QueueEngine) launchCut(itemID string) {
	item, err := e.store.GetItem(itemID)
	if err != nil || item.ClozeEndstamp == nil {
		return
	}
	extract, err := e.store.GetExtract(item.ExtractID)
	if err != nil {
		return
	}
	job, err := e.audio.PlanCut(extract.Filepath, extract.Length(), item.ClozeStartstamp, *item.ClozeEndstamp, item.ID)
	if err != nil {
		return
	}
	e.audio.RunCut(context.Background(), job, func(done *audio.CutJob, runErr error) {
		if runErr != nil {
			return
		}
		_ = e.store.SetItemMediaPaths(done.ItemID, done.QuestionPath, done.AnswerPath)
	})
}

// ArchiveTopic, ArchiveExtract and ArchiveItem flip the archived flag on the
// currently-playing entity (spec §4.1, §4.4).
func (e *QueueEngine) ArchiveTopic(ctx context.Context) error {
	topic, err := e.currentTopic(ctx)
	if err != nil {
		return err
	}
	if err := e.store.SetTopicArchived(topic.ID, true); err != nil {
		return err
	}
	return nil
}

func (e *QueueEngine) ArchiveExtract(ctx context.Context) error {
	extract, err := e.currentExtract(ctx)
	if err != nil {
		return err
	}
	if err := e.store.SetExtractArchived(extract.ID, true); err != nil {
		return err
	}
	return nil
}

func (e *QueueEngine) ArchiveItem(ctx context.Context) error {
	item, err := e.currentItem(ctx)
	if err != nil {
		return err
	}
	if err := e.store.SetItemArchived(item.ID, true); err != nil {
		return err
	}
	return nil
}

// ToggleToExport flips the currently-playing Extract's to_export flag
// (spec §3, §4.1): marks it for export instead of garbage collection.
func (e *QueueEngine) ToggleToExport(ctx context.Context) error {
	extract, err := e.currentExtract(ctx)
	if err != nil {
		return err
	}
	if err := e.store.SetExtractToExport(extract.ID, !extract.ToExport); err != nil {
		return err
	}
	return nil
}
