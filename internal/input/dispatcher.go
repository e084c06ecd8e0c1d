// Package input is the Input Dispatcher (spec §4.6): watches /dev/input for
// game-pad and headphone hotplug, decodes raw key-press events and routes
// them through the Session's currently-active keymap.Table to an action
// function supplied by the application root.
package input

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"log/slog"

	"github.com/fsnotify/fsnotify"

	"audioassistant/internal/cue"
	"audioassistant/internal/keymap"
	"audioassistant/internal/session"
)

// ActionFunc performs one logical action. Errors are logged and sounded
// (spec §5's negative cue) but never fatal to the dispatch loop.
type ActionFunc func(ctx context.Context) error

// Actions maps every logical action name the application wires up to its
// handler, typically bound to *queueengine.QueueEngine methods.
type Actions map[keymap.Action]ActionFunc

// Config holds the Dispatcher's tunables (spec §4.6, §6).
type Config struct {
	DevicesDir     string // usually /dev/input
	ControllerName string
	HeadphonesName string
	PulseaudioBin  string
}

// headphonePollInterval and noFilesVoiceInterval implement spec §4.6's
// startup gate: wait for headphones (polled every 6s), then call the
// initial-queue loader once; if it fails, voice "no files" every 8s.
const (
	headphonePollInterval = 6 * time.Second
	noFilesVoiceInterval  = 8 * time.Second
)

// deviceEntry pairs an open device handle with the kind it was classified as
// at add time, so a later Remove can look the kind back up instead of
// re-deriving it from ambient tracker counts (the node is already gone from
// sysfs by the time Remove fires).
type deviceEntry struct {
	dev  *device
	kind deviceKind
}

// Dispatcher owns the open device set and the current session, routing
// decoded keycodes to the action table the session's active mode exposes.
type Dispatcher struct {
	cfg  Config
	sess sessionView
	cues cue.Player

	devices map[string]*deviceEntry // path -> open device + classified kind
	tracker *arrivalTracker

	actions          Actions
	loadInitialQueue func(ctx context.Context) error
	keys             chan int
}

// sessionView is the narrow slice of *session.Session the dispatcher needs:
// a read of the currently-active keymap.Table to resolve a keycode against.
type sessionView interface {
	Snapshot() session.State
}

// New builds a Dispatcher. actions must cover every keymap.Action any
// configured keymap.Table can produce; an action missing from the map is
// logged and otherwise ignored (spec §4.6: unmapped/unhandled keys are
// never fatal). loadInitialQueue is called once headphones are present
// (spec §4.6's startup gate); it may be nil to skip the initial load
// entirely (e.g. in tests).
func New(cfg Config, sess sessionView, cues cue.Player, actions Actions, loadInitialQueue func(ctx context.Context) error) *Dispatcher {
	return &Dispatcher{
		cfg:              cfg,
		sess:             sess,
		cues:             cues,
		devices:          make(map[string]*deviceEntry),
		tracker:          newArrivalTracker(cfg.ControllerName, cfg.HeadphonesName),
		actions:          actions,
		loadInitialQueue: loadInitialQueue,
		keys:             make(chan int, 16),
	}
}

// Run watches cfg.DevicesDir for hotplug events and dispatches decoded
// keycodes until ctx is cancelled (spec §4.6's main loop).
func (d *Dispatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create device watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(d.cfg.DevicesDir); err != nil {
		return fmt.Errorf("watch %s: %w", d.cfg.DevicesDir, err)
	}

	d.scanExisting()
	defer d.closeAll()

	if d.waitForHeadphones(ctx); ctx.Err() != nil {
		return nil
	}
	d.loadInitial(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			d.handleFsEvent(event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("device watcher error", "error", err)

		case code := <-d.keys:
			d.dispatchKey(code)
		}
	}
}

// waitForHeadphones blocks, re-scanning cfg.DevicesDir every 6s, until the
// tracker has seen the headphones arrive or ctx is cancelled (spec §4.6:
// "Before entering the loop the dispatcher waits until headphones are
// present").
func (d *Dispatcher) waitForHeadphones(ctx context.Context) {
	for !d.tracker.headphones() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(headphonePollInterval):
		}
		d.scanExisting()
	}
}

// loadInitial calls the configured initial-queue loader once headphones are
// present. A failed load (typically ErrEmpty) starts a background cue that
// voices "no files" every 8s until the process is restarted with content
// available (spec §4.6, §8 scenario 1).
func (d *Dispatcher) loadInitial(ctx context.Context) {
	if d.loadInitialQueue == nil {
		return
	}
	if err := d.loadInitialQueue(ctx); err != nil {
		slog.Warn("initial queue load failed", "error", err)
		go d.voiceNoFiles(ctx)
	}
}

func (d *Dispatcher) voiceNoFiles(ctx context.Context) {
	ticker := time.NewTicker(noFilesVoiceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.cues.Announce("no files")
		}
	}
}

// scanExisting opens every device node already present at startup, so a
// controller plugged in before the dispatcher starts is still recognised
// (spec §4.6). Nodes already open are skipped, since this is also used by
// the headphone-wait poll to pick up arrivals between fsnotify events.
func (d *Dispatcher) scanExisting() {
	entries, err := os.ReadDir(d.cfg.DevicesDir)
	if err != nil {
		slog.Error("scan input devices", "error", err)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		d.handleAdd(filepath.Join(d.cfg.DevicesDir, entry.Name()))
	}
}

func (d *Dispatcher) handleFsEvent(event fsnotify.Event) {
	switch {
	case event.Has(fsnotify.Create):
		d.handleAdd(event.Name)
	case event.Has(fsnotify.Remove):
		d.handleRemove(event.Name)
	}
}

// handleAdd classifies a newly arrived node and, once the tracker decides
// the controller or headphones are actually present, opens it for reading
// and fires the matching cue (spec §4.6).
func (d *Dispatcher) handleAdd(path string) {
	if _, already := d.devices[path]; already {
		return
	}

	name, err := readDeviceName(path)
	if err != nil {
		logDeviceWarning(path, err)
		return
	}

	kind, announceController, announceHeadphones := d.tracker.onAdd(name)
	if kind == kindOther {
		return
	}

	dev, err := openDevice(path, d.keys)
	if err != nil {
		logDeviceWarning(path, err)
		return
	}
	d.devices[path] = &deviceEntry{dev: dev, kind: kind}

	if announceController {
		slog.Info("controller connected", "device", name)
		d.cues.Announce("controller connected")
	}
	if announceHeadphones {
		slog.Info("headphones connected", "device", name)
		d.cues.Announce("headphones connected")
	}
}

// handleRemove closes the node's device handle and, for a headphone
// disconnect, asynchronously restarts the audio daemon so Bluetooth can
// re-pair on the next reconnect (spec §4.6). The node's kind is read from
// the entry recorded at add time, since the node is already gone from
// sysfs by the time Remove fires.
func (d *Dispatcher) handleRemove(path string) {
	entry, ok := d.devices[path]
	if !ok {
		return
	}
	delete(d.devices, path)
	entry.dev.close()

	if restart := d.tracker.onRemove(entry.kind); restart {
		go d.restartAudioDaemon()
	}
}

// dispatchKey resolves code against the session's currently-active keymap
// and invokes the bound action, if any. Spec §4.6 step 3 / §7 assigns the
// negative-cue responsibility to the dispatcher itself: any action that
// returns an error is both logged and sounded here, uniformly across every
// bound action.
func (d *Dispatcher) dispatchKey(code int) {
	action, ok := d.sess.Snapshot().ActiveKeys[code]
	if !ok {
		return
	}
	fn, ok := d.actions[action]
	if !ok {
		slog.Warn("no handler bound for action", "action", action)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("action failed", "action", action, "error", err)
		d.cues.Negative()
	}
}

func (d *Dispatcher) closeAll() {
	for path, entry := range d.devices {
		entry.dev.close()
		delete(d.devices, path)
	}
}

// restartAudioDaemon kills and restarts pulseaudio so the Bluetooth audio
// sink is rebuilt on the headset's next reconnect (spec §4.6, grounded on
// the original's "pulseaudio -k" / "pulseaudio --start" pair).
func (d *Dispatcher) restartAudioDaemon() {
	bin := d.cfg.PulseaudioBin
	if bin == "" {
		bin = "pulseaudio"
	}
	if err := exec.Command(bin, "-k").Run(); err != nil {
		slog.Warn("pulseaudio kill failed", "error", err)
	}
	time.Sleep(500 * time.Millisecond)
	if err := exec.Command(bin, "--start").Run(); err != nil {
		slog.Error("pulseaudio restart failed", "error", err)
	}
}
