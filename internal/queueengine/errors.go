package queueengine

import "errors"

// ErrEmpty is returned when a requested queue has no candidates, or every
// candidate was filtered out by the player's path-recognition check (spec
// §4.4). The dispatcher keeps the previous queue; this is not logged as an
// error.
var ErrEmpty = errors.New("queueengine: queue is empty")

// ErrNoCurrentTrack is returned when an operation needs the player's current
// track (to resolve the owning Topic/Extract/Item) but the queue is empty.
var ErrNoCurrentTrack = errors.New("queueengine: no current track")

// ErrNotRecording and ErrNotClozing guard stop_recording/stop_clozing against
// being dispatched with no matching start (a contract bug, since the session
// state machine should already have rejected the keycode).
var (
	ErrNotRecording = errors.New("queueengine: not recording")
	ErrNotClozing   = errors.New("queueengine: not clozing")
)
