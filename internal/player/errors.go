package player

import "errors"

// Error kinds per spec §7.
var (
	// ErrUnreachable wraps connection/dial/timeout failures talking to the
	// external player.
	ErrUnreachable = errors.New("player: unreachable")
	// ErrRejected wraps an error response to a specific command. LoadQueue
	// does not return it for unrecognised paths; it skips and reports them.
	ErrRejected = errors.New("player: rejected")
)
