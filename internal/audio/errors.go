package audio

import "errors"

// Error kinds per spec §7.
var (
	// ErrAlreadyCapturing is returned by StartCapture when a capture is
	// already running process-wide; only one may run at a time.
	ErrAlreadyCapturing = errors.New("audio: already capturing")
	// ErrNotCapturing is returned by StopCapture when nothing is running.
	// Reported, not fatal (spec §4.3).
	ErrNotCapturing = errors.New("audio: not capturing")
	// ErrCapture wraps a recorder subprocess that failed to start. The
	// recorder's exit status is not checked.
	ErrCapture = errors.New("audio: capture failed")
	// ErrCut wraps a cut subprocess that failed to start.
	ErrCut = errors.New("audio: cut failed")
)
