// Package cue is the abstract "audio cue" collaborator (spec §1: sound-
// effect playback is explicitly out of scope). Callers depend on the Player
// interface so a real implementation can be swapped in without touching
// any in-scope component.
package cue

import "log/slog"

// Player fires short (<=1s), fire-and-forget confirmation/error tones
// (spec §5). Announce is used when a queue finishes loading; Negative is
// used when an action fails.
type Player interface {
	Announce(name string)
	Negative()
}

// NopPlayer logs instead of making sound. The default until a real cue
// player is wired in.
type NopPlayer struct{}

func (NopPlayer) Announce(name string) { slog.Debug("cue", "announce", name) }
func (NopPlayer) Negative()            { slog.Debug("cue", "negative", true) }
