// Package player is the Player Gateway (spec §4.2): a thin command/query
// client for the external music-player daemon. It speaks the line-oriented
// protocol named in spec §6 directly over TCP — no client library exists in
// the reference corpus for this protocol, so the wire format is hand-rolled
// (see DESIGN.md).
package player

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const dialTimeout = 3 * time.Second

// Stutter-seek constants (spec §4.2): calibrated empirically against the
// Bluetooth stack in use and taken as a fixed interface contract, not a
// tunable.
const (
	stutterForwardOffset     = -0.165
	stutterBackwardOffset    = -0.23
	stutterResumeCompensation = 0.2
	stutterResumeSleep        = 200 * time.Millisecond
)

// Gateway is the Player Gateway. mediaRoot performs the relative↔absolute
// path bijection the external player expects (spec §4.2).
type Gateway struct {
	addr      string
	mediaRoot string
}

// New builds a Gateway. addr is "host:port"; mediaRoot is the absolute path
// the player scans out-of-band.
func New(host string, port int, mediaRoot string) *Gateway {
	return &Gateway{addr: fmt.Sprintf("%s:%d", host, port), mediaRoot: mediaRoot}
}

func (g *Gateway) toRelative(absolute string) string {
	rel, err := filepath.Rel(g.mediaRoot, absolute)
	if err != nil {
		return absolute
	}
	return rel
}

func (g *Gateway) toAbsolute(relative string) string {
	return filepath.Join(g.mediaRoot, relative)
}

func (g *Gateway) do(ctx context.Context, fn func(*conn) error) error {
	ctx, cancel := withDeadline(ctx, dialTimeout)
	defer cancel()
	c, err := dial(ctx, g.addr)
	if err != nil {
		return err
	}
	defer c.close()
	return fn(c)
}

// clearStopState removes the player's stop state by forcing play then an
// immediate pause, landing in a well-defined pause state (spec §4.2's
// "stop-state removal").
func clearStopState(c *conn) error {
	if _, err := c.send("play"); err != nil {
		return err
	}
	_, err := c.send("pause 1")
	return err
}

// LoadQueue replaces the current queue with paths, skipping any the player
// does not yet recognise (spec §4.2). Returns the absolute paths skipped. If
// every path is skipped, the current queue is left as it was.
func (g *Gateway) LoadQueue(ctx context.Context, absolutePaths []string) (skipped []string, err error) {
	err = g.do(ctx, func(c *conn) error {
		var toLoad []string
		for _, p := range absolutePaths {
			rel := g.toRelative(p)
			ok, rerr := recognises(c, rel)
			if rerr != nil {
				return rerr
			}
			if !ok {
				skipped = append(skipped, p)
				continue
			}
			toLoad = append(toLoad, rel)
		}
		if len(toLoad) == 0 {
			return nil
		}
		if _, err := c.send("clear"); err != nil {
			return err
		}
		for _, rel := range toLoad {
			if _, err := c.send("add " + quote(rel)); err != nil {
				return err
			}
		}
		return nil
	})
	return skipped, err
}

// PlayerRecognises reports whether the player has indexed absolutePath yet.
func (g *Gateway) PlayerRecognises(ctx context.Context, absolutePath string) (bool, error) {
	var ok bool
	err := g.do(ctx, func(c *conn) error {
		var rerr error
		ok, rerr = recognises(c, g.toRelative(absolutePath))
		return rerr
	})
	return ok, err
}

func recognises(c *conn, relative string) (bool, error) {
	lines, err := c.send("find file " + quote(relative))
	if err != nil {
		return false, err
	}
	return len(lines) > 0, nil
}

// Track describes the currently loaded song, if any.
type Track struct {
	Relative string
	Absolute string
	Elapsed  float64
	State    string // MPD's raw "play"/"pause"/"stop"
}

// CurrentTrack removes stop-state, then reads the current song and its
// elapsed position (spec §4.2). Returns a nil Track pointer if the queue is
// empty.
func (g *Gateway) CurrentTrack(ctx context.Context) (*Track, error) {
	var t *Track
	err := g.do(ctx, func(c *conn) error {
		if err := clearStopState(c); err != nil {
			return err
		}
		song, err := c.send("currentsong")
		if err != nil {
			return err
		}
		songInfo := parsePairs(song)
		rel, ok := songInfo["file"]
		if !ok {
			return nil // empty queue
		}
		status, err := c.send("status")
		if err != nil {
			return err
		}
		statusInfo := parsePairs(status)
		elapsed, _ := strconv.ParseFloat(statusInfo["elapsed"], 64)
		t = &Track{Relative: rel, Absolute: g.toAbsolute(rel), Elapsed: elapsed, State: statusInfo["state"]}
		return nil
	})
	return t, err
}

// Toggle flips play↔pause, removing stop-state first.
func (g *Gateway) Toggle(ctx context.Context) error {
	return g.do(ctx, func(c *conn) error {
		if err := clearStopState(c); err != nil {
			return err
		}
		status, err := c.send("status")
		if err != nil {
			return err
		}
		info := parsePairs(status)
		if info["state"] == "play" {
			_, err = c.send("pause 1")
		} else {
			_, err = c.send("play")
		}
		return err
	})
}

// Previous moves to the previous queue entry, removing stop-state first.
func (g *Gateway) Previous(ctx context.Context) error {
	return g.do(ctx, func(c *conn) error {
		if err := clearStopState(c); err != nil {
			return err
		}
		_, err := c.send("previous")
		return err
	})
}

// Next moves to the next queue entry, removing stop-state first.
func (g *Gateway) Next(ctx context.Context) error {
	return g.do(ctx, func(c *conn) error {
		if err := clearStopState(c); err != nil {
			return err
		}
		_, err := c.send("next")
		return err
	})
}

func (g *Gateway) seekTo(c *conn, position float64) error {
	if position < 0 {
		position = 0
	}
	_, err := c.send(fmt.Sprintf("seekcur %.3f", position))
	return err
}

// SeekForward adds dt seconds to the elapsed position.
func (g *Gateway) SeekForward(ctx context.Context, dt float64) error {
	return g.seekRelative(ctx, dt)
}

// SeekBackward subtracts dt seconds from the elapsed position. If the
// result would go negative, no seek is issued at all and the position is
// left unchanged (elapsed < step leaves position unchanged), matching the
// original's "seek_to = cur_timestamp - 6; if seek_to < 0: return".
func (g *Gateway) SeekBackward(ctx context.Context, dt float64) error {
	return g.seekRelative(ctx, -dt)
}

func (g *Gateway) seekRelative(ctx context.Context, delta float64) error {
	return g.do(ctx, func(c *conn) error {
		status, err := c.send("status")
		if err != nil {
			return err
		}
		elapsed, _ := strconv.ParseFloat(parsePairs(status)["elapsed"], 64)
		target := elapsed + delta
		if target < 0 {
			return nil
		}
		return g.seekTo(c, target)
	})
}

// SeekTo moves the current track to an absolute position, clamped at 0. Used
// to restore a Topic's stored timestamp or an Extract's startstamp when the
// queue engine reorders playback onto it.
func (g *Gateway) SeekTo(ctx context.Context, position float64) error {
	return g.do(ctx, func(c *conn) error {
		return g.seekTo(c, position)
	})
}

// StutterForward nudges the cloze boundary forward: see stutter-seek
// constants above.
func (g *Gateway) StutterForward(ctx context.Context) error {
	return g.stutter(ctx, stutterForwardOffset)
}

// StutterBackward nudges the cloze boundary backward.
func (g *Gateway) StutterBackward(ctx context.Context) error {
	return g.stutter(ctx, stutterBackwardOffset)
}

func (g *Gateway) stutter(ctx context.Context, offset float64) error {
	return g.do(ctx, func(c *conn) error {
		if err := clearStopState(c); err != nil {
			return err
		}
		status, err := c.send("status")
		if err != nil {
			return err
		}
		elapsed, _ := strconv.ParseFloat(parsePairs(status)["elapsed"], 64)
		if err := g.seekTo(c, elapsed+offset); err != nil {
			return err
		}
		if _, err := c.send("pause 0"); err != nil {
			return err
		}
		time.Sleep(stutterResumeSleep)
		if _, err := c.send("pause 1"); err != nil {
			return err
		}
		return g.seekTo(c, elapsed+offset+stutterResumeCompensation)
	})
}

// VolumeUp raises volume by step, clamped to [0, 100].
func (g *Gateway) VolumeUp(ctx context.Context, step int) error {
	return g.volumeDelta(ctx, step)
}

// VolumeDown lowers volume by step, clamped to [0, 100].
func (g *Gateway) VolumeDown(ctx context.Context, step int) error {
	return g.volumeDelta(ctx, -step)
}

// Volume reads the daemon's current volume (0-100).
func (g *Gateway) Volume(ctx context.Context) (int, error) {
	var vol int
	err := g.do(ctx, func(c *conn) error {
		status, err := c.send("status")
		if err != nil {
			return err
		}
		vol, _ = strconv.Atoi(parsePairs(status)["volume"])
		return nil
	})
	return vol, err
}

// SetVolume sets the daemon's volume outright, clamped to [0, 100]. Used to
// restore the last known volume on startup, since the external player
// otherwise starts at whatever its own default happens to be.
func (g *Gateway) SetVolume(ctx context.Context, vol int) error {
	if vol < 0 {
		vol = 0
	}
	if vol > 100 {
		vol = 100
	}
	return g.do(ctx, func(c *conn) error {
		_, err := c.send(fmt.Sprintf("setvol %d", vol))
		return err
	})
}

func (g *Gateway) volumeDelta(ctx context.Context, delta int) error {
	return g.do(ctx, func(c *conn) error {
		status, err := c.send("status")
		if err != nil {
			return err
		}
		vol, _ := strconv.Atoi(parsePairs(status)["volume"])
		vol += delta
		if vol < 0 {
			vol = 0
		}
		if vol > 100 {
			vol = 100
		}
		_, err = c.send(fmt.Sprintf("setvol %d", vol))
		return err
	})
}

// Repeat toggles queue-repeat mode.
func (g *Gateway) Repeat(ctx context.Context, on bool) error {
	return g.do(ctx, func(c *conn) error {
		_, err := c.send("repeat " + boolArg(on))
		return err
	})
}

// Single toggles single-track-stop mode.
func (g *Gateway) Single(ctx context.Context, on bool) error {
	return g.do(ctx, func(c *conn) error {
		_, err := c.send("single " + boolArg(on))
		return err
	})
}

// Ping checks reachability without side effects.
func (g *Gateway) Ping(ctx context.Context) error {
	return g.do(ctx, func(c *conn) error {
		_, err := c.send("ping")
		return err
	})
}

func boolArg(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// quote wraps a path argument in double quotes, escaping embedded quotes
// and backslashes per the protocol's argument syntax.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
