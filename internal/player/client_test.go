package player

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePlayer is a minimal stand-in for the external daemon: it speaks just
// enough of the line protocol (banner + OK/ACK framing) to drive the
// Gateway's command-by-command logic under test.
type fakePlayer struct {
	ln      net.Listener
	state   string // "play" | "pause" | "stop"
	elapsed float64
	volume  int
	file    string
	unknown map[string]bool // relative paths "find" should reject
	seeks   []float64       // seekcur arguments, in order received
}

func newFakePlayer(t *testing.T) *fakePlayer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	fp := &fakePlayer{ln: ln, state: "stop", volume: 50, file: "topics/a.mp3", unknown: map[string]bool{}}
	go fp.serve()
	t.Cleanup(func() { ln.Close() })
	return fp
}

func (fp *fakePlayer) addr() string {
	return fp.ln.Addr().String()
}

func (fp *fakePlayer) serve() {
	for {
		nc, err := fp.ln.Accept()
		if err != nil {
			return
		}
		go fp.handle(nc)
	}
}

func (fp *fakePlayer) handle(nc net.Conn) {
	defer nc.Close()
	rw := bufio.NewReadWriter(bufio.NewReader(nc), bufio.NewWriter(nc))
	rw.WriteString("OK fakeplayer 0.1\n")
	rw.Flush()
	for {
		line, err := rw.ReadString('\n')
		if err != nil {
			return
		}
		fp.respond(rw, strings.TrimRight(line, "\r\n"))
		rw.Flush()
	}
}

func (fp *fakePlayer) respond(rw *bufio.ReadWriter, cmd string) {
	switch {
	case cmd == "play":
		fp.state = "play"
		rw.WriteString("OK\n")
	case strings.HasPrefix(cmd, "pause"):
		if strings.HasSuffix(cmd, "1") {
			fp.state = "pause"
		} else {
			fp.state = "play"
		}
		rw.WriteString("OK\n")
	case cmd == "status":
		rw.WriteString("volume: " + strconv.Itoa(fp.volume) + "\n")
		rw.WriteString("state: " + fp.state + "\n")
		rw.WriteString("elapsed: " + strconv.FormatFloat(fp.elapsed, 'f', -1, 64) + "\n")
		rw.WriteString("OK\n")
	case cmd == "currentsong":
		if fp.file == "" {
			rw.WriteString("OK\n")
			return
		}
		rw.WriteString("file: " + fp.file + "\n")
		rw.WriteString("OK\n")
	case strings.HasPrefix(cmd, "find file "):
		path := strings.Trim(strings.TrimPrefix(cmd, "find file "), `"`)
		if fp.unknown[path] {
			rw.WriteString("OK\n")
			return
		}
		rw.WriteString("file: " + path + "\n")
		rw.WriteString("OK\n")
	case strings.HasPrefix(cmd, "seekcur "):
		pos, _ := strconv.ParseFloat(strings.TrimPrefix(cmd, "seekcur "), 64)
		fp.seeks = append(fp.seeks, pos)
		rw.WriteString("OK\n")
	case strings.HasPrefix(cmd, "setvol "):
		fp.volume, _ = strconv.Atoi(strings.TrimPrefix(cmd, "setvol "))
		rw.WriteString("OK\n")
	case cmd == "clear", strings.HasPrefix(cmd, "add "),
		strings.HasPrefix(cmd, "repeat "), strings.HasPrefix(cmd, "single "),
		cmd == "next", cmd == "previous", cmd == "ping":
		rw.WriteString("OK\n")
	default:
		rw.WriteString("ACK [5@0] {} unknown command \"" + cmd + "\"\n")
	}
}

func gatewayAndFake(t *testing.T) (*Gateway, *fakePlayer) {
	fp := newFakePlayer(t)
	host, portStr, err := net.SplitHostPort(fp.addr())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return New(host, port, "/media"), fp
}

func ctxTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 2*time.Second)
}

func TestToggleTransitionsThroughPause(t *testing.T) {
	g, fp := gatewayAndFake(t)
	fp.state = "stop"

	ctx, cancel := ctxTimeout()
	defer cancel()
	require.NoError(t, g.Toggle(ctx))
	assert.Equal(t, "play", fp.state, "clearing stop-state lands in pause; toggling from pause plays")
}

func TestCurrentTrackEmptyQueue(t *testing.T) {
	g, fp := gatewayAndFake(t)
	fp.file = ""

	ctx, cancel := ctxTimeout()
	defer cancel()
	track, err := g.CurrentTrack(ctx)
	require.NoError(t, err)
	assert.Nil(t, track)
}

func TestCurrentTrackReturnsAbsolutePath(t *testing.T) {
	g, fp := gatewayAndFake(t)
	fp.file = "topics/a.mp3"
	fp.elapsed = 12.5

	ctx, cancel := ctxTimeout()
	defer cancel()
	track, err := g.CurrentTrack(ctx)
	require.NoError(t, err)
	require.NotNil(t, track)
	assert.Equal(t, "/media/topics/a.mp3", track.Absolute)
	assert.Equal(t, 12.5, track.Elapsed)
}

func TestLoadQueueSkipsUnrecognisedPaths(t *testing.T) {
	g, fp := gatewayAndFake(t)
	fp.unknown["topics/missing.mp3"] = true

	ctx, cancel := ctxTimeout()
	defer cancel()
	skipped, err := g.LoadQueue(ctx, []string{"/media/topics/a.mp3", "/media/topics/missing.mp3"})
	require.NoError(t, err)
	require.Len(t, skipped, 1)
	assert.Equal(t, "/media/topics/missing.mp3", skipped[0])
}

func TestVolumeClampedAtUpperBound(t *testing.T) {
	g, fp := gatewayAndFake(t)
	fp.volume = 98

	ctx, cancel := ctxTimeout()
	defer cancel()
	require.NoError(t, g.VolumeUp(ctx, 5))
	assert.Equal(t, 100, fp.volume)
}

func TestStutterForwardSettlesInPause(t *testing.T) {
	g, fp := gatewayAndFake(t)
	fp.state = "pause"
	fp.elapsed = 10

	ctx, cancel := ctxTimeout()
	defer cancel()
	require.NoError(t, g.StutterForward(ctx))
	assert.Equal(t, "pause", fp.state)
}

func TestSeekBackwardLeavesPositionUnchangedWhenElapsedLessThanStep(t *testing.T) {
	g, fp := gatewayAndFake(t)
	fp.elapsed = 3

	ctx, cancel := ctxTimeout()
	defer cancel()
	require.NoError(t, g.SeekBackward(ctx, 6))
	assert.Empty(t, fp.seeks, "elapsed < step must not issue any seek")
}

func TestSeekBackwardSeeksWhenResultNonNegative(t *testing.T) {
	g, fp := gatewayAndFake(t)
	fp.elapsed = 10

	ctx, cancel := ctxTimeout()
	defer cancel()
	require.NoError(t, g.SeekBackward(ctx, 6))
	require.Len(t, fp.seeks, 1)
	assert.Equal(t, 4.0, fp.seeks[0])
}

func TestSendRejectsUnknownCommandWithACK(t *testing.T) {
	g, fp := gatewayAndFake(t)
	_ = fp

	ctx, cancel := ctxTimeout()
	defer cancel()
	err := g.do(ctx, func(c *conn) error {
		_, err := c.send("bogus")
		return err
	})
	assert.ErrorIs(t, err, ErrRejected)
}
