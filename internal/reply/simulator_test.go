package reply

import (
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"github.com/devaloi/parley/internal/directory"
	"github.com/devaloi/parley/internal/domain"
	"github.com/devaloi/parley/internal/messagelog"
	"github.com/devaloi/parley/internal/state"
	"github.com/devaloi/parley/internal/testutil"
)

const testDelay = 30 * time.Millisecond

type fixture struct {
	dir *directory.Directory
	log *messagelog.Log
	sim *Simulator

	mu    sync.Mutex
	flips []string
}

func newFixture(t *testing.T, delay time.Duration) *fixture {
	t.Helper()
	logger := logs.GetLoggerFromLevel(slog.LevelError)
	c := state.New(testutil.NewMockStore(), logger)
	f := &fixture{dir: directory.New(c, logger), log: messagelog.New(c, logger)}
	f.sim = New(f.log, delay, "", logger)
	f.sim.OnComposing = func(roomID string, composing bool) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.flips = append(f.flips, fmt.Sprintf("%s:%v", roomID, composing))
	}
	t.Cleanup(func() { f.sim.Stop() })
	return f
}

func (f *fixture) room(t *testing.T) string {
	t.Helper()
	r, err := f.dir.Create("room")
	require.NoError(t, err)
	return r.ID
}

func (f *fixture) flipsSoFar() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.flips...)
}

func (f *fixture) length(t *testing.T, id string) int {
	n, err := f.log.Len(id)
	require.NoError(t, err)
	return n
}

func TestReplyText(t *testing.T) {
	t.Parallel()
	require.Equal(t, `You said: "hi" 🤖`, Text("hi"))
	require.Equal(t, `You said: "" 🤖`, Text(""))
}

func TestDefaults(t *testing.T) {
	t.Parallel()
	s := New(nil, 0, "", logs.GetLoggerFromLevel(slog.LevelError))
	require.Equal(t, DefaultSender, s.Sender())
	require.Equal(t, DefaultDelay, s.delay)
}

func TestReplyLandsAfterUserMessage(t *testing.T) {
	t.Parallel()
	f := newFixture(t, testDelay)
	id := f.room(t)
	before := f.length(t, id)

	user, err := f.log.Append(id, domain.Message{Sender: "alice", Text: "hi"})
	require.NoError(t, err)
	f.sim.Schedule(id, "hi")
	require.True(t, f.sim.Composing(id))

	require.Eventually(t, func() bool { return f.length(t, id) == before+2 }, time.Second, 5*time.Millisecond)

	msgs, err := f.log.Messages(id)
	require.NoError(t, err)
	require.Equal(t, user, msgs[0])
	botMsg := msgs[1]
	require.Equal(t, DefaultSender, botMsg.Sender)
	require.Equal(t, `You said: "hi" 🤖`, botMsg.Text)
	require.Equal(t, domain.KindText, botMsg.Kind)
	require.Greater(t, botMsg.ID, user.ID)

	require.Eventually(t, func() bool { return len(f.flipsSoFar()) == 2 }, time.Second, 5*time.Millisecond)
	require.Equal(t, []string{id + ":true", id + ":false"}, f.flipsSoFar())
	require.False(t, f.sim.Composing(id))
	require.Zero(t, f.sim.Pending())
}

func TestReplyWaitsForDelay(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 200*time.Millisecond)
	id := f.room(t)

	f.sim.Schedule(id, "patience")
	time.Sleep(50 * time.Millisecond)
	require.Zero(t, f.length(t, id))
	require.True(t, f.sim.Composing(id))
}

func TestReplyTargetsCapturedRoom(t *testing.T) {
	t.Parallel()
	f := newFixture(t, testDelay)
	a := f.room(t)
	b := f.room(t)

	f.sim.Schedule(a, "for a")
	// The caller moves on to b immediately.
	_, err := f.log.Append(b, domain.Message{Sender: "alice", Text: "in b"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return f.length(t, a) == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, 1, f.length(t, b))
}

func TestDeletedRoomDropsReply(t *testing.T) {
	t.Parallel()
	f := newFixture(t, testDelay)
	id := f.room(t)
	f.sim.Schedule(id, "hi")

	// Delete without cancelling: the append must be swallowed.
	require.NoError(t, f.dir.Delete(id))
	require.Eventually(t, func() bool { return f.sim.Pending() == 0 && !f.sim.Composing(id) }, time.Second, 5*time.Millisecond)

	_, err := f.log.Messages(id)
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.Empty(t, f.dir.List(""))
}

func TestOverlappingRepliesAllLand(t *testing.T) {
	t.Parallel()
	f := newFixture(t, testDelay)
	id := f.room(t)

	for i := range 3 {
		f.sim.Schedule(id, fmt.Sprint("burst ", i))
	}
	require.Equal(t, 3, f.sim.Pending())
	require.True(t, f.sim.Composing(id))

	require.Eventually(t, func() bool { return f.length(t, id) == 3 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return len(f.flipsSoFar()) == 2 }, time.Second, 5*time.Millisecond)
	require.False(t, f.sim.Composing(id))
	// One flip up, one flip down, however many replies overlapped.
	require.Equal(t, []string{id + ":true", id + ":false"}, f.flipsSoFar())
}

func TestCancel(t *testing.T) {
	t.Parallel()
	f := newFixture(t, testDelay)
	id := f.room(t)

	tok := f.sim.Schedule(id, "never")
	require.True(t, f.sim.Cancel(tok))
	require.False(t, f.sim.Cancel(tok))
	require.False(t, f.sim.Composing(id))

	time.Sleep(3 * testDelay)
	require.Zero(t, f.length(t, id))
}

func TestCancelRoomLeavesOtherRooms(t *testing.T) {
	t.Parallel()
	f := newFixture(t, testDelay)
	a := f.room(t)
	b := f.room(t)

	f.sim.Schedule(a, "1")
	f.sim.Schedule(a, "2")
	f.sim.Schedule(b, "3")

	require.Equal(t, 2, f.sim.CancelRoom(a))
	require.False(t, f.sim.Composing(a))
	require.True(t, f.sim.Composing(b))

	require.Eventually(t, func() bool { return f.length(t, b) == 1 }, time.Second, 5*time.Millisecond)
	require.Zero(t, f.length(t, a))
}

func TestStopCancelsEverything(t *testing.T) {
	t.Parallel()
	f := newFixture(t, testDelay)
	id := f.room(t)
	f.sim.Schedule(id, "1")
	f.sim.Schedule(id, "2")

	require.Equal(t, 2, f.sim.Stop())
	require.Zero(t, f.sim.Pending())
	require.Zero(t, f.sim.Schedule(id, "late"))

	time.Sleep(3 * testDelay)
	require.Zero(t, f.length(t, id))
}

// gatedAppender blocks every append until release is closed.
type gatedAppender struct {
	next    Appender
	entered chan struct{}
	release chan struct{}
}

func (g *gatedAppender) Append(roomID string, msg domain.Message) (domain.Message, error) {
	g.entered <- struct{}{}
	<-g.release
	return g.next.Append(roomID, msg)
}

func TestStopWaitsForReplyInFlight(t *testing.T) {
	t.Parallel()
	f := newFixture(t, testDelay)
	id := f.room(t)
	gate := &gatedAppender{next: f.log, entered: make(chan struct{}, 1), release: make(chan struct{})}
	sim := New(gate, testDelay, "", logs.GetLoggerFromLevel(slog.LevelError))
	sim.Schedule(id, "slow")

	select {
	case <-gate.entered:
	case <-time.After(time.Second):
		t.Fatal("reply never fired")
	}

	stopped := make(chan int, 1)
	go func() { stopped <- sim.Stop() }()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a reply was being appended")
	case <-time.After(3 * testDelay):
	}

	close(gate.release)
	select {
	case cancelled := <-stopped:
		require.Zero(t, cancelled)
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
	require.Equal(t, 1, f.length(t, id))
}
