package messagelog

import (
	"fmt"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"github.com/devaloi/parley/internal/directory"
	"github.com/devaloi/parley/internal/domain"
	"github.com/devaloi/parley/internal/state"
	"github.com/devaloi/parley/internal/store"
	"github.com/devaloi/parley/internal/testutil"
)

type fixture struct {
	log   *Log
	dir   *directory.Directory
	state *state.Container
	store *testutil.MockStore
	sink  *testutil.RecordingSink
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ms := testutil.NewMockStore()
	sink := &testutil.RecordingSink{}
	logger := logs.GetLoggerFromLevel(slog.LevelError)
	c := state.New(ms, logger, state.WithSink(sink))
	return fixture{
		log:   New(c, logger),
		dir:   directory.New(c, logger),
		state: c,
		store: ms,
		sink:  sink,
	}
}

func (f fixture) room(t *testing.T, title string) string {
	t.Helper()
	r, err := f.dir.Create(title)
	require.NoError(t, err)
	return r.ID
}

func TestAppendPreservesCallOrder(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	id := f.room(t, "ordered")

	var want []string
	for i := range 30 {
		text := fmt.Sprintf("msg %d", i)
		want = append(want, text)
		_, err := f.log.Append(id, domain.Message{Sender: "alice", Text: text})
		require.NoError(t, err)
	}

	msgs, err := f.log.Messages(id)
	require.NoError(t, err)
	var got []string
	for i, m := range msgs {
		got = append(got, m.Text)
		if i > 0 {
			require.Greater(t, m.ID, msgs[i-1].ID)
		}
	}
	require.Equal(t, want, got)
	require.Equal(t, 30, f.store.Saves(store.KeyMessages))
	require.Equal(t, msgs, f.store.Stored().Messages[id])
}

func TestAppendFillsFields(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	id := f.room(t, "fields")

	stored, err := f.log.Append(id, domain.Message{Sender: "alice", Image: "data:image/png;base64,AA==", Kind: domain.KindText})
	require.NoError(t, err)
	require.NotZero(t, stored.ID)
	require.False(t, stored.Timestamp.IsZero())
	require.Equal(t, domain.KindImage, stored.Kind)

	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	second, err := f.log.Append(id, domain.Message{Sender: "bob", Text: "keep", Timestamp: at})
	require.NoError(t, err)
	require.Equal(t, at, second.Timestamp)
	require.Equal(t, domain.KindText, second.Kind)
	require.Greater(t, second.ID, stored.ID)
}

func TestAppendIgnoresCallerIDs(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	id := f.room(t, "ids")

	first, err := f.log.Append(id, domain.Message{Text: "a"})
	require.NoError(t, err)
	_, err = f.log.Append(id, domain.Message{ID: 42, Text: "b"})
	require.NoError(t, err)
	_, err = f.log.Append(id, domain.Message{ID: first.ID, Text: "c"})
	require.NoError(t, err)

	msgs, err := f.log.Messages(id)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for i := 1; i < len(msgs); i++ {
		require.Greater(t, msgs[i].ID, msgs[i-1].ID)
	}
}

func TestAppendUnknownRoom(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.log.Append("nope", domain.Message{Text: "hi"})
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.Equal(t, 0, f.store.Saves(store.KeyMessages))
	require.NotContains(t, f.state.Snapshot().Messages, "nope")
}

func TestDeletedRoomIsNotFound(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	id := f.room(t, "doomed")
	_, err := f.log.Append(id, domain.Message{Text: "before"})
	require.NoError(t, err)

	require.NoError(t, f.dir.Delete(id))

	_, err = f.log.Append(id, domain.Message{Text: "after"})
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.log.Messages(id)
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.log.Len(id)
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.NotContains(t, f.state.Snapshot().Messages, id)
}

func TestEmptyRoomReadsEmpty(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	id := f.room(t, "quiet")

	msgs, err := f.log.Messages(id)
	require.NoError(t, err)
	require.NotNil(t, msgs)
	require.Empty(t, msgs)

	n, err := f.log.Len(id)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestTail(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	id := f.room(t, "tail")
	for i := range 5 {
		_, err := f.log.Append(id, domain.Message{Text: fmt.Sprint(i)})
		require.NoError(t, err)
	}

	msgs, total, err := f.log.Tail(id, 3)
	require.NoError(t, err)
	require.Equal(t, 5, total)
	require.Equal(t, []string{"2", "3", "4"}, []string{msgs[0].Text, msgs[1].Text, msgs[2].Text})

	for _, n := range []int{5, 50, -1, math.MinInt} {
		msgs, total, err = f.log.Tail(id, n)
		require.NoError(t, err)
		require.Equal(t, 5, total)
		require.Len(t, msgs, 5, n)
	}

	msgs, _, err = f.log.Tail(id, 0)
	require.NoError(t, err)
	require.Empty(t, msgs)
}

func TestWriteFailureDoesNotRejectAppend(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	id := f.room(t, "quota")
	f.store.FailSaves(true)

	stored, err := f.log.Append(id, domain.Message{Sender: "alice", Text: "still here"})
	require.NoError(t, err)

	msgs, err := f.log.Messages(id)
	require.NoError(t, err)
	require.Equal(t, []domain.Message{stored}, msgs)

	errs := f.sink.Errors()
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0], domain.ErrStorage)
}

func TestReturnedSliceIsACopy(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	id := f.room(t, "copy")
	_, err := f.log.Append(id, domain.Message{Text: "original"})
	require.NoError(t, err)

	msgs, err := f.log.Messages(id)
	require.NoError(t, err)
	msgs[0].Text = "mutated"

	again, err := f.log.Messages(id)
	require.NoError(t, err)
	require.Equal(t, "original", again[0].Text)
}
