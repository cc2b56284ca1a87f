package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/devaloi/parley/internal/domain"
)

type backend struct {
	name string
	open func(t *testing.T) Store
	// corrupt writes an undecodable value under key.
	corrupt func(t *testing.T, s Store, key string)
}

func backends() []backend {
	return []backend{
		{
			name: "sqlite",
			open: func(t *testing.T) Store {
				s, err := NewSQLite(":memory:")
				require.NoError(t, err)
				return s
			},
			corrupt: func(t *testing.T, s Store, key string) {
				require.NoError(t, s.(*SQLiteStore).put(key, []byte("{not json")))
			},
		},
		{
			name: "badger",
			open: func(t *testing.T) Store {
				s, err := NewBadger("")
				require.NoError(t, err)
				return s
			},
			corrupt: func(t *testing.T, s Store, key string) {
				require.NoError(t, s.(*BadgerStore).put(key, []byte("{not json")))
			},
		},
	}
}

func sampleSnapshot() domain.Snapshot {
	at := time.Date(2025, 3, 4, 10, 0, 0, 123456789, time.UTC)
	snap := domain.EmptySnapshot()
	snap.Chatrooms = []domain.Chatroom{
		{ID: "room-b", Title: "Team Chat"},
		{ID: "room-a", Title: "Random"},
	}
	snap.Messages["room-b"] = []domain.Message{
		{ID: 1, Sender: "alice", Text: "hello", Timestamp: at, Kind: domain.KindText},
		{ID: 2, Sender: "Gemini", Text: `You said: "hello" 🤖`, Timestamp: at.Add(1500 * time.Millisecond), Kind: domain.KindText},
		{ID: 3, Sender: "alice", Image: "data:image/png;base64,iVBORw0KGgo=", Timestamp: at.Add(time.Minute), Kind: domain.KindImage},
	}
	snap.Messages["room-a"] = []domain.Message{}
	return snap
}

func TestLoadEmpty(t *testing.T) {
	t.Parallel()
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			defer s.Close()

			snap, err := s.Load()
			require.NoError(t, err)
			require.Empty(t, snap.Chatrooms)
			require.NotNil(t, snap.Messages)
			require.Empty(t, snap.Messages)
		})
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	t.Parallel()
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			defer s.Close()

			want := sampleSnapshot()
			require.NoError(t, s.SaveChatrooms(want.Chatrooms))
			require.NoError(t, s.SaveMessages(want.Messages))

			got, err := s.Load()
			require.NoError(t, err)
			require.Equal(t, want, got)
		})
	}
}

func TestSaveOverwrites(t *testing.T) {
	t.Parallel()
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			defer s.Close()

			require.NoError(t, s.SaveChatrooms([]domain.Chatroom{{ID: "1", Title: "one"}}))
			require.NoError(t, s.SaveChatrooms([]domain.Chatroom{{ID: "2", Title: "two"}}))

			got, err := s.Load()
			require.NoError(t, err)
			require.Equal(t, []domain.Chatroom{{ID: "2", Title: "two"}}, got.Chatrooms)
		})
	}
}

func TestRecordsAreIndependent(t *testing.T) {
	t.Parallel()
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			defer s.Close()

			require.NoError(t, s.SaveChatrooms([]domain.Chatroom{{ID: "1", Title: "one"}}))

			got, err := s.Load()
			require.NoError(t, err)
			require.Len(t, got.Chatrooms, 1)
			require.Empty(t, got.Messages)
		})
	}
}

func TestLoadCorrupt(t *testing.T) {
	t.Parallel()
	for _, b := range backends() {
		for _, key := range []string{KeyChatrooms, KeyMessages} {
			t.Run(b.name+"/"+key, func(t *testing.T) {
				s := b.open(t)
				defer s.Close()

				b.corrupt(t, s, key)

				_, err := s.Load()
				require.ErrorIs(t, err, domain.ErrStorage)
			})
		}
	}
}

func TestSaveAfterCloseIsStorageError(t *testing.T) {
	t.Parallel()
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			require.NoError(t, s.Close())

			err := s.SaveChatrooms([]domain.Chatroom{{ID: "1", Title: "one"}})
			require.ErrorIs(t, err, domain.ErrStorage)
		})
	}
}
