package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeKey(t *testing.T) {
	k, err := SanitizeKey("../play History!")
	require.NoError(t, err)
	assert.Equal(t, "playHistory", k)

	_, err = SanitizeKey("../..")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestStores(t *testing.T) {
	file, err := NewFile(t.TempDir())
	require.NoError(t, err)

	for name, s := range map[string]Store{"memory": NewMemory(), "file": file} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.Load(ctx, KeyHistory)
			assert.ErrorIs(t, err, ErrNotFound)

			got, err := LoadOr(ctx, s, KeyHistory, []string{"fallback"})
			require.NoError(t, err)
			assert.Equal(t, []string{"fallback"}, got)

			require.NoError(t, SaveJSON(ctx, s, KeyHistory, []string{"a", "b"}))
			got, err = LoadOr(ctx, s, KeyHistory, []string(nil))
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, got)

			require.NoError(t, s.Save(ctx, KeyGameCards, json.RawMessage("null")))
			cards, err := LoadOr(ctx, s, KeyGameCards, []int{7})
			require.NoError(t, err)
			assert.Equal(t, []int{7}, cards, "null falls back")

			assert.Error(t, s.Save(ctx, KeyGameCards, json.RawMessage("{broken")))
		})
	}
}

func TestFileLayout(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFile(dir)
	require.NoError(t, err)
	require.NoError(t, f.Save(context.Background(), "../tournaments", json.RawMessage(`[{"id":"1"}]`)))

	data, err := os.ReadFile(filepath.Join(dir, "tournaments.json"))
	require.NoError(t, err)
	assert.Equal(t, "[\n  {\n    \"id\": \"1\"\n  }\n]", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

type flakyStore struct {
	*Memory
	mu       sync.Mutex
	failures int
	writes   []string
}

func (f *flakyStore) Save(ctx context.Context, key string, value json.RawMessage) error {
	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return errors.New("disk unavailable")
	}
	f.writes = append(f.writes, key+"="+string(value))
	f.mu.Unlock()
	return f.Memory.Save(ctx, key, value)
}

func (f *flakyStore) written() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes...)
}

func TestWriterLatestWins(t *testing.T) {
	s := &flakyStore{Memory: NewMemory()}
	w := NewWriter(s)

	require.NoError(t, w.Save(KeyGameCards, 1))
	require.NoError(t, w.Save(KeyGameCards, 2))
	require.NoError(t, w.Save(KeyClients, "x"))
	assert.Equal(t, 2, w.Pending())

	require.NoError(t, w.Flush(context.Background()))
	assert.Equal(t, []string{"gameCards=2", `gameClients="x"`}, s.written())
	assert.Zero(t, w.Pending())
}

func TestWriterRetriesInBackground(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clock := clockwork.NewFakeClock()
	s := &flakyStore{Memory: NewMemory(), failures: 1}
	w := NewWriter(s, WithWriterClock(clock), WithRetryInterval(time.Second))
	w.Start()

	require.NoError(t, w.Save(KeyHistory, []int{1}))
	require.NoError(t, clock.BlockUntilContext(ctx, 1), "loop waits for the retry delay")

	require.NoError(t, w.Save(KeyHistory, []int{1, 2}))
	clock.Advance(time.Second)

	require.Eventually(t, func() bool { return len(s.written()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"playHistory=[1,2]"}, s.written(), "newer document replaces the failed one")

	require.NoError(t, w.Close(ctx))
	raw, err := s.Load(ctx, KeyHistory)
	require.NoError(t, err)
	assert.JSONEq(t, "[1,2]", string(raw))
}

func TestWriterCloseFlushes(t *testing.T) {
	s := &flakyStore{Memory: NewMemory()}
	w := NewWriter(s)
	require.NoError(t, w.Save(KeyTournaments, []string{}))
	require.NoError(t, w.Close(context.Background()))
	assert.Equal(t, []string{"tournaments=[]"}, s.written())
}
