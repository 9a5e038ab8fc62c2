package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testValue struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// exerciseStore runs the same contract against every implementation.
func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "k", []byte("v1")))
	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(got))

	require.NoError(t, s.Set(ctx, "k", []byte("v2")))
	got, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(got))

	require.NoError(t, s.Delete(ctx, "k"))
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	// deleting a missing key is not an error
	assert.NoError(t, s.Delete(ctx, "k"))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	buf := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", buf))
	buf[0] = 'z'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestBoltStore(t *testing.T) {
	s, err := OpenBoltStore(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	defer s.Close()

	exerciseStore(t, s)
}

func TestBoltStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	s, err := OpenBoltStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, KeyToken, []byte("tok")))
	require.NoError(t, s.Close())

	s, err = OpenBoltStore(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "tok", string(got))
}

func TestNamespace_IsolatesVisitors(t *testing.T) {
	ctx := context.Background()
	base := NewMemoryStore()
	a := Namespace(base, "visitor-a")
	b := Namespace(base, "visitor-b")

	require.NoError(t, a.Set(ctx, KeyToken, []byte("a-token")))
	_, err := b.Get(ctx, KeyToken)
	assert.ErrorIs(t, err, ErrNotFound)

	raw, err := base.Get(ctx, "visitor-a:token")
	require.NoError(t, err)
	assert.Equal(t, "a-token", string(raw))

	exerciseStore(t, b)
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, SetJSON(ctx, s, "v", testValue{Name: "candle", Count: 3}))

	var out testValue
	require.NoError(t, GetJSON(ctx, s, "v", &out))
	assert.Equal(t, testValue{Name: "candle", Count: 3}, out)

	require.NoError(t, s.Set(ctx, "broken", []byte("{not json")))
	err := GetJSON(ctx, s, "broken", &out)
	assert.ErrorContains(t, err, "unmarshal broken failed")

	assert.ErrorIs(t, GetJSON(ctx, s, "missing", &out), ErrNotFound)
}
