package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSetGetRemove(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	id := s.New()
	require.True(t, s.Valid(id))

	require.NoError(t, s.Set(id, "user", "alice"))
	v, ok := s.Get(id, "user")
	require.True(t, ok)
	require.Equal(t, "alice", v)

	require.NoError(t, s.Remove(id, "user"))
	_, ok = s.Get(id, "user")
	require.False(t, ok)
}

func TestMemoryStoreGetOnUnknownSession(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	_, ok := s.Get("no-such-id", "user")
	require.False(t, ok)
	require.False(t, s.Valid("no-such-id"))
}

func TestMemoryStoreSetLazilyCreatesSession(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	require.NoError(t, s.Set("ad-hoc-id", "k", 1))
	v, ok := s.Get("ad-hoc-id", "k")
	require.True(t, ok)
	require.Equal(t, 1, v)
}

func TestMemoryStoreExpiresIdleSessions(t *testing.T) {
	s := NewMemoryStore(time.Millisecond)
	id := s.New()
	require.True(t, s.Valid(id))
	time.Sleep(5 * time.Millisecond)
	require.False(t, s.Valid(id), "session idle past timeout must be treated as gone")
}

func TestMemoryStoreTouchExtendsExpiry(t *testing.T) {
	s := NewMemoryStore(20 * time.Millisecond)
	id := s.New()
	time.Sleep(12 * time.Millisecond)
	s.Touch(id)
	time.Sleep(12 * time.Millisecond)
	require.True(t, s.Valid(id), "touch must reset the idle clock")
}

func TestMemoryStoreZeroTimeoutNeverExpires(t *testing.T) {
	s := NewMemoryStore(0)
	id := s.New()
	time.Sleep(5 * time.Millisecond)
	require.True(t, s.Valid(id))
}

func TestNewReturnsDistinctIDs(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	a, b := s.New(), s.New()
	require.NotEqual(t, a, b)
}
