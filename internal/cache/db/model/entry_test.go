package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestEntry_IsExpired uses a strict greater-than on elapsed time.
func TestEntry_IsExpired(t *testing.T) {
	at := time.Unix(1000, 0)
	e := NewEntry("content:home", "v", at, 5*time.Second, 3)

	require.False(t, e.IsExpired(at))
	require.False(t, e.IsExpired(at.Add(5*time.Second)), "exactly ttl is still fresh")
	require.True(t, e.IsExpired(at.Add(5*time.Second+time.Nanosecond)))
}

// TestEntry_Weight adds the key length to the value weight.
func TestEntry_Weight(t *testing.T) {
	e := NewEntry("abc", 1, time.Now(), time.Second, 10)
	require.Equal(t, int64(13), e.Weight())

	neg := NewEntry("abc", 1, time.Now(), time.Second, -5)
	require.Equal(t, int64(3), neg.Weight())
}

// TestEntry_Accessors returns what was stored.
func TestEntry_Accessors(t *testing.T) {
	at := time.Unix(0, 42)
	e := NewEntry("k", map[string]int{"a": 1}, at, time.Minute, 0)
	require.Equal(t, "k", e.Key())
	require.Equal(t, map[string]int{"a": 1}, e.Value())
	require.Equal(t, time.Minute, e.TTL())
	require.True(t, at.Equal(e.InsertedAt()))

	var nilEntry *Entry
	require.False(t, nilEntry.IsExpired(time.Now()))
}
