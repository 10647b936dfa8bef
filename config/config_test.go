package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultsPerProfile(t *testing.T) {
	size := Defaults(ProfileSize)
	require.Equal(t, 10, size.ClientCount)
	require.Equal(t, 8*1024, size.ChunkSize)

	speed := Defaults(ProfileSpeed)
	require.Equal(t, 500, speed.ClientCount)
	require.Equal(t, 16*1024, speed.ChunkSize)

	balanced := Defaults(ProfileBalanced)
	require.Equal(t, 25, balanced.ClientCount)
	require.Equal(t, 64*1024, balanced.StageBufferSize)

	// An unrecognized profile falls back to the balanced defaults rather
	// than a zero-value Limits.
	unknown := Defaults(Profile("bogus"))
	require.Equal(t, balanced, unknown)
}

func TestDecodeStartsFromProfileDefaultsAndOverrides(t *testing.T) {
	raw := map[string]interface{}{
		"profile": "speed",
		"addr":    ":8443",
		"limits": map[string]interface{}{
			"client_count": 50,
		},
	}
	out, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, ProfileSpeed, out.Profile)
	require.Equal(t, ":8443", out.Addr)
	// Explicit override wins...
	require.Equal(t, 50, out.Limits.ClientCount)
	// ...but everything else still carries the speed profile's defaults.
	require.Equal(t, 16*1024, out.Limits.ChunkSize)
}

func TestDecodeWeaklyTypesDurations(t *testing.T) {
	raw := map[string]interface{}{
		"limits": map[string]interface{}{
			"inactivity_timeout": "90s",
		},
	}
	out, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, 90*time.Second, out.Limits.InactivityTimeout)
}

func TestDecodeDefaultsToBalancedProfile(t *testing.T) {
	out, err := Decode(map[string]interface{}{})
	require.NoError(t, err)
	require.Equal(t, ProfileBalanced, out.Profile)
	require.Equal(t, Defaults(ProfileBalanced), out.Limits)
}
