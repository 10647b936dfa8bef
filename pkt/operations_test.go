package pkt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitJoinPreservesBytes(t *testing.T) {
	original := []byte("the quick brown fox jumps over the lazy dog")
	p := CreateData(original)
	p.Prefix = nil

	tail := Split(p, 10)
	require.NotNil(t, tail)
	require.Equal(t, original[:10], p.Content.Bytes())
	require.Equal(t, original[10:], tail.Content.Bytes())

	joined, err := Join(p, tail)
	require.NoError(t, err)
	require.Equal(t, original, joined.Content.Bytes())
}

func TestSplitPreservesPrefixOnOriginalOnly(t *testing.T) {
	p := CreateData([]byte("abcdefgh"))
	p.Prefix = nil
	p.Prefix = newPrefix("\r\n8\r\n")

	tail := Split(p, 4)
	require.NotNil(t, p.Prefix)
	require.Nil(t, tail.Prefix)
}

func TestLengthIgnoresPrefix(t *testing.T) {
	p := CreateData([]byte("hello"))
	p.Prefix = newPrefix("\r\n5\r\n")
	require.Equal(t, 5, Length(p))
}

func TestCreateEndHasNoContentLength(t *testing.T) {
	p := CreateEnd()
	require.Equal(t, FlagEnd, p.Flags)
	require.Equal(t, 0, Length(p))
}

func TestCreateEntityIsVirtualUntilFilled(t *testing.T) {
	p := CreateEntity(100, 42, func(pos int64, size int) ([]byte, error) {
		return make([]byte, size), nil
	})
	require.True(t, IsVirtual(p))
	require.Equal(t, 42, Length(p))
}
