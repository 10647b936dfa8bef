package trace

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestShouldRespectsIncludeExclude(t *testing.T) {
	rx := Filter{Levels: DefaultLevels, MaxSize: -1, Include: ParseExtensionList("html, css")}
	tr := New(zap.NewNop(), 1, rx, *NewFilter())

	_, ok := tr.Should(RX, ItemBody, "html")
	require.True(t, ok)

	tr2 := New(zap.NewNop(), 2, rx, *NewFilter())
	_, ok = tr2.Should(RX, ItemBody, "png")
	require.False(t, ok, "png not in include list")
}

func TestShouldLatchesDisabledAfterExclusion(t *testing.T) {
	rx := Filter{Levels: DefaultLevels, MaxSize: -1, Exclude: ParseExtensionList("gif")}
	tr := New(zap.NewNop(), 1, rx, *NewFilter())

	_, ok := tr.Should(RX, ItemBody, "gif")
	require.False(t, ok)
	// Once disabled, even an allowed extension no longer traces.
	_, ok = tr.Should(RX, ItemBody, "html")
	require.False(t, ok)
}

func TestContentAbbreviatesPastThreshold(t *testing.T) {
	rx := Filter{Levels: DefaultLevels, MaxSize: 100}
	tr := New(zap.NewNop(), 1, rx, *NewFilter())

	require.True(t, tr.Content(RX, ItemBody, 50))
	require.False(t, tr.Content(RX, ItemBody, 60), "total now exceeds MaxSize")
	_, ok := tr.Should(RX, ItemBody, "")
	require.False(t, ok, "trace stays disabled for the rest of the connection")
}

func TestParseExtensionListStripsGlobPrefix(t *testing.T) {
	set := ParseExtensionList("*.html, css")
	require.True(t, set["html"])
	require.True(t, set["css"])
}
