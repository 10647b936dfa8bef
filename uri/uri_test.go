package uri

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAbsolute(t *testing.T) {
	u, err := Parse("https://example.com:8443/a/b?x=1#frag")
	require.NoError(t, err)
	require.Equal(t, "https", u.Scheme)
	require.True(t, u.Secure)
	require.False(t, u.WebSocket)
	require.Equal(t, "example.com:8443", u.Host)
	require.Equal(t, "/a/b", u.Path)
	require.Equal(t, "x=1", u.RawQuery)
	require.Equal(t, "frag", u.Fragment)
	require.Equal(t, 8443, u.EffectivePort())
}

func TestParseWebSocketScheme(t *testing.T) {
	u, err := Parse("ws://example.com/socket")
	require.NoError(t, err)
	require.True(t, u.WebSocket)
	require.False(t, u.Secure)
}

func TestParseRequestTarget(t *testing.T) {
	u, err := ParseRequestURI("/a/b/c.html?q=1")
	require.NoError(t, err)
	require.Equal(t, "", u.Scheme)
	require.Equal(t, "/a/b/c.html", u.Path)
	require.Equal(t, "html", u.Ext())
}

func TestExtNoDot(t *testing.T) {
	u, _ := ParseRequestURI("/a/b/README")
	require.Equal(t, "", u.Ext())
}

func TestNormalizePathCollapsesDotSegments(t *testing.T) {
	require.Equal(t, "/a/c", NormalizePath("/a/./b/../c"))
	require.Equal(t, "/a/b/", NormalizePath("/a//b/"))
	require.Equal(t, "/", NormalizePath("/a/.."))
}

func TestJoinPath(t *testing.T) {
	require.Equal(t, "/a/b", JoinPath("/a", "b"))
	require.Equal(t, "/a/b", JoinPath("/a/", "/b"))
}

func TestResolveRelativeAgainstBase(t *testing.T) {
	base, _ := Parse("https://example.com/a/b/c")
	rel, _ := Parse("d.html")
	resolved := rel.Resolve(base, false)
	require.Equal(t, "https", resolved.Scheme)
	require.Equal(t, "example.com", resolved.Host)
	require.Equal(t, "/a/b/d.html", resolved.Path)
}

func TestResolveLocalIgnoresBaseOrigin(t *testing.T) {
	base, _ := Parse("https://example.com/a/b/c")
	rel, _ := Parse("d.html")
	resolved := rel.Resolve(base, true)
	require.Equal(t, "", resolved.Scheme)
	require.Equal(t, "", resolved.Host)
	require.Equal(t, "/a/b/d.html", resolved.Path)
}

func TestStringRoundTrip(t *testing.T) {
	u, err := Parse("http://example.com/a?b=1")
	require.NoError(t, err)
	require.Equal(t, "http://example.com/a?b=1", u.String())
}

func TestParseNormalizesUnicodeHostToPunycode(t *testing.T) {
	u, err := Parse("https://bücher.example.com/")
	require.NoError(t, err)
	require.Equal(t, "xn--bcher-kva.example.com", u.Host)
}

func TestParseLeavesASCIIHostAlone(t *testing.T) {
	u, err := Parse("https://example.com:8443/")
	require.NoError(t, err)
	require.Equal(t, "example.com:8443", u.Host)
}

func TestParseNormalizesUnicodeHostWithPort(t *testing.T) {
	u, err := Parse("https://bücher.example.com:9000/")
	require.NoError(t, err)
	require.Equal(t, "xn--bcher-kva.example.com:9000", u.Host)
}

func TestParseLeavesIPv6LiteralAlone(t *testing.T) {
	u, err := Parse("https://[::1]:8443/")
	require.NoError(t, err)
	require.Equal(t, "[::1]:8443", u.Host)
}
