package parser

import (
	"bufio"
	"io"
	"strings"
	"testing"

	"github.com/kestrel-http/engine/herror"
	"github.com/stretchr/testify/require"
)

func TestReadRequestLine(t *testing.T) {
	br := bufio.NewReader(strings.NewReader("GET /index.html HTTP/1.1\r\n"))
	rl, err := ReadRequestLine(br, DefaultLimits)
	require.NoError(t, err)
	require.Equal(t, "GET", rl.Method)
	require.Equal(t, "/index.html", rl.URI)
	require.Equal(t, "HTTP/1.1", rl.Proto)
}

func TestReadRequestLineSkipsLeadingBlankLines(t *testing.T) {
	br := bufio.NewReader(strings.NewReader("\r\n\r\nPOST /x HTTP/1.0\r\n"))
	rl, err := ReadRequestLine(br, DefaultLimits)
	require.NoError(t, err)
	require.Equal(t, "POST", rl.Method)
}

func TestReadRequestLineMalformed(t *testing.T) {
	br := bufio.NewReader(strings.NewReader("GET\r\n"))
	_, err := ReadRequestLine(br, DefaultLimits)
	require.Error(t, err)
	herr, ok := herror.As(err)
	require.True(t, ok)
	require.Equal(t, herror.BadRequest, herr.Kind)
}

func TestReadRequestLineURITooLong(t *testing.T) {
	limits := DefaultLimits
	limits.MaxURILen = 4
	limits.MaxLineLen = 1 << 20
	br := bufio.NewReader(strings.NewReader("GET /abcdefgh HTTP/1.1\r\n"))
	_, err := ReadRequestLine(br, limits)
	herr, ok := herror.As(err)
	require.True(t, ok)
	require.Equal(t, 414, herr.Status())
}

func TestReadHeaderBlock(t *testing.T) {
	raw := "Host: example.com\r\nX-Multi: a\r\nX-Multi: b\r\n\r\n"
	br := bufio.NewReader(strings.NewReader(raw))
	h, err := ReadHeaderBlock(br, DefaultLimits)
	require.NoError(t, err)
	require.Equal(t, "example.com", h.Get("Host"))
	require.Equal(t, []string{"a", "b"}, h["X-Multi"])
}

func TestReadHeaderBlockFoldsContinuationLines(t *testing.T) {
	raw := "X-Long: first\r\n second\r\n\r\n"
	br := bufio.NewReader(strings.NewReader(raw))
	h, err := ReadHeaderBlock(br, DefaultLimits)
	require.NoError(t, err)
	require.Equal(t, "first second", h.Get("X-Long"))
}

func TestReadHeaderBlockTooManyHeaders(t *testing.T) {
	limits := DefaultLimits
	limits.MaxHeaderCount = 1
	raw := "A: 1\r\nB: 2\r\n\r\n"
	br := bufio.NewReader(strings.NewReader(raw))
	_, err := ReadHeaderBlock(br, limits)
	herr, ok := herror.As(err)
	require.True(t, ok)
	require.Equal(t, 431, herr.Status())
}

func TestChunkDecoderBasic(t *testing.T) {
	raw := "4\r\nWiki\r\n5\r\npedia\r\n0\r\n\r\n"
	br := bufio.NewReader(strings.NewReader(raw))
	dec := NewChunkDecoder()
	var got []byte
	for {
		b, err := dec.Next(br, DefaultLimits)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, b...)
	}
	require.Equal(t, "Wikipedia", string(got))
}

func TestChunkDecoderToleratesExtensions(t *testing.T) {
	raw := "4;ext=1\r\nWiki\r\n0\r\n\r\n"
	br := bufio.NewReader(strings.NewReader(raw))
	dec := NewChunkDecoder()
	b, err := dec.Next(br, DefaultLimits)
	require.NoError(t, err)
	require.Equal(t, "Wiki", string(b))
	_, err = dec.Next(br, DefaultLimits)
	require.ErrorIs(t, err, io.EOF)
}

func TestReadHeaderBlockRejectsControlByteInValue(t *testing.T) {
	raw := "X-Bad: val\x01ue\r\n\r\n"
	br := bufio.NewReader(strings.NewReader(raw))
	_, err := ReadHeaderBlock(br, DefaultLimits)
	herr, ok := herror.As(err)
	require.True(t, ok)
	require.Equal(t, herror.BadRequest, herr.Kind)
}

func TestValidateHeaderValue(t *testing.T) {
	require.True(t, ValidateHeaderValue("text/html; charset=utf-8"))
	require.True(t, ValidateHeaderValue(""))
	require.False(t, ValidateHeaderValue("bad\x00value"))
	require.False(t, ValidateHeaderValue("bad\x01value"))
}

func TestValidateHostHeader(t *testing.T) {
	require.True(t, ValidateHostHeader("example.com"))
	require.True(t, ValidateHostHeader("example.com:8080"))
	require.True(t, ValidateHostHeader("[::1]:8080"))
	require.False(t, ValidateHostHeader("exa mple.com"))
}

func TestChunkDecoderRejectsBadSize(t *testing.T) {
	raw := "zz\r\n"
	br := bufio.NewReader(strings.NewReader(raw))
	dec := NewChunkDecoder()
	_, err := dec.Next(br, DefaultLimits)
	herr, ok := herror.As(err)
	require.True(t, ok)
	require.Equal(t, herror.BadRequest, herr.Kind)
}
