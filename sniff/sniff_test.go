package sniff

import "testing"

func TestDetectContentTypeHTML(t *testing.T) {
	got := DetectContentType([]byte("<html><body>hi</body></html>"))
	if got != "text/html; charset=utf-8" {
		t.Fatalf("got %q", got)
	}
}

func TestDetectContentTypePNG(t *testing.T) {
	got := DetectContentType([]byte("\x89PNG\r\n\x1a\nrest"))
	if got != "image/png" {
		t.Fatalf("got %q", got)
	}
}

func TestDetectContentTypeFallsBackToOctetStream(t *testing.T) {
	got := DetectContentType([]byte{0x00, 0x01, 0x02})
	if got != "application/octet-stream" {
		t.Fatalf("got %q", got)
	}
}

func TestDetectContentTypePlainText(t *testing.T) {
	got := DetectContentType([]byte("hello world"))
	if got != "text/plain; charset=utf-8" {
		t.Fatalf("got %q", got)
	}
}
