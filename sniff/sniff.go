/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package sniff implements the content-sniffing algorithm used to guess a
// response's Content-Type when a handler doesn't set one explicitly (spec
// §4.12 "Tx" calls this out as the same algorithm Go's own net/http uses).
// The retrieved signature matchers (textSig, exactSig) had no surrounding
// sig table or entry point in this retrieval; this file supplies both,
// keeping the match-function shape the retrieved files already establish.
package sniff

const sniffLen = 512

type sig interface {
	// match returns the content-type if data (from offset firstNonWS)
	// matches this signature, or "" otherwise.
	match(data []byte, firstNonWS int) string
}

type exactSig struct {
	sig []byte
	ct  string
}

type maskedSig struct {
	mask, pat []byte
	skipWS    bool
	ct        string
}

func (m *maskedSig) match(data []byte, firstNonWS int) string {
	if m.skipWS {
		data = data[firstNonWS:]
	}
	if len(data) < len(m.mask) {
		return ""
	}
	for i, mask := range m.mask {
		db := data[i] & mask
		if db != m.pat[i] {
			return ""
		}
	}
	return m.ct
}

type textSig struct{}

// sniffSignatures is checked in order; the first match wins (matching the
// WHATWG MIME sniffing algorithm's priority of binary signatures over the
// plain-text fallback).
var sniffSignatures = []sig{
	&maskedSig{
		mask: []byte("\xFF\xFF\xFF\xFF\xFF"),
		pat:  []byte("<html"),
		skipWS: true,
		ct:   "text/html; charset=utf-8",
	},
	&maskedSig{
		mask:   []byte("\xFF\xFF\xFF\xFF"),
		pat:    []byte("<?xm"),
		skipWS: true,
		ct:     "text/xml; charset=utf-8",
	},
	&exactSig{sig: []byte("%PDF-"), ct: "application/pdf"},
	&exactSig{sig: []byte("GIF87a"), ct: "image/gif"},
	&exactSig{sig: []byte("GIF89a"), ct: "image/gif"},
	&exactSig{sig: []byte("\x89PNG\r\n\x1a\n"), ct: "image/png"},
	&exactSig{sig: []byte("\xFF\xD8\xFF"), ct: "image/jpeg"},
	&exactSig{sig: []byte("RIFF"), ct: "application/octet-stream"},
	&exactSig{sig: []byte("\x1F\x8B\x08"), ct: "application/x-gzip"},
	&exactSig{sig: []byte("PK\x03\x04"), ct: "application/zip"},
	textSig{},
}

// DetectContentType implements the content-sniffing algorithm of spec
// §4.12: it always returns a valid MIME type, defaulting to
// "application/octet-stream" when nothing else matches. It never returns
// an error and, like net/http's DetectContentType, considers at most the
// first 512 bytes of data.
func DetectContentType(data []byte) string {
	if len(data) > sniffLen {
		data = data[:sniffLen]
	}
	firstNonWS := 0
	for ; firstNonWS < len(data) && isWS(data[firstNonWS]); firstNonWS++ {
	}
	for _, s := range sniffSignatures {
		if ct := s.match(data, firstNonWS); ct != "" {
			return ct
		}
	}
	return "application/octet-stream"
}

func isWS(b byte) bool {
	switch b {
	case '\t', '\n', '\x0c', '\r', ' ':
		return true
	}
	return false
}
