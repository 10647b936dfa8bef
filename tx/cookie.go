/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package tx

import (
	"bytes"
	"strconv"
	"time"

	"github.com/kestrel-http/engine/hdr"
)

// Cookie is a Set-Cookie attribute set (RFC 6265), grounded on
// badu-http/cli/cookie.go's field shape (the retrieved cli package called
// sanitize/valid helpers that were never present anywhere in the
// retrieval, so the validation logic below is original, written in the
// same register as that file's doc comments).
type Cookie struct {
	Name  string
	Value string

	Path     string
	Domain   string
	Expires  time.Time
	MaxAge   int
	Secure   bool
	HttpOnly bool
	SameSite string // "Strict", "Lax", "None", or "" to omit
}

// String serializes c for use in a Set-Cookie header. Returns "" if c is
// nil or its Name is not a valid cookie-name token (RFC 6265 §4.1.1).
func (c *Cookie) String() string {
	if c == nil || !isValidCookieName(c.Name) {
		return ""
	}
	var b bytes.Buffer
	b.WriteString(sanitizeCookieName(c.Name))
	b.WriteByte('=')
	b.WriteString(sanitizeCookieValue(c.Value))

	if c.Path != "" {
		b.WriteString("; Path=")
		b.WriteString(sanitizeCookiePath(c.Path))
	}
	if c.Domain != "" {
		d := c.Domain
		if d[0] == '.' {
			d = d[1:]
		}
		b.WriteString("; Domain=")
		b.WriteString(d)
	}
	if !c.Expires.IsZero() {
		b.WriteString("; Expires=")
		b.WriteString(c.Expires.UTC().Format(hdr.TimeFormat))
	}
	if c.MaxAge > 0 {
		b.WriteString("; Max-Age=")
		b.WriteString(strconv.Itoa(c.MaxAge))
	} else if c.MaxAge < 0 {
		b.WriteString("; Max-Age=0")
	}
	if c.HttpOnly {
		b.WriteString("; HttpOnly")
	}
	if c.Secure {
		b.WriteString("; Secure")
	}
	switch c.SameSite {
	case "Strict", "Lax", "None":
		b.WriteString("; SameSite=")
		b.WriteString(c.SameSite)
	}
	return b.String()
}

// SetCookie appends a Set-Cookie header for c onto h. A WebKit bug
// (pre-2011 Safari/Chrome) truncated a Set-Cookie response if a later
// header used the same connection buffer without a distinguishing
// Cache-Control entry; net/http and badu-http both carry the same
// "no-cache=\"set-cookie\"" workaround, so this keeps doing it.
func SetCookie(h hdr.Header, c *Cookie) {
	if v := c.String(); v != "" {
		h.Add(hdr.SetCookieHeader, v)
		if _, ok := h[hdr.CacheControl]; !ok {
			h.Set(hdr.CacheControl, `no-cache="set-cookie"`)
		}
	}
}

func isValidCookieName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		if !hdr.IsTokenRune(rune(name[i])) {
			return false
		}
	}
	return true
}

func sanitizeCookieName(name string) string {
	return sanitizeToken(name)
}

func sanitizeToken(s string) string {
	var b bytes.Buffer
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ' ' || c == '\t' || c == '\r' || c == '\n' {
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// sanitizeCookieValue strips characters RFC 6265 §4.1.1 disallows in a
// cookie-value (control chars, whitespace, DQUOTE, comma, semicolon,
// backslash) rather than percent-encoding them, matching net/http's
// leave-it-out-if-illegal behavior for Set-Cookie.
func sanitizeCookieValue(v string) string {
	wrap := len(v) > 1 && v[0] == '"' && v[len(v)-1] == '"'
	if wrap {
		v = v[1 : len(v)-1]
	}
	var b bytes.Buffer
	for i := 0; i < len(v); i++ {
		c := v[i]
		if validCookieValueByte(c) {
			b.WriteByte(c)
		}
	}
	out := b.String()
	if wrap {
		return `"` + out + `"`
	}
	return out
}

func validCookieValueByte(c byte) bool {
	return 0x21 <= c && c <= 0x7E && c != '"' && c != ',' && c != ';' && c != '\\'
}

func sanitizeCookiePath(path string) string {
	var b bytes.Buffer
	for i := 0; i < len(path); i++ {
		c := path[i]
		if c == ';' || c < 0x20 || c == 0x7F {
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}
