/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package uri

import (
	"net"
	"strings"

	"golang.org/x/net/idna"
)

// Parse parses rawuri into a URI (spec §4.9). rawuri may be absolute
// ("http://host/path?query#frag") or a bare request-target
// ("/path?query").
func Parse(rawuri string) (*URI, error) {
	u := &URI{}

	s := rawuri
	if i := strings.IndexByte(s, '#'); i >= 0 {
		frag, err := unescape(s[i+1:], encodeFragment)
		if err != nil {
			return nil, &Error{"parse", rawuri, err}
		}
		u.Fragment = frag
		s = s[:i]
	}

	if i := strings.IndexByte(s, '?'); i >= 0 {
		u.RawQuery = s[i+1:]
		u.ForceQuery = u.RawQuery == ""
		s = s[:i]
	}

	if i := strings.IndexByte(s, ':'); i >= 0 && validScheme(s[:i]) {
		u.Scheme = strings.ToLower(s[:i])
		s = s[i+1:]
	}
	setScheme(u, u.Scheme)

	if strings.HasPrefix(s, "//") {
		s = s[2:]
		authority := s
		if i := strings.IndexByte(s, '/'); i >= 0 {
			authority = s[:i]
			s = s[i:]
		} else {
			s = ""
		}
		if err := parseAuthority(u, authority); err != nil {
			return nil, &Error{"parse", rawuri, err}
		}
	}

	if err := u.setPath(s); err != nil {
		return nil, &Error{"parse", rawuri, err}
	}
	return u, nil
}

// ParseRequestURI parses a request-target as received on the wire: always
// absolute-path or absolute-URI, never a bare authority (spec §4.9).
func ParseRequestURI(rawuri string) (*URI, error) {
	if rawuri == "" {
		return nil, &Error{"parse", rawuri, EscapeError("")}
	}
	return Parse(rawuri)
}

func validScheme(s string) bool {
	if s == "" {
		return false
	}
	if !isAlpha(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		if !isAlpha(c) && !('0' <= c && c <= '9') && c != '+' && c != '-' && c != '.' {
			return false
		}
	}
	return true
}

func isAlpha(c byte) bool { return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' }

func parseAuthority(u *URI, authority string) error {
	if i := strings.LastIndexByte(authority, '@'); i >= 0 {
		userinfo := authority[:i]
		authority = authority[i+1:]
		if j := strings.IndexByte(userinfo, ':'); j >= 0 {
			name, err := unescape(userinfo[:j], encodeUserPassword)
			if err != nil {
				return err
			}
			pass, err := unescape(userinfo[j+1:], encodeUserPassword)
			if err != nil {
				return err
			}
			u.User = UserPassword(name, pass)
		} else {
			name, err := unescape(userinfo, encodeUserPassword)
			if err != nil {
				return err
			}
			u.User = User(name)
		}
	}
	u.Host = normalizeHostPort(authority)
	return nil
}

// normalizeHostPort puts the host portion of authority into Punycode form
// if necessary, leaving any port (and IPv6 brackets) untouched. Grounded on
// badu-http/src/http/utils_request.go's cleanHost/IdnaASCII: a bare ASCII
// host is returned unchanged without ever invoking idna, so ordinary
// requests pay nothing for this.
func normalizeHostPort(authority string) string {
	host, port, err := net.SplitHostPort(authority)
	if err != nil {
		a, aerr := idnaASCII(authority)
		if aerr != nil {
			return authority
		}
		return a
	}
	a, aerr := idnaASCII(host)
	if aerr != nil {
		return authority
	}
	return net.JoinHostPort(a, port)
}

// idnaASCII converts v to its ASCII (Punycode) form if it contains any
// non-ASCII bytes; an all-ASCII host (the overwhelming common case) is
// returned as-is without allocating.
func idnaASCII(v string) (string, error) {
	if isASCIIString(v) {
		return v, nil
	}
	return idna.Lookup.ToASCII(v)
}

func isASCIIString(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

func (u *URI) setPath(p string) error {
	path, err := unescape(p, encodePath)
	if err != nil {
		return err
	}
	u.Path = path
	if escp := escape(path, encodePath); p == escp {
		u.RawPath = ""
	} else {
		u.RawPath = p
	}
	return nil
}

// setScheme classifies WebSocket/Secure from the scheme (spec §4.9).
func setScheme(u *URI, scheme string) {
	switch scheme {
	case "https":
		u.Secure = true
	case "wss":
		u.Secure = true
		u.WebSocket = true
	case "ws":
		u.WebSocket = true
	}
}

// SetScheme updates Scheme and keeps Secure/WebSocket in sync.
func (u *URI) SetScheme(scheme string) {
	u.Scheme = scheme
	u.Secure = false
	u.WebSocket = false
	setScheme(u, scheme)
}
