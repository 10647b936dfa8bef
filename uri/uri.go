/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package uri

import "strings"

// EscapedPath returns the percent-escaped form of u.Path, preferring
// RawPath when it is a valid encoding of Path.
func (u *URI) EscapedPath() string {
	if u.RawPath != "" {
		if p, err := unescape(u.RawPath, encodePath); err == nil && p == u.Path {
			return u.RawPath
		}
	}
	if u.Path == "*" {
		return "*"
	}
	return escape(u.Path, encodePath)
}

// String reassembles the URI into its wire form (spec §4.9).
func (u *URI) String() string {
	var b strings.Builder
	if u.Scheme != "" {
		b.WriteString(u.Scheme)
		b.WriteByte(':')
	}
	if u.Opaque != "" {
		b.WriteString(u.Opaque)
	} else {
		if u.Scheme != "" || u.Host != "" || u.User != nil {
			b.WriteString("//")
			if u.User != nil {
				b.WriteString(u.User.String())
				b.WriteByte('@')
			}
			b.WriteString(escape(u.Host, encodeHost))
		}
		path := u.EscapedPath()
		if path != "" && path[0] != '/' && u.Host != "" {
			b.WriteByte('/')
		}
		b.WriteString(path)
	}
	if u.ForceQuery || u.RawQuery != "" {
		b.WriteByte('?')
		b.WriteString(u.RawQuery)
	}
	if u.Fragment != "" {
		b.WriteByte('#')
		b.WriteString(escape(u.Fragment, encodeFragment))
	}
	return b.String()
}

// IsAbs reports whether the URI carries a scheme.
func (u *URI) IsAbs() bool { return u.Scheme != "" }

// RequestURI returns the encoded path[?query] a client would send on the
// wire for this URI.
func (u *URI) RequestURI() string {
	result := u.EscapedPath()
	if result == "" {
		result = "/"
	}
	if u.ForceQuery || u.RawQuery != "" {
		result += "?" + u.RawQuery
	}
	return result
}

// Hostname returns Host without any port suffix.
func (u *URI) Hostname() string {
	host, _ := splitHostPort(u.Host)
	return host
}

// Port returns the port suffix of Host, or "" if absent.
func (u *URI) Port() string {
	_, port := splitHostPort(u.Host)
	return port
}

func splitHostPort(hostport string) (host, port string) {
	i := strings.LastIndexByte(hostport, ':')
	if i < 0 {
		return hostport, ""
	}
	if j := strings.IndexByte(hostport, ']'); j >= 0 && j > i {
		// IPv6 literal with no port, e.g. "[::1]"
		return hostport, ""
	}
	return hostport[:i], hostport[i+1:]
}

// Clone returns a shallow, independently-mutable copy of u.
func (u *URI) Clone() *URI {
	c := *u
	return &c
}
