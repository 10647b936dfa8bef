/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package uri implements the URI model of spec §4.9 (C9): parsing,
// normalization, joining, resolution, and formatting of request targets
// and redirect locations. The parser/escaper core is adapted from the
// teacher's url/ package (itself a port of Go's net/url); the
// HTTP-specific operations — Normalize, Join, Resolve, Ext, DefaultPort,
// WebSocket/secure detection — are grounded on
// original_source/src/uri.c's httpNormalizeUriPath, httpJoinUri,
// httpResolveUri and getDefaultPort.
package uri

// URI represents a parsed URI reference (spec §4.9), structurally the
// same shape as net/url.URL but under our own name since the rest of the
// engine attaches HTTP-specific fields (WebSocket, Secure) that a
// general-purpose URL type has no business carrying.
type URI struct {
	Scheme   string
	Opaque   string
	User     *Userinfo
	Host     string
	Path     string
	RawPath  string
	RawQuery string
	Fragment string

	// ForceQuery appends a '?' even when RawQuery is empty.
	ForceQuery bool

	// WebSocket and Secure classify the scheme (spec §4.9): ws/wss set
	// WebSocket, https/wss set Secure. Set by Parse from the scheme and
	// kept in sync by SetScheme.
	WebSocket bool
	Secure    bool
}

// Userinfo is an immutable username[:password] pair (RFC 3986 §3.2.1).
type Userinfo struct {
	username    string
	password    string
	passwordSet bool
}

// User returns a Userinfo with no password set.
func User(username string) *Userinfo { return &Userinfo{username: username} }

// UserPassword returns a Userinfo with both username and password set.
func UserPassword(username, password string) *Userinfo {
	return &Userinfo{username: username, password: password, passwordSet: true}
}

func (u *Userinfo) Username() string {
	if u == nil {
		return ""
	}
	return u.username
}

func (u *Userinfo) Password() (string, bool) {
	if u == nil {
		return "", false
	}
	return u.password, u.passwordSet
}

func (u *Userinfo) String() string {
	if u == nil {
		return ""
	}
	s := escape(u.username, encodeUserPassword)
	if u.passwordSet {
		s += ":" + escape(u.password, encodeUserPassword)
	}
	return s
}

// Error reports a failed URI operation together with its input.
type Error struct {
	Op  string
	URI string
	Err error
}

func (e *Error) Error() string { return e.Op + " " + e.URI + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// EscapeError is returned when a percent-escape sequence is malformed.
type EscapeError string

func (e EscapeError) Error() string { return "invalid URI escape %" + string(e) }
