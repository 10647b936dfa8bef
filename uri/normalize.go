/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package uri

import "strings"

// DefaultPort returns the conventional port for scheme (spec §4.9),
// grounded on original_source/src/uri.c's getDefaultPort: https/wss use
// 443, everything else (including plain http/ws) uses 80.
func DefaultPort(scheme string) int {
	if scheme == "https" || scheme == "wss" {
		return 443
	}
	return 80
}

// EffectivePort returns the URI's explicit port, or DefaultPort(Scheme) if
// none was given.
func (u *URI) EffectivePort() int {
	if p := u.Port(); p != "" {
		n := 0
		for i := 0; i < len(p); i++ {
			if p[i] < '0' || p[i] > '9' {
				return DefaultPort(u.Scheme)
			}
			n = n*10 + int(p[i]-'0')
		}
		return n
	}
	return DefaultPort(u.Scheme)
}

// Ext returns the path's file extension without the leading dot, e.g.
// "/a/b.html" -> "html", "/a/b" -> "". Derived from the last '.' after
// the last '/', matching the original's rx->pathInfo/rx->ext split.
func (u *URI) Ext() string {
	path := u.Path
	slash := strings.LastIndexByte(path, '/')
	dot := strings.LastIndexByte(path, '.')
	if dot <= slash {
		return ""
	}
	return path[dot+1:]
}

// Normalize rewrites Path in place to remove "./" segments and resolve
// ".." against the preceding segment, collapsing duplicate slashes (spec
// §4.9). It does not force an absolute path and does not touch case,
// mirroring original_source/src/uri.c's httpNormalizeUriPath exactly.
func (u *URI) Normalize() {
	u.Path = NormalizePath(u.Path)
	u.RawPath = ""
}

// NormalizePath applies the same cleanup as (*URI).Normalize to a bare
// path string.
func NormalizePath(pathArg string) string {
	if pathArg == "" {
		return ""
	}
	leadingSlash := pathArg[0] == '/'
	trailingSlash := len(pathArg) > 1 && pathArg[len(pathArg)-1] == '/'

	raw := strings.Split(pathArg, "/")
	segments := make([]string, 0, len(raw))
	for _, seg := range raw {
		switch seg {
		case "", ".":
			// collapse "//" and drop "./" (the leading/trailing empty
			// segments from a leading or trailing slash are restored
			// explicitly below).
			continue
		case "..":
			if len(segments) > 0 {
				segments = segments[:len(segments)-1]
			}
		default:
			segments = append(segments, seg)
		}
	}

	joined := strings.Join(segments, "/")
	if leadingSlash {
		joined = "/" + joined
	}
	if trailingSlash && !strings.HasSuffix(joined, "/") {
		joined += "/"
	}
	if joined == "" {
		joined = "."
	}
	return joined
}

// JoinPath appends other's path to base's, inserting exactly one slash,
// and normalizes the result (grounded on uri.c's httpJoinUriPath).
func JoinPath(base, other string) string {
	if other == "" {
		return base
	}
	if base == "" {
		return NormalizePath(other)
	}
	if strings.HasSuffix(base, "/") {
		return NormalizePath(base + strings.TrimPrefix(other, "/"))
	}
	if strings.HasPrefix(other, "/") {
		return NormalizePath(base + other)
	}
	return NormalizePath(base + "/" + other)
}

// Join concatenates others' paths onto u's, left to right, normalizing
// after each step (spec §4.9 httpJoinUri). Scheme/Host/query/fragment are
// left untouched; Join only ever combines path components.
func (u *URI) Join(others ...*URI) *URI {
	result := u.Clone()
	for _, other := range others {
		result.Path = JoinPath(result.Path, other.Path)
	}
	result.RawPath = ""
	return result
}

// Resolve completes a possibly-relative URI against base, filling in a
// missing scheme/host/path the way a redirect Location header is resolved
// against the request that produced it (spec §4.9 httpResolveUri). When
// local is true, Scheme/Host are never copied from base even if target is
// relative — used for same-origin aliasing where only the path matters.
func (u *URI) Resolve(base *URI, local bool) *URI {
	result := u.Clone()
	if result.Scheme == "" && !local {
		result.Scheme = base.Scheme
	}
	if result.Host == "" && !local {
		result.Host = base.Host
	}
	if !strings.HasPrefix(result.Path, "/") {
		result.Path = JoinPath(dirname(base.Path), result.Path)
	} else {
		result.Path = NormalizePath(result.Path)
	}
	result.RawPath = ""
	return result
}

func dirname(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return ""
	}
	return path[:i]
}
