/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package content implements the static file/range handler spec §1 names
// as an external collaborator ("the file/CGI/upload/range handler
// implementations beyond their contract to the pipeline") and wires it
// concretely as the default KindHandler stage: it opens a route-resolved
// file, applies conditional-GET and single-range semantics, and feeds the
// result into the TX pipeline as virtual (entity) packets the connector
// (C7) can sendfile.
//
// Grounded on filetransport's fileHandler/Dir/FileSystem shape (kept from
// the teacher, adapted off net/http's http.Dir idiom) for directory
// traversal, and on http_range.go's httpRange (kept, extended with
// parsing) for Content-Range formatting.
package content

import (
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileSystem models access to a collection of named files, the same
// narrow seam net/http's http.FileSystem exposes (grounded on
// filetransport's FileSystem/Dir).
type FileSystem interface {
	Open(name string) (File, error)
}

// File is what FileSystem.Open returns: anything that behaves like an
// *os.File for reading and seeking.
type File interface {
	io.Closer
	io.Reader
	io.Seeker
	Stat() (os.FileInfo, error)
}

// Dir implements FileSystem using the native filesystem rooted at a
// directory, guarding against path traversal outside that root the way
// filetransport's Dir (itself modeled on http.Dir) always has.
type Dir string

// Open opens name (a '/'-separated request path) relative to d. The path
// is cleaned as if rooted at "/", so ".." segments are resolved rather than
// rejected and can never climb above d.
func (d Dir) Open(name string) (File, error) {
	if filepath.Separator != '/' && strings.ContainsRune(name, filepath.Separator) {
		return nil, os.ErrInvalid
	}
	dir := string(d)
	if dir == "" {
		dir = "."
	}
	full := filepath.Join(dir, filepath.FromSlash(filepath.Clean("/"+name)))
	f, err := os.Open(full)
	if err != nil {
		return nil, err
	}
	return f, nil
}
