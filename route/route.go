/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package route models the route-table collaborator spec §6 treats as
// opaque ("given a parsed URI, returns a route object containing auth
// config, location, handler selection, and aliases"), plus the alias
// table SPEC_FULL.md §C supplements from original_source/src/alias.c: a
// request path is rewritten against a longest-prefix alias match before
// route lookup. The Table type itself is grounded on badu-http's
// mux/types.go (longest-pattern-wins matching, host-specific patterns
// taking precedence over general ones).
package route

import (
	"sort"
	"strings"
	"sync"

	"github.com/kestrel-http/engine/pipeline"
)

// Alias maps a request path prefix to either a physical filesystem
// directory (Code == 0) or a redirect target (Code != 0), per alias.c's
// httpCreateAlias.
type Alias struct {
	Prefix   string
	Filename string
	URI      string
	Code     int
}

// AliasTable resolves a request path against the longest matching prefix
// (alias.c keeps aliases in registration order and the original scans
// linearly; Table presorts by descending prefix length once so lookup is
// a single pass without re-sorting per request).
type AliasTable struct {
	mu      sync.RWMutex
	aliases []Alias
}

// Add registers an alias, re-sorting so longest-prefix-first is
// maintained for Resolve.
func (t *AliasTable) Add(a Alias) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.aliases = append(t.aliases, a)
	sort.Slice(t.aliases, func(i, j int) bool {
		return len(t.aliases[i].Prefix) > len(t.aliases[j].Prefix)
	})
}

// Resolve finds the longest-prefix alias matching path, reporting the
// rewritten filename (or redirect URI, if Code != 0) and whether a match
// was found at all.
func (t *AliasTable) Resolve(path string) (Alias, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, a := range t.aliases {
		if strings.HasPrefix(path, a.Prefix) {
			return a, true
		}
	}
	return Alias{}, false
}

// Route carries everything a looked-up path needs to drive pipeline
// construction: which handler and filters apply, the method allow-list
// (spec §9 Open Question "POST-only logout enforcement" resolved as a
// configurable allow-list rather than hardcoded), and the auth
// configuration the auth package consumes.
type Route struct {
	Pattern string
	Host    string

	Handler   string
	Filters   []string
	Connector string

	// Methods, if non-empty, is the allow-list of methods this route
	// accepts; empty means "all methods spec §6 supports."
	Methods []string

	Auth interface{} // *auth.Config, held as interface{} so route does not import auth
}

// Allows reports whether method is permitted by Methods (an empty list
// allows everything).
func (r Route) Allows(method string) bool {
	if len(r.Methods) == 0 {
		return true
	}
	for _, m := range r.Methods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

type entry struct {
	host     string
	pattern  string
	route    Route
	explicit bool
}

// Table is a request multiplexer over Routes, grounded on badu-http's
// mux/types.go ServeMux: patterns ending in "/" name a subtree, longer
// patterns win over shorter ones, and a host-qualified pattern
// ("host/path") takes precedence over a host-agnostic one.
type Table struct {
	mu      sync.RWMutex
	entries map[string]entry
	hosts   bool
	Aliases AliasTable
}

// NewTable returns an empty route table.
func NewTable() *Table {
	return &Table{entries: make(map[string]entry)}
}

// Handle registers route under pattern (optionally "host/path").
func (t *Table) Handle(pattern string, r Route) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if pattern == "" {
		panic("route: empty pattern")
	}
	e := entry{pattern: pattern, route: r, explicit: true}
	if i := strings.IndexByte(pattern, '/'); i > 0 {
		e.host = pattern[:i]
		t.hosts = true
	}
	t.entries[pattern] = e
}

// Match finds the best route for host+path, applying the alias table
// first (spec §1 "route/alias lookup tables" as an external
// collaborator, with the alias rewrite happening ahead of it per
// SPEC_FULL.md §C).
func (t *Table) Match(host, path string) (Route, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if a, ok := t.Aliases.Resolve(path); ok && a.Code == 0 {
		path = a.Filename + strings.TrimPrefix(path, a.Prefix)
	}

	var best entry
	var bestPathLen int
	var found bool
	for _, e := range t.entries {
		if t.hosts && e.host != "" && e.host != host {
			continue
		}
		pattern := e.pattern
		if e.host != "" {
			pattern = pattern[len(e.host):]
		}
		if !pathMatch(pattern, path) {
			continue
		}
		if !found || len(pattern) > bestPathLen ||
			(len(pattern) == bestPathLen && e.host != "" && best.host == "") {
			best, bestPathLen, found = e, len(pattern), true
		}
	}
	return best.route, found
}

func pathMatch(pattern, path string) bool {
	if pattern == "" {
		return false
	}
	n := len(pattern)
	if pattern[n-1] != '/' {
		return pattern == path
	}
	return len(path) >= n && path[:n] == pattern
}

// StageNames resolves a Route's named stages against the process-wide
// stage registry's lookup function, used when a Connection builds a
// pipeline (spec §4.5 "selected stages have one or two queue instances
// attached"). lookup is typically *service.Service.Stage.
func (r Route) StageNames(lookup func(name string) (*pipeline.Stage, bool)) (handler *pipeline.Stage, filters []*pipeline.Stage, connector *pipeline.Stage, ok bool) {
	handler, ok = lookup(r.Handler)
	if !ok {
		return nil, nil, nil, false
	}
	connector, ok = lookup(r.Connector)
	if !ok {
		return nil, nil, nil, false
	}
	for _, name := range r.Filters {
		f, ok := lookup(name)
		if !ok {
			continue
		}
		filters = append(filters, f)
	}
	return handler, filters, connector, true
}
