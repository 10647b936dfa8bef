/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package session supplies the session store collaborator spec §6
// references but leaves undefined ("Session storage interface is
// referenced but not defined in the core; implementers must supply it",
// spec §9 Open Questions). SPEC_FULL.md resolves that question with an
// in-memory default, MemoryStore, alongside the Store interface an
// embedder may substitute.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is keyed by cookie value; Get/Set/Remove operate on named
// variables within one session (spec §6 "Session store").
type Store interface {
	Get(id, key string) (interface{}, bool)
	Set(id, key string, value interface{}) error
	Remove(id, key string) error
	// New allocates a fresh session id and returns it.
	New() string
	// Touch extends id's expiry by the store's configured timeout.
	Touch(id string)
	// Valid reports whether id exists and has not expired.
	Valid(id string) bool
}

type entry struct {
	values   map[string]interface{}
	lastSeen time.Time
}

// MemoryStore is the default Store: an in-process map guarded by a mutex,
// with lazy expiry on access (spec §6 "sessionTimeout (3600s)"). It is
// not suitable for multi-process deployment; embedders needing that
// supply their own Store.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*entry
	timeout time.Duration
}

// NewMemoryStore returns a MemoryStore that expires sessions idle longer
// than timeout.
func NewMemoryStore(timeout time.Duration) *MemoryStore {
	return &MemoryStore{entries: make(map[string]*entry), timeout: timeout}
}

func (s *MemoryStore) New() string {
	id := uuid.NewString()
	s.mu.Lock()
	s.entries[id] = &entry{values: make(map[string]interface{}), lastSeen: time.Now()}
	s.mu.Unlock()
	return id
}

func (s *MemoryStore) lookup(id string) *entry {
	e, ok := s.entries[id]
	if !ok {
		return nil
	}
	if s.timeout > 0 && time.Since(e.lastSeen) > s.timeout {
		delete(s.entries, id)
		return nil
	}
	return e
}

func (s *MemoryStore) Valid(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(id) != nil
}

func (s *MemoryStore) Touch(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.lookup(id); e != nil {
		e.lastSeen = time.Now()
	}
}

func (s *MemoryStore) Get(id, key string) (interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.lookup(id)
	if e == nil {
		return nil, false
	}
	v, ok := e.values[key]
	return v, ok
}

func (s *MemoryStore) Set(id, key string, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.lookup(id)
	if e == nil {
		e = &entry{values: make(map[string]interface{}), lastSeen: time.Now()}
		s.entries[id] = e
	}
	e.values[key] = value
	e.lastSeen = time.Now()
	return nil
}

func (s *MemoryStore) Remove(id, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.lookup(id); e != nil {
		delete(e.values, key)
	}
	return nil
}
