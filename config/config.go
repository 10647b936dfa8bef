/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package config decodes the numeric limits and tuning profile of spec §6
// from a generic map (as an embedder would hand in after parsing whatever
// file format it favors) via github.com/mitchellh/mapstructure, grounded
// on packetd-packetd's confengine and nabbar-golib's cluster config, both
// of which decode into tagged structs through mapstructure-shaped paths.
package config

import (
	"time"

	"github.com/mitchellh/mapstructure"
)

// Profile selects one of spec §6's three named tuning presets.
type Profile string

const (
	ProfileSize     Profile = "size"
	ProfileBalanced Profile = "balanced"
	ProfileSpeed    Profile = "speed"
)

// Limits bounds per-process and per-route resource consumption (spec §6
// "Configurable limits"). Field names mirror the spec's own vocabulary so
// a decoded map need not be translated before landing here.
type Limits struct {
	ChunkSize          int           `mapstructure:"chunk_size"`
	HeaderSize         int           `mapstructure:"header_size"`
	StageBufferSize    int           `mapstructure:"stage_buffer_size"`
	URISize            int           `mapstructure:"uri_size"`
	ReceiveBodySize    int64         `mapstructure:"receive_body_size"`
	TransmissionSize   int64         `mapstructure:"transmission_body_size"`
	UploadSize         int64         `mapstructure:"upload_size"`
	ClientCount        int           `mapstructure:"client_count"`
	HeaderCount        int           `mapstructure:"header_count"`
	KeepAliveCount     int           `mapstructure:"keep_alive_count"`
	RequestCount       int           `mapstructure:"request_count"`
	InactivityTimeout  time.Duration `mapstructure:"inactivity_timeout"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	SessionTimeout     time.Duration `mapstructure:"session_timeout"`
}

// Defaults returns the Limits for one of the three named tuning profiles
// (spec §6's per-profile defaults table: size/balanced/speed).
func Defaults(p Profile) Limits {
	switch p {
	case ProfileSize:
		return Limits{
			ChunkSize:         8 * 1024,
			HeaderSize:        2 * 1024,
			StageBufferSize:   32 * 1024,
			URISize:           4096,
			ReceiveBodySize:   128 * 1024 * 1024,
			TransmissionSize:  -1,
			UploadSize:        -1,
			ClientCount:       10,
			HeaderCount:       20,
			KeepAliveCount:    100,
			RequestCount:      20,
			InactivityTimeout: 60 * time.Second,
			RequestTimeout:    0,
			SessionTimeout:    3600 * time.Second,
		}
	case ProfileSpeed:
		return Limits{
			ChunkSize:         16 * 1024,
			HeaderSize:        8 * 1024,
			StageBufferSize:   128 * 1024,
			URISize:           4096,
			ReceiveBodySize:   256 * 1024 * 1024,
			TransmissionSize:  -1,
			UploadSize:        -1,
			ClientCount:       500,
			HeaderCount:       256,
			KeepAliveCount:    100,
			RequestCount:      1000,
			InactivityTimeout: 60 * time.Second,
			RequestTimeout:    0,
			SessionTimeout:    3600 * time.Second,
		}
	default:
		return Limits{
			ChunkSize:         8 * 1024,
			HeaderSize:        8 * 1024,
			StageBufferSize:   64 * 1024,
			URISize:           4096,
			ReceiveBodySize:   128 * 1024 * 1024,
			TransmissionSize:  -1,
			UploadSize:        -1,
			ClientCount:       25,
			HeaderCount:       40,
			KeepAliveCount:    100,
			RequestCount:      50,
			InactivityTimeout: 60 * time.Second,
			RequestTimeout:    0,
			SessionTimeout:    3600 * time.Second,
		}
	}
}

// TuningProfile names the preset Limits derives from, alongside the
// endpoint address a Listener (C10) binds to.
type TuningProfile struct {
	Profile Profile `mapstructure:"profile"`
	Addr    string  `mapstructure:"addr"`
	Limits  Limits  `mapstructure:"limits"`
}

// Decode unpacks a generic map (e.g. as parsed from YAML/TOML/JSON by an
// embedder upstream of this engine) into a TuningProfile, starting from
// that profile's named defaults so a config file only needs to override
// what it wants to change.
func Decode(raw map[string]interface{}) (TuningProfile, error) {
	profile := ProfileBalanced
	if p, ok := raw["profile"].(string); ok && p != "" {
		profile = Profile(p)
	}
	out := TuningProfile{Profile: profile, Limits: Defaults(profile)}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return out, err
	}
	if err := dec.Decode(raw); err != nil {
		return out, err
	}
	return out, nil
}
