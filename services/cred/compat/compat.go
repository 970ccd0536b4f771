// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package compat wraps serialized artifacts in an explicit compatibility
// envelope.
//
// Every JSON artifact is written as a two-element array:
//
//	[{"type": "cred/graph", "version": "1.0.0"}, <payload>]
//
// Versions are semantic versions without the leading "v". Loading checks
// type and version exactly. There is no inferred forward or backward
// compatibility: a mismatch is a hard failure.
package compat

import (
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/mod/semver"
)

// ErrIncompatibleFormat is returned when an envelope is missing, malformed,
// or declares a different type or version than expected.
var ErrIncompatibleFormat = errors.New("incompatible format")

// Info identifies a payload's format.
type Info struct {
	Type    string `json:"type"`
	Version string `json:"version"`
}

// String returns "type@version".
func (i Info) String() string {
	return i.Type + "@" + i.Version
}

// Wrap marshals payload inside an envelope for info.
func Wrap(info Info, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", info, err)
	}
	return json.Marshal([]json.RawMessage{mustJSON(info), body})
}

// Unwrap checks the envelope against info and decodes the payload into v.
//
// Errors:
//
//	ErrIncompatibleFormat - not an envelope, or type/version mismatch
func Unwrap(data []byte, info Info, v any) error {
	raw, err := Payload(data, info)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", info, err)
	}
	return nil
}

// Payload checks the envelope and returns the raw payload bytes.
func Payload(data []byte, info Info) (json.RawMessage, error) {
	got, raw, err := split(data)
	if err != nil {
		return nil, err
	}
	if got != info {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrIncompatibleFormat, info, got)
	}
	return raw, nil
}

// Peek returns the envelope header without checking it.
func Peek(data []byte) (Info, error) {
	info, _, err := split(data)
	return info, err
}

func split(data []byte) (Info, json.RawMessage, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return Info{}, nil, fmt.Errorf("%w: not an envelope: %v", ErrIncompatibleFormat, err)
	}
	if len(parts) != 2 {
		return Info{}, nil, fmt.Errorf("%w: envelope has %d elements, want 2", ErrIncompatibleFormat, len(parts))
	}
	var info Info
	if err := json.Unmarshal(parts[0], &info); err != nil || info.Type == "" {
		return Info{}, nil, fmt.Errorf("%w: malformed header", ErrIncompatibleFormat)
	}
	if !semver.IsValid("v" + info.Version) {
		return Info{}, nil, fmt.Errorf("%w: version %q is not a semantic version", ErrIncompatibleFormat, info.Version)
	}
	return info, parts[1], nil
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
