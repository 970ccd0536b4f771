// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package address provides typed, hierarchical addresses for graph nodes
// and edges.
//
// An address is an ordered sequence of string segments. Node addresses and
// edge addresses live in two disjoint namespaces: the kind is a type
// parameter, so a NodeAddress can never be passed where an EdgeAddress is
// expected. The encoded form is still a single NUL-delimited string whose
// first segment is a kind marker ("N" or "E"), which keeps prefix queries a
// plain string-prefix test and keeps the raw form interoperable with other
// tools that exchange addresses as strings.
//
// # Encoding
//
//	nonce \0 part1 \0 part2 \0 ... partN \0
//
// Every segment, including the last, is terminated by the delimiter, so
// HasPrefix never matches a partial segment.
//
// # Thread Safety
//
// Address values are immutable and safe for concurrent use.
package address

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// separator terminates every segment of an encoded address.
const separator = "\x00"

// ErrInvalidAddress is returned when an address is malformed, carries the
// wrong kind marker, or contains the delimiter inside a segment.
var ErrInvalidAddress = errors.New("invalid address")

// Kind is the type-level marker distinguishing node and edge addresses.
type Kind interface {
	Node | Edge
	nonce() string
	typeName() string
}

// Node marks node addresses.
type Node struct{}

func (Node) nonce() string    { return "N" }
func (Node) typeName() string { return "NodeAddress" }

// Edge marks edge addresses.
type Edge struct{}

func (Edge) nonce() string    { return "E" }
func (Edge) typeName() string { return "EdgeAddress" }

// Address is a hierarchical identifier of kind K.
//
// The zero value is not a valid address; use Empty or FromParts.
// Addresses are comparable and may be used as map keys.
type Address[K Kind] struct {
	enc string
}

// NodeAddress identifies a node.
type NodeAddress = Address[Node]

// EdgeAddress identifies an edge.
type EdgeAddress = Address[Edge]

func header[K Kind]() string {
	var k K
	return k.nonce() + separator
}

func name[K Kind]() string {
	var k K
	return k.typeName()
}

// Empty returns the address with zero segments. It is a prefix of every
// address of its kind.
func Empty[K Kind]() Address[K] {
	return Address[K]{enc: header[K]()}
}

// FromParts builds an address from its segments.
//
// Returns ErrInvalidAddress if any segment contains the NUL delimiter.
func FromParts[K Kind](parts ...string) (Address[K], error) {
	return Empty[K]().Append(parts...)
}

// MustFromParts is FromParts for literals known to be valid. It panics on
// invalid input.
func MustFromParts[K Kind](parts ...string) Address[K] {
	a, err := FromParts[K](parts...)
	if err != nil {
		panic(err)
	}
	return a
}

// NodeFromParts builds a NodeAddress.
func NodeFromParts(parts ...string) (NodeAddress, error) {
	return FromParts[Node](parts...)
}

// EdgeFromParts builds an EdgeAddress.
func EdgeFromParts(parts ...string) (EdgeAddress, error) {
	return FromParts[Edge](parts...)
}

// MustNode builds a NodeAddress from literal segments.
func MustNode(parts ...string) NodeAddress {
	return MustFromParts[Node](parts...)
}

// MustEdge builds an EdgeAddress from literal segments.
func MustEdge(parts ...string) EdgeAddress {
	return MustFromParts[Edge](parts...)
}

// Parse validates a raw encoded address of kind K.
//
// Description:
//
//	Checks that the raw string begins with the kind marker for K and is
//	terminated by the delimiter. Raw strings of the other kind are rejected
//	even when their segments would otherwise be identical.
//
// Errors:
//
//	ErrInvalidAddress - wrong kind marker or missing terminator
func Parse[K Kind](raw string) (Address[K], error) {
	h := header[K]()
	if !strings.HasPrefix(raw, h) {
		return Address[K]{}, fmt.Errorf("%w: expected %s, got %q", ErrInvalidAddress, name[K](), printable(raw))
	}
	if !strings.HasSuffix(raw, separator) {
		return Address[K]{}, fmt.Errorf("%w: %s not terminated: %q", ErrInvalidAddress, name[K](), printable(raw))
	}
	return Address[K]{enc: raw}, nil
}

// Append returns a new address with parts appended.
func (a Address[K]) Append(parts ...string) (Address[K], error) {
	if a.enc == "" {
		return Address[K]{}, fmt.Errorf("%w: append to zero %s", ErrInvalidAddress, name[K]())
	}
	var b strings.Builder
	b.WriteString(a.enc)
	for _, p := range parts {
		if strings.Contains(p, separator) {
			return Address[K]{}, fmt.Errorf("%w: part contains NUL: %q", ErrInvalidAddress, printable(p))
		}
		b.WriteString(p)
		b.WriteString(separator)
	}
	return Address[K]{enc: b.String()}, nil
}

// MustAppend is Append for literals known to be valid.
func (a Address[K]) MustAppend(parts ...string) Address[K] {
	out, err := a.Append(parts...)
	if err != nil {
		panic(err)
	}
	return out
}

// Parts returns the address segments, excluding the kind marker.
func (a Address[K]) Parts() []string {
	if a.enc == "" {
		return nil
	}
	split := strings.Split(a.enc, separator)
	// split[0] is the nonce; the trailing element is empty.
	return split[1 : len(split)-1]
}

// Len returns the number of segments.
func (a Address[K]) Len() int {
	if a.enc == "" {
		return 0
	}
	return strings.Count(a.enc, separator) - 1
}

// HasPrefix reports whether prefix's segments are a leading subsequence of
// a's segments.
func (a Address[K]) HasPrefix(prefix Address[K]) bool {
	return a.enc != "" && prefix.enc != "" && strings.HasPrefix(a.enc, prefix.enc)
}

// IsZero reports whether a is the (invalid) zero value.
func (a Address[K]) IsZero() bool {
	return a.enc == ""
}

// Raw returns the encoded string. It contains NUL characters.
func (a Address[K]) Raw() string {
	return a.enc
}

// String returns a human readable, NUL-free form such as
// NodeAddress["github","user","octocat"].
func (a Address[K]) String() string {
	parts := a.Parts()
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = fmt.Sprintf("%q", p)
	}
	return name[K]() + "[" + strings.Join(quoted, ",") + "]"
}

// MarshalJSON encodes the address as its parts array.
func (a Address[K]) MarshalJSON() ([]byte, error) {
	if a.enc == "" {
		return nil, fmt.Errorf("%w: marshal zero %s", ErrInvalidAddress, name[K]())
	}
	return json.Marshal(a.Parts())
}

// UnmarshalJSON decodes an address from its parts array.
func (a *Address[K]) UnmarshalJSON(data []byte) error {
	var parts []string
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("%w: %s parts: %v", ErrInvalidAddress, name[K](), err)
	}
	out, err := FromParts[K](parts...)
	if err != nil {
		return err
	}
	*a = out
	return nil
}

// Compare orders addresses by their encoded form. Because the delimiter
// sorts before every other character, a prefix sorts before its extensions.
func Compare[K Kind](a, b Address[K]) int {
	return strings.Compare(a.enc, b.enc)
}

// Less reports whether a sorts before b.
func Less[K Kind](a, b Address[K]) bool {
	return a.enc < b.enc
}

func printable(s string) string {
	return strings.ReplaceAll(s, separator, "\\0")
}
