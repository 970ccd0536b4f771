// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"strings"
	"testing"
)

// =============================================================================
// Icon Tests
// =============================================================================

func TestIcon_Render(t *testing.T) {
	for _, icon := range []Icon{IconSuccess, IconWarning, IconError, IconPending} {
		if !strings.Contains(icon.Render(), string(icon)) {
			t.Errorf("Render(%q) lost the icon", icon)
		}
	}
}

func TestIcon_Word(t *testing.T) {
	tests := map[Icon]string{
		IconSuccess: "ok",
		IconWarning: "WARN",
		IconError:   "FAIL",
		IconPending: "PENDING",
		Icon("?"):   "?",
	}
	for icon, want := range tests {
		if got := icon.Word(); got != want {
			t.Errorf("%q.Word() = %q, want %q", icon, got, want)
		}
	}
}

// =============================================================================
// Printer Tests
// =============================================================================

func TestPrinter_PlainFileStatus(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, true)
	p.Title("Checking graphs")
	p.FileStatus("a.json", IconSuccess, "")
	p.FileStatus("b.json", IconError, "bad edge")
	p.Summary(1, 1)

	want := "ok\ta.json\nFAIL\tb.json\tbad edge\nSUMMARY: ok=1 failed=1 total=2\n"
	if got := buf.String(); got != want {
		t.Errorf("plain output = %q, want %q", got, want)
	}
}

func TestPrinter_StyledFileStatus(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)
	p.FileStatus("b.json", IconError, "bad edge")

	out := buf.String()
	if !strings.Contains(out, "b.json") || !strings.Contains(out, "bad edge") {
		t.Errorf("styled output missing content: %q", out)
	}
	if !strings.Contains(out, string(IconError)) {
		t.Errorf("styled output missing icon: %q", out)
	}
}

func TestPrinter_PlainTable(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, true)
	p.Table([]string{"RANK", "SCORE", "NODE"}, [][]string{
		{"1", "0.500000", "Alice"},
		{"2", "0.250000"},
	})

	want := "RANK\tSCORE\tNODE\n1\t0.500000\tAlice\n2\t0.250000\t\n"
	if got := buf.String(); got != want {
		t.Errorf("plain table = %q, want %q", got, want)
	}
}

func TestPrinter_StyledTable(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)
	if p.Plain() {
		t.Fatal("expected styled printer")
	}
	p.Table([]string{"RANK", "NODE"}, [][]string{{"1", "Alice"}})

	out := buf.String()
	for _, want := range []string{"RANK", "NODE", "Alice", "╭", "╯"} {
		if !strings.Contains(out, want) {
			t.Errorf("styled table missing %q:\n%s", want, out)
		}
	}
}
