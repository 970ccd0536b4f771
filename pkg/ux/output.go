// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux provides terminal output styling for the cred CLI.
package ux

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Aleutian color palette - deep ocean teals and arctic waters
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7") // Bright teal - highlights, success
	ColorTealPrimary = lipgloss.Color("#20B9B4") // Primary teal - main brand color
	ColorTealDeep    = lipgloss.Color("#16858E") // Deep teal - borders, accents
	ColorSlate       = lipgloss.Color("#2C4A54") // Slate - muted text, borders

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Title     lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style

	Border      lipgloss.Style
	TableHeader lipgloss.Style
	TableCell   lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorSlate),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorTealBright).Bold(true),

	Border:      lipgloss.NewStyle().Foreground(ColorTealDeep),
	TableHeader: lipgloss.NewStyle().Bold(true).Foreground(ColorTealPrimary).Padding(0, 1),
	TableCell:   lipgloss.NewStyle().Padding(0, 1),
}

// Icon provides themed status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconPending Icon = "○"
)

// Render returns the icon with appropriate styling
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	case IconPending:
		return Styles.Muted.Render(string(i))
	default:
		return string(i)
	}
}

// Word is the plain-text form of the icon used in machine output.
func (i Icon) Word() string {
	switch i {
	case IconSuccess:
		return "ok"
	case IconWarning:
		return "WARN"
	case IconError:
		return "FAIL"
	case IconPending:
		return "PENDING"
	default:
		return string(i)
	}
}

// =============================================================================
// Printer
// =============================================================================

// Printer writes CLI output either styled for a terminal or as plain,
// tab-separated lines that are stable for scripts.
//
// Description:
//
//	Callers decide Plain once, usually from whether the output is a
//	terminal. Styled output goes through the package Styles; plain output
//	carries no escape sequences.
//
// Thread Safety: Not safe for concurrent use.
type Printer struct {
	w     io.Writer
	plain bool
}

// NewPrinter creates a printer writing to w.
func NewPrinter(w io.Writer, plain bool) *Printer {
	return &Printer{w: w, plain: plain}
}

// Plain reports whether the printer emits machine output.
func (p *Printer) Plain() bool {
	return p.plain
}

// Title prints a styled title. Plain printers skip it.
func (p *Printer) Title(text string) {
	if p.plain {
		return
	}
	fmt.Fprintln(p.w, Styles.Title.Render(text))
}

// FileStatus prints a file with its check status and an optional reason.
func (p *Printer) FileStatus(path string, status Icon, reason string) {
	if p.plain {
		if reason == "" {
			fmt.Fprintf(p.w, "%s\t%s\n", status.Word(), path)
			return
		}
		fmt.Fprintf(p.w, "%s\t%s\t%s\n", status.Word(), path, reason)
		return
	}
	if reason == "" {
		fmt.Fprintf(p.w, "%s %s\n", status.Render(), path)
		return
	}
	style := Styles.Muted
	if status == IconError {
		style = Styles.Error
	}
	fmt.Fprintf(p.w, "%s %s %s\n", status.Render(), path, style.Render("("+reason+")"))
}

// Summary prints the passed and failed counts.
func (p *Printer) Summary(passed, failed int) {
	if p.plain {
		fmt.Fprintf(p.w, "SUMMARY: ok=%d failed=%d total=%d\n", passed, failed, passed+failed)
		return
	}
	fmt.Fprintf(p.w, "\n%s %s  %s %s  %s %s\n",
		Styles.Success.Render(fmt.Sprintf("%d", passed)), Styles.Muted.Render("ok"),
		Styles.Error.Render(fmt.Sprintf("%d", failed)), Styles.Muted.Render("failed"),
		Styles.Bold.Render(fmt.Sprintf("%d", passed+failed)), Styles.Muted.Render("total"),
	)
}

// Table prints rows under headers.
//
// Description:
//
//	Styled printers render a rounded lipgloss table. Plain printers emit
//	the header and each row as tab-separated lines. Rows shorter than
//	headers are padded with empty cells.
func (p *Printer) Table(headers []string, rows [][]string) {
	if p.plain {
		fmt.Fprintln(p.w, strings.Join(headers, "\t"))
		for _, row := range rows {
			fmt.Fprintln(p.w, strings.Join(padRow(row, len(headers)), "\t"))
		}
		return
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(Styles.Border).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return Styles.TableHeader
			}
			return Styles.TableCell
		})
	for _, row := range rows {
		t.Row(padRow(row, len(headers))...)
	}
	fmt.Fprintln(p.w, t.Render())
}

func padRow(row []string, n int) []string {
	if len(row) >= n {
		return row
	}
	out := make([]string, n)
	copy(out, row)
	return out
}
