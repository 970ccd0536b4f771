// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/AleutianAI/AleutianCred/pkg/ux"
	"github.com/AleutianAI/AleutianCred/services/cred/compat"
	"github.com/AleutianAI/AleutianCred/services/cred/graph"
	"github.com/AleutianAI/AleutianCred/services/cred/weighted"
	"github.com/spf13/cobra"
)

// errCheckFailed is returned when at least one graph fails its check.
var errCheckFailed = errors.New("invariant check failed")

func newCheckCmd() *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "check [graph.json...]",
		Short: "Verify the structural invariants of weighted graphs",
		Long: `Decodes each file as a weighted graph and verifies its indexes and
weights. With --strict the invariants are re-verified after every node and
edge is added while decoding, which pinpoints the first inconsistent
entry at the cost of quadratic time.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args, strict)
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "re-verify invariants after every mutation while decoding")
	return cmd
}

// runCheck checks each file independently so that one broken graph does
// not hide problems in the others.
func runCheck(cmd *cobra.Command, paths []string, strict bool) error {
	p := newPrinter(cmd)
	p.Title("Checking graphs")
	failed := 0
	for _, path := range paths {
		wg, err := checkFile(path, strict)
		if err != nil {
			failed++
			p.FileStatus(path, ux.IconError, err.Error())
			continue
		}
		p.FileStatus(path, ux.IconSuccess, fmt.Sprintf("%d nodes, %d edges", wg.Graph.NodeCount(), wg.Graph.EdgeCount()))
	}
	p.Summary(len(paths)-failed, failed)
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d graphs", errCheckFailed, failed, len(paths))
	}
	return nil
}

// checkFile decodes and verifies one weighted graph file. Under strict
// decoding an invariant violation panics inside the graph; it is
// reported as ErrInvariantViolation.
func checkFile(path string, strict bool) (wg *weighted.Graph, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	info, err := compat.Peek(data)
	if err != nil {
		return nil, err
	}
	if info.Type != weighted.CompatInfo.Type {
		return nil, fmt.Errorf("%w: %s file, want %s", compat.ErrIncompatibleFormat, info.Type, weighted.CompatInfo.Type)
	}

	var opts []graph.Option
	if strict {
		opts = append(opts, graph.WithInvariantChecks(true))
		defer func() {
			if r := recover(); r != nil {
				wg, err = nil, fmt.Errorf("%w: %v", graph.ErrInvariantViolation, r)
			}
		}()
	}
	wg, err = weighted.FromJSON(data, opts...)
	if err != nil {
		return nil, err
	}
	if err := wg.Graph.CheckInvariants(); err != nil {
		return nil, err
	}
	if err := wg.Weights.Validate(); err != nil {
		return nil, err
	}
	return wg, nil
}
