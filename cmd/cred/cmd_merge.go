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
	"log/slog"

	"github.com/AleutianAI/AleutianCred/services/cred/weighted"
	"github.com/spf13/cobra"
)

func newMergeCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "merge [graph.json...]",
		Short: "Merge weighted graphs conservatively",
		Long: `Merges the graphs, failing if two of them bind the same edge address to
different endpoints. On weight collisions the later file wins.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			graphs, err := loadGraphs(cmd.Context(), args)
			if err != nil {
				return err
			}
			merged, err := weighted.Merge(cmd.Context(), graphs...)
			if err != nil {
				return err
			}
			slog.Info("Graphs merged",
				slog.Int("inputs", len(graphs)),
				slog.Int("nodes", merged.Graph.NodeCount()),
				slog.Int("edges", merged.Graph.EdgeCount()),
			)
			return writeJSON(cmd.OutOrStdout(), output, merged)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "merged graph file (default stdout)")
	return cmd
}
