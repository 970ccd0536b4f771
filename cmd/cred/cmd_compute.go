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
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianCred/services/cred/address"
	"github.com/AleutianAI/AleutianCred/services/cred/attribution"
	"github.com/spf13/cobra"
)

type computeOptions struct {
	output        string
	entities      []string
	strategy      string
	alpha         float64
	maxIterations int
	top           int
	topPrefix     string
}

func newComputeCmd(a *app) *cobra.Command {
	opts := &computeOptions{}
	cmd := &cobra.Command{
		Use:   "compute [graph.json...]",
		Short: "Compute scores for one or more weighted graphs",
		Long: `Loads the weighted graphs in parallel, merges them, runs the configured
strategy and writes the attribution result as JSON. With -o the result is
written to a file and the top scoring nodes are printed instead.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompute(cmd, a, opts, args)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&opts.output, "output", "o", "", "result file (default stdout)")
	flags.StringArrayVarP(&opts.entities, "entities", "e", nil, "entity table file (repeatable)")
	flags.StringVar(&opts.strategy, "strategy", "", "PAGERANK or CREDRANK, optionally with @vN")
	flags.Float64Var(&opts.alpha, "alpha", 0, "PageRank teleport probability")
	flags.IntVar(&opts.maxIterations, "max-iterations", 0, "solver iteration cap")
	flags.IntVar(&opts.top, "top", 10, "nodes to print when writing to a file")
	flags.StringVar(&opts.topPrefix, "prefix", "", "slash-separated address prefix for --top")
	return cmd
}

func runCompute(cmd *cobra.Command, a *app, opts *computeOptions, paths []string) error {
	ctx := cmd.Context()
	cfg, err := a.cfg.RunConfig()
	if err != nil {
		return err
	}
	if opts.strategy != "" {
		cfg.Strategy, err = parseStrategy(opts.strategy)
		if err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("alpha") {
		cfg.Parameters.Alpha = opts.alpha
	}
	if cmd.Flags().Changed("max-iterations") {
		cfg.Parameters.MaxIterations = opts.maxIterations
	}

	start := time.Now()
	graphs, err := loadGraphs(ctx, paths)
	if err != nil {
		return err
	}
	tables, err := loadEntities(ctx, opts.entities)
	if err != nil {
		return err
	}
	slog.Debug("Inputs loaded",
		slog.Int("graphs", len(graphs)),
		slog.Int("entity_tables", len(tables)),
		slog.Duration("duration", time.Since(start)),
	)

	res, err := attribution.Run(ctx, attribution.Input{WeightedGraphs: graphs, Entities: tables}, cfg)
	if err != nil {
		return err
	}
	slog.Info("Attribution computed",
		slog.String("strategy", res.Strategy.String()),
		slog.Bool("converged", res.Converged),
		slog.Int("iterations", res.Iterations),
		slog.Duration("duration", time.Since(start)),
	)

	if err := writeJSON(cmd.OutOrStdout(), opts.output, res); err != nil {
		return err
	}
	if opts.output == "" || opts.output == "-" {
		return nil
	}

	var prefix address.NodeAddress
	if opts.topPrefix != "" {
		prefix, err = address.NodeFromParts(strings.Split(opts.topPrefix, "/")...)
		if err != nil {
			return err
		}
	}
	printTop(cmd, res.Top(opts.top, prefix))
	return nil
}

// parseStrategy accepts "PAGERANK", "credrank" or "CREDRANK@v1".
func parseStrategy(s string) (attribution.Strategy, error) {
	name, version, found := strings.Cut(s, "@")
	st := attribution.Strategy{Type: attribution.StrategyType(strings.ToUpper(name)), Version: 1}
	if found {
		if _, err := fmt.Sscanf(version, "v%d", &st.Version); err != nil {
			return attribution.Strategy{}, fmt.Errorf("%w: %q", attribution.ErrUnsupportedStrategyVersion, s)
		}
	}
	if err := st.Validate(); err != nil {
		return attribution.Strategy{}, err
	}
	return st, nil
}

// printTop labels each node by its description, falling back to the
// address.
func printTop(cmd *cobra.Command, nodes []attribution.RankedNode) {
	rows := make([][]string, len(nodes))
	for i, n := range nodes {
		label := n.Description
		if label == "" {
			label = n.Node.String()
		}
		rows[i] = []string{strconv.Itoa(n.Rank), strconv.FormatFloat(n.Score, 'f', 6, 64), label}
	}
	newPrinter(cmd).Table([]string{"RANK", "SCORE", "NODE"}, rows)
}
