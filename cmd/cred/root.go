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
	"os"

	"github.com/AleutianAI/AleutianCred/pkg/logging"
	"github.com/AleutianAI/AleutianCred/pkg/ux"
	"github.com/AleutianAI/AleutianCred/services/cred/config"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// app carries the state shared by every command once the persistent
// flags have been processed.
type app struct {
	configPath string
	logLevel   string
	jsonLogs   bool

	cfg    config.Config
	logger *logging.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "cred",
		Short: "Compute contribution scores over addressable property graphs",
		Long: `cred merges weighted contribution graphs, builds a Markov chain over
them and reports every node's share of the stationary distribution,
together with where that share came from.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Close()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "path to a YAML config file")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.BoolVar(&a.jsonLogs, "json-logs", false, "write logs as JSON")

	root.AddCommand(
		newComputeCmd(a),
		newCheckCmd(),
		newMergeCmd(),
		newServeCmd(a),
		newConfigCmd(a),
	)
	return root
}

// setup loads the configuration and installs the logger as slog's
// default.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.jsonLogs {
		cfg.Logging.JSON = true
	}
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("--log-level: %w", err)
	}

	a.cfg = cfg
	a.logger = logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Logging.LogDir,
		Service: "cred-" + cmd.Name(),
		JSON:    cfg.Logging.JSON || !isTerminal(os.Stderr),
		Output:  cmd.ErrOrStderr(),
	})
	slog.SetDefault(a.logger.Slog())
	return nil
}

// newPrinter styles output only when stdout is a terminal.
func newPrinter(cmd *cobra.Command) *ux.Printer {
	w := cmd.OutOrStdout()
	f, ok := w.(*os.File)
	return ux.NewPrinter(w, !ok || !isTerminal(f))
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
