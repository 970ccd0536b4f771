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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/AleutianAI/AleutianCred/services/cred/entity"
	"github.com/AleutianAI/AleutianCred/services/cred/weighted"
	"golang.org/x/sync/errgroup"
)

// maxParallelLoads bounds concurrent file decodes.
const maxParallelLoads = 8

// loadGraphs decodes weighted-graph files in parallel. The result keeps
// the order of paths.
func loadGraphs(ctx context.Context, paths []string) ([]*weighted.Graph, error) {
	return loadAll(ctx, paths, func(data []byte) (*weighted.Graph, error) {
		return weighted.FromJSON(data)
	})
}

// loadEntities decodes entity-table files in parallel.
func loadEntities(ctx context.Context, paths []string) ([]*entity.Table, error) {
	return loadAll(ctx, paths, entity.FromJSON)
}

func loadAll[T any](ctx context.Context, paths []string, decode func([]byte) (T, error)) ([]T, error) {
	out := make([]T, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelLoads)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			v, err := decode(data)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// writeJSON writes v to path, or to stdout when path is empty or "-".
func writeJSON(stdout io.Writer, path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if path == "" || path == "-" {
		_, err = fmt.Fprintln(stdout, string(data))
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
