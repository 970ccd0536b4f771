// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cred

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianCred/services/cred/entity"
	credbadger "github.com/AleutianAI/AleutianCred/services/cred/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeAtomic writes through a dotfile and a rename so the watcher never
// sees a partial file.
func writeAtomic(t *testing.T, path string, data []byte) {
	t.Helper()
	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".tmp")
	require.NoError(t, os.WriteFile(tmp, data, 0o644))
	require.NoError(t, os.Rename(tmp, path))
}

type syncRecorder struct {
	mu      sync.Mutex
	batches [][]string
}

func (r *syncRecorder) record(graphs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, graphs)
}

func (r *syncRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func TestNewWatcher_RequiresDirectory(t *testing.T) {
	svc := newTestService(t)
	_, err := NewWatcher(filepath.Join(t.TempDir(), "missing"), svc, WatcherOptions{})
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "graph.json")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = NewWatcher(file, svc, WatcherOptions{})
	assert.Error(t, err)
}

func TestWatcher_SyncsDirectory(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := newTestService(t)
	dir := t.TempDir()
	rec := &syncRecorder{}

	writeAtomic(t, filepath.Join(dir, "github.json"), graphJSON(t, contributionGraph(t)))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	w, err := NewWatcher(dir, svc, WatcherOptions{Debounce: 20 * time.Millisecond, OnSync: rec.record})
	require.NoError(t, err)
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	infos, err := svc.ListGraphs(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1, "existing files are loaded on start")
	assert.Equal(t, "github", infos[0].Name)
	assert.Equal(t, 1, rec.count())

	writeAtomic(t, filepath.Join(dir, "discord.json"), graphJSON(t, contributionGraph(t)))
	require.Eventually(t, func() bool {
		_, err := svc.Graph(ctx, "discord")
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	tbl := entity.NewTable()
	tbl.SetNode(alice, entity.NodeInfo{Description: "Alice"})
	data, err := json.Marshal(tbl)
	require.NoError(t, err)
	writeAtomic(t, filepath.Join(dir, "github.entities.json"), data)
	require.Eventually(t, func() bool {
		got, err := svc.Entities(ctx, "github")
		return err == nil && got.Description(alice) == "Alice"
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, os.Remove(filepath.Join(dir, "discord.json")))
	require.Eventually(t, func() bool {
		_, err := svc.Graph(ctx, "discord")
		return err != nil
	}, 5*time.Second, 20*time.Millisecond)
	_, err = svc.Graph(ctx, "discord")
	assert.ErrorIs(t, err, credbadger.ErrNotFound)
}

func TestWatcher_SeesFilesWrittenDuringInitialLoad(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := newTestService(t)
	dir := t.TempDir()
	writeAtomic(t, filepath.Join(dir, "github.json"), graphJSON(t, contributionGraph(t)))

	var once sync.Once
	onSync := func([]string) {
		// Runs inside Start, after the scan and before the event loop.
		once.Do(func() {
			writeAtomic(t, filepath.Join(dir, "late.json"), graphJSON(t, contributionGraph(t)))
		})
	}
	w, err := NewWatcher(dir, svc, WatcherOptions{Debounce: 20 * time.Millisecond, OnSync: onSync})
	require.NoError(t, err)
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.Eventually(t, func() bool {
		_, err := svc.Graph(ctx, "late")
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWatcher_SkipsInvalidFiles(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	dir := t.TempDir()
	rec := &syncRecorder{}

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o644))
	writeAtomic(t, filepath.Join(dir, "github.json"), graphJSON(t, contributionGraph(t)))

	w, err := NewWatcher(dir, svc, WatcherOptions{OnSync: rec.record})
	require.NoError(t, err)
	require.NoError(t, w.Start(ctx))
	w.Stop()

	infos, err := svc.ListGraphs(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "github", infos[0].Name)
	require.Equal(t, 1, rec.count())
	assert.Equal(t, []string{"github"}, rec.batches[0])
}

func TestWatcher_StopWithoutStart(t *testing.T) {
	w, err := NewWatcher(t.TempDir(), newTestService(t), WatcherOptions{})
	require.NoError(t, err)
	w.Stop()
	w.Stop()
}

func TestGraphName(t *testing.T) {
	tests := []struct {
		path string
		name string
		ok   bool
	}{
		{"/data/github.json", "github", true},
		{"/data/github.entities.json", "github", true},
		{"/data/.github.json", "", false},
		{"/data/.json", "", false},
		{"/data/github.yaml", "", false},
	}
	for _, tt := range tests {
		name, ok := graphName(tt.path)
		assert.Equal(t, tt.ok, ok, tt.path)
		assert.Equal(t, tt.name, name, tt.path)
	}
}
