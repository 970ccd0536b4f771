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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	credbadger "github.com/AleutianAI/AleutianCred/services/cred/storage/badger"
	"github.com/fsnotify/fsnotify"
)

const (
	graphFileSuffix    = ".json"
	entitiesFileSuffix = ".entities.json"
)

// SyncHandler is called after a debounced batch of files has been synced
// into the store. graphs lists the graph names whose graph or entity
// table changed.
type SyncHandler func(graphs []string)

// WatcherOptions configures the Watcher.
type WatcherOptions struct {
	// Debounce is how long to wait for more changes before syncing.
	// Default: 500ms
	Debounce time.Duration

	// OnSync, when set, is called after each batch.
	OnSync SyncHandler
}

// Watcher mirrors a directory of graph files into the store.
//
// Description:
//
//	Every "<name>.json" file in the directory is a weighted-graph
//	envelope stored as graph <name>; every "<name>.entities.json" file
//	is the entity table for that graph. Created and written files are
//	loaded; removed graph files delete the graph. Bursts of events are
//	debounced into one batch per file.
//
// Thread Safety:
//
//	Safe for concurrent use. Batches are processed on a single goroutine.
type Watcher struct {
	dir      string
	svc      *Service
	debounce time.Duration
	onSync   SyncHandler
	fsw      *fsnotify.Watcher

	changes  chan string
	done     chan struct{}
	stopped  chan struct{}
	started  atomic.Bool
	stopOnce sync.Once
}

// NewWatcher creates a watcher for dir. Call Start to begin watching.
func NewWatcher(dir string, svc *Service, opts WatcherOptions) (*Watcher, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("watch dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch dir %s: not a directory", dir)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}
	return &Watcher{
		dir:      dir,
		svc:      svc,
		debounce: opts.Debounce,
		onSync:   opts.OnSync,
		fsw:      fsw,
		changes:  make(chan string, 1024),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}, nil
}

// Start loads every file already in the directory and then watches for
// changes until ctx is cancelled or Stop is called.
//
// The directory is watched before it is scanned, so a file written during
// the initial load is seen either by the scan or as an event.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("read watch dir: %w", err)
	}
	var initial []string
	for _, e := range entries {
		if !e.IsDir() {
			initial = append(initial, filepath.Join(w.dir, e.Name()))
		}
	}
	w.syncBatch(ctx, initial)

	w.started.Store(true)
	go w.processEvents(ctx)
	go w.debounceLoop(ctx)
	return nil
}

// Stop stops watching and waits for the in-flight batch to finish.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.fsw.Close()
		if w.started.Load() {
			<-w.stopped
		}
	})
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, graphFileSuffix) {
				continue
			}
			select {
			case w.changes <- event.Name:
			default:
				slog.Warn("Watcher buffer full, dropping event", "path", event.Name)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("Watcher error", "dir", w.dir, "error", err)
		}
	}
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	defer close(w.stopped)
	var batch []string
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if len(batch) > 0 {
			w.syncBatch(ctx, batch)
			batch = nil
		}
		if timer != nil {
			timer.Stop()
			timer, timerC = nil, nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			flush()
			return
		case path := <-w.changes:
			batch = append(batch, path)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			flush()
		}
	}
}

// syncBatch loads or deletes each distinct path once. Graph files are
// handled before entity files.
func (w *Watcher) syncBatch(ctx context.Context, paths []string) {
	paths = slices.Compact(slices.Sorted(slices.Values(paths)))
	slices.SortStableFunc(paths, func(a, b string) int {
		ae, be := isEntitiesFile(a), isEntitiesFile(b)
		switch {
		case ae == be:
			return 0
		case be:
			return -1
		default:
			return 1
		}
	})

	var changed []string
	for _, path := range paths {
		name, ok := graphName(path)
		if !ok {
			continue
		}
		if err := w.syncFile(ctx, name, path); err != nil {
			slog.Warn("Failed to sync graph file", "path", path, "error", err)
			continue
		}
		changed = append(changed, name)
	}
	changed = slices.Compact(slices.Sorted(slices.Values(changed)))
	if len(changed) > 0 {
		slog.Info("Synced graph files", "dir", w.dir, "graphs", changed)
		if w.onSync != nil {
			w.onSync(changed)
		}
	}
}

func (w *Watcher) syncFile(ctx context.Context, name, path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		if isEntitiesFile(path) {
			return nil
		}
		err := w.svc.DeleteGraph(ctx, name)
		if errors.Is(err, credbadger.ErrNotFound) {
			return nil
		}
		return err
	}
	if err != nil {
		return err
	}
	if isEntitiesFile(path) {
		return w.svc.PutEntities(ctx, name, data)
	}
	_, err = w.svc.PutGraph(ctx, name, data)
	return err
}

func isEntitiesFile(path string) bool {
	return strings.HasSuffix(path, entitiesFileSuffix)
}

// graphName derives the graph name from a watched file path.
func graphName(path string) (string, bool) {
	base := filepath.Base(path)
	switch {
	case strings.HasSuffix(base, entitiesFileSuffix):
		base = strings.TrimSuffix(base, entitiesFileSuffix)
	case strings.HasSuffix(base, graphFileSuffix):
		base = strings.TrimSuffix(base, graphFileSuffix)
	default:
		return "", false
	}
	if base == "" || strings.HasPrefix(base, ".") {
		return "", false
	}
	return base, true
}
