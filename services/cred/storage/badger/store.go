// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/AleutianAI/AleutianCred/pkg/validation"
	"github.com/AleutianAI/AleutianCred/services/cred/attribution"
	"github.com/AleutianAI/AleutianCred/services/cred/entity"
	"github.com/AleutianAI/AleutianCred/services/cred/weighted"
	"github.com/dgraph-io/badger/v4"
)

// Store errors.
var (
	// ErrNotFound is returned when a graph, entity table or result does not
	// exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidName is returned for names that cannot be used as keys.
	ErrInvalidName = errors.New("invalid name")
)

const (
	graphPrefix    = "graph/"
	entitiesPrefix = "entities/"
	resultPrefix   = "result/"
)

// GraphInfo summarizes a stored graph.
type GraphInfo struct {
	Name      string    `json:"name"`
	NodeCount int       `json:"node_count"`
	EdgeCount int       `json:"edge_count"`
	UpdatedAt time.Time `json:"updated_at"`
}

type graphRecord struct {
	GraphInfo
	Graph json.RawMessage `json:"graph"`
}

// ResultInfo summarizes a stored result.
type ResultInfo struct {
	ID        string    `json:"id"`
	Strategy  string    `json:"strategy"`
	Graphs    []string  `json:"graphs"`
	Converged bool      `json:"converged"`
	CreatedAt time.Time `json:"created_at"`
}

type resultRecord struct {
	ResultInfo
	Result json.RawMessage `json:"result"`
}

// Store persists cred artifacts.
//
// Thread Safety:
//
//	Safe for concurrent use. Every call runs in its own transaction.
type Store struct {
	db  *DB
	now func() time.Time
}

// NewStore creates a store on db. The caller keeps ownership of db.
func NewStore(db *DB) *Store {
	return &Store{db: db, now: time.Now}
}

func validName(name string) error {
	if err := validation.ValidateName(name); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidName, err)
	}
	return nil
}

// SaveGraph stores wg under name, replacing any previous graph.
func (s *Store) SaveGraph(ctx context.Context, name string, wg *weighted.Graph) (GraphInfo, error) {
	if err := validName(name); err != nil {
		return GraphInfo{}, err
	}
	data, err := json.Marshal(wg)
	if err != nil {
		return GraphInfo{}, fmt.Errorf("encode graph %s: %w", name, err)
	}
	info := GraphInfo{
		Name:      name,
		NodeCount: wg.Graph.NodeCount(),
		EdgeCount: wg.Graph.EdgeCount(),
		UpdatedAt: s.now().UTC(),
	}
	rec, err := json.Marshal(graphRecord{GraphInfo: info, Graph: data})
	if err != nil {
		return GraphInfo{}, err
	}
	err = s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set([]byte(graphPrefix+name), rec)
	})
	return info, err
}

// LoadGraph returns the graph stored under name.
//
// Errors:
//
//	ErrNotFound - no such graph
func (s *Store) LoadGraph(ctx context.Context, name string) (*weighted.Graph, error) {
	var rec graphRecord
	if err := s.get(ctx, graphPrefix+name, &rec); err != nil {
		return nil, fmt.Errorf("graph %s: %w", name, err)
	}
	wg, err := weighted.FromJSON(rec.Graph)
	if err != nil {
		return nil, fmt.Errorf("decode graph %s: %w", name, err)
	}
	return wg, nil
}

// ListGraphs returns every stored graph, ordered by name.
func (s *Store) ListGraphs(ctx context.Context) ([]GraphInfo, error) {
	var out []GraphInfo
	err := s.scan(ctx, graphPrefix, func(data []byte) error {
		var rec graphRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		out = append(out, rec.GraphInfo)
		return nil
	})
	return out, err
}

// DeleteGraph removes a graph and its entity table.
//
// Errors:
//
//	ErrNotFound - no such graph
func (s *Store) DeleteGraph(ctx context.Context, name string) error {
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		key := []byte(graphPrefix + name)
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("graph %s: %w", name, ErrNotFound)
			}
			return err
		}
		if err := txn.Delete(key); err != nil {
			return err
		}
		return txn.Delete([]byte(entitiesPrefix + name))
	})
}

// SaveEntities stores the entity table for the graph called name.
func (s *Store) SaveEntities(ctx context.Context, name string, tbl *entity.Table) error {
	if err := validName(name); err != nil {
		return err
	}
	data, err := json.Marshal(tbl)
	if err != nil {
		return fmt.Errorf("encode entities %s: %w", name, err)
	}
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set([]byte(entitiesPrefix+name), data)
	})
}

// LoadEntities returns the entity table for the graph called name.
//
// Errors:
//
//	ErrNotFound - no table stored
func (s *Store) LoadEntities(ctx context.Context, name string) (*entity.Table, error) {
	var raw json.RawMessage
	if err := s.get(ctx, entitiesPrefix+name, &raw); err != nil {
		return nil, fmt.Errorf("entities %s: %w", name, err)
	}
	return entity.FromJSON(raw)
}

// SaveResult stores an attribution result.
func (s *Store) SaveResult(ctx context.Context, id string, graphs []string, res *attribution.Result) (ResultInfo, error) {
	if err := validName(id); err != nil {
		return ResultInfo{}, err
	}
	data, err := json.Marshal(res)
	if err != nil {
		return ResultInfo{}, fmt.Errorf("encode result %s: %w", id, err)
	}
	info := ResultInfo{
		ID:        id,
		Strategy:  res.Strategy.String(),
		Graphs:    slices.Clone(graphs),
		Converged: res.Converged,
		CreatedAt: s.now().UTC(),
	}
	rec, err := json.Marshal(resultRecord{ResultInfo: info, Result: data})
	if err != nil {
		return ResultInfo{}, err
	}
	err = s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set([]byte(resultPrefix+id), rec)
	})
	return info, err
}

// LoadResult returns a stored result.
//
// Errors:
//
//	ErrNotFound - no such result
func (s *Store) LoadResult(ctx context.Context, id string) (*attribution.Result, error) {
	var rec resultRecord
	if err := s.get(ctx, resultPrefix+id, &rec); err != nil {
		return nil, fmt.Errorf("result %s: %w", id, err)
	}
	res, err := attribution.FromJSON(rec.Result)
	if err != nil {
		return nil, fmt.Errorf("decode result %s: %w", id, err)
	}
	return res, nil
}

// ListResults returns every stored result summary, newest first.
func (s *Store) ListResults(ctx context.Context) ([]ResultInfo, error) {
	var out []ResultInfo
	err := s.scan(ctx, resultPrefix, func(data []byte) error {
		var rec resultRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		out = append(out, rec.ResultInfo)
		return nil
	})
	slices.SortStableFunc(out, func(a, b ResultInfo) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, err
}

// DeleteResult removes a stored result.
//
// Errors:
//
//	ErrNotFound - no such result
func (s *Store) DeleteResult(ctx context.Context, id string) error {
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		key := []byte(resultPrefix + id)
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("result %s: %w", id, ErrNotFound)
			}
			return err
		}
		return txn.Delete(key)
	})
}

func (s *Store) get(ctx context.Context, key string, v any) error {
	return s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})
}

func (s *Store) scan(ctx context.Context, prefix string, fn func(data []byte) error) error {
	return s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := it.Item().Value(fn); err != nil {
				return fmt.Errorf("scan %s: %w", it.Item().Key(), err)
			}
		}
		return nil
	})
}
