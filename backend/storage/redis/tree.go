// Copyright (C) 2025 chatdocu.net <dev@chatdocu.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/chatdocunet/chatdocu/backend/storage"
)

const (
	// Redis key prefixes
	valuePrefix = "tree:v:" // tree:v:{path} - JSON value of the node
	childPrefix = "tree:c:" // tree:c:{path} - zset of child names, scored by first write
	eventsChan  = "tree:events"
)

// TreeStore implements storage.TreeStore on a Redis instance. Each
// node value lives in its own key; per-parent sorted sets keep child
// names in first-write order, which is the iteration order the rest of
// the system relies on. Changes are fanned out on a single pub/sub
// channel carrying the changed path.
type TreeStore struct {
	rdb    *redis.Client
	logger *zap.SugaredLogger
}

func NewTreeStore(logger *zap.SugaredLogger, rdb *redis.Client) *TreeStore {
	return &TreeStore{rdb: rdb, logger: logger}
}

// Set writes the JSON encoding of value at path and registers the path
// with every ancestor's child index.
func (s *TreeStore) Set(ctx context.Context, path string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	if err := s.rdb.Set(ctx, valuePrefix+path, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store value: %w", err)
	}

	// Register the node with its ancestors. NX keeps the original
	// insertion score on rewrite.
	score := float64(time.Now().UnixNano())
	p := path
	for {
		parent, child := splitPath(p)
		err := s.rdb.ZAddNX(ctx, childPrefix+parent, redis.Z{Score: score, Member: child}).Err()
		if err != nil {
			return fmt.Errorf("failed to index %q under %q: %w", child, parent, err)
		}
		if parent == "" {
			break
		}
		p = parent
	}

	s.rdb.Publish(ctx, eventsChan, path)
	return nil
}

func (s *TreeStore) Get(ctx context.Context, path string, out any) error {
	data, err := s.rdb.Get(ctx, valuePrefix+path).Result()
	if err == redis.Nil {
		return storage.ErrNotFound
	} else if err != nil {
		return fmt.Errorf("failed to get value: %w", err)
	}
	if err := json.Unmarshal([]byte(data), out); err != nil {
		return fmt.Errorf("failed to unmarshal value at %q: %w", path, err)
	}
	return nil
}

// Delete removes the node value, the whole subtree below it and the
// node's entry in its parent index.
func (s *TreeStore) Delete(ctx context.Context, path string) error {
	if err := s.rdb.Del(ctx, valuePrefix+path).Err(); err != nil {
		return fmt.Errorf("failed to delete value: %w", err)
	}

	// Descendant values and child indexes.
	for _, prefix := range []string{valuePrefix, childPrefix} {
		iter := s.rdb.Scan(ctx, 0, prefix+path+"/*", 0).Iterator()
		for iter.Next(ctx) {
			if err := s.rdb.Del(ctx, iter.Val()).Err(); err != nil {
				return fmt.Errorf("failed to delete subtree key: %w", err)
			}
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("failed to scan subtree: %w", err)
		}
	}
	if err := s.rdb.Del(ctx, childPrefix+path).Err(); err != nil {
		return fmt.Errorf("failed to delete child index: %w", err)
	}

	parent, child := splitPath(path)
	if err := s.rdb.ZRem(ctx, childPrefix+parent, child).Err(); err != nil {
		return fmt.Errorf("failed to unindex %q: %w", child, err)
	}

	s.rdb.Publish(ctx, eventsChan, path)
	return nil
}

func (s *TreeStore) Children(ctx context.Context, path string) ([]string, error) {
	names, err := s.rdb.ZRange(ctx, childPrefix+path, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list children: %w", err)
	}
	return names, nil
}

// Watch subscribes to the shared events channel and forwards changes
// at or below path. The notification channel has a buffer of one; a
// slow consumer coalesces bursts instead of blocking the reader loop.
func (s *TreeStore) Watch(ctx context.Context, path string) (<-chan struct{}, func(), error) {
	pubsub := s.rdb.Subscribe(ctx, eventsChan)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	notify := make(chan struct{}, 1)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			pubsub.Close()
		})
	}

	go func() {
		defer close(notify)
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				cancel()
				return
			case <-done:
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				changed := msg.Payload
				if changed != path && !strings.HasPrefix(changed, path+"/") {
					continue
				}
				select {
				case notify <- struct{}{}:
				default:
				}
			}
		}
	}()

	return notify, cancel, nil
}

// splitPath splits "a/b/c" into parent "a/b" and leaf "c". A top-level
// path has parent "".
func splitPath(path string) (parent, leaf string) {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}
