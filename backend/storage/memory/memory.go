// Copyright (C) 2025 chatdocu.net <dev@chatdocu.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package memory provides in-process TreeStore and BlobStore
// implementations for tests. The failure hooks let a test fail exactly
// one of two mirrored writes or a single blob delete, which is how the
// dual-write and sweeper error paths get exercised.
package memory

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/chatdocunet/chatdocu/backend/storage"
)

type watcher struct {
	path   string
	notify chan struct{}
}

// TreeStore is an in-memory storage.TreeStore. Children keeps
// insertion order, matching the contract the admin-repair logic
// depends on.
type TreeStore struct {
	mu       sync.Mutex
	values   map[string][]byte
	children map[string][]string
	watchers map[int]*watcher
	nextID   int

	// SetErr and DeleteErr, when non-nil, may reject a write before it
	// is applied.
	SetErr    func(path string) error
	DeleteErr func(path string) error
}

func NewTreeStore() *TreeStore {
	return &TreeStore{
		values:   make(map[string][]byte),
		children: make(map[string][]string),
		watchers: make(map[int]*watcher),
	}
}

func (s *TreeStore) Set(ctx context.Context, path string, value any) error {
	if s.SetErr != nil {
		if err := s.SetErr(path); err != nil {
			return err
		}
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.values[path] = data
	p := path
	for {
		parent, leaf := splitPath(p)
		s.addChild(parent, leaf)
		if parent == "" {
			break
		}
		p = parent
	}
	s.mu.Unlock()

	s.notifyAll(path)
	return nil
}

func (s *TreeStore) Get(ctx context.Context, path string, out any) error {
	s.mu.Lock()
	data, ok := s.values[path]
	s.mu.Unlock()
	if !ok {
		return storage.ErrNotFound
	}
	return json.Unmarshal(data, out)
}

func (s *TreeStore) Delete(ctx context.Context, path string) error {
	if s.DeleteErr != nil {
		if err := s.DeleteErr(path); err != nil {
			return err
		}
	}

	s.mu.Lock()
	delete(s.values, path)
	for p := range s.values {
		if strings.HasPrefix(p, path+"/") {
			delete(s.values, p)
		}
	}
	delete(s.children, path)
	for p := range s.children {
		if strings.HasPrefix(p, path+"/") {
			delete(s.children, p)
		}
	}
	parent, leaf := splitPath(path)
	kids := s.children[parent]
	for i, name := range kids {
		if name == leaf {
			s.children[parent] = append(kids[:i], kids[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.notifyAll(path)
	return nil
}

func (s *TreeStore) Children(ctx context.Context, path string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.children[path]...), nil
}

func (s *TreeStore) Watch(ctx context.Context, path string) (<-chan struct{}, func(), error) {
	w := &watcher{path: path, notify: make(chan struct{}, 1)}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = w
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, id)
			s.mu.Unlock()
			close(w.notify)
		})
	}

	go func() {
		<-ctx.Done()
		cancel()
	}()

	return w.notify, cancel, nil
}

// mu must be held.
func (s *TreeStore) addChild(parent, leaf string) {
	for _, name := range s.children[parent] {
		if name == leaf {
			return
		}
	}
	s.children[parent] = append(s.children[parent], leaf)
}

func (s *TreeStore) notifyAll(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.watchers {
		if path != w.path && !strings.HasPrefix(path, w.path+"/") {
			continue
		}
		select {
		case w.notify <- struct{}{}:
		default:
		}
	}
}

func splitPath(path string) (parent, leaf string) {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}

// BlobStore is an in-memory storage.BlobStore that records every call
// so tests can assert, for instance, that a second sweep pass performs
// no further deletes.
type BlobStore struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	puts    []string
	deletes []string

	PutErr    func(path string) error
	DeleteErr func(path string) error
}

func NewBlobStore() *BlobStore {
	return &BlobStore{blobs: make(map[string][]byte)}
}

func (s *BlobStore) Put(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	if s.PutErr != nil {
		if err := s.PutErr(path); err != nil {
			return "", err
		}
	}
	s.mu.Lock()
	s.blobs[path] = append([]byte(nil), data...)
	s.puts = append(s.puts, path)
	s.mu.Unlock()
	return "mem://" + path, nil
}

func (s *BlobStore) Delete(ctx context.Context, path string) error {
	if s.DeleteErr != nil {
		if err := s.DeleteErr(path); err != nil {
			return err
		}
	}
	s.mu.Lock()
	delete(s.blobs, path)
	s.deletes = append(s.deletes, path)
	s.mu.Unlock()
	return nil
}

// Exists reports whether a blob is currently stored at path.
func (s *BlobStore) Exists(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blobs[path]
	return ok
}

// DeleteCalls returns the paths passed to Delete, in order.
func (s *BlobStore) DeleteCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deletes...)
}

// PutCalls returns the paths passed to Put, in order.
func (s *BlobStore) PutCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.puts...)
}
