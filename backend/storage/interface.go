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

package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by TreeStore.Get when no value exists at the
// requested path.
var ErrNotFound = errors.New("storage: not found")

// TreeStore is the managed key-value tree the chat data lives in.
// Paths are slash-separated segments ("ChatsGrupales/g1/messages/m1").
// Writes are atomic per path; nothing here coordinates writes across
// paths - callers that need multi-path consistency own that problem.
type TreeStore interface {
	// Set marshals value as JSON and writes it at path, creating any
	// intermediate nodes.
	Set(ctx context.Context, path string, value any) error

	// Get unmarshals the value stored at path into out. Returns
	// ErrNotFound when the path holds no value.
	Get(ctx context.Context, path string, out any) error

	// Delete removes the value at path and everything below it.
	// Deleting an absent path is not an error.
	Delete(ctx context.Context, path string) error

	// Children returns the immediate child names under path in
	// insertion order (first write wins the earliest slot). An absent
	// path yields an empty slice.
	Children(ctx context.Context, path string) ([]string, error)

	// Watch notifies on every change at or below path. The returned
	// channel is closed and the underlying listener released when the
	// cancel function is called or ctx is done.
	Watch(ctx context.Context, path string) (<-chan struct{}, func(), error)
}

// BlobStore holds uploaded media. Put returns the public URL of the
// stored blob; Delete removes it by path.
type BlobStore interface {
	Put(ctx context.Context, path string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, path string) error
}
