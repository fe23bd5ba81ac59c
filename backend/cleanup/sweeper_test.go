// Copyright (C) 2025 chatdocu.net <dev@chatdocu.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package cleanup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chatdocunet/chatdocu/backend/chat"
	"github.com/chatdocunet/chatdocu/backend/models"
	"github.com/chatdocunet/chatdocu/backend/storage"
	"github.com/chatdocunet/chatdocu/backend/storage/memory"
)

const testTTL = time.Hour // 3_600_000 ms

func newTestSweeper(now int64) (*Sweeper, *memory.TreeStore, *memory.BlobStore) {
	tree := memory.NewTreeStore()
	blobs := memory.NewBlobStore()
	s := NewSweeper(zap.NewNop().Sugar(), tree, blobs, testTTL)
	s.now = func() time.Time { return time.UnixMilli(now) }
	return s, tree, blobs
}

// seedImage stores an image message record plus its backing blob.
func seedImage(t *testing.T, tree *memory.TreeStore, blobs *memory.BlobStore, chatPath string, msg models.Message) {
	t.Helper()
	ctx := context.Background()
	if msg.StoragePath != "" {
		_, err := blobs.Put(ctx, msg.StoragePath, []byte("jpeg"), "image/jpeg")
		require.NoError(t, err)
	}
	if u1, u2, ok := chat.PrivatePair(chatPath); ok {
		require.NoError(t, tree.Set(ctx, chat.PrivateRoot+"/"+u1+"/"+u2+"/messages/"+msg.ID, msg))
		require.NoError(t, tree.Set(ctx, chat.PrivateRoot+"/"+u2+"/"+u1+"/messages/"+msg.ID, msg))
		return
	}
	require.NoError(t, tree.Set(ctx, chat.MessagePath(chatPath, msg.ID), msg))
}

func imageMsg(id string, ts int64, expiresAt int64, storagePath string) models.Message {
	return models.Message{
		ID:          id,
		SenderID:    "u1",
		ImageURL:    "mem://" + storagePath,
		StoragePath: storagePath,
		ExpiresAt:   expiresAt,
		Type:        models.TypeImage,
		Timestamp:   ts,
	}
}

func TestExpiryUsesTimestampFallback(t *testing.T) {
	// No expiresAt on the record: effective expiry is timestamp + ttl.
	// One millisecond early keeps the message; exactly at the boundary
	// reclaims it.
	for _, tc := range []struct {
		name    string
		now     int64
		expired bool
	}{
		{"just before", 1000 + testTTL.Milliseconds() - 1, false},
		{"at boundary", 1000 + testTTL.Milliseconds(), true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s, tree, blobs := newTestSweeper(tc.now)
			msg := imageMsg("m1", 1000, 0, "chatImages/g1/a.jpg")
			seedImage(t, tree, blobs, chat.GroupPath("g1"), msg)

			require.NoError(t, s.Run(context.Background()))
			assert.Equal(t, !tc.expired, blobs.Exists("chatImages/g1/a.jpg"))
		})
	}
}

func TestPrivateExpiredRemovedFromBothMirrors(t *testing.T) {
	ctx := context.Background()
	msg := imageMsg("m1", 1000, 1000+testTTL.Milliseconds(), "chatImages/u1_u2/a.jpg")

	// Pass well before expiry: untouched.
	s, tree, blobs := newTestSweeper(1_000_000)
	seedImage(t, tree, blobs, chat.PrivatePath("u1", "u2"), msg)
	require.NoError(t, s.Run(ctx))
	assert.True(t, blobs.Exists(msg.StoragePath))

	// Pass after expiry: blob gone, record gone from both mirrors.
	s.now = func() time.Time { return time.UnixMilli(3_601_001) }
	require.NoError(t, s.Run(ctx))
	assert.False(t, blobs.Exists(msg.StoragePath))

	var out models.Message
	err := tree.Get(ctx, "MensajesIndividuales/u1/u2/messages/m1", &out)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	err = tree.Get(ctx, "MensajesIndividuales/u2/u1/messages/m1", &out)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGroupExpiredRedactedInPlace(t *testing.T) {
	ctx := context.Background()
	s, tree, blobs := newTestSweeper(10 + testTTL.Milliseconds())
	msg := imageMsg("m1", 10, 0, "chatImages/g1/a.jpg")
	seedImage(t, tree, blobs, chat.GroupPath("g1"), msg)

	require.NoError(t, s.Run(ctx))

	assert.False(t, blobs.Exists("chatImages/g1/a.jpg"))

	var out models.Message
	require.NoError(t, tree.Get(ctx, "ChatsGrupales/g1/messages/m1", &out))
	assert.Equal(t, models.TypeText, out.Type)
	assert.Equal(t, models.ExpiredImageText, out.Text)
	assert.Empty(t, out.ImageURL)
	assert.Empty(t, out.StoragePath)
	assert.Zero(t, out.ExpiresAt)
	assert.Equal(t, "m1", out.ID)
	assert.Equal(t, int64(10), out.Timestamp)
}

func TestSecondPassDeletesNothing(t *testing.T) {
	ctx := context.Background()
	s, tree, blobs := newTestSweeper(testTTL.Milliseconds() + 1000)
	seedImage(t, tree, blobs, chat.GroupPath("g1"), imageMsg("m1", 10, 0, "chatImages/g1/a.jpg"))
	seedImage(t, tree, blobs, chat.PrivatePath("u1", "u2"), imageMsg("m2", 10, 0, "chatImages/u1_u2/b.jpg"))

	require.NoError(t, s.Run(ctx))
	first := len(blobs.DeleteCalls())
	assert.Equal(t, 2, first)

	// Redacted and deleted messages no longer match the expired-image
	// filter, so a second pass is a pure no-op.
	require.NoError(t, s.Run(ctx))
	assert.Equal(t, first, len(blobs.DeleteCalls()))
}

func TestSkipsNonImageAndPathlessMessages(t *testing.T) {
	ctx := context.Background()
	s, tree, blobs := newTestSweeper(testTTL.Milliseconds() + 1000)

	text := models.Message{ID: "m1", SenderID: "u1", Text: "hi", Type: models.TypeText, Timestamp: 10}
	require.NoError(t, tree.Set(ctx, "ChatsGrupales/g1/messages/m1", text))

	// Image variant without a storage path: legacy record, left alone.
	orphan := imageMsg("m2", 10, 0, "")
	require.NoError(t, tree.Set(ctx, "ChatsGrupales/g1/messages/m2", orphan))

	require.NoError(t, s.Run(ctx))
	assert.Empty(t, blobs.DeleteCalls())

	var out models.Message
	require.NoError(t, tree.Get(ctx, "ChatsGrupales/g1/messages/m1", &out))
	assert.Equal(t, "hi", out.Text)
	require.NoError(t, tree.Get(ctx, "ChatsGrupales/g1/messages/m2", &out))
	assert.Equal(t, models.TypeImage, out.Type)
}

func TestFailureOnOneMessageDoesNotStopThePass(t *testing.T) {
	ctx := context.Background()
	s, tree, blobs := newTestSweeper(testTTL.Milliseconds() + 1000)
	seedImage(t, tree, blobs, chat.GroupPath("g1"), imageMsg("m1", 10, 0, "chatImages/g1/a.jpg"))
	seedImage(t, tree, blobs, chat.GroupPath("g1"), imageMsg("m2", 20, 0, "chatImages/g1/b.jpg"))

	boom := errors.New("storage offline")
	blobs.DeleteErr = func(path string) error {
		if path == "chatImages/g1/a.jpg" {
			return boom
		}
		return nil
	}

	err := s.Run(ctx)
	require.Error(t, err)

	// m2 was processed despite m1 failing.
	assert.True(t, blobs.Exists("chatImages/g1/a.jpg"))
	assert.False(t, blobs.Exists("chatImages/g1/b.jpg"))

	var out models.Message
	require.NoError(t, tree.Get(ctx, "ChatsGrupales/g1/messages/m2", &out))
	assert.Equal(t, models.ExpiredImageText, out.Text)

	// Once the failure clears, the next pass picks m1 up again.
	blobs.DeleteErr = nil
	require.NoError(t, s.Run(ctx))
	assert.False(t, blobs.Exists("chatImages/g1/a.jpg"))
	require.NoError(t, tree.Get(ctx, "ChatsGrupales/g1/messages/m1", &out))
	assert.Equal(t, models.ExpiredImageText, out.Text)
}
