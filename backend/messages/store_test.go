// Copyright (C) 2025 chatdocu.net <dev@chatdocu.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package messages

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chatdocunet/chatdocu/backend/chat"
	"github.com/chatdocunet/chatdocu/backend/models"
	"github.com/chatdocunet/chatdocu/backend/storage/memory"
)

const testTTL = 48 * time.Hour

func newTestStore() (*Store, *memory.TreeStore, *memory.BlobStore) {
	tree := memory.NewTreeStore()
	blobs := memory.NewBlobStore()
	s := New(zap.NewNop().Sugar(), tree, blobs, testTTL)
	return s, tree, blobs
}

func TestSendTextBlankIsNoop(t *testing.T) {
	s, tree, _ := newTestStore()
	ctx := context.Background()
	path := chat.PrivatePath("u1", "u2")

	require.NoError(t, s.SendText(ctx, path, "u1", ""))
	require.NoError(t, s.SendText(ctx, path, "u1", "   \t\n"))

	for _, p := range []string{"MensajesIndividuales/u1/u2/messages", "MensajesIndividuales/u2/u1/messages"} {
		ids, err := tree.Children(ctx, p)
		require.NoError(t, err)
		assert.Empty(t, ids)
	}
}

func TestSendTextWritesBothMirrors(t *testing.T) {
	s, tree, _ := newTestStore()
	ctx := context.Background()
	s.now = func() time.Time { return time.UnixMilli(42000) }

	require.NoError(t, s.SendText(ctx, chat.PrivatePath("u2", "u1"), "u1", "hello"))

	ids, err := tree.Children(ctx, "MensajesIndividuales/u1/u2/messages")
	require.NoError(t, err)
	require.Len(t, ids, 1)

	var a, b models.Message
	require.NoError(t, tree.Get(ctx, "MensajesIndividuales/u1/u2/messages/"+ids[0], &a))
	require.NoError(t, tree.Get(ctx, "MensajesIndividuales/u2/u1/messages/"+ids[0], &b))
	assert.Equal(t, a, b)
	assert.Equal(t, "u1", a.SenderID)
	assert.Equal(t, "hello", a.Text)
	assert.Equal(t, models.TypeText, a.Type)
	assert.Equal(t, int64(42000), a.Timestamp)
	assert.Zero(t, a.ExpiresAt)
}

func TestSendTextGroupSingleWrite(t *testing.T) {
	s, tree, _ := newTestStore()
	ctx := context.Background()

	require.NoError(t, s.SendText(ctx, chat.GroupPath("g1"), "u1", "hi"))

	ids, err := tree.Children(ctx, "ChatsGrupales/g1/messages")
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestSendTextPartialFailureDiverges(t *testing.T) {
	s, tree, _ := newTestStore()
	ctx := context.Background()

	boom := errors.New("write rejected")
	tree.SetErr = func(path string) error {
		if strings.HasPrefix(path, "MensajesIndividuales/u2/") {
			return boom
		}
		return nil
	}

	err := s.SendText(ctx, chat.PrivatePath("u1", "u2"), "u1", "hello")
	require.ErrorIs(t, err, boom)

	// One mirror got the message, the other did not: the copies have
	// diverged and a verifier must be able to see it.
	left, err := tree.Children(ctx, "MensajesIndividuales/u1/u2/messages")
	require.NoError(t, err)
	right, err := tree.Children(ctx, "MensajesIndividuales/u2/u1/messages")
	require.NoError(t, err)
	assert.Len(t, left, 1)
	assert.Empty(t, right)
}

func TestSendImageRecord(t *testing.T) {
	s, tree, blobs := newTestStore()
	ctx := context.Background()
	now := time.UnixMilli(1000)
	s.now = func() time.Time { return now }

	msg, err := s.SendImage(ctx, chat.PrivatePath("u1", "u2"), "u1", []byte("jpeg-bytes"))
	require.NoError(t, err)

	assert.Equal(t, models.TypeImage, msg.Type)
	assert.Empty(t, msg.Text)
	assert.True(t, strings.HasPrefix(msg.StoragePath, "chatImages/u1_u2/"))
	assert.True(t, strings.HasSuffix(msg.StoragePath, ".jpg"))
	assert.Equal(t, "mem://"+msg.StoragePath, msg.ImageURL)
	assert.Equal(t, int64(1000), msg.Timestamp)
	assert.Equal(t, now.Add(testTTL).UnixMilli(), msg.ExpiresAt)
	assert.True(t, blobs.Exists(msg.StoragePath))

	var stored models.Message
	require.NoError(t, tree.Get(ctx, "MensajesIndividuales/u2/u1/messages/"+msg.ID, &stored))
	assert.Equal(t, msg.StoragePath, stored.StoragePath)
}

func TestSendImageUploadFailureWritesNothing(t *testing.T) {
	s, tree, blobs := newTestStore()
	ctx := context.Background()

	boom := errors.New("upload rejected")
	blobs.PutErr = func(string) error { return boom }

	_, err := s.SendImage(ctx, chat.PrivatePath("u1", "u2"), "u1", []byte("x"))
	require.ErrorIs(t, err, boom)

	ids, err := tree.Children(ctx, "MensajesIndividuales/u1/u2/messages")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestMessagesSortedByTimestamp(t *testing.T) {
	s, tree, _ := newTestStore()
	ctx := context.Background()
	path := chat.GroupPath("g1")

	for i, ts := range []int64{3000, 1000, 2000} {
		msg := models.Message{
			ID:        string(rune('a' + i)),
			SenderID:  "u1",
			Text:      "m",
			Type:      models.TypeText,
			Timestamp: ts,
		}
		require.NoError(t, tree.Set(ctx, chat.MessagePath(path, msg.ID), msg))
	}

	list, err := s.Messages(ctx, path)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, int64(1000), list[0].Timestamp)
	assert.Equal(t, int64(2000), list[1].Timestamp)
	assert.Equal(t, int64(3000), list[2].Timestamp)
}

func TestStreamEmitsOnChangeAndDedupes(t *testing.T) {
	s, tree, _ := newTestStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	path := chat.PrivatePath("u1", "u2")

	stream, err := s.Stream(ctx, path)
	require.NoError(t, err)

	// Initial snapshot is always emitted, even when empty.
	assert.Empty(t, recvList(t, stream))

	require.NoError(t, s.SendText(ctx, path, "u1", "hello"))
	list := recvList(t, stream)
	require.Len(t, list, 1)
	assert.Equal(t, "hello", list[0].Text)

	// Rewriting the identical record changes nothing; the stream must
	// stay quiet.
	require.NoError(t, tree.Set(ctx, chat.MessagePath(path, list[0].ID), list[0]))
	select {
	case got, ok := <-stream:
		require.True(t, ok, "stream closed early")
		t.Fatalf("unexpected emission: %v", got)
	case <-time.After(100 * time.Millisecond):
	}

	cancel()
	requireClosed(t, stream)
}

func TestChatItems(t *testing.T) {
	s, tree, _ := newTestStore()
	ctx := context.Background()

	require.NoError(t, tree.Set(ctx, chat.UsersRoot+"/u2", models.User{Nombres: "Bea"}))
	require.NoError(t, tree.Set(ctx, chat.GroupPath("g1")+"/groupName", "Equipo"))
	require.NoError(t, tree.Set(ctx, chat.GroupPath("g1")+"/members/u1", true))
	require.NoError(t, tree.Set(ctx, chat.GroupPath("g1")+"/members/u2", true))

	s.now = func() time.Time { return time.UnixMilli(1000) }
	require.NoError(t, s.SendText(ctx, chat.PrivatePath("u1", "u2"), "u2", "hola"))
	s.now = func() time.Time { return time.UnixMilli(2000) }
	require.NoError(t, s.SendText(ctx, chat.GroupPath("g1"), "u2", "al grupo"))

	items, err := s.ChatItems(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, items, 2)

	// Newest conversation first.
	assert.True(t, items[0].IsGroup)
	assert.Equal(t, "Equipo", items[0].Title)
	assert.Equal(t, "al grupo", items[0].LastMessage)
	assert.Equal(t, "Bea", items[0].LastSenderName)

	assert.False(t, items[1].IsGroup)
	assert.Equal(t, "Bea", items[1].Title)
	assert.Equal(t, "hola", items[1].LastMessage)

	// u3 is in neither conversation.
	items, err = s.ChatItems(ctx, "u3")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func recvList(t *testing.T, stream <-chan []models.Message) []models.Message {
	t.Helper()
	select {
	case list, ok := <-stream:
		require.True(t, ok, "stream closed early")
		return list
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for emission")
		return nil
	}
}

func requireClosed(t *testing.T, stream <-chan []models.Message) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-stream:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("stream did not close after cancellation")
		}
	}
}
