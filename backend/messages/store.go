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

// Package messages owns the message records of private and group
// conversations. A private conversation is physically mirrored under
// both participants' nodes, so every write here is a dual write; group
// conversations live in a single tree.
package messages

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chatdocunet/chatdocu/backend/chat"
	"github.com/chatdocunet/chatdocu/backend/models"
	"github.com/chatdocunet/chatdocu/backend/storage"
)

var ErrBadChatPath = errors.New("messages: malformed chat path")

type Store struct {
	tree   storage.TreeStore
	blobs  storage.BlobStore
	ttl    time.Duration
	logger *zap.SugaredLogger
	now    func() time.Time
}

// New returns a message store. ttl is the lifetime of image media,
// after which the sweeper may reclaim it.
func New(logger *zap.SugaredLogger, tree storage.TreeStore, blobs storage.BlobStore, ttl time.Duration) *Store {
	return &Store{
		tree:   tree,
		blobs:  blobs,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// SendText writes a text message to the conversation at chatPath.
// Blank text is silently dropped; that is the intended behavior for a
// send button mashed on an empty input, not an error.
func (s *Store) SendText(ctx context.Context, chatPath, senderID, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	msg := models.Message{
		ID:        uuid.New().String(),
		SenderID:  senderID,
		Text:      text,
		Type:      models.TypeText,
		Timestamp: s.now().UnixMilli(),
	}
	return s.writeMessage(ctx, chatPath, &msg)
}

// SendImage uploads the media first and only then writes the message
// record, stamped with expiresAt = now + ttl. An upload failure aborts
// before any tree write, so there is never a record pointing at a blob
// that was not stored.
func (s *Store) SendImage(ctx context.Context, chatPath, senderID string, data []byte) (*models.Message, error) {
	ts := s.now()
	imageName := uuid.New().String() + ".jpg"
	storagePath := chat.ChatImagePath(chatPath, imageName)

	url, err := s.blobs.Put(ctx, storagePath, data, "image/jpeg")
	if err != nil {
		return nil, fmt.Errorf("failed to upload image: %w", err)
	}

	msg := models.Message{
		ID:          uuid.New().String(),
		SenderID:    senderID,
		ImageURL:    url,
		StoragePath: storagePath,
		ExpiresAt:   ts.Add(s.ttl).UnixMilli(),
		Type:        models.TypeImage,
		Timestamp:   ts.UnixMilli(),
	}
	if err := s.writeMessage(ctx, chatPath, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// writeMessage stores the record under every physical copy of the
// conversation. The two private mirrors are written concurrently with
// no ordering between them and no rollback: if one write fails the
// copies diverge until something repairs them.
func (s *Store) writeMessage(ctx context.Context, chatPath string, msg *models.Message) error {
	if !chat.IsPrivate(chatPath) {
		if err := s.tree.Set(ctx, chat.MessagePath(chatPath, msg.ID), msg); err != nil {
			return fmt.Errorf("failed to write message: %w", err)
		}
		return nil
	}

	u1, u2, ok := chat.PrivatePair(chatPath)
	if !ok {
		return ErrBadChatPath
	}

	paths := []string{
		chat.PrivateRoot + "/" + u1 + "/" + u2 + "/messages/" + msg.ID,
		chat.PrivateRoot + "/" + u2 + "/" + u1 + "/messages/" + msg.ID,
	}
	errc := make(chan error, len(paths))
	for _, p := range paths {
		p := p
		go func() { errc <- s.tree.Set(ctx, p, msg) }()
	}
	if err := errors.Join(<-errc, <-errc); err != nil {
		return fmt.Errorf("failed to write private message: %w", err)
	}
	return nil
}

// Messages returns a snapshot of the conversation, ascending by
// timestamp. Records that fail to parse are skipped.
func (s *Store) Messages(ctx context.Context, chatPath string) ([]models.Message, error) {
	base := chat.MessagesPath(chatPath)
	ids, err := s.tree.Children(ctx, base)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	list := make([]models.Message, 0, len(ids))
	for _, id := range ids {
		var msg models.Message
		err := s.tree.Get(ctx, base+"/"+id, &msg)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		} else if err != nil {
			s.logger.Debugf("skipping unreadable message %s/%s: %v", base, id, err)
			continue
		}
		msg.ID = id
		list = append(list, msg)
	}

	sort.Slice(list, func(i, j int) bool {
		if list[i].Timestamp != list[j].Timestamp {
			return list[i].Timestamp < list[j].Timestamp
		}
		return list[i].ID < list[j].ID
	})
	return list, nil
}

// Stream emits the conversation's message list on every backend
// change, suppressing emissions whose content equals the previous one.
// The watch listener is released on every exit path; cancelling ctx
// ends the stream and closes the channel.
func (s *Store) Stream(ctx context.Context, chatPath string) (<-chan []models.Message, error) {
	notify, cancel, err := s.tree.Watch(ctx, chat.MessagesPath(chatPath))
	if err != nil {
		return nil, fmt.Errorf("failed to watch messages: %w", err)
	}

	out := make(chan []models.Message, 1)
	go func() {
		defer close(out)
		defer cancel()

		var last []models.Message
		emitted := false
		emit := func() {
			list, err := s.Messages(ctx, chatPath)
			if err != nil {
				s.logger.Debugf("stream read for %s failed: %v", chatPath, err)
				return
			}
			if emitted && equalLists(last, list) {
				return
			}
			select {
			case out <- list:
				last = list
				emitted = true
			case <-ctx.Done():
			}
		}

		emit()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-notify:
				if !ok {
					return
				}
				emit()
			}
		}
	}()
	return out, nil
}

func equalLists(a, b []models.Message) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
