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

// Package cleanup reclaims expired image media. A sweep pass walks
// every conversation, deletes each expired blob and then removes or
// redacts the message record that pointed at it. Passes are
// best-effort and idempotent: whatever a pass leaves behind is still
// in the expired state and gets picked up by the next one.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chatdocunet/chatdocu/backend/chat"
	"github.com/chatdocunet/chatdocu/backend/models"
	"github.com/chatdocunet/chatdocu/backend/storage"
)

type Sweeper struct {
	tree   storage.TreeStore
	blobs  storage.BlobStore
	ttl    time.Duration
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewSweeper(logger *zap.SugaredLogger, tree storage.TreeStore, blobs storage.BlobStore, ttl time.Duration) *Sweeper {
	return &Sweeper{
		tree:   tree,
		blobs:  blobs,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// Run executes one sweep pass. The clock is read once up front so the
// whole pass judges expiry against a single instant. A failure on one
// message never stops the scan; the returned error only summarizes how
// many messages were left unprocessed.
func (s *Sweeper) Run(ctx context.Context) error {
	now := s.now().UnixMilli()
	failed := 0

	if err := s.sweepPrivate(ctx, now, &failed); err != nil {
		return err
	}
	if err := s.sweepGroups(ctx, now, &failed); err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("sweep pass left %d messages unprocessed", failed)
	}
	return nil
}

func (s *Sweeper) sweepPrivate(ctx context.Context, now int64, failed *int) error {
	uids, err := s.tree.Children(ctx, chat.PrivateRoot)
	if err != nil {
		return fmt.Errorf("failed to enumerate private chats: %w", err)
	}
	for _, u1 := range uids {
		partners, err := s.tree.Children(ctx, chat.PrivateRoot+"/"+u1)
		if err != nil {
			return fmt.Errorf("failed to enumerate chats of %s: %w", u1, err)
		}
		for _, u2 := range partners {
			chatPath := chat.PrivateRoot + "/" + u1 + "/" + u2
			s.sweepConversation(ctx, now, chatPath, failed, func(msgID string) error {
				// Expired private messages vanish from both mirrors.
				if err := s.tree.Delete(ctx, chat.PrivateRoot+"/"+u1+"/"+u2+"/messages/"+msgID); err != nil {
					return err
				}
				return s.tree.Delete(ctx, chat.PrivateRoot+"/"+u2+"/"+u1+"/messages/"+msgID)
			})
		}
	}
	return nil
}

func (s *Sweeper) sweepGroups(ctx context.Context, now int64, failed *int) error {
	groupIDs, err := s.tree.Children(ctx, chat.GroupRoot)
	if err != nil {
		return fmt.Errorf("failed to enumerate groups: %w", err)
	}
	for _, gid := range groupIDs {
		chatPath := chat.GroupPath(gid)
		s.sweepConversation(ctx, now, chatPath, failed, func(msgID string) error {
			// Group messages are redacted in place: same id, same
			// timestamp, placeholder text, image fields gone.
			var msg models.Message
			if err := s.tree.Get(ctx, chat.MessagePath(chatPath, msgID), &msg); err != nil {
				return err
			}
			msg.ID = msgID
			msg.Redact()
			return s.tree.Set(ctx, chat.MessagePath(chatPath, msgID), &msg)
		})
	}
	return nil
}

// sweepConversation scans one conversation's messages and, for each
// expired image, deletes the blob and then applies mutate to the
// record. The blob goes first: a half-done message keeps its (now
// dangling) record, still matches the expired-image filter, and is
// retried on the next pass.
func (s *Sweeper) sweepConversation(ctx context.Context, now int64, chatPath string, failed *int, mutate func(msgID string) error) {
	base := chat.MessagesPath(chatPath)
	ids, err := s.tree.Children(ctx, base)
	if err != nil {
		s.logger.Warnf("failed to scan %s: %v", base, err)
		*failed++
		return
	}

	for _, id := range ids {
		var msg models.Message
		err := s.tree.Get(ctx, base+"/"+id, &msg)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		} else if err != nil {
			s.logger.Debugf("skipping unreadable message %s/%s: %v", base, id, err)
			continue
		}
		if !msg.IsImage() || msg.StoragePath == "" {
			continue
		}
		if now < msg.EffectiveExpiry(s.ttl) {
			continue
		}

		if err := s.blobs.Delete(ctx, msg.StoragePath); err != nil {
			s.logger.Warnf("failed to delete blob %s: %v", msg.StoragePath, err)
			*failed++
			continue
		}
		if err := mutate(id); err != nil {
			s.logger.Warnf("failed to rewrite message %s/%s: %v", base, id, err)
			*failed++
			continue
		}
		s.logger.Infof("reclaimed expired image %s (message %s)", msg.StoragePath, id)
	}
}
