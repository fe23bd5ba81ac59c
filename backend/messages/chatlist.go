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

package messages

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/chatdocunet/chatdocu/backend/chat"
	"github.com/chatdocunet/chatdocu/backend/models"
	"github.com/chatdocunet/chatdocu/backend/storage"
)

// ChatItems builds the chat list for uid: every group the user belongs
// to plus every private conversation under the user's node, each
// summarized by its most recent message, newest conversations first.
func (s *Store) ChatItems(ctx context.Context, uid string) ([]models.ChatItem, error) {
	items, err := s.groupItems(ctx, uid)
	if err != nil {
		return nil, err
	}

	private, err := s.privateItems(ctx, uid)
	if err != nil {
		return nil, err
	}
	items = append(items, private...)

	sort.Slice(items, func(i, j int) bool {
		return items[i].Timestamp > items[j].Timestamp
	})
	return items, nil
}

func (s *Store) groupItems(ctx context.Context, uid string) ([]models.ChatItem, error) {
	groupIDs, err := s.tree.Children(ctx, chat.GroupRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}

	var items []models.ChatItem
	for _, gid := range groupIDs {
		members, err := s.tree.Children(ctx, chat.GroupPath(gid)+"/members")
		if err != nil {
			return nil, fmt.Errorf("failed to list members of %s: %w", gid, err)
		}
		if !contains(members, uid) {
			continue
		}

		item := models.ChatItem{ChatID: gid, Title: "Grupo", IsGroup: true}
		var name, photo string
		if err := s.tree.Get(ctx, chat.GroupPath(gid)+"/groupName", &name); err == nil && name != "" {
			item.Title = name
		}
		if err := s.tree.Get(ctx, chat.GroupPath(gid)+"/photoUrl", &photo); err == nil {
			item.PhotoURL = photo
		}
		s.fillLastMessage(ctx, &item, chat.GroupPath(gid))
		items = append(items, item)
	}
	return items, nil
}

func (s *Store) privateItems(ctx context.Context, uid string) ([]models.ChatItem, error) {
	partners, err := s.tree.Children(ctx, chat.PrivateRoot+"/"+uid)
	if err != nil {
		return nil, fmt.Errorf("failed to list private chats: %w", err)
	}

	var items []models.ChatItem
	for _, partner := range partners {
		item := models.ChatItem{ChatID: partner, Title: partner}
		var user models.User
		if err := s.tree.Get(ctx, chat.UsersRoot+"/"+partner, &user); err == nil {
			if user.Nombres != "" {
				item.Title = user.Nombres
			}
			item.PhotoURL = user.Imagen
		}
		// Read the user's own mirror; both mirrors agree absent a
		// partial write failure.
		s.fillLastMessage(ctx, &item, chat.PrivateRoot+"/"+uid+"/"+partner)
		items = append(items, item)
	}
	return items, nil
}

func (s *Store) fillLastMessage(ctx context.Context, item *models.ChatItem, chatPath string) {
	list, err := s.Messages(ctx, chatPath)
	if err != nil || len(list) == 0 {
		return
	}
	last := list[len(list)-1]
	item.LastMessage = last.Text
	item.Timestamp = last.Timestamp

	var sender models.User
	err = s.tree.Get(ctx, chat.UsersRoot+"/"+last.SenderID, &sender)
	if err == nil {
		item.LastSenderName = sender.Nombres
	} else if !errors.Is(err, storage.ErrNotFound) {
		s.logger.Debugf("failed to read sender %s: %v", last.SenderID, err)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
