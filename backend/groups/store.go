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

// Package groups manages group chats: creation, membership and admin
// roles. A group with members always keeps at least one admin; any
// mutation that empties the admin set promotes the oldest remaining
// member.
package groups

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chatdocunet/chatdocu/backend/chat"
	"github.com/chatdocunet/chatdocu/backend/models"
	"github.com/chatdocunet/chatdocu/backend/storage"
)

var ErrGroupNotFound = errors.New("groups: group not found")

type Store struct {
	tree   storage.TreeStore
	blobs  storage.BlobStore
	logger *zap.SugaredLogger
}

func New(logger *zap.SugaredLogger, tree storage.TreeStore, blobs storage.BlobStore) *Store {
	return &Store{tree: tree, blobs: blobs, logger: logger}
}

// Create makes a new group with the creator as its only admin. The
// creator is always a member, whether or not listed in memberIDs. An
// optional photo is uploaded before the group node is written.
func (s *Store) Create(ctx context.Context, name string, photo []byte, memberIDs []string, creatorID string) (string, error) {
	groupID := uuid.New().String()

	photoURL := ""
	if len(photo) > 0 {
		url, err := s.blobs.Put(ctx, chat.GroupPhotoPath(groupID), photo, "image/jpeg")
		if err != nil {
			return "", fmt.Errorf("failed to upload group photo: %w", err)
		}
		photoURL = url
	}

	base := chat.GroupPath(groupID)
	if err := s.tree.Set(ctx, base+"/groupName", name); err != nil {
		return "", fmt.Errorf("failed to create group: %w", err)
	}
	if err := s.tree.Set(ctx, base+"/photoUrl", photoURL); err != nil {
		return "", fmt.Errorf("failed to set group photo: %w", err)
	}

	seen := map[string]bool{}
	for _, uid := range append(append([]string{}, memberIDs...), creatorID) {
		if uid == "" || seen[uid] {
			continue
		}
		seen[uid] = true
		if err := s.tree.Set(ctx, base+"/members/"+uid, true); err != nil {
			return "", fmt.Errorf("failed to add member %s: %w", uid, err)
		}
	}
	if err := s.tree.Set(ctx, base+"/admins/"+creatorID, true); err != nil {
		return "", fmt.Errorf("failed to set creator admin: %w", err)
	}

	s.logger.Infof("created group %s (%d members)", groupID, len(seen))
	return groupID, nil
}

// Detail reads the group's current state.
func (s *Store) Detail(ctx context.Context, groupID string) (*models.GroupDetail, error) {
	base := chat.GroupPath(groupID)

	var name string
	err := s.tree.Get(ctx, base+"/groupName", &name)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrGroupNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to read group: %w", err)
	}

	var photo string
	if err := s.tree.Get(ctx, base+"/photoUrl", &photo); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to read group photo: %w", err)
	}

	members, err := s.tree.Children(ctx, base+"/members")
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	admins, err := s.tree.Children(ctx, base+"/admins")
	if err != nil {
		return nil, fmt.Errorf("failed to list admins: %w", err)
	}

	return &models.GroupDetail{
		GroupID:   groupID,
		GroupName: name,
		PhotoURL:  photo,
		Members:   members,
		Admins:    admins,
	}, nil
}

// AddMember adds uid to the group. No admin side effect.
func (s *Store) AddMember(ctx context.Context, groupID, uid string) error {
	if err := s.tree.Set(ctx, chat.GroupPath(groupID)+"/members/"+uid, true); err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

// RemoveMember removes uid from the group, dropping any admin role it
// held, then repairs the admin set if the removal emptied it.
func (s *Store) RemoveMember(ctx context.Context, groupID, uid string) error {
	base := chat.GroupPath(groupID)
	if err := s.tree.Delete(ctx, base+"/members/"+uid); err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	if err := s.tree.Delete(ctx, base+"/admins/"+uid); err != nil {
		return fmt.Errorf("failed to remove admin flag: %w", err)
	}
	return s.ensureAdmin(ctx, groupID)
}

// Promote grants uid the admin role. Callers are expected to pass a
// current member; membership is not re-checked here.
func (s *Store) Promote(ctx context.Context, groupID, uid string) error {
	if err := s.tree.Set(ctx, chat.GroupPath(groupID)+"/admins/"+uid, true); err != nil {
		return fmt.Errorf("failed to promote: %w", err)
	}
	return nil
}

// Demote revokes uid's admin role, then repairs the admin set if the
// demotion emptied it.
func (s *Store) Demote(ctx context.Context, groupID, uid string) error {
	if err := s.tree.Delete(ctx, chat.GroupPath(groupID)+"/admins/"+uid); err != nil {
		return fmt.Errorf("failed to demote: %w", err)
	}
	return s.ensureAdmin(ctx, groupID)
}

// ensureAdmin re-reads the admin set and, if it is empty while members
// remain, promotes the first member in iteration order. The re-read
// and the promotion are separate writes; a concurrent mutation in
// between can slip through, which is accepted - the next mutation runs
// the same repair.
func (s *Store) ensureAdmin(ctx context.Context, groupID string) error {
	base := chat.GroupPath(groupID)

	admins, err := s.tree.Children(ctx, base+"/admins")
	if err != nil {
		return fmt.Errorf("failed to list admins: %w", err)
	}
	if len(admins) > 0 {
		return nil
	}

	members, err := s.tree.Children(ctx, base+"/members")
	if err != nil {
		return fmt.Errorf("failed to list members: %w", err)
	}
	if len(members) == 0 {
		return nil
	}

	oldest := members[0]
	if err := s.tree.Set(ctx, base+"/admins/"+oldest, true); err != nil {
		return fmt.Errorf("failed to promote %s: %w", oldest, err)
	}
	s.logger.Infof("group %s left without admins, promoted %s", groupID, oldest)
	return nil
}
