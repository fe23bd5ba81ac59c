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

// Package users keeps the profile records under Usuarios/{uid}.
// Account lifecycle belongs to the identity provider; this store only
// mirrors profile data and the per-device push token.
package users

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/chatdocunet/chatdocu/backend/chat"
	"github.com/chatdocunet/chatdocu/backend/models"
	"github.com/chatdocunet/chatdocu/backend/storage"
)

var ErrUserNotFound = errors.New("users: user not found")

type Store struct {
	tree   storage.TreeStore
	blobs  storage.BlobStore
	logger *zap.SugaredLogger
}

func New(logger *zap.SugaredLogger, tree storage.TreeStore, blobs storage.BlobStore) *Store {
	return &Store{tree: tree, blobs: blobs, logger: logger}
}

// Save writes the whole user record.
func (s *Store) Save(ctx context.Context, user models.User) error {
	if err := s.tree.Set(ctx, chat.UsersRoot+"/"+user.UID, user); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// Get returns the user record for uid.
func (s *Store) Get(ctx context.Context, uid string) (*models.User, error) {
	var user models.User
	err := s.tree.Get(ctx, chat.UsersRoot+"/"+uid, &user)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrUserNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to read user: %w", err)
	}
	user.UID = uid
	return &user, nil
}

// List returns all registered users in registration order.
func (s *Store) List(ctx context.Context) ([]models.User, error) {
	uids, err := s.tree.Children(ctx, chat.UsersRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	list := make([]models.User, 0, len(uids))
	for _, uid := range uids {
		var user models.User
		err := s.tree.Get(ctx, chat.UsersRoot+"/"+uid, &user)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		} else if err != nil {
			s.logger.Debugf("skipping unreadable user %s: %v", uid, err)
			continue
		}
		user.UID = uid
		list = append(list, user)
	}
	return list, nil
}

// UpdateProfile changes the display name and, when photo is non-empty,
// replaces the profile image at its fixed blob path.
func (s *Store) UpdateProfile(ctx context.Context, uid, name string, photo []byte) error {
	user, err := s.Get(ctx, uid)
	if err != nil {
		return err
	}

	if len(photo) > 0 {
		url, err := s.blobs.Put(ctx, chat.ProfilePhotoPath(uid), photo, "image/jpeg")
		if err != nil {
			return fmt.Errorf("failed to upload profile photo: %w", err)
		}
		user.Imagen = url
	}
	if name != "" {
		user.Nombres = name
	}
	return s.Save(ctx, *user)
}

// SetFCMToken records the user's push token. One token per user; a
// new device simply overwrites the previous one.
func (s *Store) SetFCMToken(ctx context.Context, uid, token string) error {
	user, err := s.Get(ctx, uid)
	if err != nil {
		return err
	}
	user.FCMToken = token
	return s.Save(ctx, *user)
}
