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

// Package chat maps conversations onto tree and blob storage paths.
// Everything here is a pure function; every component that touches a
// private conversation must go through PrivatePath so both sides
// resolve to the same node.
package chat

import "strings"

// Tree roots.
const (
	UsersRoot   = "Usuarios"
	PrivateRoot = "MensajesIndividuales"
	GroupRoot   = "ChatsGrupales"
)

// Blob storage roots.
const (
	ChatImagesRoot    = "chatImages"
	GroupImagesRoot   = "imagenesGrupo"
	ProfileImagesRoot = "imagenesPerfil"
)

// PairID returns the canonical, order-independent identifier for a 1:1
// conversation: min(a,b) + "_" + max(a,b).
func PairID(a, b string) string {
	if a < b {
		return a + "_" + b
	}
	return b + "_" + a
}

// PrivatePath returns the canonical tree path of the private
// conversation between a and b.
func PrivatePath(a, b string) string {
	if a < b {
		return PrivateRoot + "/" + a + "/" + b
	}
	return PrivateRoot + "/" + b + "/" + a
}

// GroupPath returns the tree path of a group conversation.
func GroupPath(groupID string) string {
	return GroupRoot + "/" + groupID
}

// IsPrivate reports whether chatPath addresses a private conversation.
func IsPrivate(chatPath string) bool {
	return strings.HasPrefix(chatPath, PrivateRoot+"/")
}

// PrivatePair extracts the two participant uids from a private chat
// path. ok is false when the path is not a well-formed private path.
func PrivatePair(chatPath string) (u1, u2 string, ok bool) {
	rest, found := strings.CutPrefix(chatPath, PrivateRoot+"/")
	if !found {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// MessagesPath returns the messages subtree of a conversation.
func MessagesPath(chatPath string) string {
	return chatPath + "/messages"
}

// MessagePath returns the node of a single message within a
// conversation.
func MessagePath(chatPath, msgID string) string {
	return chatPath + "/messages/" + msgID
}

// ChatImagePath returns the blob path for an uploaded chat image. The
// owner segment is the canonical pair id for private conversations or
// the group id for groups.
func ChatImagePath(chatPath, imageName string) string {
	if u1, u2, ok := PrivatePair(chatPath); ok {
		return ChatImagesRoot + "/" + PairID(u1, u2) + "/" + imageName
	}
	return ChatImagesRoot + "/" + strings.TrimPrefix(chatPath, GroupRoot+"/") + "/" + imageName
}

// GroupPhotoPath returns the blob path of a group's photo.
func GroupPhotoPath(groupID string) string {
	return GroupImagesRoot + "/" + groupID
}

// ProfilePhotoPath returns the blob path of a user's profile photo.
func ProfilePhotoPath(uid string) string {
	return ProfileImagesRoot + "/" + uid + "/profile.jpg"
}
