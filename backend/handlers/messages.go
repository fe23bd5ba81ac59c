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

package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/chatdocunet/chatdocu/backend/chat"
	"github.com/chatdocunet/chatdocu/backend/messages"
	"github.com/chatdocunet/chatdocu/backend/middleware"
	"github.com/chatdocunet/chatdocu/backend/push"
)

// maxImageBytes caps uploaded chat images at 10 MB.
const maxImageBytes = 10 << 20

type MessageHandler struct {
	store    *messages.Store
	notifier *push.Notifier
	logger   *zap.SugaredLogger
}

func NewMessageHandler(logger *zap.SugaredLogger, store *messages.Store, notifier *push.Notifier) *MessageHandler {
	return &MessageHandler{store: store, notifier: notifier, logger: logger}
}

// SendPrivateText writes a text message into both mirrors of the 1:1
// conversation with the addressed user.
func (h *MessageHandler) SendPrivateText(w http.ResponseWriter, r *http.Request) {
	senderID := r.Context().Value("user_id").(string)
	vars := mux.Vars(r)
	otherID := vars["userId"]

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	chatPath := chat.PrivatePath(senderID, otherID)
	if err := h.store.SendText(r.Context(), chatPath, senderID, req.Text); err != nil {
		http.Error(w, "Failed to send message", http.StatusInternalServerError)
		return
	}

	h.notify(r, otherID, req.Text)

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"status": "sent"})
}

// SendPrivateImage uploads the image and writes the image message into
// both mirrors. The record carries the media expiry stamp.
func (h *MessageHandler) SendPrivateImage(w http.ResponseWriter, r *http.Request) {
	senderID := r.Context().Value("user_id").(string)
	vars := mux.Vars(r)
	otherID := vars["userId"]

	data, ok := readImage(w, r)
	if !ok {
		return
	}

	chatPath := chat.PrivatePath(senderID, otherID)
	msg, err := h.store.SendImage(r.Context(), chatPath, senderID, data)
	if err != nil {
		http.Error(w, "Failed to send image", http.StatusInternalServerError)
		return
	}

	h.notify(r, otherID, "📷 Imagen")

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{
		"message_id": msg.ID,
		"image_url":  msg.ImageURL,
		"status":     "sent",
	})
}

// GetPrivateMessages returns the current snapshot of the 1:1
// conversation with the addressed user, oldest first.
func (h *MessageHandler) GetPrivateMessages(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("user_id").(string)
	vars := mux.Vars(r)
	otherID := vars["userId"]

	list, err := h.store.Messages(r.Context(), chat.PrivatePath(userID, otherID))
	if err != nil {
		http.Error(w, "Failed to retrieve messages", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"messages": list,
		"count":    len(list),
	})
}

// SendGroupText writes a text message into a group conversation.
func (h *MessageHandler) SendGroupText(w http.ResponseWriter, r *http.Request) {
	senderID := r.Context().Value("user_id").(string)
	vars := mux.Vars(r)
	groupID := vars["groupId"]

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.store.SendText(r.Context(), chat.GroupPath(groupID), senderID, req.Text); err != nil {
		http.Error(w, "Failed to send message", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"status": "sent"})
}

// SendGroupImage uploads the image and writes the image message into
// the group conversation.
func (h *MessageHandler) SendGroupImage(w http.ResponseWriter, r *http.Request) {
	senderID := r.Context().Value("user_id").(string)
	vars := mux.Vars(r)
	groupID := vars["groupId"]

	data, ok := readImage(w, r)
	if !ok {
		return
	}

	msg, err := h.store.SendImage(r.Context(), chat.GroupPath(groupID), senderID, data)
	if err != nil {
		http.Error(w, "Failed to send image", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{
		"message_id": msg.ID,
		"image_url":  msg.ImageURL,
		"status":     "sent",
	})
}

// GetGroupMessages returns the current snapshot of a group
// conversation, oldest first.
func (h *MessageHandler) GetGroupMessages(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	groupID := vars["groupId"]

	list, err := h.store.Messages(r.Context(), chat.GroupPath(groupID))
	if err != nil {
		http.Error(w, "Failed to retrieve messages", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"messages": list,
		"count":    len(list),
	})
}

// GetChats returns the authenticated user's chat list, newest first.
func (h *MessageHandler) GetChats(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("user_id").(string)

	items, err := h.store.ChatItems(r.Context(), userID)
	if err != nil {
		http.Error(w, "Failed to retrieve chat list", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"chats": items,
		"count": len(items),
	})
}

// notify pushes a new-message notification to the recipient.
// Best-effort: a failure is logged, the send already succeeded.
func (h *MessageHandler) notify(r *http.Request, recipientID, body string) {
	if h.notifier == nil {
		return
	}
	title := "Nuevo mensaje"
	if claims, ok := middleware.GetClaims(r); ok && claims.Name != "" {
		title = claims.Name
	}
	senderID, _ := middleware.GetUserID(r)
	err := h.notifier.NotifyUser(r.Context(), recipientID, title, body, map[string]string{
		"sender_id": senderID,
	})
	if err != nil {
		h.logger.Warnf("push to %s failed: %v", recipientID, err)
	}
}

// readImage pulls the "image" file out of a multipart upload. Replies
// with the appropriate error status itself when ok is false.
func readImage(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)
	file, _, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "Missing image upload", http.StatusBadRequest)
		return nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Failed to read image", http.StatusBadRequest)
		return nil, false
	}
	if len(data) == 0 {
		http.Error(w, "Empty image upload", http.StatusBadRequest)
		return nil, false
	}
	return data, true
}
