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
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/chatdocunet/chatdocu/backend/groups"
)

type GroupHandler struct {
	store *groups.Store
}

func NewGroupHandler(store *groups.Store) *GroupHandler {
	return &GroupHandler{store: store}
}

// CreateGroup creates a group from a multipart form: "name", a
// comma-separated "members" list and an optional "photo" file. The
// caller becomes a member and the only admin.
func (h *GroupHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("user_id").(string)

	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	name := r.FormValue("name")
	if strings.TrimSpace(name) == "" {
		http.Error(w, "Group name is required", http.StatusBadRequest)
		return
	}

	var memberIDs []string
	for _, uid := range strings.Split(r.FormValue("members"), ",") {
		if uid = strings.TrimSpace(uid); uid != "" {
			memberIDs = append(memberIDs, uid)
		}
	}

	var photo []byte
	if file, _, err := r.FormFile("photo"); err == nil {
		defer file.Close()
		if photo, err = io.ReadAll(file); err != nil {
			http.Error(w, "Failed to read photo", http.StatusBadRequest)
			return
		}
	}

	groupID, err := h.store.Create(r.Context(), name, photo, memberIDs, userID)
	if err != nil {
		http.Error(w, "Failed to create group", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"group_id": groupID})
}

// GetGroup returns the group's name, photo, members and admins.
func (h *GroupHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	groupID := vars["groupId"]

	detail, err := h.store.Detail(r.Context(), groupID)
	if errors.Is(err, groups.ErrGroupNotFound) {
		http.Error(w, "Group not found", http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, "Failed to read group", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(detail)
}

// JoinGroup adds the caller to the group.
func (h *GroupHandler) JoinGroup(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("user_id").(string)
	vars := mux.Vars(r)
	groupID := vars["groupId"]

	if err := h.store.AddMember(r.Context(), groupID, userID); err != nil {
		http.Error(w, "Failed to join group", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "joined"})
}

// LeaveGroup removes the caller from the group. If the caller was the
// last admin, the store promotes the oldest remaining member.
func (h *GroupHandler) LeaveGroup(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("user_id").(string)
	vars := mux.Vars(r)
	groupID := vars["groupId"]

	if err := h.store.RemoveMember(r.Context(), groupID, userID); err != nil {
		http.Error(w, "Failed to leave group", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "left"})
}

// AddMember adds a user to the group.
func (h *GroupHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	groupID := vars["groupId"]

	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.store.AddMember(r.Context(), groupID, req.UserID); err != nil {
		http.Error(w, "Failed to add member", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "added"})
}

// RemoveMember removes a user from the group, dropping any admin role
// the user held.
func (h *GroupHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	groupID := vars["groupId"]
	memberID := vars["userId"]

	if err := h.store.RemoveMember(r.Context(), groupID, memberID); err != nil {
		http.Error(w, "Failed to remove member", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "removed"})
}

// PromoteAdmin grants a member the admin role. The UI only offers this
// for current members; membership is not re-checked here.
func (h *GroupHandler) PromoteAdmin(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	groupID := vars["groupId"]
	memberID := vars["userId"]

	if err := h.store.Promote(r.Context(), groupID, memberID); err != nil {
		http.Error(w, "Failed to promote", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "promoted"})
}

// DemoteAdmin revokes a member's admin role.
func (h *GroupHandler) DemoteAdmin(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	groupID := vars["groupId"]
	memberID := vars["userId"]

	if err := h.store.Demote(r.Context(), groupID, memberID); err != nil {
		http.Error(w, "Failed to demote", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "demoted"})
}
