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

	"github.com/gorilla/mux"

	"github.com/chatdocunet/chatdocu/backend/models"
	"github.com/chatdocunet/chatdocu/backend/users"
)

type UserHandler struct {
	store *users.Store
}

func NewUserHandler(store *users.Store) *UserHandler {
	return &UserHandler{store: store}
}

// RegisterUser writes the caller's profile record. The identity
// provider owns the account; this only mirrors the profile into the
// tree after sign-up.
func (h *UserHandler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("user_id").(string)

	var req struct {
		Nombres string `json:"nombres"`
		Email   string `json:"email"`
		Imagen  string `json:"imagen"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user := models.User{
		UID:     userID,
		Nombres: req.Nombres,
		Email:   req.Email,
		Imagen:  req.Imagen,
	}
	if err := h.store.Save(r.Context(), user); err != nil {
		http.Error(w, "Failed to save user", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"status": "registered"})
}

// ListUsers returns all registered users (the contact list).
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.List(r.Context())
	if err != nil {
		http.Error(w, "Failed to list users", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"users": list,
		"count": len(list),
	})
}

// GetUser returns one user's profile.
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	uid := vars["userId"]

	user, err := h.store.Get(r.Context(), uid)
	if errors.Is(err, users.ErrUserNotFound) {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, "Failed to read user", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

// UpdateProfile changes the caller's display name and, optionally,
// profile photo (multipart form: "nombres", file "photo").
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("user_id").(string)

	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	var photo []byte
	if file, _, err := r.FormFile("photo"); err == nil {
		defer file.Close()
		if photo, err = io.ReadAll(file); err != nil {
			http.Error(w, "Failed to read photo", http.StatusBadRequest)
			return
		}
	}

	err := h.store.UpdateProfile(r.Context(), userID, r.FormValue("nombres"), photo)
	if errors.Is(err, users.ErrUserNotFound) {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, "Failed to update profile", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "updated"})
}

// SetFCMToken stores the caller's push token. One token per user; a
// new device overwrites the old one.
func (h *UserHandler) SetFCMToken(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("user_id").(string)

	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	err := h.store.SetFCMToken(r.Context(), userID, req.Token)
	if errors.Is(err, users.ErrUserNotFound) {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, "Failed to save token", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "saved"})
}
