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
	"net/http"

	"github.com/gorilla/mux"

	"github.com/chatdocunet/chatdocu/backend/storage/postgres"
)

// MediaHandler serves uploaded blobs back out over HTTP. This is the
// other half of BlobStore.Put returning MEDIA_BASE_URL/{path}.
type MediaHandler struct {
	blobs *postgres.BlobStore
}

func NewMediaHandler(blobs *postgres.BlobStore) *MediaHandler {
	return &MediaHandler{blobs: blobs}
}

// ServeBlob streams the blob at the request path. Expired media has
// been deleted by the sweeper and comes back 404.
func (h *MediaHandler) ServeBlob(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	path := vars["path"]

	data, contentType, err := h.blobs.Get(r.Context(), path)
	if err != nil {
		http.Error(w, "Media not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}
