// Copyright (C) 2025 chatdocu.net <dev@chatdocu.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package models

import "time"

// Message kinds as stored in the "type" field.
const (
	TypeText  = "text"
	TypeImage = "image"
)

// ExpiredImageText replaces the body of a group image message once its
// media has been reclaimed.
const ExpiredImageText = "🖼️ Imagen expirada"

// Message represents a single chat message, either text or image.
// Image messages carry the blob URL, its storage path (needed for
// deletion) and an expiry timestamp. All timestamps are milliseconds
// since epoch.
type Message struct {
	ID          string `json:"id"`
	SenderID    string `json:"senderId"`
	Text        string `json:"text"`
	ImageURL    string `json:"imageUrl,omitempty"`
	StoragePath string `json:"storagePath,omitempty"`
	ExpiresAt   int64  `json:"expiresAt,omitempty"`
	Type        string `json:"type"`
	Timestamp   int64  `json:"timestamp"`
}

// IsImage reports whether the message still holds live image media.
func (m *Message) IsImage() bool {
	return m.Type == TypeImage
}

// EffectiveExpiry returns the moment the message's media expires.
// Legacy records written before expiresAt existed fall back to
// timestamp + ttl.
func (m *Message) EffectiveExpiry(ttl time.Duration) int64 {
	if m.ExpiresAt != 0 {
		return m.ExpiresAt
	}
	return m.Timestamp + ttl.Milliseconds()
}

// Redact rewrites an image message into its placeholder text form.
// ID and timestamp are kept so ordering is unaffected. The transition
// is one-way: the image fields are gone for good.
func (m *Message) Redact() {
	m.Type = TypeText
	m.Text = ExpiredImageText
	m.ImageURL = ""
	m.StoragePath = ""
	m.ExpiresAt = 0
}
