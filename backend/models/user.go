// Copyright (C) 2025 chatdocu.net <dev@chatdocu.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package models

// User is the profile record kept under Usuarios/{uid}. Field names
// match the tree layout inherited from the mobile client.
type User struct {
	UID      string `json:"uid"`
	Nombres  string `json:"nombres"`
	Email    string `json:"email"`
	Imagen   string `json:"imagen"`
	FCMToken string `json:"fcmToken,omitempty"`
}
