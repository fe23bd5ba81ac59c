// Copyright (C) 2025 chatdocu.net <dev@chatdocu.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package models

// GroupDetail is the readable view of a group chat node. Members and
// admins are uids in the backend's child-iteration order; admins is
// always a subset of members.
type GroupDetail struct {
	GroupID   string   `json:"group_id"`
	GroupName string   `json:"groupName"`
	PhotoURL  string   `json:"photoUrl"`
	Members   []string `json:"members"`
	Admins    []string `json:"admins"`
}

// ChatItem is one row of a user's chat list: the conversation identity
// plus a summary of its most recent message.
type ChatItem struct {
	ChatID         string `json:"chat_id"`
	Title          string `json:"title"`
	PhotoURL       string `json:"photoUrl"`
	LastMessage    string `json:"lastMessage"`
	LastSenderName string `json:"lastSenderName"`
	Timestamp      int64  `json:"timestamp"`
	IsGroup        bool   `json:"isGroup"`
}
