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

// Package push delivers new-message notifications through an
// FCM-style HTTP endpoint. Delivery is best-effort: a user without a
// token, or a rejected request, is logged and forgotten. Each user
// holds a single token; there is no multi-device fan-out.
package push

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/chatdocunet/chatdocu/backend/users"
)

type Notifier struct {
	client *resty.Client
	users  *users.Store
	logger *zap.SugaredLogger
}

func NewNotifier(logger *zap.SugaredLogger, userStore *users.Store, endpoint, serverKey string) *Notifier {
	client := resty.New().
		SetBaseURL(endpoint).
		SetTimeout(10 * time.Second).
		SetHeader("Authorization", "key="+serverKey)
	return &Notifier{
		client: client,
		users:  userStore,
		logger: logger,
	}
}

type notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type sendRequest struct {
	To           string            `json:"to"`
	Notification notification      `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

// NotifyUser pushes a notification to uid's registered device. Errors
// are returned for the caller to log; senders treat them as
// non-fatal.
func (n *Notifier) NotifyUser(ctx context.Context, uid, title, body string, data map[string]string) error {
	user, err := n.users.Get(ctx, uid)
	if err != nil {
		return fmt.Errorf("failed to resolve recipient: %w", err)
	}
	if user.FCMToken == "" {
		n.logger.Debugf("user %s has no push token, skipping", uid)
		return nil
	}

	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(sendRequest{
			To:           user.FCMToken,
			Notification: notification{Title: title, Body: body},
			Data:         data,
		}).
		Post("/fcm/send")
	if err != nil {
		return fmt.Errorf("failed to send push: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("push rejected: %s", resp.Status())
	}
	return nil
}
