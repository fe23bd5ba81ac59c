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

// Package api assembles the stores, background jobs and HTTP routes
// into one unit that a server binary (or a host application embedding
// the chat backend) can mount on its router.
package api

import (
	"database/sql"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/chatdocunet/chatdocu/backend/cleanup"
	"github.com/chatdocunet/chatdocu/backend/config"
	"github.com/chatdocunet/chatdocu/backend/groups"
	"github.com/chatdocunet/chatdocu/backend/handlers"
	"github.com/chatdocunet/chatdocu/backend/messages"
	"github.com/chatdocunet/chatdocu/backend/middleware"
	"github.com/chatdocunet/chatdocu/backend/push"
	"github.com/chatdocunet/chatdocu/backend/storage/postgres"
	redisStore "github.com/chatdocunet/chatdocu/backend/storage/redis"
	"github.com/chatdocunet/chatdocu/backend/users"
)

// sweepJob names the sweeper's scheduled tasks. The immediate pass and
// the periodic pass are distinct names: rescheduling the immediate one
// replaces it, while the periodic one is kept once registered.
const (
	sweepOnceJob     = "media-sweep-startup"
	sweepPeriodicJob = "media-sweep"
)

// API wires the chat backend together.
type API struct {
	cfg    *config.Config
	logger *zap.SugaredLogger

	Messages *messages.Store
	Groups   *groups.Store
	Users    *users.Store
	Sweeper  *cleanup.Sweeper

	scheduler *cleanup.Scheduler

	messageHandler *handlers.MessageHandler
	groupHandler   *handlers.GroupHandler
	userHandler    *handlers.UserHandler
	mediaHandler   *handlers.MediaHandler
}

// New builds every store on the shared database and Redis handles and
// runs the blob store migration.
func New(logger *zap.SugaredLogger, cfg *config.Config, db *sql.DB, rdb *redis.Client) (*API, error) {
	blobs := postgres.NewBlobStore(logger, db, cfg.MediaBaseURL)
	if err := blobs.Migrate(); err != nil {
		return nil, err
	}
	tree := redisStore.NewTreeStore(logger, rdb)

	messageStore := messages.New(logger, tree, blobs, cfg.MediaTTL)
	groupStore := groups.New(logger, tree, blobs)
	userStore := users.New(logger, tree, blobs)
	sweeper := cleanup.NewSweeper(logger, tree, blobs, cfg.MediaTTL)

	var notifier *push.Notifier
	if cfg.FCMServerKey != "" {
		notifier = push.NewNotifier(logger, userStore, cfg.FCMEndpoint, cfg.FCMServerKey)
	}

	return &API{
		cfg:            cfg,
		logger:         logger,
		Messages:       messageStore,
		Groups:         groupStore,
		Users:          userStore,
		Sweeper:        sweeper,
		scheduler:      cleanup.NewScheduler(logger),
		messageHandler: handlers.NewMessageHandler(logger, messageStore, notifier),
		groupHandler:   handlers.NewGroupHandler(groupStore),
		userHandler:    handlers.NewUserHandler(userStore),
		mediaHandler:   handlers.NewMediaHandler(blobs),
	}, nil
}

// StartSweeper schedules the expiry sweeper: one immediate pass plus a
// recurring pass on the configured interval.
func (a *API) StartSweeper() {
	a.scheduler.RunOnce(sweepOnceJob, a.Sweeper.Run)
	a.scheduler.RunPeriodic(sweepPeriodicJob, a.cfg.SweepInterval, a.Sweeper.Run)
}

// Stop cancels the background jobs and waits for them.
func (a *API) Stop() {
	a.scheduler.Stop()
}

// RegisterRoutes mounts all chat endpoints on router. When
// authMiddleware is nil the built-in JWT validation is used.
func (a *API) RegisterRoutes(router *mux.Router, authMiddleware func(http.Handler) http.Handler) {
	if authMiddleware == nil {
		authMiddleware = middleware.NewAuthMiddleware(a.cfg.JWTSecret, a.cfg.JWTIssuer)
	}

	api := router.PathPrefix("/api/chat").Subrouter()
	api.Use(authMiddleware)

	// User/profile endpoints
	api.HandleFunc("/users", a.userHandler.RegisterUser).Methods("POST", "OPTIONS")
	api.HandleFunc("/users", a.userHandler.ListUsers).Methods("GET", "OPTIONS")
	api.HandleFunc("/users/{userId}", a.userHandler.GetUser).Methods("GET", "OPTIONS")
	api.HandleFunc("/me/profile", a.userHandler.UpdateProfile).Methods("PUT", "OPTIONS")
	api.HandleFunc("/me/fcm-token", a.userHandler.SetFCMToken).Methods("POST", "OPTIONS")

	// Chat list
	api.HandleFunc("/chats", a.messageHandler.GetChats).Methods("GET", "OPTIONS")

	// Private conversation endpoints
	api.HandleFunc("/dm/{userId}/text", a.messageHandler.SendPrivateText).Methods("POST", "OPTIONS")
	api.HandleFunc("/dm/{userId}/image", a.messageHandler.SendPrivateImage).Methods("POST", "OPTIONS")
	api.HandleFunc("/dm/{userId}/messages", a.messageHandler.GetPrivateMessages).Methods("GET", "OPTIONS")

	// Group endpoints
	api.HandleFunc("/group/create", a.groupHandler.CreateGroup).Methods("POST", "OPTIONS")
	api.HandleFunc("/group/{groupId}", a.groupHandler.GetGroup).Methods("GET", "OPTIONS")
	api.HandleFunc("/group/{groupId}/join", a.groupHandler.JoinGroup).Methods("POST", "OPTIONS")
	api.HandleFunc("/group/{groupId}/leave", a.groupHandler.LeaveGroup).Methods("POST", "OPTIONS")
	api.HandleFunc("/group/{groupId}/members", a.groupHandler.AddMember).Methods("POST", "OPTIONS")
	api.HandleFunc("/group/{groupId}/members/{userId}", a.groupHandler.RemoveMember).Methods("DELETE", "OPTIONS")
	api.HandleFunc("/group/{groupId}/admins/{userId}", a.groupHandler.PromoteAdmin).Methods("POST", "OPTIONS")
	api.HandleFunc("/group/{groupId}/admins/{userId}", a.groupHandler.DemoteAdmin).Methods("DELETE", "OPTIONS")
	api.HandleFunc("/group/{groupId}/text", a.messageHandler.SendGroupText).Methods("POST", "OPTIONS")
	api.HandleFunc("/group/{groupId}/image", a.messageHandler.SendGroupImage).Methods("POST", "OPTIONS")
	api.HandleFunc("/group/{groupId}/messages", a.messageHandler.GetGroupMessages).Methods("GET", "OPTIONS")

	// Media is public by URL; the sweeper is what limits its lifetime.
	router.HandleFunc("/media/{path:.*}", a.mediaHandler.ServeBlob).Methods("GET")
}
