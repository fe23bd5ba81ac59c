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

package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
)

// Config holds all runtime configuration, parsed from environment
// variables. MediaTTL is deliberately a knob rather than a constant:
// deployments have run it anywhere from 1h (testing) to 48h.
type Config struct {
	Port        string `env:"PORT" envDefault:"8081"`
	DatabaseURL string `env:"DATABASE_URL" envDefault:"postgres://localhost/chatdocu?sslmode=disable"`
	RedisAddr   string `env:"REDIS_URL" envDefault:"localhost:6379"`

	JWTSecret string `env:"JWT_SECRET,required"`
	JWTIssuer string `env:"JWT_ISSUER" envDefault:"chatdocu"`

	MediaBaseURL string `env:"MEDIA_BASE_URL" envDefault:"http://localhost:8081/media"`

	MediaTTL      time.Duration `env:"MEDIA_TTL" envDefault:"48h"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1h"`

	FCMEndpoint  string `env:"FCM_ENDPOINT" envDefault:"https://fcm.googleapis.com"`
	FCMServerKey string `env:"FCM_SERVER_KEY"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}
