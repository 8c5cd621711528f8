/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package telemetry sends anonymous, opt-in usage events and crash reports.
// Nothing is sent unless the user opted in and an endpoint is configured.
package telemetry

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls the client. FromEnv reads it from
//   - ROV_TELEMETRY_OPT_IN=1|true|yes|on
//   - ROV_TELEMETRY_URL: endpoint receiving JSON event batches
//   - ROV_CRASH_UPLOAD_URL: endpoint receiving plain-text crash reports
//   - ROV_TELEMETRY_TIMEOUT_MS: request timeout, default 1500
//   - ROV_TELEMETRY_DEBUG: log send attempts when set
type Config struct {
	OptIn     bool
	EventsURL string
	CrashURL  string
	Timeout   time.Duration
	Debug     bool

	// BatchSize events trigger an early send; FlushEvery bounds how long an
	// event waits otherwise.
	BatchSize  int
	FlushEvery time.Duration
}

const (
	defaultTimeout    = 1500 * time.Millisecond
	defaultBatchSize  = 16
	defaultFlushEvery = 5 * time.Second
	maxQueued         = 256
)

// FromEnv reads Config from ROV_TELEMETRY_* variables.
func FromEnv() Config {
	cfg := Config{
		OptIn:     parseBool(os.Getenv("ROV_TELEMETRY_OPT_IN")),
		EventsURL: strings.TrimSpace(os.Getenv("ROV_TELEMETRY_URL")),
		CrashURL:  strings.TrimSpace(os.Getenv("ROV_CRASH_UPLOAD_URL")),
		Debug:     os.Getenv("ROV_TELEMETRY_DEBUG") != "",
	}
	if ms, err := strconv.Atoi(strings.TrimSpace(os.Getenv("ROV_TELEMETRY_TIMEOUT_MS"))); err == nil && ms > 0 {
		cfg.Timeout = time.Duration(ms) * time.Millisecond
	}
	return cfg.withDefaults()
}

// WithOptIn is FromEnv with OptIn also set when the settings file enables
// telemetry.
func WithOptIn(settings bool) Config {
	cfg := FromEnv()
	cfg.OptIn = cfg.OptIn || settings
	return cfg
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.FlushEvery <= 0 {
		c.FlushEvery = defaultFlushEvery
	}
	return c
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
