/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package telemetry

import (
	"context"
	"sync"

	"roomoverlay/internal/events"
)

var (
	defaultMu     sync.Mutex
	defaultClient *Client
)

// Default returns the process-wide client, built from the environment on
// first use.
func Default() *Client {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultClient == nil {
		defaultClient = New(FromEnv())
	}
	return defaultClient
}

// NewDefault replaces the process-wide client; the previous one is closed.
func NewDefault(cfg Config) *Client {
	c := New(cfg)
	defaultMu.Lock()
	prev := defaultClient
	defaultClient = c
	defaultMu.Unlock()
	if prev != nil {
		prev.Close()
	}
	return c
}

// Enabled reports whether the default client sends events.
func Enabled() bool { return Default().Enabled() }

// Emit queues an event on the default client.
func Emit(name string, props map[string]string) { Default().Event(name, props) }

// UploadCrash uploads a crash report with the default client.
func UploadCrash(report []byte) { Default().UploadCrash(report) }

// Flush flushes the default client.
func Flush(ctx context.Context) { Default().Flush(ctx) }

// Watch forwards bus topics to the default client.
func Watch(bus *events.Bus) func() { return Default().Watch(bus) }
