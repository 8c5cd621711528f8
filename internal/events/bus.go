/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package events is a small in-process broadcast used to tell loosely
// coupled components (gallery, library, scene) that something changed.
package events

import (
	"log/slog"
	"sync"

	applog "roomoverlay/internal/log"
)

// Topics published by the application.
const (
	LibraryUpdated = "library.updated"
	GalleryUpdated = "gallery.updated"
	LayoutSaved    = "layout.saved"
	// CaptureSaved carries the format name of a finished capture.
	CaptureSaved = "capture.saved"
)

// Handler receives a published payload.
type Handler func(topic string, payload any)

// Bus delivers every Publish synchronously to the handlers subscribed to the
// topic, in subscription order. A panicking handler is logged and skipped.
type Bus struct {
	mu     sync.RWMutex
	next   uint64
	topics map[string][]entry
	log    *slog.Logger
}

type entry struct {
	id uint64
	fn Handler
}

// Handle removes a subscription.
type Handle struct {
	bus   *Bus
	topic string
	id    uint64
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{topics: map[string][]entry{}, log: applog.WithComponent("events")}
}

// Subscribe registers fn for topic.
func (b *Bus) Subscribe(topic string, fn Handler) Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	b.topics[topic] = append(b.topics[topic], entry{id: b.next, fn: fn})
	return Handle{bus: b, topic: topic, id: b.next}
}

// Remove unsubscribes; calling it again is harmless.
func (h Handle) Remove() {
	if h.bus == nil {
		return
	}
	b := h.bus
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.topics[h.topic]
	for i, e := range list {
		if e.id == h.id {
			b.topics[h.topic] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(b.topics[h.topic]) == 0 {
		delete(b.topics, h.topic)
	}
}

// Publish delivers payload to every subscriber of topic and returns how many
// handlers ran.
func (b *Bus) Publish(topic string, payload any) int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	list := append([]entry(nil), b.topics[topic]...)
	b.mu.RUnlock()
	n := 0
	for _, e := range list {
		if b.call(e.fn, topic, payload) {
			n++
		}
	}
	return n
}

func (b *Bus) call(fn Handler, topic string, payload any) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panicked", slog.String("topic", topic), slog.Any("panic", r))
			ok = false
		}
	}()
	fn(topic, payload)
	return true
}
