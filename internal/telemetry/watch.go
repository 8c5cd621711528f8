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

import "roomoverlay/internal/events"

// Event names sent for application topics.
const (
	EventLayoutSaved  = "layout.saved"
	EventCaptureSaved = "capture.saved"
)

// Watch forwards saved layouts and captures on bus. Only the capture format
// is kept from the payloads. The returned func unsubscribes.
func (c *Client) Watch(bus *events.Bus) func() {
	if bus == nil {
		return func() {}
	}
	layouts := bus.Subscribe(events.LayoutSaved, func(string, any) {
		c.Event(EventLayoutSaved, nil)
	})
	captures := bus.Subscribe(events.CaptureSaved, func(_ string, payload any) {
		var props map[string]string
		if f, ok := payload.(string); ok && f != "" {
			props = map[string]string{"format": f}
		}
		c.Event(EventCaptureSaved, props)
	})
	return func() {
		layouts.Remove()
		captures.Remove()
	}
}
