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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	applog "roomoverlay/internal/log"
	"roomoverlay/internal/version"
)

// Event is one usage record. Props must not identify the user or the room.
type Event struct {
	Name    string            `json:"name"`
	At      time.Time         `json:"ts"`
	Session string            `json:"session"`
	Version string            `json:"version"`
	OS      string            `json:"os"`
	Arch    string            `json:"arch"`
	Props   map[string]string `json:"props,omitempty"`
}

// Client batches events and posts them in the background. Failed sends are
// dropped.
type Client struct {
	cfg     Config
	log     *slog.Logger
	http    *http.Client
	session string

	mu      sync.Mutex
	pending []Event
	kick    chan struct{}
	done    chan struct{}
	stopped chan struct{}
	uploads sync.WaitGroup
	close   sync.Once
}

// New starts a client. The session id is random per process.
func New(cfg Config) *Client {
	cfg = cfg.withDefaults()
	c := &Client{
		cfg:     cfg,
		log:     applog.WithComponent("telemetry"),
		http:    &http.Client{Timeout: cfg.Timeout},
		session: uuid.NewString(),
		kick:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go c.loop()
	return c
}

// Enabled reports whether events are sent.
func (c *Client) Enabled() bool { return c != nil && c.cfg.OptIn && c.cfg.EventsURL != "" }

// Event queues name with props. It never blocks; events beyond the queue
// limit are dropped.
func (c *Client) Event(name string, props map[string]string) {
	if !c.Enabled() || name == "" {
		return
	}
	ev := Event{
		Name:    name,
		At:      time.Now().UTC(),
		Session: c.session,
		Version: version.String(),
		OS:      runtime.GOOS,
		Arch:    runtime.GOARCH,
	}
	if len(props) > 0 {
		ev.Props = make(map[string]string, len(props))
		for k, v := range props {
			ev.Props[k] = v
		}
	}
	c.mu.Lock()
	if len(c.pending) >= maxQueued {
		c.mu.Unlock()
		return
	}
	c.pending = append(c.pending, ev)
	full := len(c.pending) >= c.cfg.BatchSize
	c.mu.Unlock()
	if full {
		select {
		case c.kick <- struct{}{}:
		default:
		}
	}
}

func (c *Client) take() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	batch := c.pending
	c.pending = nil
	return batch
}

func (c *Client) loop() {
	defer close(c.stopped)
	t := time.NewTicker(c.cfg.FlushEvery)
	defer t.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-t.C:
		case <-c.kick:
		}
		if batch := c.take(); len(batch) > 0 {
			ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
			c.post(ctx, batch)
			cancel()
		}
	}
}

func (c *Client) post(ctx context.Context, batch []Event) {
	body, err := json.Marshal(batch)
	if err != nil {
		return
	}
	if err := c.send(ctx, c.cfg.EventsURL, "application/json", body); err != nil {
		c.debug("telemetry send failed", slog.Int("events", len(batch)), slog.Any("err", err))
		return
	}
	c.debug("telemetry sent", slog.Int("events", len(batch)))
}

func (c *Client) send(ctx context.Context, url, contentType string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) debug(msg string, attrs ...any) {
	if c.cfg.Debug {
		c.log.Debug(msg, attrs...)
	}
}

// UploadCrash posts a crash report in the background when crash uploads are
// enabled. Flush waits for it.
func (c *Client) UploadCrash(report []byte) {
	if c == nil || !c.cfg.OptIn || c.cfg.CrashURL == "" || len(report) == 0 {
		return
	}
	body := append([]byte(nil), report...)
	c.uploads.Add(1)
	go func() {
		defer c.uploads.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
		defer cancel()
		if err := c.send(ctx, c.cfg.CrashURL, "text/plain; charset=utf-8", body); err != nil {
			c.debug("crash upload failed", slog.Any("err", err))
			return
		}
		c.debug("crash report uploaded")
	}()
}

// Flush sends queued events now and waits for crash uploads, until ctx is
// done.
func (c *Client) Flush(ctx context.Context) {
	if c == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if batch := c.take(); len(batch) > 0 && c.Enabled() {
		c.post(ctx, batch)
	}
	waited := make(chan struct{})
	go func() {
		c.uploads.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-ctx.Done():
	}
}

// Close flushes with the client timeout and stops the background loop.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.close.Do(func() {
		close(c.done)
		<-c.stopped
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
		defer cancel()
		c.Flush(ctx)
	})
}
