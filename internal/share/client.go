/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package share uploads captured photos to a configured endpoint.
package share

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"roomoverlay/internal/config"
	applog "roomoverlay/internal/log"
	"roomoverlay/internal/version"
)

// ErrDisabled is returned when no endpoint or no token is configured.
var ErrDisabled = errors.New("sharing is not configured")

// Client posts images to the share endpoint with a bearer token.
type Client struct {
	Endpoint string
	Token    string
	client   *http.Client
	log      *slog.Logger
}

// Result is the server's answer to an upload.
type Result struct {
	URL string `json:"url"`
	ID  string `json:"id,omitempty"`
}

// New builds a client from the share section and a token. It returns
// ErrDisabled when either is missing.
func New(cfg config.ShareConfig, token string) (*Client, error) {
	ep := strings.TrimSpace(cfg.Endpoint)
	if ep == "" || strings.TrimSpace(token) == "" {
		return nil, ErrDisabled
	}
	u, err := url.Parse(ep)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("share endpoint %q: not an http(s) URL", ep)
	}
	return &Client{
		Endpoint: u.String(),
		Token:    token,
		client:   &http.Client{Timeout: cfg.EffectiveTimeout()},
		log:      applog.WithComponent("share"),
	}, nil
}

// FromConfig is New with the token read from the keyring.
func FromConfig(cfg config.AppConfig) (*Client, error) {
	return New(cfg.Share, config.ShareToken())
}

// Upload sends data as a multipart "file" field named fileName.
func (c *Client) Upload(ctx context.Context, data []byte, mime, fileName string) (Result, error) {
	l := applog.WithOperation(c.log, "upload").With(slog.String("file", fileName), slog.Int("bytes", len(data)))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName))
	h.Set("Content-Type", mime)
	part, err := mw.CreatePart(h)
	if err != nil {
		return Result{}, err
	}
	if _, err := part.Write(data); err != nil {
		return Result{}, err
	}
	if err := mw.Close(); err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, &body)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.client.Do(req)
	if err != nil {
		l.Warn("upload failed", slog.Any("err", err))
		return Result{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		err := fmt.Errorf("share %s: %s: %s", c.Endpoint, resp.Status, strings.TrimSpace(string(snippet)))
		l.Warn("upload rejected", slog.Int("status", resp.StatusCode))
		return Result{}, err
	}
	var res Result
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&res); err != nil && !errors.Is(err, io.EOF) {
		return Result{}, fmt.Errorf("share response: %w", err)
	}
	l.Info("uploaded", slog.String("url", res.URL))
	return res, nil
}
