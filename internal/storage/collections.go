/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	applog "roomoverlay/internal/log"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var schemaFiles = map[string]string{
	KeyLayout:         "schemas/layout.schema.json",
	KeyLayoutPrevious: "schemas/layout.schema.json",
	KeyNamedLayouts:   "schemas/named_layouts.schema.json",
	KeyLibrary:        "schemas/library.schema.json",
	KeyGallery:        "schemas/gallery.schema.json",
}

var (
	schemaMu    sync.Mutex
	schemaCache = map[string]*gojsonschema.Schema{}
)

func schemaFor(key string) (*gojsonschema.Schema, error) {
	file, ok := schemaFiles[key]
	if !ok {
		return nil, nil
	}
	schemaMu.Lock()
	defer schemaMu.Unlock()
	if s, ok := schemaCache[key]; ok {
		return s, nil
	}
	raw, err := schemaFS.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", file, err)
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", file, err)
	}
	schemaCache[key] = s
	return s, nil
}

// ValidationError lists the schema violations of a stored document.
type ValidationError struct {
	Key     string
	Details []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: invalid document: %s", e.Key, strings.Join(e.Details, "; "))
}

// Validate checks raw JSON against the schema registered for key. Keys
// without a schema only need to be well-formed JSON.
func Validate(key, raw string) error {
	s, err := schemaFor(key)
	if err != nil {
		return err
	}
	if s == nil {
		if !json.Valid([]byte(raw)) {
			return &ValidationError{Key: key, Details: []string{"malformed JSON"}}
		}
		return nil
	}
	res, err := s.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return &ValidationError{Key: key, Details: []string{err.Error()}}
	}
	if !res.Valid() {
		ve := &ValidationError{Key: key}
		for _, d := range res.Errors() {
			ve.Details = append(ve.Details, d.String())
		}
		return ve
	}
	return nil
}

// ReadCollection loads the JSON array stored under key. Missing, unreadable,
// unparseable or schema-invalid data yields an empty collection; the cause is
// logged and never returned.
func ReadCollection[T any](ctx context.Context, kv KV, key string) []T {
	l := applog.WithOperation(applog.WithComponent("storage"), "read").With(slog.String("key", key))
	raw, ok, err := kv.Get(ctx, key)
	if err != nil {
		l.Warn("read failed, using empty collection", slog.Any("err", err))
		return []T{}
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return []T{}
	}
	if err := Validate(key, raw); err != nil {
		l.Warn("stored collection rejected, using empty collection", slog.Any("err", err))
		return []T{}
	}
	var out []T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		l.Warn("stored collection unparseable, using empty collection", slog.Any("err", err))
		return []T{}
	}
	if out == nil {
		out = []T{}
	}
	return out
}

// WriteCollection stores items as a JSON array under key.
func WriteCollection[T any](ctx context.Context, kv KV, key string, items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := Validate(key, string(data)); err != nil {
		return err
	}
	return kv.Set(ctx, key, string(data))
}
