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
	"errors"
	"testing"
)

type testPhoto struct {
	ID        string `json:"id"`
	DataURL   string `json:"dataUrl"`
	CreatedAt int64  `json:"createdAt"`
}

func TestReadCollectionFallsBackToEmpty(t *testing.T) {
	ctx := context.Background()
	cases := map[string]string{
		"garbage":      `{not json`,
		"not an array": `{"id":"x"}`,
		"schema":       `[{"id":"p1","dataUrl":"http://example.com/x.png","createdAt":1}]`,
		"blank":        `   `,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			kv := NewMemoryKV()
			_ = kv.Set(ctx, KeyGallery, raw)
			got := ReadCollection[testPhoto](ctx, kv, KeyGallery)
			if got == nil || len(got) != 0 {
				t.Fatalf("expected empty non-nil collection, got %#v", got)
			}
		})
	}
	if got := ReadCollection[testPhoto](ctx, NewMemoryKV(), KeyGallery); got == nil || len(got) != 0 {
		t.Fatalf("missing key should give empty collection, got %#v", got)
	}
}

func TestWriteReadCollection(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	in := []testPhoto{{ID: "p1", DataURL: "data:image/png;base64,AAAA", CreatedAt: 42}}
	if err := WriteCollection(ctx, kv, KeyGallery, in); err != nil {
		t.Fatalf("WriteCollection error: %v", err)
	}
	out := ReadCollection[testPhoto](ctx, kv, KeyGallery)
	if len(out) != 1 || out[0] != in[0] {
		t.Fatalf("round trip mismatch: %#v", out)
	}

	if err := WriteCollection[testPhoto](ctx, kv, KeyGallery, nil); err != nil {
		t.Fatalf("WriteCollection(nil) error: %v", err)
	}
	if raw, _, _ := kv.Get(ctx, KeyGallery); raw != "[]" {
		t.Fatalf("nil collection stored as %q, want []", raw)
	}
}

func TestWriteCollectionRejectsInvalid(t *testing.T) {
	kv := NewMemoryKV()
	bad := []testPhoto{{ID: "", DataURL: "data:image/png;base64,AAAA"}}
	err := WriteCollection(context.Background(), kv, KeyGallery, bad)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok, _ := kv.Get(context.Background(), KeyGallery); ok {
		t.Fatalf("invalid collection must not be stored")
	}
}

func TestValidateUnknownKeyOnlyChecksJSON(t *testing.T) {
	if err := Validate("svg-library", `[{"anything":true}]`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Validate("svg-library", `[{`); err == nil {
		t.Fatalf("expected malformed JSON error")
	}
}
