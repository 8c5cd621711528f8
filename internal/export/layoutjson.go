/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package export

import (
	"encoding/json"
	"fmt"
	"os"

	"roomoverlay/internal/layout"
	"roomoverlay/internal/storage"
)

// LayoutJSON returns objs as indented JSON, the format the layout library
// exports and imports.
func LayoutJSON(objs []layout.PlacedObject) ([]byte, error) {
	if objs == nil {
		objs = []layout.PlacedObject{}
	}
	data, err := json.MarshalIndent(objs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal layout: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteLayoutJSON writes objs to path atomically.
func WriteLayoutJSON(path string, objs []layout.PlacedObject) error {
	data, err := LayoutJSON(objs)
	if err != nil {
		return err
	}
	return storage.WriteFileAtomic(path, data)
}

// ParseLayoutJSON validates and decodes an exported layout.
func ParseLayoutJSON(data []byte) ([]layout.PlacedObject, error) {
	if err := storage.Validate(storage.KeyLayout, string(data)); err != nil {
		return nil, err
	}
	var objs []layout.PlacedObject
	if err := json.Unmarshal(data, &objs); err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	return objs, nil
}

// ReadLayoutJSON loads an exported layout file.
func ReadLayoutJSON(path string) ([]layout.PlacedObject, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout: %w", err)
	}
	return ParseLayoutJSON(data)
}
