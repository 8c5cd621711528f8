/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package storage persists the app's collections (library, gallery, layouts)
// as JSON values in a key-value store.
//
// The default store is an embedded SQLite database at
// <data-dir>/roomoverlay.sqlite. A damaged file is moved to backups/ and
// recreated, so the stores above it fall back to their defaults. Every value
// is checked against its JSON schema before it is written or read back.
package storage
