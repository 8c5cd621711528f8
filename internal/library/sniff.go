/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package library

import (
	"bytes"
	"errors"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
)

// ErrUnsupportedFile is returned for files that are neither a model nor an
// image.
var ErrUnsupportedFile = errors.New("unsupported file type")

var (
	glbType  = filetype.NewType("glb", "model/gltf-binary")
	gltfType = filetype.NewType("gltf", "model/gltf+json")
	svgType  = filetype.NewType("svg", "image/svg+xml")
)

func init() {
	filetype.AddMatcher(glbType, matchGLB)
	filetype.AddMatcher(gltfType, matchGLTF)
	filetype.AddMatcher(svgType, matchSVG)
}

// matchGLB checks the binary glTF container magic and version 2.
func matchGLB(buf []byte) bool {
	return len(buf) >= 12 && bytes.Equal(buf[:4], []byte("glTF")) && buf[4] == 2 && buf[5] == 0 && buf[6] == 0 && buf[7] == 0
}

func matchGLTF(buf []byte) bool {
	b := bytes.TrimLeft(buf, " \t\r\n\xef\xbb\xbf")
	return len(b) > 0 && b[0] == '{' && bytes.Contains(b, []byte(`"asset"`))
}

func matchSVG(buf []byte) bool {
	b := bytes.TrimLeft(buf, " \t\r\n\xef\xbb\xbf")
	if !bytes.HasPrefix(b, []byte("<")) {
		return false
	}
	return bytes.Contains(bytes.ToLower(b), []byte("<svg"))
}

// Sniff classifies a file by its leading bytes.
func Sniff(head []byte) (Kind, types.Type, error) {
	t, err := filetype.Match(head)
	if err != nil {
		return "", types.Unknown, ErrUnsupportedFile
	}
	switch t.Extension {
	case glbType.Extension, gltfType.Extension:
		return KindModel, t, nil
	case svgType.Extension:
		return KindSVG, t, nil
	}
	if filetype.IsImage(head) {
		return KindImage, t, nil
	}
	return "", t, ErrUnsupportedFile
}
