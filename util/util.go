// Copyright 2023 The CubeFS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package util

import (
	"os"
	"strconv"
	"strings"
	"unicode/utf8"
	"unsafe"

	"github.com/google/uuid"
)

// GenTmpPath create a temporary path
func GenTmpPath() (string, error) {
	id := uuid.NewString()
	path := os.TempDir() + "/" + id
	if err := os.RemoveAll(path); err != nil {
		return "", err
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

func BytesToString(b []byte) string {
	return unsafe.String(unsafe.SliceData(b), len(b))
}

// PrintableBytes renders a row key or value for display. Printable utf8 is kept
// as is, anything else is quoted. Output longer than max bytes is cut and
// suffixed with an ellipsis; max <= 0 means no limit.
func PrintableBytes(b []byte, max int) string {
	if b == nil {
		return "<null>"
	}
	cut := false
	if max > 0 && len(b) > max {
		b, cut = b[:max], true
	}
	var s string
	if utf8.Valid(b) && isPrintable(BytesToString(b)) {
		s = string(b)
	} else {
		s = strconv.Quote(string(b))
	}
	if cut {
		s += "..."
	}
	return s
}

func isPrintable(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return !strconv.IsPrint(r)
	}) < 0
}

// HumanBytes formats a byte count with a binary unit suffix.
func HumanBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return strconv.FormatUint(n, 10) + "B"
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(n)/float64(div), 'f', 1, 64) + string("KMGTPE"[exp]) + "iB"
}
