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

package proto

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

type (
	// Key addresses a single version of a cell.
	Key struct {
		Row             []byte `json:"row"`
		ColumnFamily    string `json:"column_family"`
		ColumnQualifier []byte `json:"column_qualifier,omitempty"`
		Timestamp       int64  `json:"timestamp"`
	}

	// Cell is one (row, column family, qualifier, timestamp) -> value data point.
	// A nil Value is a null value.
	Cell struct {
		Key   Key    `json:"key"`
		Value []byte `json:"value,omitempty"`
	}

	// ScanSpec restricts a scan. The zero value scans the whole table.
	// Row selects one row and takes precedence over StartRow/EndRow.
	// EndRow is exclusive.
	ScanSpec struct {
		Row          []byte `json:"row,omitempty"`
		StartRow     []byte `json:"start_row,omitempty"`
		EndRow       []byte `json:"end_row,omitempty"`
		ColumnFamily string `json:"column_family,omitempty"`
	}

	EntryType uint8

	// DirEntry is one child of a namespace.
	DirEntry struct {
		Name string    `json:"name"`
		Type EntryType `json:"type"`
	}
)

const (
	EntryNamespace = EntryType(iota + 1)
	EntryTable
)

func (t EntryType) String() string {
	switch t {
	case EntryNamespace:
		return "namespace"
	case EntryTable:
		return "table"
	default:
		return "unknown"
	}
}

// Size is the number of bytes the key occupies, timestamp included.
func (k *Key) Size() int {
	return len(k.Row) + len(k.ColumnFamily) + len(k.ColumnQualifier) + 8
}

func (k *Key) Equal(o *Key) bool {
	return bytes.Equal(k.Row, o.Row) && k.ColumnFamily == o.ColumnFamily &&
		bytes.Equal(k.ColumnQualifier, o.ColumnQualifier) && k.Timestamp == o.Timestamp
}

func (k Key) String() string {
	return fmt.Sprintf("%q %s:%q @%d", k.Row, k.ColumnFamily, k.ColumnQualifier, k.Timestamp)
}

func (k *Key) Clone() Key {
	return Key{
		Row:             append([]byte(nil), k.Row...),
		ColumnFamily:    k.ColumnFamily,
		ColumnQualifier: append([]byte(nil), k.ColumnQualifier...),
		Timestamp:       k.Timestamp,
	}
}

// Size is the key size plus the value length.
func (c *Cell) Size() int {
	return c.Key.Size() + len(c.Value)
}

// IsSingleRow reports whether the spec selects exactly one row.
func (s *ScanSpec) IsSingleRow() bool {
	return s.Row != nil
}

// Contains reports whether the key falls inside the spec.
func (s *ScanSpec) Contains(k *Key) bool {
	if s.ColumnFamily != "" && s.ColumnFamily != k.ColumnFamily {
		return false
	}
	if s.Row != nil {
		return bytes.Equal(s.Row, k.Row)
	}
	if s.StartRow != nil && bytes.Compare(k.Row, s.StartRow) < 0 {
		return false
	}
	if s.EndRow != nil && bytes.Compare(k.Row, s.EndRow) >= 0 {
		return false
	}
	return true
}

// PastEnd reports whether a key sorts after every key the spec can contain,
// so an ordered scan can stop early.
func (s *ScanSpec) PastEnd(k *Key) bool {
	if s.Row != nil {
		return bytes.Compare(k.Row, s.Row) > 0
	}
	return s.EndRow != nil && bytes.Compare(k.Row, s.EndRow) >= 0
}

func (s ScanSpec) String() string {
	var parts []string
	if s.Row != nil {
		parts = append(parts, "row="+strconv.Quote(string(s.Row)))
	} else {
		if s.StartRow != nil {
			parts = append(parts, "start="+strconv.Quote(string(s.StartRow)))
		}
		if s.EndRow != nil {
			parts = append(parts, "end="+strconv.Quote(string(s.EndRow)))
		}
	}
	if s.ColumnFamily != "" {
		parts = append(parts, "cf="+s.ColumnFamily)
	}
	if len(parts) == 0 {
		return "all"
	}
	return strings.Join(parts, ",")
}

// JoinPath joins namespace path elements with the path separator,
// always producing an absolute path.
func JoinPath(elems ...string) string {
	var parts []string
	for _, e := range elems {
		for _, p := range strings.Split(e, PathSeparator) {
			if p != "" {
				parts = append(parts, p)
			}
		}
	}
	return PathSeparator + strings.Join(parts, PathSeparator)
}

// SplitPath returns the parent namespace path and the last element.
func SplitPath(path string) (parent, name string) {
	path = JoinPath(path)
	idx := strings.LastIndex(path, PathSeparator)
	parent, name = path[:idx], path[idx+1:]
	if parent == "" {
		parent = PathSeparator
	}
	return
}
