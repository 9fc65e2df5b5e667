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

package datasource

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/cubefs/cellbrowser/proto"
)

// Cell keys are laid out as
//
//	tableID | esc(row) 00 01 | esc(family) 00 01 | esc(qualifier) 00 01 | ^timestamp
//
// where esc doubles every 0x00 into 00 ff. The encoding sorts by row, column
// family and qualifier, newest version first.

const (
	tableIDSize   = 8
	timestampSize = 8

	escByte  = 0x00
	escEsc   = 0xff
	escTerm  = 0x01
	escAfter = 0x02
)

var errMalformedKey = errors.New("malformed cell key")

func TablePrefix(tableID uint64) []byte {
	b := make([]byte, tableIDSize)
	binary.BigEndian.PutUint64(b, tableID)
	return b
}

func EncodeCellKey(tableID uint64, key *proto.Key) []byte {
	b := make([]byte, 0, tableIDSize+key.Size()+8)
	b = append(b, TablePrefix(tableID)...)
	b = appendEscaped(b, key.Row)
	b = appendEscaped(b, []byte(key.ColumnFamily))
	b = appendEscaped(b, key.ColumnQualifier)
	var ts [timestampSize]byte
	binary.BigEndian.PutUint64(ts[:], ^(uint64(key.Timestamp) ^ 1<<63))
	return append(b, ts[:]...)
}

func DecodeCellKey(b []byte) (tableID uint64, key proto.Key, err error) {
	if len(b) < tableIDSize+timestampSize {
		return 0, key, errMalformedKey
	}
	tableID = binary.BigEndian.Uint64(b)
	b = b[tableIDSize:]

	var family []byte
	if key.Row, b, err = readEscaped(b); err != nil {
		return
	}
	if family, b, err = readEscaped(b); err != nil {
		return
	}
	if key.ColumnQualifier, b, err = readEscaped(b); err != nil {
		return
	}
	if len(b) != timestampSize {
		return 0, key, errMalformedKey
	}
	key.ColumnFamily = string(family)
	key.Timestamp = int64(^binary.BigEndian.Uint64(b) ^ 1<<63)
	return
}

// RowPrefix returns the prefix shared by every cell of row.
func RowPrefix(tableID uint64, row []byte) []byte {
	return appendEscaped(TablePrefix(tableID), row)
}

// ScanRange returns the [start, end) key range a scan over spec must visit.
func ScanRange(tableID uint64, spec *proto.ScanSpec) (start, end []byte) {
	prefix := TablePrefix(tableID)
	if spec.IsSingleRow() {
		start = RowPrefix(tableID, spec.Row)
		end = append(bytes.Clone(start[:len(start)-1]), escAfter)
		return
	}
	start = prefix
	if spec.StartRow != nil {
		start = appendRaw(bytes.Clone(prefix), spec.StartRow)
	}
	if spec.EndRow != nil {
		end = appendRaw(bytes.Clone(prefix), spec.EndRow)
	} else {
		end = TablePrefix(tableID + 1)
	}
	return
}

func appendRaw(b, data []byte) []byte {
	for _, c := range data {
		if c == escByte {
			b = append(b, escByte, escEsc)
			continue
		}
		b = append(b, c)
	}
	return b
}

func appendEscaped(b, data []byte) []byte {
	return append(appendRaw(b, data), escByte, escTerm)
}

func readEscaped(b []byte) (out, rest []byte, err error) {
	out = make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] != escByte {
			out = append(out, b[i])
			continue
		}
		if i+1 >= len(b) {
			return nil, nil, errMalformedKey
		}
		switch b[i+1] {
		case escEsc:
			out = append(out, escByte)
			i++
		case escTerm:
			return out, b[i+2:], nil
		default:
			return nil, nil, errMalformedKey
		}
	}
	return nil, nil, errMalformedKey
}
