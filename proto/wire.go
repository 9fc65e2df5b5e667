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

import "google.golang.org/protobuf/encoding/protowire"

const (
	bytesType  = protowire.BytesType
	varintType = protowire.VarintType
)

func (k *Key) appendWire(b []byte) []byte {
	b = appendBytes(b, 1, k.Row)
	b = appendString(b, 2, k.ColumnFamily)
	b = appendBytes(b, 3, k.ColumnQualifier)
	return appendVarint(b, 4, uint64(k.Timestamp))
}

func (k *Key) consumeWire(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == bytesType:
			return consumeBytes(b, &k.Row)
		case num == 2 && typ == bytesType:
			return consumeString(b, &k.ColumnFamily)
		case num == 3 && typ == bytesType:
			return consumeBytes(b, &k.ColumnQualifier)
		case num == 4 && typ == varintType:
			var ts uint64
			n, err := consumeVarint(b, &ts)
			k.Timestamp = int64(ts)
			return n, err
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

func (c *Cell) appendWire(b []byte) []byte {
	b = appendMessage(b, 1, &c.Key)
	return appendBytes(b, 2, c.Value)
}

func (c *Cell) consumeWire(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == bytesType:
			return consumeMessage(b, &c.Key)
		case num == 2 && typ == bytesType:
			return consumeBytes(b, &c.Value)
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

func (s *ScanSpec) appendWire(b []byte) []byte {
	b = appendBytes(b, 1, s.Row)
	b = appendBytes(b, 2, s.StartRow)
	b = appendBytes(b, 3, s.EndRow)
	return appendString(b, 4, s.ColumnFamily)
}

func (s *ScanSpec) consumeWire(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == bytesType:
			return consumeBytes(b, &s.Row)
		case num == 2 && typ == bytesType:
			return consumeBytes(b, &s.StartRow)
		case num == 3 && typ == bytesType:
			return consumeBytes(b, &s.EndRow)
		case num == 4 && typ == bytesType:
			return consumeString(b, &s.ColumnFamily)
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

func (e *DirEntry) appendWire(b []byte) []byte {
	b = appendString(b, 1, e.Name)
	return appendVarint(b, 2, uint64(e.Type))
}

func (e *DirEntry) consumeWire(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == bytesType:
			return consumeString(b, &e.Name)
		case num == 2 && typ == varintType:
			var t uint64
			n, err := consumeVarint(b, &t)
			e.Type = EntryType(t)
			return n, err
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

func (m *ListNamespaceRequest) appendWire(b []byte) []byte {
	return appendString(b, 1, m.Path)
}

func (m *ListNamespaceRequest) consumeWire(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 && typ == bytesType {
			return consumeString(b, &m.Path)
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

func (m *ListNamespaceResponse) appendWire(b []byte) []byte {
	for i := range m.Entries {
		b = appendMessage(b, 1, &m.Entries[i])
	}
	return b
}

func (m *ListNamespaceResponse) consumeWire(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 && typ == bytesType {
			var e DirEntry
			n, err := consumeMessage(b, &e)
			if n >= 0 && err == nil {
				m.Entries = append(m.Entries, e)
			}
			return n, err
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

func (m *OpenTableRequest) appendWire(b []byte) []byte {
	b = appendString(b, 1, m.Namespace)
	return appendString(b, 2, m.Table)
}

func (m *OpenTableRequest) consumeWire(b []byte) error {
	return consumeTableRef(b, &m.Namespace, &m.Table, nil)
}

func (m *OpenTableResponse) appendWire(b []byte) []byte {
	return appendString(b, 1, m.Name)
}

func (m *OpenTableResponse) consumeWire(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 && typ == bytesType {
			return consumeString(b, &m.Name)
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

func (m *LookupRequest) appendWire(b []byte) []byte {
	b = appendString(b, 1, m.Namespace)
	b = appendString(b, 2, m.Table)
	return appendMessage(b, 3, &m.Key)
}

func (m *LookupRequest) consumeWire(b []byte) error {
	return consumeTableRef(b, &m.Namespace, &m.Table, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 3 && typ == bytesType {
			return consumeMessage(b, &m.Key)
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

func (m *LookupResponse) appendWire(b []byte) []byte {
	if m.Cell == nil {
		return b
	}
	return appendMessage(b, 1, m.Cell)
}

func (m *LookupResponse) consumeWire(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 && typ == bytesType {
			m.Cell = &Cell{}
			return consumeMessage(b, m.Cell)
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

func (m *ScanRequest) appendWire(b []byte) []byte {
	b = appendString(b, 1, m.Namespace)
	b = appendString(b, 2, m.Table)
	b = appendMessage(b, 3, &m.Spec)
	return appendVarint(b, 4, uint64(m.BatchSize))
}

func (m *ScanRequest) consumeWire(b []byte) error {
	return consumeTableRef(b, &m.Namespace, &m.Table, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 3 && typ == bytesType:
			return consumeMessage(b, &m.Spec)
		case num == 4 && typ == varintType:
			var size uint64
			n, err := consumeVarint(b, &size)
			m.BatchSize = int(int64(size))
			return n, err
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

func (m *ScanResponse) appendWire(b []byte) []byte {
	return appendCells(b, 1, m.Cells)
}

func (m *ScanResponse) consumeWire(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 && typ == bytesType {
			return consumeCell(b, &m.Cells)
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

func (m *CreateNamespaceRequest) appendWire(b []byte) []byte {
	return appendString(b, 1, m.Path)
}

func (m *CreateNamespaceRequest) consumeWire(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 && typ == bytesType {
			return consumeString(b, &m.Path)
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

func (m *CreateTableRequest) appendWire(b []byte) []byte {
	b = appendString(b, 1, m.Namespace)
	return appendString(b, 2, m.Table)
}

func (m *CreateTableRequest) consumeWire(b []byte) error {
	return consumeTableRef(b, &m.Namespace, &m.Table, nil)
}

func (m *MutateRequest) appendWire(b []byte) []byte {
	b = appendString(b, 1, m.Namespace)
	b = appendString(b, 2, m.Table)
	return appendCells(b, 3, m.Cells)
}

func (m *MutateRequest) consumeWire(b []byte) error {
	return consumeTableRef(b, &m.Namespace, &m.Table, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 3 && typ == bytesType {
			return consumeCell(b, &m.Cells)
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

func (m *DeleteRowRequest) appendWire(b []byte) []byte {
	b = appendString(b, 1, m.Namespace)
	b = appendString(b, 2, m.Table)
	return appendBytes(b, 3, m.Row)
}

func (m *DeleteRowRequest) consumeWire(b []byte) error {
	return consumeTableRef(b, &m.Namespace, &m.Table, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 3 && typ == bytesType {
			return consumeBytes(b, &m.Row)
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

func (m *CreateNamespaceResponse) appendWire(b []byte) []byte { return b }
func (m *CreateNamespaceResponse) consumeWire(b []byte) error { return skipFields(b) }
func (m *CreateTableResponse) appendWire(b []byte) []byte     { return b }
func (m *CreateTableResponse) consumeWire(b []byte) error     { return skipFields(b) }
func (m *MutateResponse) appendWire(b []byte) []byte          { return b }
func (m *MutateResponse) consumeWire(b []byte) error          { return skipFields(b) }
func (m *DeleteRowResponse) appendWire(b []byte) []byte       { return b }
func (m *DeleteRowResponse) consumeWire(b []byte) error       { return skipFields(b) }

// consumeTableRef decodes the namespace and table fields 1 and 2 shared by
// the table requests and hands every other field to rest.
func consumeTableRef(b []byte, namespace, table *string,
	rest func(num protowire.Number, typ protowire.Type, b []byte) (int, error),
) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == bytesType:
			return consumeString(b, namespace)
		case num == 2 && typ == bytesType:
			return consumeString(b, table)
		case rest != nil:
			return rest(num, typ, b)
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

func appendCells(b []byte, num protowire.Number, cells []Cell) []byte {
	for i := range cells {
		b = appendMessage(b, num, &cells[i])
	}
	return b
}

func consumeCell(b []byte, cells *[]Cell) (int, error) {
	var c Cell
	n, err := consumeMessage(b, &c)
	if n >= 0 && err == nil {
		*cells = append(*cells, c)
	}
	return n, err
}
