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

package kvstore

import (
	"context"
	"errors"
)

const (
	defaultCF = "default"

	RocksdbLsmKVType = LsmKVType("rocksdb")
)

var (
	ErrNotFound       = errors.New("key not found")
	ErrKVTypeNotFound = errors.New("kv type not found")
)

type (
	CF        string
	LsmKVType string

	// Store is an ordered key/value store partitioned into column families.
	Store interface {
		NewSnapshot() Snapshot
		GetRaw(ctx context.Context, col CF, key []byte, readOpt ReadOption) (value []byte, err error)
		SetRaw(ctx context.Context, col CF, key []byte, value []byte, writeOpt WriteOption) error
		// List iterates keys with the given prefix starting at marker.
		List(ctx context.Context, col CF, prefix []byte, marker []byte, readOpt ReadOption) ListReader
		// ListRange iterates keys in [start, end), a nil end means no upper bound.
		ListRange(ctx context.Context, col CF, start []byte, end []byte, readOpt ReadOption) ListReader
		Write(ctx context.Context, batch WriteBatch, writeOpt WriteOption) error
		NewReadOption() (readOption ReadOption)
		NewWriteOption() (writeOption WriteOption)
		NewWriteBatch() (writeBatch WriteBatch)
		Stats(ctx context.Context) (Stats, error)
		Close()
	}
	ListReader interface {
		// ReadNextCopy returns a nil key once the iteration is exhausted.
		ReadNextCopy() (key []byte, value []byte, err error)
		Close()
	}
	// Snapshot pins a point-in-time view; readers bound to it through
	// ReadOption.SetSnapShot do not observe later writes.
	Snapshot interface {
		Close()
	}
	ReadOption interface {
		SetSnapShot(snap Snapshot)
		Close()
	}
	WriteOption interface {
		SetSync(value bool)
		Close()
	}
	WriteBatch interface {
		Put(col CF, key, value []byte)
		DeleteRange(col CF, startKey, endKey []byte)
		Count() int
		Close()
	}

	Stats struct {
		Used        uint64
		MemoryUsage MemoryUsage
	}
	MemoryUsage struct {
		BlockCacheUsage     uint64
		IndexAndFilterUsage uint64
		MemtableUsage       uint64
		Total               uint64
	}
	Option struct {
		Sync            bool   `json:"sync"`
		CreateIfMissing bool   `json:"create_if_missing"`
		ColumnFamily    []CF   `json:"column_family"`
		BlockSize       int    `json:"block_size"`
		BlockCache      uint64 `json:"block_cache"`
		MaxOpenFiles    int    `json:"max_open_files"`
		WriteBufferSize int    `json:"write_buffer_size"`
		KeepLogFileNum  int    `json:"keep_log_file_num"`
		MaxLogFileSize  int    `json:"max_log_file_size"`
	}
)

func NewKVStore(ctx context.Context, path string, lsmType LsmKVType, option *Option) (Store, error) {
	switch lsmType {
	case RocksdbLsmKVType:
		return newRocksdb(ctx, path, option)
	default:
		return nil, ErrKVTypeNotFound
	}
}

func (cf CF) String() string {
	return string(cf)
}
