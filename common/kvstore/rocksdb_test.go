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
	"fmt"
	"os"
	"testing"

	"github.com/cubefs/cellbrowser/util"
	"github.com/stretchr/testify/require"
)

type testEg struct {
	engine Store
	path   string
	opt    *Option
}

func newEngine(ctx context.Context, opt *Option) (*testEg, error) {
	path, err := util.GenTmpPath()
	if err != nil {
		return nil, err
	}
	var _opt *Option
	if opt != nil {
		_opt = opt
	} else {
		_opt = new(Option)
	}
	_opt.CreateIfMissing = true
	_opt.Sync = true
	engine, err := newRocksdb(ctx, path, _opt)
	if err != nil {
		return nil, err
	}
	return &testEg{
		engine: engine,
		path:   path,
		opt:    _opt,
	}, nil
}

func (eg *testEg) close() {
	eg.engine.Close()
	os.RemoveAll(eg.path)
}

func Test_openRocksdb(t *testing.T) {
	ctx := context.TODO()
	path, err := util.GenTmpPath()
	require.NoError(t, err)
	defer os.RemoveAll(path)
	opt := new(Option)
	opt.CreateIfMissing = true
	opt.BlockSize = 1 << 20
	opt.BlockCache = 1 << 20
	opt.KeepLogFileNum = 10
	opt.MaxLogFileSize = 1 << 30
	opt.ColumnFamily = []CF{"a", "b", "c"}
	eg, err := newRocksdb(ctx, path, opt)
	require.NoError(t, err)
	require.NoError(t, eg.SetRaw(ctx, "c", []byte("k"), []byte("v"), nil))
	eg.Close()

	_, err = newRocksdb(ctx, "", opt)
	require.Equal(t, errors.New("path is empty"), err)

	// reopening with fewer declared columns still opens the existing ones
	opt.ColumnFamily = []CF{"a"}
	eg, err = newRocksdb(ctx, path, opt)
	require.NoError(t, err)
	v, err := eg.GetRaw(ctx, "c", []byte("k"), nil)
	require.NoError(t, err)
	require.Equal(t, []byte("v"), v)
	_, err = eg.GetRaw(ctx, "b", []byte("k"), nil)
	require.ErrorIs(t, err, ErrNotFound)
	eg.Close()

	_, err = NewKVStore(ctx, path, LsmKVType("leveldb"), opt)
	require.ErrorIs(t, err, ErrKVTypeNotFound)
}

func TestInstance_SetGetRaw(t *testing.T) {
	ctx := context.TODO()
	eg, err := newEngine(ctx, nil)
	require.NoError(t, err)
	defer eg.close()

	k := []byte("key1")
	v := []byte("value1")
	err = eg.engine.SetRaw(ctx, defaultCF, k, v, nil)
	require.NoError(t, err)
	v1, err := eg.engine.GetRaw(ctx, defaultCF, k, nil)
	require.NoError(t, err)
	require.Equal(t, v, v1)

	wo := eg.engine.NewWriteOption()
	defer wo.Close()
	wo.SetSync(true)
	require.NoError(t, eg.engine.SetRaw(ctx, defaultCF, k, []byte("value2"), wo))
	v1, err = eg.engine.GetRaw(ctx, defaultCF, k, nil)
	require.NoError(t, err)
	require.Equal(t, []byte("value2"), v1)

	_, err = eg.engine.GetRaw(ctx, defaultCF, []byte("key2"), nil)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestWrite(t *testing.T) {
	ctx := context.TODO()
	col1 := CF("c1")
	eg, err := newEngine(ctx, &Option{ColumnFamily: []CF{col1}})
	require.NoError(t, err)
	defer eg.close()

	batch := eg.engine.NewWriteBatch()
	for i := 0; i < 5; i++ {
		batch.Put(col1, []byte(fmt.Sprintf("k%d", i)), []byte(fmt.Sprintf("v%d", i)))
	}
	require.Equal(t, 5, batch.Count())
	require.NoError(t, eg.engine.Write(ctx, batch, nil))
	batch.Close()

	v, err := eg.engine.GetRaw(ctx, col1, []byte("k2"), nil)
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), v)
	_, err = eg.engine.GetRaw(ctx, defaultCF, []byte("k2"), nil)
	require.ErrorIs(t, err, ErrNotFound)

	batch = eg.engine.NewWriteBatch()
	batch.DeleteRange(col1, []byte("k0"), []byte("k3"))
	require.NoError(t, eg.engine.Write(ctx, batch, nil))
	batch.Close()
	for i := 0; i < 3; i++ {
		_, err = eg.engine.GetRaw(ctx, col1, []byte(fmt.Sprintf("k%d", i)), nil)
		require.ErrorIs(t, err, ErrNotFound)
	}
	_, err = eg.engine.GetRaw(ctx, col1, []byte("k3"), nil)
	require.NoError(t, err)
}

func TestList(t *testing.T) {
	ctx := context.TODO()
	eg, err := newEngine(ctx, nil)
	require.NoError(t, err)
	defer eg.close()

	for _, k := range []string{"a1", "a2", "a3", "b1", "b2", "c1"} {
		require.NoError(t, eg.engine.SetRaw(ctx, defaultCF, []byte(k), []byte("v"+k), nil))
	}

	collect := func(lr ListReader) (keys []string) {
		defer lr.Close()
		for {
			k, v, err := lr.ReadNextCopy()
			require.NoError(t, err)
			if k == nil {
				return
			}
			require.Equal(t, "v"+string(k), string(v))
			keys = append(keys, string(k))
		}
	}

	require.Equal(t, []string{"b1", "b2"}, collect(eg.engine.List(ctx, defaultCF, []byte("b"), nil, nil)))
	require.Equal(t, []string{"a2", "a3"}, collect(eg.engine.List(ctx, defaultCF, []byte("a"), []byte("a2"), nil)))
	require.Equal(t, []string{"a3", "b1"}, collect(eg.engine.ListRange(ctx, defaultCF, []byte("a3"), []byte("b2"), nil)))
	require.Equal(t, []string{"b2", "c1"}, collect(eg.engine.ListRange(ctx, defaultCF, []byte("b2"), nil, nil)))
	require.Len(t, collect(eg.engine.ListRange(ctx, defaultCF, nil, nil, nil)), 6)
}

func TestSnapshot(t *testing.T) {
	ctx := context.TODO()
	eg, err := newEngine(ctx, nil)
	require.NoError(t, err)
	defer eg.close()

	require.NoError(t, eg.engine.SetRaw(ctx, defaultCF, []byte("k"), []byte("old"), nil))
	snap := eg.engine.NewSnapshot()
	defer snap.Close()
	require.NoError(t, eg.engine.SetRaw(ctx, defaultCF, []byte("k"), []byte("new"), nil))

	ro := eg.engine.NewReadOption()
	defer ro.Close()
	ro.SetSnapShot(snap)
	v, err := eg.engine.GetRaw(ctx, defaultCF, []byte("k"), ro)
	require.NoError(t, err)
	require.Equal(t, []byte("old"), v)

	v, err = eg.engine.GetRaw(ctx, defaultCF, []byte("k"), nil)
	require.NoError(t, err)
	require.Equal(t, []byte("new"), v)

	// an iterator bound to the snapshot misses keys written after it
	require.NoError(t, eg.engine.SetRaw(ctx, defaultCF, []byte("k2"), []byte("late"), nil))
	lr := eg.engine.ListRange(ctx, defaultCF, nil, nil, ro)
	key, value, err := lr.ReadNextCopy()
	require.NoError(t, err)
	require.Equal(t, []byte("k"), key)
	require.Equal(t, []byte("old"), value)
	key, _, err = lr.ReadNextCopy()
	require.NoError(t, err)
	require.Nil(t, key)
	lr.Close()

	stats, err := eg.engine.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, stats.MemoryUsage.Total, stats.MemoryUsage.BlockCacheUsage+stats.MemoryUsage.IndexAndFilterUsage+stats.MemoryUsage.MemtableUsage)
}
