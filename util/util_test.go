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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenTmpPath(t *testing.T) {
	path, err := GenTmpPath()
	require.NoError(t, err)
	require.NotEqual(t, "", path)
	defer os.RemoveAll(path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestBytesToString(t *testing.T) {
	b := []byte("test")
	str := BytesToString(b)
	require.Equal(t, str, string(b))
	require.Equal(t, "", BytesToString(nil))
}

func TestPrintableBytes(t *testing.T) {
	require.Equal(t, "<null>", PrintableBytes(nil, 0))
	require.Equal(t, "", PrintableBytes([]byte{}, 0))
	require.Equal(t, "row-1", PrintableBytes([]byte("row-1"), 0))
	require.Equal(t, "row...", PrintableBytes([]byte("row-1"), 3))
	require.Equal(t, `"\x00\x01"`, PrintableBytes([]byte{0, 1}, 0))
}

func TestHumanBytes(t *testing.T) {
	require.Equal(t, "0B", HumanBytes(0))
	require.Equal(t, "1023B", HumanBytes(1023))
	require.Equal(t, "1.0KiB", HumanBytes(1024))
	require.Equal(t, "1.5MiB", HumanBytes(3<<19))
}
