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

import "time"

const (
	// DefaultChunkCapacity is the number of cells batched into one chunk by a scan worker.
	DefaultChunkCapacity = 2500
	// DefaultInlineValueLimit is the number of value bytes a CellInfo keeps in memory.
	DefaultInlineValueLimit = 64
	// DefaultCancelTimeout bounds how long Cancel waits for scan workers to drain.
	DefaultCancelTimeout = 20 * time.Second

	ReqIdKey = "req-id"

	PathSeparator = "/"
)
