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

package scan

import (
	"time"

	"github.com/cubefs/cellbrowser/proto"
)

type Mode string

const (
	// ModeAuto streams natively when the table supports it and pulls otherwise.
	ModeAuto = Mode("auto")
	ModePull = Mode("pull")
	ModePush = Mode("push")

	defaultQueueDepth = 4
)

func (m Mode) valid() bool {
	switch m {
	case ModeAuto, ModePull, ModePush:
		return true
	}
	return false
}

type Config struct {
	ChunkCapacity  int  `json:"chunk_capacity"`
	QueueDepth     int  `json:"queue_depth"`
	CancelTimeoutS int  `json:"cancel_timeout_s"`
	Mode           Mode `json:"mode"`
	ReadMBPS       int  `json:"read_mbps"`
}

func (cfg *Config) fixConfig() {
	if cfg.ChunkCapacity <= 0 {
		cfg.ChunkCapacity = proto.DefaultChunkCapacity
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = defaultQueueDepth
	}
	if cfg.CancelTimeoutS <= 0 {
		cfg.CancelTimeoutS = int(proto.DefaultCancelTimeout / time.Second)
	}
	if !cfg.Mode.valid() {
		cfg.Mode = ModeAuto
	}
}

func (cfg *Config) cancelTimeout() time.Duration {
	return time.Duration(cfg.CancelTimeoutS) * time.Second
}

type (
	Option func(o *beginOptions)

	beginOptions struct {
		spec proto.ScanSpec
		mode Mode
	}
)

// WithSpec restricts the scan to a row, a row range or a column family.
func WithSpec(spec proto.ScanSpec) Option {
	return func(o *beginOptions) {
		o.spec = spec
	}
}

// WithMode overrides the configured delivery mode for one scan. A scan
// begun with an unknown mode fails with ErrNotSupported.
func WithMode(mode Mode) Option {
	return func(o *beginOptions) {
		o.mode = mode
	}
}
