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
	"context"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/cubefs/cellbrowser/proto"
)

type (
	// Token identifies one scan generation.
	Token uuid.UUID

	// Event is published on the owner for the live scan only.
	Event struct {
		Token        Token
		State        proto.ScanState
		CellsScanned uint64
		BytesScanned uint64
	}

	// ChunkFunc receives the chunks of a scan on the owner, in stream order.
	ChunkFunc func(ctx context.Context, cells []proto.Cell)

	// Scan is the handle of one started scan.
	Scan struct {
		token     Token
		namespace string
		table     string
		spec      proto.ScanSpec
		mode      Mode
		onChunk   ChunkFunc
		o         *Orchestrator

		ctx    context.Context
		cancel context.CancelCauseFunc
		done   chan struct{}
		err    error

		state atomic.Int32
		cells atomic.Uint64
		bytes atomic.Uint64
	}
)

func newToken() Token {
	return Token(uuid.New())
}

func (t Token) String() string {
	return uuid.UUID(t).String()
}

func (s *Scan) Token() Token {
	return s.token
}

// Table returns the absolute path of the scanned table.
func (s *Scan) Table() string {
	return proto.JoinPath(s.namespace, s.table)
}

func (s *Scan) Spec() proto.ScanSpec {
	return s.spec
}

// Done is closed once the worker has exited.
func (s *Scan) Done() <-chan struct{} {
	return s.done
}

// Err returns the terminal error once Done is closed. Scans that were
// superseded or cancelled end with ErrScanSuperseded or their context error.
func (s *Scan) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Wait blocks until the worker exits and returns its terminal error. It
// serves the owner queue while waiting when called on the owner.
func (s *Scan) Wait(ctx context.Context) error {
	if err := s.o.d.Wait(ctx, s.done); err != nil {
		return err
	}
	return s.err
}

func (s *Scan) State() proto.ScanState {
	return proto.ScanState(s.state.Load())
}

// Progress returns the cells and bytes delivered so far.
func (s *Scan) Progress() (cells, bytes uint64) {
	return s.cells.Load(), s.bytes.Load()
}

func (s *Scan) finished() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
