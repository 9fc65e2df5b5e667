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
	"io"

	"github.com/cubefs/cubefs/blobstore/common/trace"
	"github.com/cubefs/cubefs/blobstore/util/errors"
	"golang.org/x/sync/errgroup"

	"github.com/cubefs/cellbrowser/datasource"
	apierrors "github.com/cubefs/cellbrowser/errors"
	"github.com/cubefs/cellbrowser/metrics"
	"github.com/cubefs/cellbrowser/proto"
)

func (o *Orchestrator) run(s *Scan, source datasource.Source) {
	defer metrics.ActiveScanWorkers.Dec()
	span := trace.SpanFromContextSafe(s.ctx)

	err := o.execute(s, source)
	if err == nil {
		err = o.complete(s)
	}
	if err != nil && s.ctx.Err() == nil && !apierrors.IsNotFound(err) {
		span.Warnf("scan[%s] worker error: %s", s.token, errors.Detail(err))
	}
	o.finish(s, err)
}

func (o *Orchestrator) execute(s *Scan, source datasource.Source) error {
	if !s.mode.valid() {
		trace.SpanFromContextSafe(s.ctx).Warnf("scan[%s] unknown mode %q", s.token, s.mode)
		return apierrors.ErrNotSupported
	}
	tbl, err := source.OpenTable(s.ctx, s.namespace, s.table)
	if err != nil {
		return err
	}

	async, native := tbl.(datasource.AsyncScanner)
	mode := s.mode
	switch {
	case mode == ModePush && !native:
		return apierrors.ErrNotSupported
	case mode == ModeAuto && native:
		mode = ModePush
	case mode == ModeAuto:
		mode = ModePull
	}
	metrics.ScanStarted.WithLabelValues(string(mode)).Inc()

	if mode == ModePush {
		return o.push(s, async)
	}
	return o.pull(s, tbl)
}

// pull runs a producer batching cells from a blocking scanner into a
// bounded queue, and a consumer forwarding the queued chunks. A closed
// queue ends the consumer normally.
func (o *Orchestrator) pull(s *Scan, tbl datasource.Table) error {
	g, ctx := errgroup.WithContext(s.ctx)
	chunks := make(chan []proto.Cell, o.cfg.QueueDepth)

	g.Go(func() error {
		defer close(chunks)
		scanner, err := tbl.Scanner(ctx, s.spec)
		if err != nil {
			return err
		}
		defer scanner.Close()

		send := func(chunk []proto.Cell) error {
			select {
			case chunks <- chunk:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		chunk := make([]proto.Cell, 0, o.cfg.ChunkCapacity)
		for {
			if !o.isCurrent(s) {
				return apierrors.ErrScanSuperseded
			}
			if err = ctx.Err(); err != nil {
				return err
			}
			cell, err := scanner.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				return errors.Info(err, "scanner next failed")
			}
			if err = o.limiter.WaitScan(ctx, cell.Size()); err != nil {
				return err
			}
			chunk = append(chunk, cell)
			if len(chunk) == o.cfg.ChunkCapacity {
				if err = send(chunk); err != nil {
					return err
				}
				chunk = make([]proto.Cell, 0, o.cfg.ChunkCapacity)
			}
		}
		if len(chunk) > 0 {
			return send(chunk)
		}
		return nil
	})

	g.Go(func() error {
		for chunk := range chunks {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := o.deliver(s, chunk); err != nil {
				return err
			}
		}
		return nil
	})

	return g.Wait()
}

// push lets the engine stream batches into the scan. Batches are split to
// the chunk capacity, a superseded scan aborts the engine delivery.
func (o *Orchestrator) push(s *Scan, async datasource.AsyncScanner) error {
	var deliverErr error
	err := async.ScanAsync(s.ctx, s.spec, func(cells []proto.Cell) bool {
		for len(cells) > 0 {
			if !o.isCurrent(s) {
				deliverErr = apierrors.ErrScanSuperseded
				return false
			}
			n := len(cells)
			if n > o.cfg.ChunkCapacity {
				n = o.cfg.ChunkCapacity
			}
			chunk := cells[:n:n]
			cells = cells[n:]

			size := 0
			for i := range chunk {
				size += chunk[i].Size()
			}
			if deliverErr = o.limiter.WaitScan(s.ctx, size); deliverErr != nil {
				return false
			}
			if deliverErr = o.deliver(s, chunk); deliverErr != nil {
				return false
			}
		}
		return true
	})
	if err != nil {
		return errors.Info(err, "async scan failed")
	}
	if deliverErr != nil {
		return deliverErr
	}
	return s.ctx.Err()
}
