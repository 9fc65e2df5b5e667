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
	"errors"
	"sync"

	"github.com/cubefs/cubefs/blobstore/common/trace"

	"github.com/cubefs/cellbrowser/affinity"
	"github.com/cubefs/cellbrowser/datasource"
	apierrors "github.com/cubefs/cellbrowser/errors"
	"github.com/cubefs/cellbrowser/metrics"
	"github.com/cubefs/cellbrowser/proto"
	"github.com/cubefs/cellbrowser/util/limiter"
)

type (
	subscriber struct {
		id uint64
		fn func(ctx context.Context, ev Event)
	}

	// Orchestrator owns the single live scan generation. Every scan runs on
	// its own worker and forwards its chunks to the owner of d, where they
	// are dropped unless the scan is still the current one.
	Orchestrator struct {
		cfg     Config
		d       *affinity.Dispatcher
		limiter limiter.Limiter

		// guards current and workers only, never held across I/O
		lock    sync.Mutex
		current *Scan
		workers map[Token]*Scan

		subLock     sync.Mutex
		subscribers []subscriber
		nextSubID   uint64
		onError     func(s *Scan, err error)
	}
)

// NewOrchestrator returns an orchestrator delivering on d. A nil lim is
// replaced by one honouring cfg.ReadMBPS.
func NewOrchestrator(cfg Config, d *affinity.Dispatcher, lim limiter.Limiter) *Orchestrator {
	cfg.fixConfig()
	if lim == nil {
		lim = limiter.NewLimiter(limiter.LimitConfig{ScanMBPS: cfg.ReadMBPS})
	}
	return &Orchestrator{
		cfg:     cfg,
		d:       d,
		limiter: lim,
		workers: make(map[Token]*Scan),
	}
}

func (o *Orchestrator) Config() Config {
	return o.cfg
}

// Subscribe registers fn for the state changes of the live scan. fn runs on
// the owner.
func (o *Orchestrator) Subscribe(fn func(ctx context.Context, ev Event)) (unsubscribe func()) {
	o.subLock.Lock()
	o.nextSubID++
	id := o.nextSubID
	o.subscribers = append(o.subscribers, subscriber{id: id, fn: fn})
	o.subLock.Unlock()

	return func() {
		o.subLock.Lock()
		defer o.subLock.Unlock()
		for i := range o.subscribers {
			if o.subscribers[i].id == id {
				o.subscribers = append(o.subscribers[:i:i], o.subscribers[i+1:]...)
				return
			}
		}
	}
}

// OnError sets the hook called with the terminal error of every scan that
// failed for another reason than being superseded or cancelled.
func (o *Orchestrator) OnError(fn func(s *Scan, err error)) {
	o.subLock.Lock()
	o.onError = fn
	o.subLock.Unlock()
}

// Current returns the live scan, nil if there is none.
func (o *Orchestrator) Current() *Scan {
	o.lock.Lock()
	defer o.lock.Unlock()
	return o.current
}

// Active returns the number of workers that have not exited yet.
func (o *Orchestrator) Active() int {
	o.lock.Lock()
	defer o.lock.Unlock()
	o.pruneLocked()
	return len(o.workers)
}

// BeginScan supersedes the live scan with a new one over namespace/table
// and returns without waiting for cells. Begin is published before the
// worker starts.
func (o *Orchestrator) BeginScan(ctx context.Context, source datasource.Source, namespace, table string,
	onChunk ChunkFunc, opts ...Option,
) *Scan {
	bo := beginOptions{mode: o.cfg.Mode}
	for _, opt := range opts {
		opt(&bo)
	}

	s := &Scan{
		token:     newToken(),
		namespace: namespace,
		table:     table,
		spec:      bo.spec,
		mode:      bo.mode,
		onChunk:   onChunk,
		o:         o,
		done:      make(chan struct{}),
	}
	span, sctx := trace.StartSpanFromContext(affinity.Detach(context.WithoutCancel(ctx)), "scan")
	s.ctx, s.cancel = context.WithCancelCause(sctx)

	o.lock.Lock()
	prev := o.current
	o.current = s
	o.workers[s.token] = s
	o.pruneLocked()
	o.lock.Unlock()

	if prev != nil {
		prev.cancel(apierrors.ErrScanSuperseded)
	}
	span.Infof("begin scan[%s] table[%s] spec[%s] mode[%s]", s.token, s.Table(), s.spec, s.mode)

	s.state.Store(int32(proto.ScanStateBegin))
	err := o.d.Invoke(ctx, func(ctx context.Context) error {
		if o.isCurrent(s) {
			o.publish(ctx, Event{Token: s.token, State: proto.ScanStateBegin})
		}
		return nil
	})
	if err != nil {
		o.finish(s, err)
		return s
	}

	metrics.ActiveScanWorkers.Inc()
	go o.run(s, source)
	return s
}

// Cancel invalidates the live scan and waits, bounded by the configured
// timeout, until every worker has exited. On the owner it keeps serving
// the queue while waiting.
func (o *Orchestrator) Cancel(ctx context.Context) error {
	span := trace.SpanFromContextSafe(ctx)

	o.lock.Lock()
	o.current = nil
	workers := make([]*Scan, 0, len(o.workers))
	for _, s := range o.workers {
		workers = append(workers, s)
	}
	o.lock.Unlock()

	for _, s := range workers {
		s.cancel(apierrors.ErrScanSuperseded)
	}

	wctx, cancel := context.WithTimeout(ctx, o.cfg.cancelTimeout())
	defer cancel()
	for _, s := range workers {
		if err := o.d.Wait(wctx, s.done); err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				span.Warnf("scan workers did not drain in %s", o.cfg.cancelTimeout())
				return apierrors.ErrCancelTimeout
			}
			return err
		}
	}

	o.lock.Lock()
	o.pruneLocked()
	o.lock.Unlock()
	return nil
}

func (o *Orchestrator) isCurrent(s *Scan) bool {
	o.lock.Lock()
	defer o.lock.Unlock()
	return o.current == s
}

// pruneLocked drops exited workers from the registry.
func (o *Orchestrator) pruneLocked() {
	for token, s := range o.workers {
		if s.finished() {
			delete(o.workers, token)
		}
	}
}

func (o *Orchestrator) publish(ctx context.Context, ev Event) {
	o.subLock.Lock()
	subs := append([]subscriber(nil), o.subscribers...)
	o.subLock.Unlock()
	for _, sub := range subs {
		sub.fn(ctx, ev)
	}
}

// deliver hands one chunk to the owner. The token is checked again on the
// owner so that chunks of a superseded scan never reach subscribers.
func (o *Orchestrator) deliver(s *Scan, cells []proto.Cell) error {
	if !o.isCurrent(s) {
		metrics.StaleChunks.Inc()
		return apierrors.ErrScanSuperseded
	}

	var size uint64
	for i := range cells {
		size += uint64(cells[i].Size())
	}
	return o.d.Invoke(s.ctx, func(ctx context.Context) error {
		if !o.isCurrent(s) {
			metrics.StaleChunks.Inc()
			return apierrors.ErrScanSuperseded
		}
		if s.onChunk != nil {
			s.onChunk(ctx, cells)
		}
		cellsScanned := s.cells.Add(uint64(len(cells)))
		bytesScanned := s.bytes.Add(size)
		s.state.Store(int32(proto.ScanStateExecuting))
		metrics.ScanCells.Add(float64(len(cells)))
		metrics.ScanBytes.Add(float64(size))

		o.publish(ctx, Event{
			Token:        s.token,
			State:        proto.ScanStateExecuting,
			CellsScanned: cellsScanned,
			BytesScanned: bytesScanned,
		})
		return nil
	})
}

// complete publishes Completed exactly once, only while s is current.
func (o *Orchestrator) complete(s *Scan) error {
	return o.d.Invoke(s.ctx, func(ctx context.Context) error {
		if !o.isCurrent(s) {
			return apierrors.ErrScanSuperseded
		}
		s.state.Store(int32(proto.ScanStateCompleted))
		cells, bytes := s.Progress()
		o.publish(ctx, Event{
			Token:        s.token,
			State:        proto.ScanStateCompleted,
			CellsScanned: cells,
			BytesScanned: bytes,
		})
		return nil
	})
}

func (o *Orchestrator) finish(s *Scan, err error) {
	span := trace.SpanFromContextSafe(s.ctx)
	if err != nil && s.ctx.Err() != nil {
		// a cancelled scan reports why it was cancelled
		err = context.Cause(s.ctx)
	}
	s.err = err
	s.cancel(nil)

	cells, bytes := s.Progress()
	switch {
	case err == nil:
		metrics.ScanFinished.WithLabelValues("completed").Inc()
		span.Infof("scan[%s] completed, cells[%d] bytes[%d]", s.token, cells, bytes)
	case errors.Is(err, apierrors.ErrScanSuperseded) || errors.Is(err, context.Canceled):
		metrics.ScanFinished.WithLabelValues("superseded").Inc()
		span.Infof("scan[%s] stopped after cells[%d]: %s", s.token, cells, err)
	default:
		metrics.ScanFinished.WithLabelValues("failed").Inc()
		span.Errorf("scan[%s] failed after cells[%d]: %s", s.token, cells, err)
		o.subLock.Lock()
		onError := o.onError
		o.subLock.Unlock()
		if onError != nil {
			onError(s, err)
		}
	}
	close(s.done)
}
