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

// Package affinity provides the owner goroutine that every thread-affine
// structure marshals its mutations and notifications onto.
package affinity

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/cubefs/cubefs/blobstore/common/trace"

	apierrors "github.com/cubefs/cellbrowser/errors"
	"github.com/cubefs/cellbrowser/metrics"
)

const defaultQueueSize = 1024

var errAlreadyRunning = errors.New("dispatcher is already running")

type (
	ownerKey struct{}

	command struct {
		ctx  context.Context
		fn   func(ctx context.Context) error
		done chan error
	}

	// Dispatcher owns a command queue served by exactly one goroutine, the
	// owner. Functions run by the owner receive an owner context; IsOwner
	// reports whether a context is one. Owner contexts must not be handed to
	// other goroutines, use Detach for work spawned from the owner.
	Dispatcher struct {
		queue     chan command
		started   chan struct{}
		closed    chan struct{}
		stopped   chan struct{}
		running   int32
		closeOnce sync.Once
	}
)

func NewDispatcher(queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Dispatcher{
		queue:   make(chan command, queueSize),
		started: make(chan struct{}),
		closed:  make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Run makes the calling goroutine the owner and serves the queue until
// Close is called or ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&d.running, 0, 1) {
		return errAlreadyRunning
	}
	close(d.started)
	defer close(d.stopped)

	for {
		select {
		case cmd := <-d.queue:
			d.execute(cmd)
		case <-d.closed:
			d.drain()
			return nil
		case <-ctx.Done():
			d.Close()
			d.drain()
			return ctx.Err()
		}
	}
}

// Start runs the dispatcher on a new goroutine and returns once it serves.
func (d *Dispatcher) Start(ctx context.Context) {
	go d.Run(ctx)
	<-d.started
}

func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.closed)
	})
}

// Done is closed once the owner goroutine has exited.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.stopped
}

func (d *Dispatcher) IsOwner(ctx context.Context) bool {
	owner, _ := ctx.Value(ownerKey{}).(*Dispatcher)
	return owner == d
}

// Len returns the number of queued commands.
func (d *Dispatcher) Len() int {
	return len(d.queue)
}

// Invoke runs fn on the owner and returns its error. It runs fn inline when
// ctx already is an owner context. Cancelling ctx abandons the wait, fn may
// still run afterwards.
func (d *Dispatcher) Invoke(ctx context.Context, fn func(ctx context.Context) error) error {
	if d.IsOwner(ctx) {
		metrics.DispatcherCommands.WithLabelValues("inline").Inc()
		return d.call(ctx, fn)
	}

	cmd := command{ctx: ctx, fn: fn, done: make(chan error, 1)}
	if err := d.enqueue(ctx, cmd); err != nil {
		return err
	}
	select {
	case err := <-cmd.done:
		return err
	case <-d.stopped:
		select {
		case err := <-cmd.done:
			return err
		default:
			return apierrors.ErrDispatcherClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Post queues fn behind every command queued before it and returns without
// waiting. fn sees the values of ctx but not its cancellation.
func (d *Dispatcher) Post(ctx context.Context, fn func(ctx context.Context)) error {
	return d.enqueue(ctx, command{
		ctx: context.WithoutCancel(ctx),
		fn: func(ctx context.Context) error {
			fn(ctx)
			return nil
		},
	})
}

// Wait blocks until done is closed. On the owner it keeps serving the queue
// meanwhile so that commands posted by the goroutines being waited for drain.
func (d *Dispatcher) Wait(ctx context.Context, done <-chan struct{}) error {
	if !d.IsOwner(ctx) {
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for {
		select {
		case <-done:
			return nil
		case cmd := <-d.queue:
			d.execute(cmd)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Detach returns a context that is never an owner context.
func Detach(ctx context.Context) context.Context {
	if _, ok := ctx.Value(ownerKey{}).(*Dispatcher); !ok {
		return ctx
	}
	return context.WithValue(ctx, ownerKey{}, nil)
}

func (d *Dispatcher) enqueue(ctx context.Context, cmd command) error {
	select {
	case <-d.closed:
		return apierrors.ErrDispatcherClosed
	default:
	}

	select {
	case d.queue <- cmd:
		metrics.DispatcherQueued.Inc()
		return nil
	case <-d.closed:
		return apierrors.ErrDispatcherClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) execute(cmd command) {
	metrics.DispatcherQueued.Dec()
	kind := "post"
	if cmd.done != nil {
		kind = "invoke"
	}
	metrics.DispatcherCommands.WithLabelValues(kind).Inc()

	err := d.call(context.WithValue(cmd.ctx, ownerKey{}, d), cmd.fn)
	if cmd.done != nil {
		cmd.done <- err
	}
}

func (d *Dispatcher) call(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.DispatcherPanics.Inc()
			span := trace.SpanFromContextSafe(ctx)
			span.Errorf("recovered panic on owner goroutine: %v\n%s", r, debug.Stack())
			err = fmt.Errorf("panic on owner goroutine: %v", r)
		}
	}()
	return fn(ctx)
}

func (d *Dispatcher) drain() {
	for {
		select {
		case cmd := <-d.queue:
			metrics.DispatcherQueued.Dec()
			if cmd.done != nil {
				cmd.done <- apierrors.ErrDispatcherClosed
			}
		default:
			return
		}
	}
}
