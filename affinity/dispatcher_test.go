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

package affinity

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apierrors "github.com/cubefs/cellbrowser/errors"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	d := NewDispatcher(0)
	d.Start(context.Background())
	t.Cleanup(d.Close)
	return d
}

func TestInvokeRunsOnOwner(t *testing.T) {
	ctx := context.Background()
	d := newTestDispatcher(t)
	require.False(t, d.IsOwner(ctx))

	var onOwner, nested bool
	err := d.Invoke(ctx, func(ctx context.Context) error {
		onOwner = d.IsOwner(ctx)
		// inline, the owner must not wait for itself
		return d.Invoke(ctx, func(ctx context.Context) error {
			nested = d.IsOwner(ctx)
			return nil
		})
	})
	require.NoError(t, err)
	require.True(t, onOwner)
	require.True(t, nested)

	other := NewDispatcher(1)
	require.NoError(t, d.Invoke(ctx, func(ctx context.Context) error {
		require.False(t, other.IsOwner(ctx))
		require.False(t, d.IsOwner(Detach(ctx)))
		return nil
	}))
	require.Equal(t, ctx, Detach(ctx))
}

func TestPostOrdering(t *testing.T) {
	ctx := context.Background()
	d := newTestDispatcher(t)

	var (
		mu    sync.Mutex
		order []int
	)
	for i := 0; i < 100; i++ {
		i := i
		require.NoError(t, d.Post(ctx, func(ctx context.Context) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}))
	}
	require.NoError(t, d.Invoke(ctx, func(ctx context.Context) error { return nil }))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 100)
	for i := range order {
		require.Equal(t, i, order[i])
	}
}

func TestPostIgnoresCancellation(t *testing.T) {
	d := newTestDispatcher(t)
	ctx, cancel := context.WithCancel(context.Background())

	seen := make(chan error, 1)
	block := make(chan struct{})
	require.NoError(t, d.Post(ctx, func(ctx context.Context) { <-block }))
	require.NoError(t, d.Post(ctx, func(ctx context.Context) { seen <- ctx.Err() }))
	cancel()
	close(block)
	require.NoError(t, <-seen)
}

func TestInvokePanicAndError(t *testing.T) {
	ctx := context.Background()
	d := newTestDispatcher(t)

	err := d.Invoke(ctx, func(ctx context.Context) error { panic("boom") })
	require.ErrorContains(t, err, "boom")

	err = d.Invoke(ctx, func(ctx context.Context) error { return apierrors.ErrIndexOutOfRange })
	require.ErrorIs(t, err, apierrors.ErrIndexOutOfRange)

	// the owner survives
	require.NoError(t, d.Invoke(ctx, func(ctx context.Context) error { return nil }))
}

func TestInvokeCancelledWait(t *testing.T) {
	d := newTestDispatcher(t)
	block := make(chan struct{})
	defer close(block)
	require.NoError(t, d.Post(context.Background(), func(ctx context.Context) { <-block }))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := d.Invoke(ctx, func(ctx context.Context) error { return nil })
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClosedDispatcher(t *testing.T) {
	ctx := context.Background()
	d := NewDispatcher(4)
	d.Start(ctx)
	d.Close()
	<-d.Done()

	require.ErrorIs(t, d.Invoke(ctx, func(ctx context.Context) error { return nil }), apierrors.ErrDispatcherClosed)
	require.ErrorIs(t, d.Post(ctx, func(ctx context.Context) {}), apierrors.ErrDispatcherClosed)
	require.Error(t, d.Run(ctx))
}

func TestRunStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	d := NewDispatcher(4)
	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx) }()
	require.NoError(t, d.Invoke(context.Background(), func(ctx context.Context) error { return nil }))
	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)
	require.ErrorIs(t, d.Invoke(context.Background(), func(ctx context.Context) error { return nil }), apierrors.ErrDispatcherClosed)
}

func TestWaitServesQueue(t *testing.T) {
	ctx := context.Background()
	d := newTestDispatcher(t)

	ran := false
	err := d.Invoke(ctx, func(ctx context.Context) error {
		done := make(chan struct{})
		go func() {
			defer close(done)
			// needs the owner while the owner is waiting for done
			d.Invoke(context.Background(), func(ctx context.Context) error {
				ran = true
				return nil
			})
		}()
		return d.Wait(ctx, done)
	})
	require.NoError(t, err)
	require.True(t, ran)

	done := make(chan struct{})
	close(done)
	require.NoError(t, d.Wait(ctx, done))

	tctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, d.Wait(tctx, make(chan struct{})), context.DeadlineExceeded)
}
