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

package session

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cubefs/cellbrowser/affinity"
	"github.com/cubefs/cellbrowser/datasource"
	apierrors "github.com/cubefs/cellbrowser/errors"
	"github.com/cubefs/cellbrowser/proto"
	"github.com/cubefs/cellbrowser/util"
)

type stateLog struct {
	lock     sync.Mutex
	events   []StateEvent
	offOwner int
}

func (l *stateLog) record(d *affinity.Dispatcher) func(ctx context.Context, ev StateEvent) {
	return func(ctx context.Context, ev StateEvent) {
		l.lock.Lock()
		defer l.lock.Unlock()
		if !d.IsOwner(ctx) {
			l.offOwner++
		}
		l.events = append(l.events, ev)
	}
}

func (l *stateLog) take() []StateEvent {
	l.lock.Lock()
	defer l.lock.Unlock()
	ret := l.events
	l.events = nil
	return ret
}

func newTestSession(t *testing.T) (*Session, *stateLog) {
	d := affinity.NewDispatcher(0)
	d.Start(context.Background())
	t.Cleanup(d.Close)

	s := New(Config{}, d)
	l := &stateLog{}
	s.Subscribe(l.record(d))
	t.Cleanup(func() { s.Disconnect(context.Background()) })
	return s, l
}

func tmpDescriptor(t *testing.T) string {
	path, err := util.GenTmpPath()
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(path) })
	return "badger://" + path
}

func TestConnectTwice(t *testing.T) {
	ctx := context.Background()
	s, l := newTestSession(t)
	a, b := tmpDescriptor(t), tmpDescriptor(t)

	require.Equal(t, proto.ConnectionDisconnected, s.State())
	_, err := s.Source()
	require.ErrorIs(t, err, apierrors.ErrNotConnected)

	require.NoError(t, s.Connect(ctx, a))
	require.NoError(t, s.Connect(ctx, b))
	require.Equal(t, proto.ConnectionConnected, s.State())
	require.Equal(t, b, s.Descriptor())

	require.Equal(t, []StateEvent{
		{State: proto.ConnectionConnecting, Descriptor: a},
		{State: proto.ConnectionConnected, Descriptor: a},
		{State: proto.ConnectionDisconnecting, Descriptor: a},
		{State: proto.ConnectionDisconnected, Descriptor: a},
		{State: proto.ConnectionConnecting, Descriptor: b},
		{State: proto.ConnectionConnected, Descriptor: b},
	}, l.take())

	src, err := s.Source()
	require.NoError(t, err)
	require.Equal(t, b, src.Descriptor())
	m, err := s.Directory()
	require.NoError(t, err)
	require.Same(t, src, m.Source())

	require.NoError(t, s.Disconnect(ctx))
	require.NoError(t, s.Disconnect(ctx))
	require.Equal(t, []StateEvent{
		{State: proto.ConnectionDisconnecting, Descriptor: b},
		{State: proto.ConnectionDisconnected, Descriptor: b},
	}, l.take())
	_, err = s.Directory()
	require.ErrorIs(t, err, apierrors.ErrNotConnected)

	l.lock.Lock()
	require.Zero(t, l.offOwner)
	l.lock.Unlock()
}

func TestConnectFailure(t *testing.T) {
	ctx := context.Background()
	s, l := newTestSession(t)

	var reported []error
	s.OnError(func(ev StateEvent, err error) {
		require.Equal(t, proto.ConnectionConnecting, ev.State)
		reported = append(reported, err)
	})

	require.ErrorIs(t, s.Connect(ctx, "nosuchengine://x"), apierrors.ErrUnknownEngine)
	require.ErrorIs(t, s.Connect(ctx, "no descriptor"), apierrors.ErrInvalidDescriptor)
	require.Equal(t, proto.ConnectionDisconnected, s.State())
	require.Len(t, reported, 2)

	require.Equal(t, []StateEvent{
		{State: proto.ConnectionConnecting, Descriptor: "nosuchengine://x"},
		{State: proto.ConnectionDisconnected, Descriptor: "nosuchengine://x"},
		{State: proto.ConnectionConnecting, Descriptor: "no descriptor"},
		{State: proto.ConnectionDisconnected, Descriptor: "no descriptor"},
	}, l.take())
}

func TestDisconnectDrainsScans(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t)
	require.NoError(t, s.Connect(ctx, "badger://"))

	src, err := s.Source()
	require.NoError(t, err)
	admin := src.(datasource.Admin)
	require.NoError(t, admin.CreateNamespace(ctx, "/ns"))
	require.NoError(t, admin.CreateTable(ctx, "/ns", "t"))
	tbl, err := src.OpenTable(ctx, "/ns", "t")
	require.NoError(t, err)
	cells := make([]proto.Cell, 5000)
	for i := range cells {
		cells[i] = proto.Cell{
			Key:   proto.Key{Row: []byte(fmt.Sprintf("row%05d", i)), ColumnFamily: "cf", Timestamp: 1},
			Value: []byte("v"),
		}
	}
	require.NoError(t, tbl.(datasource.Mutator).Set(ctx, cells...))

	m, err := s.Directory()
	require.NoError(t, err)
	node := m.TableAt("/ns/t")
	node.Cells(ctx)
	sc := node.Scan()
	require.NotNil(t, sc)

	require.NoError(t, s.Disconnect(ctx))
	select {
	case <-sc.Done():
	default:
		t.Fatal("scan still running after disconnect")
	}
	require.Zero(t, s.Orchestrator().Active())
	require.Nil(t, s.Orchestrator().Current())
}

func TestDisconnectAfterDispatcherClosed(t *testing.T) {
	ctx := context.Background()
	d := affinity.NewDispatcher(0)
	d.Start(ctx)
	s := New(Config{}, d)
	desc := tmpDescriptor(t)
	require.NoError(t, s.Connect(ctx, desc))

	d.Close()
	<-d.Done()

	require.ErrorIs(t, s.Disconnect(ctx), apierrors.ErrDispatcherClosed)
	require.Equal(t, proto.ConnectionDisconnected, s.State())
	_, err := s.Source()
	require.ErrorIs(t, err, apierrors.ErrNotConnected)
	require.NoError(t, s.Disconnect(ctx))

	// the store lock was released, so another session can open it
	other, _ := newTestSession(t)
	require.NoError(t, other.Connect(ctx, desc))
	require.NoError(t, other.Disconnect(ctx))
}
