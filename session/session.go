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
	"sync"

	"github.com/cubefs/cubefs/blobstore/common/trace"
	"github.com/cubefs/cubefs/blobstore/util/errors"

	"github.com/cubefs/cellbrowser/affinity"
	"github.com/cubefs/cellbrowser/datasource"
	// engines reachable through descriptors
	_ "github.com/cubefs/cellbrowser/datasource/badgersource"
	_ "github.com/cubefs/cellbrowser/datasource/kvsource"
	_ "github.com/cubefs/cellbrowser/datasource/remote"
	"github.com/cubefs/cellbrowser/directory"
	apierrors "github.com/cubefs/cellbrowser/errors"
	"github.com/cubefs/cellbrowser/metrics"
	"github.com/cubefs/cellbrowser/proto"
	"github.com/cubefs/cellbrowser/scan"
)

type (
	subscriber struct {
		id uint64
		fn func(ctx context.Context, ev StateEvent)
	}

	Config struct {
		Scan      scan.Config      `json:"scan"`
		Directory directory.Config `json:"directory"`
	}

	StateEvent struct {
		State      proto.ConnectionState
		Descriptor string
	}

	// Session is one connection of the browsing client. It owns the scan
	// orchestrator shared by every table of the connection and the directory
	// tree built on top of it.
	Session struct {
		cfg Config
		d   *affinity.Dispatcher
		o   *scan.Orchestrator

		// serializes Connect and Disconnect
		opLock sync.Mutex

		lock       sync.RWMutex
		state      proto.ConnectionState
		descriptor string
		source     datasource.Source
		model      *directory.Model

		subLock     sync.Mutex
		subscribers []subscriber
		nextSubID   uint64
		onError     func(ev StateEvent, err error)
	}
)

func New(cfg Config, d *affinity.Dispatcher) *Session {
	return &Session{
		cfg:   cfg,
		d:     d,
		o:     scan.NewOrchestrator(cfg.Scan, d, nil),
		state: proto.ConnectionDisconnected,
	}
}

// Subscribe registers fn for connection state changes. fn runs on the owner
// goroutine of the dispatcher.
func (s *Session) Subscribe(fn func(ctx context.Context, ev StateEvent)) (unsubscribe func()) {
	s.subLock.Lock()
	s.nextSubID++
	id := s.nextSubID
	s.subscribers = append(s.subscribers, subscriber{id: id, fn: fn})
	s.subLock.Unlock()

	return func() {
		s.subLock.Lock()
		defer s.subLock.Unlock()
		for i := range s.subscribers {
			if s.subscribers[i].id == id {
				s.subscribers = append(s.subscribers[:i:i], s.subscribers[i+1:]...)
				return
			}
		}
	}
}

// OnError sets the hook receiving connect and disconnect failures.
func (s *Session) OnError(fn func(ev StateEvent, err error)) {
	s.subLock.Lock()
	s.onError = fn
	s.subLock.Unlock()
}

func (s *Session) State() proto.ConnectionState {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.state
}

func (s *Session) Descriptor() string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.descriptor
}

func (s *Session) Orchestrator() *scan.Orchestrator {
	return s.o
}

func (s *Session) Dispatcher() *affinity.Dispatcher {
	return s.d
}

func (s *Session) Source() (datasource.Source, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.state != proto.ConnectionConnected {
		return nil, apierrors.ErrNotConnected
	}
	return s.source, nil
}

func (s *Session) Directory() (*directory.Model, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.state != proto.ConnectionConnected {
		return nil, apierrors.ErrNotConnected
	}
	return s.model, nil
}

// Connect replaces the current connection, if any, with one to descriptor.
// On failure the session is left disconnected.
func (s *Session) Connect(ctx context.Context, descriptor string) error {
	span, ctx := trace.StartSpanFromContext(ctx, "connect")

	s.opLock.Lock()
	defer s.opLock.Unlock()

	if err := s.disconnect(ctx); err != nil {
		span.Warnf("disconnect before connect failed: %s", errors.Detail(err))
	}

	if err := s.transition(ctx, proto.ConnectionConnecting, descriptor, nil, nil); err != nil {
		s.transition(ctx, proto.ConnectionDisconnected, descriptor, nil, nil)
		return err
	}
	source, err := datasource.Open(ctx, descriptor)
	if err == nil {
		var model *directory.Model
		if model, err = directory.NewModel(s.cfg.Directory, source, s.o, s.d); err == nil {
			return s.transition(ctx, proto.ConnectionConnected, descriptor, source, model)
		}
		source.Close()
	}

	span.Errorf("connect to %s failed: %s", descriptor, errors.Detail(err))
	s.transition(ctx, proto.ConnectionDisconnected, descriptor, nil, nil)
	s.reportError(StateEvent{State: proto.ConnectionConnecting, Descriptor: descriptor}, err)
	return err
}

// Disconnect drains every in-flight scan, then releases the engine. It is a
// no-op on a disconnected session.
func (s *Session) Disconnect(ctx context.Context) error {
	s.opLock.Lock()
	defer s.opLock.Unlock()
	return s.disconnect(ctx)
}

func (s *Session) disconnect(ctx context.Context) error {
	span := trace.SpanFromContextSafe(ctx)

	s.lock.RLock()
	state, descriptor, source, model := s.state, s.descriptor, s.source, s.model
	s.lock.RUnlock()
	if state == proto.ConnectionDisconnected {
		return nil
	}

	cancelErr := s.o.Cancel(ctx)
	if cancelErr != nil {
		span.Warnf("cancel scans of %s failed: %s", descriptor, errors.Detail(cancelErr))
	}

	// a failed notification must not keep the source open
	err := s.transition(ctx, proto.ConnectionDisconnecting, descriptor, source, model)
	if model != nil {
		if ierr := model.Invalidate(ctx); ierr != nil {
			span.Warnf("invalidate directory of %s failed: %s", descriptor, ierr)
		}
	}
	if source != nil {
		if cerr := source.Close(); cerr != nil {
			cerr = errors.Info(cerr, "close source", descriptor)
			span.Errorf("close source failed: %s", errors.Detail(cerr))
			if err == nil {
				err = cerr
			}
		}
	}
	if terr := s.transition(ctx, proto.ConnectionDisconnected, descriptor, nil, nil); terr != nil && err == nil {
		err = terr
	}
	if err == nil {
		err = cancelErr
	}
	if err != nil {
		s.reportError(StateEvent{State: proto.ConnectionDisconnecting, Descriptor: descriptor}, err)
	}
	return err
}

// transition installs the new state and notifies subscribers on the owner.
func (s *Session) transition(ctx context.Context, state proto.ConnectionState, descriptor string,
	source datasource.Source, model *directory.Model,
) error {
	s.lock.Lock()
	s.state = state
	s.descriptor = descriptor
	s.source = source
	s.model = model
	s.lock.Unlock()

	trace.SpanFromContextSafe(ctx).Infof("session %s: %s", descriptor, state)
	metrics.SessionTransitions.WithLabelValues(state.String()).Inc()

	ev := StateEvent{State: state, Descriptor: descriptor}
	return s.d.Invoke(ctx, func(ctx context.Context) error {
		s.subLock.Lock()
		subs := append([]subscriber(nil), s.subscribers...)
		s.subLock.Unlock()
		for _, sub := range subs {
			sub.fn(ctx, ev)
		}
		return nil
	})
}

func (s *Session) reportError(ev StateEvent, err error) {
	s.subLock.Lock()
	fn := s.onError
	s.subLock.Unlock()
	if fn != nil {
		fn(ev, err)
	}
}
