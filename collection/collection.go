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

package collection

import (
	"context"
	"sync"

	"github.com/cubefs/cellbrowser/affinity"
	apierrors "github.com/cubefs/cellbrowser/errors"
)

type Action int

const (
	ActionAdd = Action(iota)
	ActionRemove
	ActionReplace
	ActionMove
	ActionReset
)

func (a Action) String() string {
	switch a {
	case ActionAdd:
		return "Add"
	case ActionRemove:
		return "Remove"
	case ActionReplace:
		return "Replace"
	case ActionMove:
		return "Move"
	case ActionReset:
		return "Reset"
	default:
		return "Unknown"
	}
}

type (
	// Event describes one change. Indexes that do not apply are -1.
	Event[T any] struct {
		Action   Action
		NewItems []T
		OldItems []T
		NewIndex int
		OldIndex int
	}

	Handler[T any] func(ctx context.Context, ev Event[T])

	subscriber[T any] struct {
		id uint64
		fn Handler[T]
	}

	// Collection is an ordered sequence bound to the owner goroutine of a
	// dispatcher. Mutations are executed on the owner, in one total order,
	// and handlers are called there synchronously after the mutation with no
	// lock held. Reads may happen on any goroutine.
	Collection[T comparable] struct {
		d *affinity.Dispatcher

		lock  sync.RWMutex
		items []T

		subLock     sync.Mutex
		subscribers []subscriber[T]
		nextSubID   uint64
	}
)

func New[T comparable](d *affinity.Dispatcher) *Collection[T] {
	return &Collection[T]{d: d}
}

func (c *Collection[T]) Dispatcher() *affinity.Dispatcher {
	return c.d
}

// Subscribe registers fn for every subsequent change and returns a function
// removing it again.
func (c *Collection[T]) Subscribe(fn Handler[T]) (unsubscribe func()) {
	c.subLock.Lock()
	c.nextSubID++
	id := c.nextSubID
	c.subscribers = append(c.subscribers, subscriber[T]{id: id, fn: fn})
	c.subLock.Unlock()

	return func() {
		c.subLock.Lock()
		defer c.subLock.Unlock()
		for i := range c.subscribers {
			if c.subscribers[i].id == id {
				c.subscribers = append(c.subscribers[:i:i], c.subscribers[i+1:]...)
				return
			}
		}
	}
}

func (c *Collection[T]) Add(ctx context.Context, item T) error {
	return c.AddRange(ctx, []T{item})
}

func (c *Collection[T]) AddRange(ctx context.Context, items []T) error {
	if len(items) == 0 {
		return nil
	}
	items = append([]T(nil), items...)
	return c.mutate(ctx, func() (Event[T], bool, error) {
		ev := Event[T]{Action: ActionAdd, NewItems: items, NewIndex: len(c.items), OldIndex: -1}
		c.items = append(c.items, items...)
		return ev, true, nil
	})
}

func (c *Collection[T]) Insert(ctx context.Context, index int, item T) error {
	return c.mutate(ctx, func() (Event[T], bool, error) {
		if index < 0 || index > len(c.items) {
			return Event[T]{}, false, apierrors.ErrIndexOutOfRange
		}
		var zero T
		c.items = append(c.items, zero)
		copy(c.items[index+1:], c.items[index:])
		c.items[index] = item
		return Event[T]{Action: ActionAdd, NewItems: []T{item}, NewIndex: index, OldIndex: -1}, true, nil
	})
}

// Remove deletes the first occurrence of item and reports whether one existed.
func (c *Collection[T]) Remove(ctx context.Context, item T) (removed bool, err error) {
	err = c.mutate(ctx, func() (Event[T], bool, error) {
		index := c.indexOf(item)
		if index < 0 {
			return Event[T]{}, false, nil
		}
		removed = true
		return c.removeAt(index), true, nil
	})
	return
}

func (c *Collection[T]) RemoveAt(ctx context.Context, index int) error {
	return c.mutate(ctx, func() (Event[T], bool, error) {
		if index < 0 || index >= len(c.items) {
			return Event[T]{}, false, apierrors.ErrIndexOutOfRange
		}
		return c.removeAt(index), true, nil
	})
}

func (c *Collection[T]) Set(ctx context.Context, index int, item T) error {
	return c.mutate(ctx, func() (Event[T], bool, error) {
		if index < 0 || index >= len(c.items) {
			return Event[T]{}, false, apierrors.ErrIndexOutOfRange
		}
		old := c.items[index]
		c.items[index] = item
		return Event[T]{
			Action: ActionReplace, NewItems: []T{item}, OldItems: []T{old}, NewIndex: index, OldIndex: index,
		}, true, nil
	})
}

func (c *Collection[T]) Move(ctx context.Context, oldIndex, newIndex int) error {
	return c.mutate(ctx, func() (Event[T], bool, error) {
		if oldIndex < 0 || oldIndex >= len(c.items) || newIndex < 0 || newIndex >= len(c.items) {
			return Event[T]{}, false, apierrors.ErrIndexOutOfRange
		}
		item := c.items[oldIndex]
		if oldIndex < newIndex {
			copy(c.items[oldIndex:], c.items[oldIndex+1:newIndex+1])
		} else {
			copy(c.items[newIndex+1:], c.items[newIndex:oldIndex])
		}
		c.items[newIndex] = item
		return Event[T]{
			Action: ActionMove, NewItems: []T{item}, OldItems: []T{item}, NewIndex: newIndex, OldIndex: oldIndex,
		}, true, nil
	})
}

// Clear removes every item. The Reset event carries the removed items.
func (c *Collection[T]) Clear(ctx context.Context) error {
	return c.mutate(ctx, func() (Event[T], bool, error) {
		old := c.items
		c.items = nil
		return Event[T]{Action: ActionReset, OldItems: old, NewIndex: -1, OldIndex: -1}, true, nil
	})
}

func (c *Collection[T]) Count() int {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return len(c.items)
}

func (c *Collection[T]) Get(index int) (item T, err error) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	if index < 0 || index >= len(c.items) {
		return item, apierrors.ErrIndexOutOfRange
	}
	return c.items[index], nil
}

func (c *Collection[T]) Contains(item T) bool {
	return c.IndexOf(item) >= 0
}

func (c *Collection[T]) IndexOf(item T) int {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.indexOf(item)
}

// Items returns a snapshot of the sequence.
func (c *Collection[T]) Items() []T {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return append([]T(nil), c.items...)
}

// CopyTo copies the sequence into dst starting at index.
func (c *Collection[T]) CopyTo(dst []T, index int) error {
	c.lock.RLock()
	defer c.lock.RUnlock()
	if index < 0 || len(dst)-index < len(c.items) {
		return apierrors.ErrIndexOutOfRange
	}
	copy(dst[index:], c.items)
	return nil
}

// Range calls fn for every item of a snapshot until fn returns false.
func (c *Collection[T]) Range(fn func(index int, item T) bool) {
	for i, item := range c.Items() {
		if !fn(i, item) {
			return
		}
	}
}

func (c *Collection[T]) mutate(ctx context.Context, fn func() (Event[T], bool, error)) error {
	return c.d.Invoke(ctx, func(ctx context.Context) error {
		c.lock.Lock()
		ev, changed, err := fn()
		c.lock.Unlock()
		if err != nil || !changed {
			return err
		}
		c.notify(ctx, ev)
		return nil
	})
}

func (c *Collection[T]) notify(ctx context.Context, ev Event[T]) {
	c.subLock.Lock()
	subs := append([]subscriber[T](nil), c.subscribers...)
	c.subLock.Unlock()
	for _, sub := range subs {
		sub.fn(ctx, ev)
	}
}

func (c *Collection[T]) removeAt(index int) Event[T] {
	old := c.items[index]
	c.items = append(c.items[:index], c.items[index+1:]...)
	return Event[T]{Action: ActionRemove, OldItems: []T{old}, NewIndex: -1, OldIndex: index}
}

func (c *Collection[T]) indexOf(item T) int {
	for i := range c.items {
		if c.items[i] == item {
			return i
		}
	}
	return -1
}
