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

package limiter

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	apierrors "github.com/cubefs/cellbrowser/errors"
)

type (
	// Limiter throttles the load the browsing client puts on an engine:
	// the number of concurrent point lookups and the bytes per second
	// consumed by scan workers.
	Limiter interface {
		AcquireLookup() error
		ReleaseLookup()
		WaitScan(ctx context.Context, n int) error
		SetLookupConcurrency(value uint32)
		SetScanMBPS(mbps int)
		GetConfig() LimitConfig
		Status() Status
	}
	CountLimit interface {
		Running() int
		Acquire() error
		Release()
		SetLimit(limit uint32)
	}
	LimitConfig struct {
		LookupConcurrency int `json:"lookup_concurrency"`
		ScanMBPS          int `json:"scan_mbps"`
	}
	Status struct {
		Config        LimitConfig
		LookupRunning int
		ScanWait      int
	}
	limiter struct {
		config          LimitConfig
		lookupCountLimt CountLimit
		scanRate        *rate.Limiter
		lock            sync.RWMutex
	}
)

const mb = 1 << 20

// NewLimiter returns a limiter, zero values in cfg disable the matching limit.
func NewLimiter(cfg LimitConfig) Limiter {
	lim := &limiter{config: cfg}
	if cfg.LookupConcurrency > 0 {
		lim.lookupCountLimt = NewCountLimit(cfg.LookupConcurrency)
	}
	if cfg.ScanMBPS > 0 {
		lim.scanRate = rate.NewLimiter(rate.Limit(cfg.ScanMBPS*mb), cfg.ScanMBPS*mb)
	}
	return lim
}

func (lim *limiter) AcquireLookup() error {
	lim.lock.RLock()
	l := lim.lookupCountLimt
	lim.lock.RUnlock()
	if l != nil {
		return l.Acquire()
	}
	return nil
}

func (lim *limiter) ReleaseLookup() {
	lim.lock.RLock()
	l := lim.lookupCountLimt
	lim.lock.RUnlock()
	if l != nil {
		l.Release()
	}
}

// WaitScan blocks until n scanned bytes may be consumed. Requests larger
// than the burst are split so a single wide cell can never fail the wait.
func (lim *limiter) WaitScan(ctx context.Context, n int) error {
	lim.lock.RLock()
	r := lim.scanRate
	lim.lock.RUnlock()
	if r == nil {
		return nil
	}
	for n > 0 {
		step := n
		if burst := r.Burst(); step > burst {
			step = burst
		}
		if err := r.WaitN(ctx, step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}

func (lim *limiter) SetLookupConcurrency(value uint32) {
	lim.lock.Lock()
	defer lim.lock.Unlock()
	if lim.lookupCountLimt == nil {
		lim.lookupCountLimt = NewCountLimit(int(value))
	} else {
		lim.lookupCountLimt.SetLimit(value)
	}
	lim.config.LookupConcurrency = int(value)
}

func (lim *limiter) SetScanMBPS(mbps int) {
	lim.lock.Lock()
	defer lim.lock.Unlock()
	if lim.scanRate == nil {
		lim.scanRate = rate.NewLimiter(rate.Limit(mbps*mb), mbps*mb)
	} else {
		lim.scanRate.SetLimit(rate.Limit(mbps * mb))
		lim.scanRate.SetBurst(mbps * mb)
	}
	lim.config.ScanMBPS = mbps
}

func (lim *limiter) GetConfig() LimitConfig {
	lim.lock.RLock()
	defer lim.lock.RUnlock()
	return lim.config
}

func (lim *limiter) Status() Status {
	lim.lock.RLock()
	defer lim.lock.RUnlock()
	st := Status{Config: lim.config}
	if lim.lookupCountLimt != nil {
		st.LookupRunning = lim.lookupCountLimt.Running()
	}
	st.ScanWait = rateWait(lim.scanRate)
	return st
}

func rateWait(r *rate.Limiter) int {
	if r == nil {
		return 0
	}
	now := time.Now()
	reserve := r.ReserveN(now, int(r.Limit())/2)
	duration := reserve.DelayFrom(now)
	reserve.Cancel()
	return int(duration.Milliseconds())
}

const minusOne = ^uint32(0)

type countLimit struct {
	limit   uint32
	current uint32
}

// NewCountLimit returns limiter with concurrent n
func NewCountLimit(n int) CountLimit {
	return &countLimit{limit: uint32(n)}
}

func (l *countLimit) Running() int {
	return int(atomic.LoadUint32(&l.current))
}

func (l *countLimit) Acquire() error {
	if atomic.AddUint32(&l.current, 1) > atomic.LoadUint32(&l.limit) {
		atomic.AddUint32(&l.current, minusOne)
		return apierrors.ErrLimitExceeded
	}
	return nil
}

func (l *countLimit) Release() {
	atomic.AddUint32(&l.current, minusOne)
}

func (l *countLimit) SetLimit(limit uint32) {
	atomic.StoreUint32(&l.limit, limit)
}
