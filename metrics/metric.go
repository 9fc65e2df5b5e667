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

package metrics

import (
	grpcprometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "CellBrowser"

var (
	Registry = prometheus.NewRegistry()

	GRPCMetrics = grpcprometheus.NewServerMetrics(
		func(c *prometheus.CounterOpts) {
			c.Namespace = namespace
		},
	)

	ScanStarted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scan",
		Name:      "started_total",
		Help:      "scans started by delivery mode",
	}, []string{"mode"})
	ScanFinished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scan",
		Name:      "finished_total",
		Help:      "scans finished by result",
	}, []string{"result"})
	ScanCells = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scan",
		Name:      "cells_total",
		Help:      "cells delivered to the owner",
	})
	ScanBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scan",
		Name:      "bytes_total",
		Help:      "bytes delivered to the owner",
	})
	StaleChunks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scan",
		Name:      "stale_chunks_total",
		Help:      "chunks dropped because their scan was superseded",
	})
	ActiveScanWorkers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "scan",
		Name:      "active_workers",
		Help:      "scan workers still running",
	})

	ValueLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "directory",
		Name:      "value_lookups_total",
		Help:      "truncated value point lookups by result",
	}, []string{"result"})

	DispatcherQueued = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "dispatcher",
		Name:      "queued",
		Help:      "commands waiting for the owner goroutine",
	})
	DispatcherCommands = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatcher",
		Name:      "commands_total",
		Help:      "commands executed on the owner goroutine",
	}, []string{"kind"})
	DispatcherPanics = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatcher",
		Name:      "panics_total",
		Help:      "panics recovered on the owner goroutine",
	})

	SessionTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "transitions_total",
		Help:      "connection state transitions",
	}, []string{"state"})
)

func init() {
	GRPCMetrics.EnableHandlingTimeHistogram(
		func(h *prometheus.HistogramOpts) {
			h.Namespace = namespace
		},
	)
	Registry.MustRegister(
		GRPCMetrics,
		ScanStarted,
		ScanFinished,
		ScanCells,
		ScanBytes,
		StaleChunks,
		ActiveScanWorkers,
		ValueLookups,
		DispatcherQueued,
		DispatcherCommands,
		DispatcherPanics,
		SessionTransitions,
	)
}
