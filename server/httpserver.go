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

package server

import (
	"context"
	"net/http"
	"time"

	"github.com/cubefs/cubefs/blobstore/common/profile"
	"github.com/cubefs/cubefs/blobstore/common/rpc"
	"github.com/cubefs/cubefs/blobstore/common/rpc/auditlog"
	"github.com/cubefs/cubefs/blobstore/util/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cubefs/cellbrowser/metrics"
	"github.com/cubefs/cellbrowser/util/limiter"
)

const (
	defaultShutdownTimeoutS      = 10
	defaultReadRequestTimeoutS   = 30
	defaultWriteResponseTimeoutS = 30
)

type StatsResponse struct {
	Engine     string         `json:"engine"`
	OpenTables int            `json:"open_tables"`
	Limiter    limiter.Status `json:"limiter"`
}

type HttpServer struct {
	httpServer *http.Server
	auditLog   auditlog.LogCloser

	*Server
}

func NewHttpServer(server *Server) *HttpServer {
	return &HttpServer{Server: server}
}

func (h *HttpServer) Serve(addr string) {
	var phs []rpc.ProgressHandler
	if h.cfg.AuditLog.LogDir != "" {
		ah, logFile, err := auditlog.Open("CELLSERVER", &h.cfg.AuditLog)
		if err != nil {
			log.Fatalf("open audit log failed: %s", err)
		}
		h.auditLog = logFile
		phs = append(phs, ah)
	}
	phs = append(phs, profile.NewProfileHandler(addr))

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      rpc.MiddlewareHandlerWith(h.Handler(), phs...),
		ReadTimeout:  defaultReadRequestTimeoutS * time.Second,
		WriteTimeout: defaultWriteResponseTimeoutS * time.Second,
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server exits:", err)
		}
	}()
	h.httpServer = httpServer

	log.Info("http server is running at:", addr)
}

func (h *HttpServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeoutS*time.Second)
	defer cancel()

	h.httpServer.Shutdown(ctx)
	if h.auditLog != nil {
		h.auditLog.Close()
	}
}

// Handler routes /stats and /metrics.
func (h *HttpServer) Handler() *rpc.Router {
	router := rpc.New()
	metricsHandler := promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})
	router.Handle(http.MethodGet, "/stats", h.Stats, rpc.OptArgsQuery())
	router.Handle(http.MethodGet, "/metrics", func(c *rpc.Context) {
		metricsHandler.ServeHTTP(c.Writer, c.Request)
	})
	return router
}

func (h *HttpServer) Stats(c *rpc.Context) {
	h.lock.RLock()
	open := len(h.tables)
	h.lock.RUnlock()

	c.RespondJSON(&StatsResponse{
		Engine:     h.source.Descriptor(),
		OpenTables: open,
		Limiter:    h.limiter.Status(),
	})
}
