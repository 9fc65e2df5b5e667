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

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/cubefs/cubefs/blobstore/common/trace"
	"github.com/cubefs/cubefs/blobstore/util/log"
	"github.com/spf13/cobra"

	"github.com/cubefs/cellbrowser/affinity"
	"github.com/cubefs/cellbrowser/collection"
	"github.com/cubefs/cellbrowser/directory"
	"github.com/cubefs/cellbrowser/proto"
	"github.com/cubefs/cellbrowser/scan"
	"github.com/cubefs/cellbrowser/session"
)

var (
	engine        string
	logLevel      int
	showEvents    bool
	chunkCapacity int
	scanMode      string
	readMBPS      int
	inlineLimit   int
	cacheSize     int
)

var rootCmd = &cobra.Command{
	Use:          "cellbrowser",
	Short:        "Browse namespaces, tables and cells of a versioned cell store",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.SetOutputLevel(log.Level(logLevel))
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&engine, "engine", "e", "badger://./run/cells", "connection descriptor: badger://<dir>, rocksdb://<dir> or grpc://<host:port>")
	flags.IntVar(&logLevel, "log-level", int(log.Lerror), "log level, 0 is debug")
	flags.BoolVar(&showEvents, "events", false, "print connection, scanner and collection events")
	flags.IntVar(&chunkCapacity, "chunk", proto.DefaultChunkCapacity, "cells per delivered chunk")
	flags.StringVar(&scanMode, "mode", string(scan.ModeAuto), "scan delivery mode: auto, pull or push")
	flags.IntVar(&readMBPS, "read-mbps", 0, "scan read rate limit, 0 is unlimited")
	flags.IntVar(&inlineLimit, "inline", proto.DefaultInlineValueLimit, "value bytes kept per listed cell")
	flags.IntVar(&cacheSize, "lookup-cache", 0, "truncated value lookups to cache, 0 disables the cache")

	rootCmd.AddCommand(lsCmd, scanCmd, getCmd, putCmd, rmCmd, mknsCmd, mktableCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// connect opens a session on its own owner dispatcher. The returned func
// disconnects and stops the dispatcher.
func connect(cmd *cobra.Command) (context.Context, *session.Session, func(), error) {
	_, ctx := trace.StartSpanFromContext(cmd.Context(), cmd.Name())
	d := affinity.NewDispatcher(0)
	d.Start(ctx)

	s := session.New(session.Config{
		Scan: scan.Config{
			ChunkCapacity: chunkCapacity,
			Mode:          scan.Mode(scanMode),
			ReadMBPS:      readMBPS,
		},
		Directory: directory.Config{
			InlineValueLimit: inlineLimit,
			LookupCacheSize:  cacheSize,
		},
	}, d)
	out := cmd.OutOrStdout()
	if showEvents {
		s.Subscribe(func(ctx context.Context, ev session.StateEvent) {
			fmt.Fprintf(out, "ConnectionStateChanged %s %s\n", ev.State, ev.Descriptor)
		})
		s.Orchestrator().Subscribe(func(ctx context.Context, ev scan.Event) {
			fmt.Fprintf(out, "ScannerStateChanged %s scan=%s cells=%d bytes=%d\n",
				ev.State, ev.Token, ev.CellsScanned, ev.BytesScanned)
		})
	}
	if err := s.Connect(ctx, engine); err != nil {
		d.Close()
		return nil, nil, nil, err
	}
	return ctx, s, func() {
		if err := s.Disconnect(ctx); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "disconnect: %s\n", err)
		}
		d.Close()
	}, nil
}

func printCollectionEvent[T comparable](out io.Writer, what string) func(ctx context.Context, ev collection.Event[T]) {
	return func(ctx context.Context, ev collection.Event[T]) {
		if showEvents {
			fmt.Fprintf(out, "CollectionChanged %s %s new=%d old=%d index=%d\n",
				what, ev.Action, len(ev.NewItems), len(ev.OldItems), ev.NewIndex)
		}
	}
}
