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
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cubefs/cellbrowser/directory"
	apierrors "github.com/cubefs/cellbrowser/errors"
	"github.com/cubefs/cellbrowser/proto"
	"github.com/cubefs/cellbrowser/util"
)

var (
	recursive bool

	specRow   string
	specStart string
	specEnd   string
	specCF    string
	maxWidth  int

	getQualifier string
	getTimestamp int64
)

var lsCmd = &cobra.Command{
	Use:   "ls [namespace]",
	Short: "List the namespaces and tables below a namespace",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := proto.PathSeparator
		if len(args) > 0 {
			path = args[0]
		}
		ctx, s, closer, err := connect(cmd)
		if err != nil {
			return err
		}
		defer closer()

		m, err := s.Directory()
		if err != nil {
			return err
		}
		ns := m.NamespaceAt(path)
		dirs := ns.Directories(ctx)
		dirs.Subscribe(printCollectionEvent[directory.Node](cmd.OutOrStdout(), ns.Path()))
		select {
		case <-ns.Loaded():
		case <-ctx.Done():
			return ctx.Err()
		}
		if err = ns.Err(); err != nil {
			return err
		}
		printTree(ctx, cmd.OutOrStdout(), ns, 0)
		return nil
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan <table>",
	Short: "Scan the cells of a table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, s, closer, err := connect(cmd)
		if err != nil {
			return err
		}
		defer closer()

		m, err := s.Directory()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		node := m.TableAt(args[0])
		node.SetSpec(scanSpec())
		cells := node.Cells(ctx)
		cells.Subscribe(printCollectionEvent[*directory.CellInfo](out, node.Path()))
		if err = node.Scan().Wait(ctx); err != nil {
			return err
		}
		cells.Range(func(_ int, ci *directory.CellInfo) bool {
			printCell(out, ci)
			return true
		})
		fmt.Fprintf(out, "%d cells\n", cells.Count())
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <table> <row> <column family>",
	Short: "Print the full value of the latest, or the given, version of a cell",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, s, closer, err := connect(cmd)
		if err != nil {
			return err
		}
		defer closer()

		m, err := s.Directory()
		if err != nil {
			return err
		}
		node := m.TableAt(args[0])
		node.SetSpec(proto.ScanSpec{Row: []byte(args[1]), ColumnFamily: args[2]})
		cells := node.Cells(ctx)
		if err = node.Scan().Wait(ctx); err != nil {
			return err
		}

		var found *directory.CellInfo
		cells.Range(func(_ int, ci *directory.CellInfo) bool {
			key := ci.Key()
			if !bytes.Equal(key.ColumnQualifier, []byte(getQualifier)) {
				return true
			}
			if getTimestamp != 0 && key.Timestamp != getTimestamp {
				return true
			}
			found = ci
			return false
		})
		if found == nil {
			return apierrors.ErrNotFound
		}
		value, err := found.Value(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", util.PrintableBytes(value, 0))
		return nil
	},
}

func init() {
	lsCmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "list namespaces below recursively")

	scanCmd.Flags().StringVar(&specRow, "row", "", "scan a single row")
	scanCmd.Flags().StringVar(&specStart, "start", "", "first row to scan")
	scanCmd.Flags().StringVar(&specEnd, "end", "", "row to stop before")
	scanCmd.Flags().StringVar(&specCF, "cf", "", "column family to scan")
	scanCmd.Flags().IntVar(&maxWidth, "width", 48, "value bytes printed per cell, 0 prints the inline part")

	getCmd.Flags().StringVarP(&getQualifier, "qualifier", "q", "", "column qualifier")
	getCmd.Flags().Int64Var(&getTimestamp, "ts", 0, "timestamp of the version, 0 is the latest")
}

func scanSpec() proto.ScanSpec {
	spec := proto.ScanSpec{ColumnFamily: specCF}
	if specRow != "" {
		spec.Row = []byte(specRow)
	}
	if specStart != "" {
		spec.StartRow = []byte(specStart)
	}
	if specEnd != "" {
		spec.EndRow = []byte(specEnd)
	}
	return spec
}

func printTree(ctx context.Context, out io.Writer, ns *directory.NamespaceNode, depth int) {
	for _, node := range ns.Directories(ctx).Items() {
		indent := strings.Repeat("  ", depth)
		switch n := node.(type) {
		case *directory.NamespaceNode:
			fmt.Fprintf(out, "%s%s/\n", indent, n.Name())
			if recursive {
				printTree(ctx, out, n, depth+1)
			}
		case *directory.TableNode:
			fmt.Fprintf(out, "%s%s\n", indent, n.Name())
		}
	}
}

func printCell(out io.Writer, ci *directory.CellInfo) {
	key := ci.Key()
	qualifier, suffix := "", ""
	if len(key.ColumnQualifier) > 0 {
		qualifier = util.PrintableBytes(key.ColumnQualifier, 0)
	}
	if ci.Truncated() {
		suffix = fmt.Sprintf(" (%s)", util.HumanBytes(uint64(ci.CellValueSize())))
	}
	fmt.Fprintf(out, "%s %s:%s @%d = %s%s\n",
		util.PrintableBytes(key.Row, 0), key.ColumnFamily, qualifier,
		key.Timestamp, util.PrintableBytes(ci.ValueInfo(), maxWidth), suffix)
}
