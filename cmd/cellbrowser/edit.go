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

	"github.com/spf13/cobra"

	"github.com/cubefs/cellbrowser/datasource"
	apierrors "github.com/cubefs/cellbrowser/errors"
	"github.com/cubefs/cellbrowser/proto"
)

var (
	putQualifier string
	putTimestamp int64
	putNull      bool
)

var putCmd = &cobra.Command{
	Use:   "put <table> <row> <column family> [value]",
	Short: "Write one cell version",
	Args:  cobra.RangeArgs(3, 4),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, s, closer, err := connect(cmd)
		if err != nil {
			return err
		}
		defer closer()

		mutator, err := openMutator(ctx, s.Source, args[0])
		if err != nil {
			return err
		}
		cell := proto.Cell{Key: proto.Key{
			Row:          []byte(args[1]),
			ColumnFamily: args[2],
			Timestamp:    putTimestamp,
		}}
		if putQualifier != "" {
			cell.Key.ColumnQualifier = []byte(putQualifier)
		}
		if len(args) == 4 && !putNull {
			cell.Value = []byte(args[3])
		}
		cells := []proto.Cell{cell}
		datasource.AssignTimestamps(cells)
		return mutator.Set(ctx, cells...)
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <table> <row>",
	Short: "Delete every cell of a row",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, s, closer, err := connect(cmd)
		if err != nil {
			return err
		}
		defer closer()

		mutator, err := openMutator(ctx, s.Source, args[0])
		if err != nil {
			return err
		}
		return mutator.DeleteRow(ctx, []byte(args[1]))
	},
}

var mknsCmd = &cobra.Command{
	Use:   "mkns <namespace>",
	Short: "Create a namespace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, s, closer, err := connect(cmd)
		if err != nil {
			return err
		}
		defer closer()

		admin, err := openAdmin(s.Source)
		if err != nil {
			return err
		}
		return admin.CreateNamespace(ctx, args[0])
	},
}

var mktableCmd = &cobra.Command{
	Use:   "mktable <table>",
	Short: "Create a table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, s, closer, err := connect(cmd)
		if err != nil {
			return err
		}
		defer closer()

		admin, err := openAdmin(s.Source)
		if err != nil {
			return err
		}
		namespace, name := proto.SplitPath(args[0])
		return admin.CreateTable(ctx, namespace, name)
	},
}

func init() {
	putCmd.Flags().StringVarP(&putQualifier, "qualifier", "q", "", "column qualifier")
	putCmd.Flags().Int64Var(&putTimestamp, "ts", 0, "version timestamp, 0 stamps the current time")
	putCmd.Flags().BoolVar(&putNull, "null", false, "write a null value")
}

func openMutator(ctx context.Context, source func() (datasource.Source, error), path string) (datasource.Mutator, error) {
	src, err := source()
	if err != nil {
		return nil, err
	}
	namespace, name := proto.SplitPath(path)
	tbl, err := src.OpenTable(ctx, namespace, name)
	if err != nil {
		return nil, err
	}
	mutator, ok := tbl.(datasource.Mutator)
	if !ok {
		return nil, apierrors.ErrNotSupported
	}
	return mutator, nil
}

func openAdmin(source func() (datasource.Source, error)) (datasource.Admin, error) {
	src, err := source()
	if err != nil {
		return nil, err
	}
	admin, ok := src.(datasource.Admin)
	if !ok {
		return nil, apierrors.ErrNotSupported
	}
	return admin, nil
}
