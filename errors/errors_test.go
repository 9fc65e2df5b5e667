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

package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestStatusRoundTrip(t *testing.T) {
	for _, err := range []error{ErrNotFound, ErrTableNotFound, ErrNamespaceNotFound, ErrAlreadyExists, ErrNotSupported} {
		st := ToStatus(fmt.Errorf("wrapped: %w", err))
		_, ok := status.FromError(st)
		require.True(t, ok)
		require.Equal(t, err, FromStatus(st))
	}

	require.Nil(t, ToStatus(nil))
	require.Nil(t, FromStatus(nil))
	require.Equal(t, codes.Internal, status.Code(ToStatus(fmt.Errorf("disk on fire"))))
	require.Equal(t, context.Canceled, FromStatus(ToStatus(context.Canceled)))

	plain := fmt.Errorf("plain")
	require.Equal(t, plain, FromStatus(plain))

	require.True(t, IsNotFound(FromStatus(ToStatus(ErrTableNotFound))))
	require.False(t, IsNotFound(ErrAlreadyExists))
}
