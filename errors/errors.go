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

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrNamespaceNotFound = errors.New("namespace does not exist")
	ErrTableNotFound     = errors.New("table does not exist")
	ErrAlreadyExists     = errors.New("entry already exists")
	ErrInvalidName       = errors.New("invalid namespace or table name")

	ErrInvalidDescriptor = errors.New("invalid connection descriptor")
	ErrUnknownEngine     = errors.New("unknown engine scheme")
	ErrNotConnected      = errors.New("session is not connected")
	ErrNotSupported      = errors.New("operation not supported by the engine")

	ErrDispatcherClosed = errors.New("owner dispatcher is closed")
	ErrIndexOutOfRange  = errors.New("index out of range")

	ErrScanSuperseded = errors.New("scan superseded by a newer scan")
	ErrCancelTimeout  = errors.New("timed out waiting for scan workers to drain")
	ErrLimitExceeded  = errors.New("limit exceeded")
)

// IsNotFound reports whether err is one of the not-found family errors.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrNamespaceNotFound) || errors.Is(err, ErrTableNotFound)
}
