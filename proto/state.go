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

package proto

type (
	ScanState       int
	ConnectionState int
)

const (
	ScanStateBegin = ScanState(iota)
	ScanStateExecuting
	ScanStateCompleted
)

const (
	ConnectionDisconnected = ConnectionState(iota)
	ConnectionDisconnecting
	ConnectionConnecting
	ConnectionConnected
)

func (s ScanState) String() string {
	switch s {
	case ScanStateBegin:
		return "Begin"
	case ScanStateExecuting:
		return "Executing"
	case ScanStateCompleted:
		return "Completed"
	default:
		return "Unknown"
	}
}

func (s ConnectionState) String() string {
	switch s {
	case ConnectionDisconnected:
		return "Disconnected"
	case ConnectionDisconnecting:
		return "Disconnecting"
	case ConnectionConnecting:
		return "Connecting"
	case ConnectionConnected:
		return "Connected"
	default:
		return "Unknown"
	}
}
