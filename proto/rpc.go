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
	ListNamespaceRequest struct {
		Path string `json:"path"`
	}
	ListNamespaceResponse struct {
		Entries []DirEntry `json:"entries"`
	}

	OpenTableRequest struct {
		Namespace string `json:"namespace"`
		Table     string `json:"table"`
	}
	OpenTableResponse struct {
		Name string `json:"name"`
	}

	LookupRequest struct {
		Namespace string `json:"namespace"`
		Table     string `json:"table"`
		Key       Key    `json:"key"`
	}
	LookupResponse struct {
		Cell *Cell `json:"cell,omitempty"`
	}

	ScanRequest struct {
		Namespace string   `json:"namespace"`
		Table     string   `json:"table"`
		Spec      ScanSpec `json:"spec"`
		BatchSize int      `json:"batch_size"`
	}
	ScanResponse struct {
		Cells []Cell `json:"cells"`
	}

	CreateNamespaceRequest struct {
		Path string `json:"path"`
	}
	CreateNamespaceResponse struct{}

	CreateTableRequest struct {
		Namespace string `json:"namespace"`
		Table     string `json:"table"`
	}
	CreateTableResponse struct{}

	MutateRequest struct {
		Namespace string `json:"namespace"`
		Table     string `json:"table"`
		Cells     []Cell `json:"cells"`
	}
	MutateResponse struct{}

	DeleteRowRequest struct {
		Namespace string `json:"namespace"`
		Table     string `json:"table"`
		Row       []byte `json:"row"`
	}
	DeleteRowResponse struct{}
)
