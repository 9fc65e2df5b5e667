/*
 *
 * Copyright 2023 CubeFS authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

/*

# CellBrowser: a browsing client for sparse versioned cell stores

## Data Model

* Cell, (row, column family, column qualifier, timestamp) --> value, where a missing value is null

* Table, an ordered set of cells sorted by row, column family, qualifier and descending timestamp

* Namespace, a directory of tables and nested namespaces

## Client Core

* Session, one connection to an engine: Disconnected -> Connecting -> Connected -> Disconnecting -> Disconnected

* Directory, the lazily populated namespace tree of a session; listed cells keep a bounded value prefix and fetch the rest on demand

* Scan, at most one live scan per session; a new scan supersedes the previous one and chunks of superseded scans never reach the listing

* Collection, an observable list owned by a single dispatcher goroutine; every mutation and change notification happens there

## Engines

* badger, embedded, on disk or in memory, pull and push scans

* rocksdb, embedded, pull scans

* grpc, a cellserver exposing one of the embedded engines

## Building Blocks

* Badger
* gRPC
* Rocksdb
* Prometheus

*/

package cellbrowser
