// Copyright 2025 Citable Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package storage defines the persistence interfaces for the document
// corpus and the binary serialization helpers shared by all backends.
//
// Documents are stored with their original text intact. Derived state
// (normalized text, n-gram postings) is rebuilt in memory at load time
// and never written to disk, so normalization rules can change without
// a data migration.
//
// The concrete BadgerDB implementation lives in the badger subpackage.
// Serialization uses the MUS format via the serializers defined in the
// core package; the field order there is part of the on-disk format.
package storage
