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


package embedding

import "errors"

var (
	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrDimensionMismatch is returned when comparing vectors of different
	// lengths. This indicates a provider or model version mismatch and is
	// never a normal runtime condition.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrBatchSizeMismatch is returned when the provider returns a different
	// number of vectors than texts requested.
	ErrBatchSizeMismatch = errors.New("embedding batch size mismatch")
)
