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


// Package embedding provides the bounded embedding cache and the vector
// math used for semantic similarity: unit normalization, cosine similarity,
// and top-K ranking of candidate texts against a query.
//
// The cache sits in front of an ai.Embedder and memoizes by the
// embedding-normalized form of the text, so trivially different spellings of
// the same passage share one provider call.
package embedding
