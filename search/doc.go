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

// Package search orchestrates quote lookup across the corpus.
//
// The Searcher type implements a multi-stage algorithm:
//   - A semantic pass ranks documents by embedding similarity and can
//     short-circuit the rest when a near-certain match is found
//   - Rare n-gram pruning narrows structural search to candidate
//     documents and the line regions where they overlap the query
//   - Fuzzy matching inside those regions recovers exact character
//     offsets despite OCR noise and formatting drift
//   - A bounded whole-document fallback scan covers queries whose
//     n-grams are all common
//
// Results are merged to one per document, with structural matches
// preferred over purely semantic ones, and ranked by similarity. The
// semantic pass is best-effort: an unreachable embedding provider
// degrades search to the structural passes instead of failing it.
package search
