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

// Package ngram provides a rare-trigram pruning index used to narrow
// fuzzy quote matching to a handful of documents and line regions.
//
// Build normalizes every document line, extracts its distinct character
// n-grams, and then discards any n-gram that appears in more than a
// configurable fraction of the corpus. The surviving n-grams are rare
// enough to be discriminative: a query sharing several of them with a
// document almost certainly quotes it. FindCandidates scores documents
// by the fraction of the query's rare n-grams they contain and reports
// the matching lines, padded with surrounding context, as regions for
// the fuzzy matcher to scan.
//
// The index is rebuilt from scratch on each Build call and is safe for
// concurrent lookups.
package ngram
