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


// Package textnorm canonicalizes raw text for comparison.
//
// The corpus handled by quotefind is plain text extracted from PDFs, and
// quoted passages arrive with the usual OCR noise: broken hyphenation,
// smart quotes, em-dashes, soft hyphens, and inconsistent whitespace.
// Normalization neutralizes that noise so the fuzzy matcher and the n-gram
// index compare like with like.
//
// Two forms are produced:
//
//   - Normalize: the strict comparison form used for string matching.
//   - NormalizeForEmbedding: a looser form used as the embedding cache key,
//     which keeps punctuation intact.
//
// NormalizeWithOffsets additionally returns a per-rune table mapping each
// normalized rune back to its byte range in the original text, which is how
// match windows found in normalized text are converted to exact offsets in
// the un-normalized document.
//
// Normalized text is a derived, lossy comparison key. It is never persisted.
package textnorm
