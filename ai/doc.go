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


// Package ai provides abstractions for the embedding services used by quotefind.
//
// The core search pipeline depends only on the interfaces defined here,
// never on a concrete provider. Two implementation sub-packages exist:
//
//   - ai/openai: production implementation using OpenAI-compatible APIs
//   - ai/mock: deterministic test doubles requiring no external services
//
// Public constructors in the implementation packages return interface types
// (ai.Embedder, ai.AIProvider) to enforce the abstraction; concrete types
// stay internal to their package except where tests need them.
package ai
