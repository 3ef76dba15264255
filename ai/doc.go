// Copyright 2025 Poiesic Systems
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


// Package ai defines the contracts docpipe uses to talk to slow external
// services: text extraction, metadata extraction, embeddings and the
// search index.
//
// The pipeline depends only on these interfaces:
//
//   - TextExtractor: turns document bytes into text (ai/pdf)
//   - MetadataExtractor: asks an LLM for descriptive fields (ai/openai)
//   - Embedder: produces chunk vectors (ai/openai)
//   - Indexer: stores and describes index entries (ai/localindex)
//   - Provider: bundles the model-backed services
//
// Test doubles for every interface live in ai/mock.
//
// # Rate limiting
//
// External APIs are usually rate limited. ThrottleEmbedder,
// ThrottleMetadataExtractor and ThrottleIndexer wrap an implementation so
// each call first waits on a golang.org/x/time/rate limiter:
//
//	limiter := rate.NewLimiter(rate.Limit(5), 5)
//	embedder := ai.ThrottleEmbedder(provider.Embedder(), limiter)
//
// # Configuration
//
//	cfg := ai.NewConfig(
//	    ai.WithHost("http://localhost:11434"), // /v1 added by Normalize
//	    ai.WithMetadataModel("qwen2.5:3b"),
//	)
//	provider, err := openai.NewProvider(cfg)
package ai
