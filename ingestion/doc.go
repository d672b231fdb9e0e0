// Package ingestion loads source documents into storage and enriches
// them with embeddings.
//
// The Pipeline type manages the ingestion workflow:
//   - Reading text files from a directory tree
//   - Adding documents to storage with path-derived IDs
//   - Generating embeddings asynchronously on a worker pool
//
// Embedding calls are retried with exponential backoff; a document
// whose embedding ultimately fails stays in storage without a vector
// and is found by structural search only. Progress is observed by
// polling Pipeline.Progress rather than through callbacks.
package ingestion
