// Package reembed re-embeds every stored chunk with the configured embedder.
//
// It is the remedy for a changed embedding model or dimension: chunk text
// and sequence stay as stored, only vectors are replaced. Chunks are
// processed resource by resource in batches, with retry and exponential
// backoff on provider failures and progress reporting to a writer.
package reembed
