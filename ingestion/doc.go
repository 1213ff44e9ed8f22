// Package ingestion turns documents into stored, embedded chunks.
//
// The Pipeline type manages the ingestion workflow for a resource:
//   - Loading text, PDF or spreadsheet content (LoadFile, LoadReader)
//   - Splitting prose with a token chunker and spreadsheets with a row chunker
//   - Generating embeddings, retrying transient provider failures
//   - Replacing any previously stored chunks of the resource
//
// IngestAsync runs the same workflow on a worker pool.
package ingestion
