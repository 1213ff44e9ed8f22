package ingestion

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"runtime"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/groundwork/ai"
	"github.com/poiesic/groundwork/chunking"
	"github.com/poiesic/groundwork/core"
	"github.com/poiesic/groundwork/storage"
)

// Default retry policy for embedding calls.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
)

// Pipeline orchestrates chunking, embedding and storage of documents.
type Pipeline struct {
	repository  storage.ChunkRepository
	pool        *ants.Pool
	embed       enricher
	prose       chunking.Chunker
	rows        *chunking.RowChunker
	maxAttempts int
	baseDelay   time.Duration
	logger      *slog.Logger
}

// Result describes one ingested resource.
type Result struct {
	ResourceID core.ResourceID
	Name       string
	Chunks     int
	Replaced   bool // Chunks of an earlier version were removed
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size used by IngestAsync.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		// Release old pool
		if p.pool != nil {
			p.pool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default() tagged with the ingestion component.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithProseChunker sets the chunker used for text and PDF documents.
// Default is a chunking.TokenChunker with its default sizes.
func WithProseChunker(c chunking.Chunker) Option {
	return func(p *Pipeline) error {
		if c != nil {
			p.prose = c
		}
		return nil
	}
}

// WithRowChunker sets the chunker used for spreadsheets.
func WithRowChunker(c *chunking.RowChunker) Option {
	return func(p *Pipeline) error {
		if c != nil {
			p.rows = c
		}
		return nil
	}
}

// WithRetry sets how often embedding calls are attempted and the first backoff delay.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(p *Pipeline) error {
		if maxAttempts <= 0 {
			return ai.ErrInvalidMaxAttempts
		}
		p.maxAttempts = maxAttempts
		p.baseDelay = baseDelay
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(repository storage.ChunkRepository, embedder ai.Embedder, opts ...Option) (*Pipeline, error) {
	if repository == nil {
		return nil, ErrRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	// Default pool size
	poolSize := max(runtime.NumCPU()/2, 1)
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	// Create pipeline with defaults
	p := &Pipeline{
		repository:  repository,
		pool:        pool,
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
		logger:      slog.Default().With("component", "ingestion"),
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	if p.prose == nil {
		p.prose, err = chunking.NewTokenChunker(chunking.WithLogger(p.logger))
		if err != nil {
			p.Release()
			return nil, err
		}
	}
	if p.rows == nil {
		p.rows, err = chunking.NewRowChunker(chunking.WithLogger(p.logger))
		if err != nil {
			p.Release()
			return nil, err
		}
	}

	// Built after options so it sees the final retry policy
	p.embed, err = newVectorizer(embedder, p.maxAttempts, p.baseDelay, p.logger)
	if err != nil {
		p.Release()
		return nil, err
	}

	return p, nil
}

// Ingest chunks, embeds and stores a document. Any chunks already stored
// for the resource are replaced. Nothing is written when embedding fails.
func (p *Pipeline) Ingest(ctx context.Context, doc *Document) (*Result, error) {
	if doc == nil {
		return nil, ErrEmptyDocument
	}
	resource := core.Resource{ID: doc.ResourceID, Name: doc.Name}
	if err := core.ValidateResource(resource); err != nil {
		return nil, err
	}

	texts := chunking.Collect(p.split(doc))
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, resource.DisplayName())
	}

	chunks := make([]*core.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = &core.Chunk{ResourceID: doc.ResourceID, Seq: i, Content: text}
	}

	p.logger.Info("ingesting resource", "resource", doc.ResourceID, "name", doc.Name, "chunks", len(chunks))
	if err := p.embed.enrich(ctx, chunks...); err != nil {
		return nil, err
	}

	previous, err := p.repository.CountChunks(ctx, doc.ResourceID)
	if err != nil {
		return nil, err
	}
	// New chunks overwrite the old ones seq by seq; only a successful write
	// trims what the previous version had beyond them.
	if _, err := p.repository.AddChunks(ctx, chunks...); err != nil {
		p.logger.Error("error storing chunks", "resource", doc.ResourceID, "err", err)
		return nil, err
	}
	if previous > len(chunks) {
		if err := p.repository.TrimResource(ctx, doc.ResourceID, len(chunks)); err != nil {
			p.logger.Error("error trimming stale chunks", "resource", doc.ResourceID, "err", err)
			return nil, err
		}
	}
	replaced := previous > 0

	return &Result{
		ResourceID: doc.ResourceID,
		Name:       doc.Name,
		Chunks:     len(chunks),
		Replaced:   replaced,
	}, nil
}

// IngestAsync submits the document to the worker pool and returns
// immediately. done, if set, receives the outcome on the worker goroutine.
// Failures are also logged.
func (p *Pipeline) IngestAsync(ctx context.Context, doc *Document, done func(*Result, error)) error {
	return p.pool.Submit(func() {
		result, err := p.Ingest(ctx, doc)
		if err != nil {
			p.logger.Error("error ingesting document", "err", err)
		}
		if done != nil {
			done(result, err)
		}
	})
}

// split picks the chunker for the document's shape.
func (p *Pipeline) split(doc *Document) iter.Seq[string] {
	if len(doc.Sheets) > 0 {
		return p.rows.ChunkSheets(doc.Sheets)
	}
	return p.prose.Chunk(doc.Text)
}

// Release releases resources including the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
