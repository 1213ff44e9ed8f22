package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/poiesic/groundwork"
	"github.com/poiesic/groundwork/config"
	"github.com/poiesic/groundwork/core"
	"github.com/poiesic/groundwork/ingestion"
	"github.com/poiesic/groundwork/reembed"
	"github.com/poiesic/groundwork/retrieval"
	"github.com/poiesic/groundwork/transport/httpapi"
	"github.com/poiesic/groundwork/transport/mcpserver"
	"github.com/urfave/cli/v2"
)

// loadConfig reads the configuration and applies command-line overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"), c.String("env-file"), func(cfg *config.Config) {
		if c.IsSet("store") {
			cfg.Store.Kind = config.StoreKind(c.String("store"))
		}
		if c.IsSet("db") {
			cfg.Store.Path = c.String("db")
		}
		if c.IsSet("provider") {
			cfg.AI.Provider = c.String("provider")
		}
		if c.IsSet("embedding-host") {
			cfg.AI.EmbeddingHost = c.String("embedding-host")
		}
		if c.IsSet("embedding-model") {
			cfg.AI.EmbeddingModel = c.String("embedding-model")
		}
	})
	if err != nil {
		return nil, err
	}

	// The config file picks the level unless the flag was given
	if !c.IsSet("log-level") && cfg.LogLevel != "" {
		level, err := parseLevel(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		installLogger(level)
	}
	return cfg, nil
}

func openEngine(c *cli.Context) (*groundwork.Engine, *config.Config, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	engine, err := groundwork.Open(c.Context, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open engine: %w", err)
	}
	return engine, cfg, nil
}

func ingestCommand(c *cli.Context) error {
	paths := c.Args().Slice()
	if len(paths) == 0 {
		return errors.New("at least one file is required")
	}
	if len(paths) > 1 && (c.IsSet("id") || c.IsSet("name")) {
		return errors.New("--id and --name apply to a single file")
	}

	docs := make([]*ingestion.Document, len(paths))
	for i, path := range paths {
		doc, err := ingestion.LoadFile(path, core.ResourceID(c.String("id")))
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
		if name := c.String("name"); name != "" {
			doc.Name = name
		}
		docs[i] = doc
	}

	engine, _, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	pipeline, err := engine.NewIngestionPipeline()
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer pipeline.Release()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	out := c.App.Writer
	for _, doc := range docs {
		wg.Add(1)
		err := pipeline.IngestAsync(c.Context, doc, func(result *ingestion.Result, err error) {
			defer wg.Done()
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", doc.Name, err))
				return
			}
			fmt.Fprintf(out, "Ingested %s as %s: %d chunks\n", result.Name, result.ResourceID, result.Chunks)
		})
		if err != nil {
			wg.Done()
			mu.Lock()
			errs = append(errs, fmt.Errorf("%s: %w", doc.Name, err))
			mu.Unlock()
		}
	}
	wg.Wait()
	return errors.Join(errs...)
}

func retrieveCommand(c *cli.Context) error {
	question := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(question) == "" {
		return errors.New("a question is required")
	}
	resources := parseResources(c.StringSlice("resource"))

	engine, _, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	var monitor retrieval.Monitor
	if c.Bool("verbose") {
		monitor = newPrintMonitor(c.App.ErrWriter)
	}
	results, err := engine.Retriever().RetrieveWithMonitor(c.Context, question, resources, monitor)
	if err != nil {
		if c.Bool("json") {
			writeJSON(c.App.Writer, retrieval.ErrorResponse(question, resources, err))
		}
		return fmt.Errorf("retrieval failed: %w", err)
	}

	resp := retrieval.BuildResponse(question, resources, results)
	if c.Bool("json") {
		return writeJSON(c.App.Writer, resp)
	}
	printResponse(c.App.Writer, resp)
	return nil
}

// parseResources turns "id" or "id=name" selectors into resources.
func parseResources(selectors []string) []core.Resource {
	resources := make([]core.Resource, 0, len(selectors))
	for _, s := range selectors {
		id, name, _ := strings.Cut(s, "=")
		resources = append(resources, core.Resource{
			ID:   core.ResourceID(strings.TrimSpace(id)),
			Name: strings.TrimSpace(name),
		})
	}
	return resources
}

func printResponse(w io.Writer, resp *retrieval.Response) {
	fmt.Fprintln(w, resp.Message)
	if resp.Summary == nil {
		return
	}
	fmt.Fprintf(w, "%d resources, %d chunks, %d characters, average similarity %.3f\n",
		resp.Summary.TotalResources, resp.Summary.TotalChunks, resp.TotalContentLength, resp.Summary.AverageSimilarity)
	for _, r := range resp.Results {
		status := "relevant"
		if r.IsComplete {
			status = "complete"
		}
		fmt.Fprintf(w, "\n== %s [%s, %.3f] ==\n%s\n", r.Name, status, r.Similarity, r.Content)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func deleteCommand(c *cli.Context) error {
	ids := c.Args().Slice()
	if len(ids) == 0 {
		return errors.New("at least one resource ID is required")
	}

	engine, _, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	var errs []error
	for _, id := range ids {
		if err := engine.DeleteResource(c.Context, core.ResourceID(id)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
			continue
		}
		fmt.Fprintf(c.App.Writer, "Deleted %s\n", id)
	}
	return errors.Join(errs...)
}

func listCommand(c *cli.Context) error {
	engine, _, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	ids, err := engine.ListResources(c.Context)
	if err != nil {
		return fmt.Errorf("failed to list resources: %w", err)
	}
	for _, id := range ids {
		n, err := engine.Repository().CountChunks(c.Context, id)
		if err != nil {
			return fmt.Errorf("failed to count chunks of %s: %w", id, err)
		}
		fmt.Fprintf(c.App.Writer, "%s\t%d chunks\n", id, n)
	}
	return nil
}

func serveCommand(c *cli.Context) error {
	engine, cfg, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	pipeline, err := engine.NewIngestionPipeline()
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer pipeline.Release()

	server, err := httpapi.NewServer(engine, pipeline)
	if err != nil {
		return err
	}

	listen := cfg.HTTP.Listen
	if c.IsSet("listen") {
		listen = c.String("listen")
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return server.ListenAndServe(ctx, listen)
}

func mcpCommand(c *cli.Context) error {
	engine, _, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	server, err := mcpserver.NewServer(engine, nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return server.Run(ctx)
}

func reembedCommand(c *cli.Context) error {
	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	if reembedConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reembedConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reembedConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	engine, cfg, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	reembedder, err := engine.NewReembedder(reembedConfig, c.App.ErrWriter)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.ErrWriter, "Store: %s %s\n", cfg.Store.Kind, storeLocation(cfg))
	fmt.Fprintf(c.App.ErrWriter, "Embedding provider: %s\n", cfg.AI.Provider)
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", cfg.AI.EmbeddingModel)
	fmt.Fprintln(c.App.ErrWriter)

	summary, err := reembedder.Run(c.Context)
	if err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	fmt.Fprintf(c.App.ErrWriter, "Re-embedded %d chunks of %d resources in %s\n",
		summary.Chunks, summary.Resources, summary.Elapsed)
	if err := engine.Compact(); err != nil {
		fmt.Fprintf(c.App.ErrWriter, "Compaction skipped: %v\n", err)
	}
	return nil
}

func storeLocation(cfg *config.Config) string {
	switch cfg.Store.Kind {
	case config.StorePostgres:
		return "(dsn hidden)"
	case config.StoreMemory:
		return "(in memory)"
	default:
		abs, err := filepath.Abs(cfg.Store.Path)
		if err != nil {
			return cfg.Store.Path
		}
		return abs
	}
}
