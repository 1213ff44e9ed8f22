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


package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "groundwork",
		Usage: "Ground questions in the content of selected documents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML configuration file",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Path to a dotenv file loaded before the environment is read",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:  "store",
				Usage: "Chunk store (badger, chromem, postgres, memory)",
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to the store directory",
			},
			&cli.StringFlag{
				Name:  "provider",
				Usage: "Embedding provider (openai, gemini, mock)",
			},
			&cli.StringFlag{
				Name:  "embedding-host",
				Usage: "Embedding service host URL",
			},
			&cli.StringFlag{
				Name:  "embedding-model",
				Usage: "Embedding model name",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Chunk, embed and store documents (.txt, .md, .pdf, .xlsx)",
				ArgsUsage: "FILE...",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "id",
						Usage: "Resource ID (single file only; defaults to a random UUID)",
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "Display name (single file only; defaults to the file name)",
					},
				},
			},
			{
				Name:      "retrieve",
				Usage:     "Retrieve context for a question from selected resources",
				ArgsUsage: "QUESTION",
				Action:    retrieveCommand,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:     "resource",
						Aliases:  []string{"r"},
						Usage:    "Resource to search, as ID or ID=NAME (repeatable)",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the response envelope as JSON",
					},
					&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"v"},
						Usage:   "Print each retrieval step",
					},
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete resources and their chunks",
				ArgsUsage: "ID...",
				Action:    deleteCommand,
			},
			{
				Name:   "list",
				Usage:  "List stored resources",
				Action: listCommand,
			},
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Usage: "Listen address (defaults to the configured address)",
					},
				},
			},
			{
				Name:   "mcp",
				Usage:  "Serve the retrieval tool over MCP on stdio",
				Action: mcpCommand,
			},
			{
				Name:   "reembed",
				Usage:  "Reembed all stored chunks with the configured model",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks to embed in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N chunks",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
		},
	}
}

func setupLogger(c *cli.Context) error {
	level, err := parseLevel(c.String("log-level"))
	if err != nil {
		return err
	}
	installLogger(level)
	return nil
}

func parseLevel(value string) (slog.Level, error) {
	// Normalize to lowercase
	levelStr := strings.ToLower(value)

	switch levelStr {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}
}

// installLogger writes to stderr so stdout stays free for results and the
// MCP transport.
func installLogger(level slog.Level) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
}
