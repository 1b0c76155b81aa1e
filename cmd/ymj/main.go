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
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/ymj"
	"github.com/urfave/cli/v2"
)

var errValidationFailed = errors.New("validation failed")

func main() {
	// Pick up OPENAI_API_KEY and friends from a local .env file
	_ = godotenv.Load()

	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "ymj",
		Usage: "Validate, embed and search YMJ documents",
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
				Usage:   "Path to the project configuration file",
				Value:   defaultConfigFile,
			},
			&cli.StringFlag{
				Name:  "backend",
				Usage: "Embedding client (langchain, openai, mock)",
			},
			&cli.StringFlag{
				Name:  "embedding-host",
				Usage: "Embedding service host URL",
			},
			&cli.StringFlag{
				Name:  "embedding-model",
				Usage: "Embedding model name",
			},
			&cli.IntFlag{
				Name:  "dimensions",
				Usage: "Expected embedding length (0 accepts any)",
			},
			&cli.StringFlag{
				Name:  "cache",
				Usage: "Embedding cache backend (badger, sqlite, memory)",
			},
			&cli.StringFlag{
				Name:  "cache-path",
				Usage: "Path to the embedding cache",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "validate",
				Usage:     "Check documents against the YMJ format",
				ArgsUsage: "[PATH...]",
				Action:    validateCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "strict",
						Usage: "Also require an index block with an embedding",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Rank documents by similarity to a query",
				ArgsUsage: "QUERY [PATH...]",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "top",
						Aliases: []string{"k"},
						Usage:   "Number of results to show",
						Value:   5,
					},
					&cli.BoolFlag{
						Name:  "text",
						Usage: "Match keywords instead of embeddings",
					},
				},
			},
			{
				Name:      "embed",
				Usage:     "Compute embeddings for stale documents and rewrite their index blocks",
				ArgsUsage: "[PATH...]",
				Action:    embedCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Re-embed every document, stale or not",
					},
					&cli.IntFlag{
						Name:  "max-in-flight",
						Usage: "Maximum concurrent embedding calls",
						Value: 4,
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "Timeout for a single embedding call",
						Value: 30 * time.Second,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum attempts per document",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
					&cli.Float64Flag{
						Name:  "rps",
						Usage: "Maximum embedding calls per second (0 is unlimited)",
					},
					&cli.BoolFlag{
						Name:  "normalize",
						Usage: "Scale embeddings to unit length",
					},
					&cli.BoolFlag{
						Name:  "watch",
						Usage: "Keep running and re-embed documents as they change",
					},
				},
			},
			{
				Name:      "render",
				Usage:     "Print documents in canonical layout",
				ArgsUsage: "PATH...",
				Action:    renderCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "write",
						Aliases: []string{"w"},
						Usage:   "Rewrite files in place instead of printing",
					},
				},
			},
		},
	}
}

// openEngine opens an Engine configured from ymj.toml and the global flags.
func openEngine(c *cli.Context, extra ...ymj.EngineOption) (*ymj.Engine, *fileConfig, error) {
	fc, err := contextFileConfig(c)
	if err != nil {
		return nil, nil, err
	}
	opts, err := engineOptions(c, fc)
	if err != nil {
		return nil, nil, err
	}
	opts = append(opts, ymj.WithLogger(slog.Default()))
	engine, err := ymj.Open(append(opts, extra...)...)
	if err != nil {
		return nil, nil, err
	}
	return engine, fc, nil
}

// inputPaths returns the positional arguments, or the working directory.
func inputPaths(args []string) []string {
	if len(args) == 0 {
		return []string{"."}
	}
	return args
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
