package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/USCbiostats/annoq-api-v2/internal/db"
)

const maxLineBytes = 16 << 20

// sourceLine is one NDJSON input record. Both bulk-export ({"_id","_source"}) and
// flat ({"id", ...fields}) shapes are accepted.
type sourceLine struct {
	ID     string         `json:"_id"`
	Source map[string]any `json:"_source"`
}

func newIndexCmd(global *globalOptions) *cobra.Command {
	var batchSize int
	cmd := &cobra.Command{
		Use:   "index FILE...",
		Short: "Load NDJSON annotation records into the local index",
		Long: `Reads NDJSON files (optionally gzipped) and indexes them into the embedded
search engine. Only the local driver supports loading; Elasticsearch indexes are
populated by their own pipelines.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if batchSize <= 0 {
				return fmt.Errorf("batch size must be positive")
			}
			return global.withApp(cmd.Context(), func(a *app) error {
				indexer, ok := a.engine.(db.Indexer)
				if !ok {
					return fmt.Errorf("search driver %q does not support loading", a.cfg.Search.Driver)
				}
				total := 0
				for _, path := range args {
					n, err := indexFile(cmd.Context(), indexer, path, batchSize)
					total += n
					if err != nil {
						return fmt.Errorf("%s: %w", path, err)
					}
					a.logger.Info("Indexed file", zap.String("path", path), zap.Int("records", n))
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "indexed %d records\n", total)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", 500, "records per index batch")
	return cmd
}

func indexFile(ctx context.Context, indexer db.Indexer, path string, batchSize int) (int, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return 0, fmt.Errorf("open: %w", err)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return 0, fmt.Errorf("gzip: %w", err)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}
	return indexRecords(ctx, indexer, r, batchSize)
}

// indexRecords loads NDJSON from r in batches and returns the number indexed.
func indexRecords(ctx context.Context, indexer db.Indexer, r io.Reader, batchSize int) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var (
		batch = make([]db.Document, 0, batchSize)
		total int
		line  int
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := indexer.IndexDocuments(ctx, batch); err != nil {
			return err
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(strings.TrimSpace(string(raw))) == 0 {
			continue
		}
		doc, err := parseDocument(raw)
		if err != nil {
			return total, fmt.Errorf("line %d: %w", line, err)
		}
		batch = append(batch, doc)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return total, fmt.Errorf("read: %w", err)
	}
	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}

func parseDocument(raw []byte) (db.Document, error) {
	var wrapped sourceLine
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return db.Document{}, fmt.Errorf("decode: %w", err)
	}
	if wrapped.Source != nil {
		if wrapped.ID == "" {
			return db.Document{}, fmt.Errorf("_id is required")
		}
		return db.Document{ID: wrapped.ID, Fields: wrapped.Source}, nil
	}

	var flat map[string]any
	if err := json.Unmarshal(raw, &flat); err != nil {
		return db.Document{}, fmt.Errorf("decode: %w", err)
	}
	id, _ := flat["id"].(string)
	if id == "" {
		return db.Document{}, fmt.Errorf("id is required")
	}
	delete(flat, "id")
	return db.Document{ID: id, Fields: flat}, nil
}
