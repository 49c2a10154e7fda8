package local

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/USCbiostats/annoq-api-v2/internal/db"
)

// Compile-time checks.
var (
	_ db.Engine  = (*Engine)(nil)
	_ db.Indexer = (*Engine)(nil)
)

const (
	// scanBatch is the page size used for internal full scans.
	scanBatch = 10_000
	// maxScan bounds the documents visited by one aggregation request.
	maxScan = 1_000_000
)

// Config holds parameters for an embedded engine.
type Config struct {
	// Path is the on-disk index directory; empty keeps the index in memory.
	Path   string
	Schema *db.IndexDefinition
}

// Engine implements db.Engine over an embedded bleve index.
type Engine struct {
	index  bleve.Index
	schema *db.IndexDefinition
	types  map[string]db.IndexFieldType

	mu        sync.Mutex
	snapshots map[string]time.Time
	now       func() time.Time
}

// Open opens the index at cfg.Path, creating it from the schema when absent.
func Open(cfg Config) (*Engine, error) {
	if cfg.Schema == nil {
		return nil, fmt.Errorf("schema is required")
	}
	if err := cfg.Schema.Validate(); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}

	var (
		idx bleve.Index
		err error
	)
	switch {
	case cfg.Path == "":
		idx, err = bleve.NewMemOnly(buildMapping(cfg.Schema))
	default:
		idx, err = bleve.Open(cfg.Path)
		if err != nil {
			idx, err = bleve.New(cfg.Path, buildMapping(cfg.Schema))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}

	types := make(map[string]db.IndexFieldType, len(cfg.Schema.Fields))
	for _, f := range cfg.Schema.Fields {
		types[f.Name] = f.Type
	}

	return &Engine{
		index:     idx,
		schema:    cfg.Schema,
		types:     types,
		snapshots: make(map[string]time.Time),
		now:       time.Now,
	}, nil
}

// buildMapping maps text fields twice: analyzed under the field name and
// exact under the keyword suffix.
func buildMapping(def *db.IndexDefinition) mapping.IndexMapping {
	doc := bleve.NewDocumentMapping()

	for _, f := range def.Fields {
		switch f.Type {
		case db.IndexFieldText:
			text := bleve.NewTextFieldMapping()
			text.Analyzer = standard.Name
			text.Store = true

			exact := bleve.NewTextFieldMapping()
			exact.Name = f.Name + db.KeywordSuffix
			exact.Analyzer = keyword.Name
			exact.Store = false
			exact.IncludeInAll = false

			doc.AddFieldMappingsAt(f.Name, text, exact)
		case db.IndexFieldKeyword, db.IndexFieldDate:
			kw := bleve.NewTextFieldMapping()
			kw.Analyzer = keyword.Name
			kw.Store = true
			doc.AddFieldMappingsAt(f.Name, kw)
		case db.IndexFieldNumeric:
			num := bleve.NewNumericFieldMapping()
			num.Store = true
			doc.AddFieldMappingsAt(f.Name, num)
		case db.IndexFieldBoolean:
			b := bleve.NewBooleanFieldMapping()
			b.Store = true
			doc.AddFieldMappingsAt(f.Name, b)
		}
	}

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	im.DefaultAnalyzer = standard.Name
	return im
}

// Ping checks that the index answers.
func (e *Engine) Ping(_ context.Context) error {
	if _, err := e.index.DocCount(); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close releases the index.
func (e *Engine) Close() {
	_ = e.index.Close()
}

// Schema returns the index definition the engine was opened with.
func (e *Engine) Schema() *db.IndexDefinition { return e.schema }

// IndexDocuments loads documents in one batch. Numeric fields given as strings are parsed.
func (e *Engine) IndexDocuments(_ context.Context, docs []db.Document) error {
	if len(docs) == 0 {
		return nil
	}
	batch := e.index.NewBatch()
	for _, d := range docs {
		if d.ID == "" {
			return &db.Error{Op: db.OpIndex, Err: fmt.Errorf("document id is required")}
		}
		if err := batch.Index(d.ID, e.coerce(d.Fields)); err != nil {
			return &db.Error{Op: db.OpIndex, Err: err}
		}
	}
	if err := e.index.Batch(batch); err != nil {
		return &db.Error{Op: db.OpIndex, Err: err}
	}
	return nil
}

func (e *Engine) coerce(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if s, ok := v.(string); ok && e.types[k] == db.IndexFieldNumeric {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				out[k] = f
				continue
			}
		}
		out[k] = v
	}
	return out
}

func (e *Engine) checkIndex(name string) error {
	if name != "" && name != e.schema.Name {
		return fmt.Errorf("%w: %s", db.ErrIndexNotFound, name)
	}
	return nil
}
