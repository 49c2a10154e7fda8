package genetable

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/USCbiostats/annoq-api-v2/internal/domain"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/gene"
)

var requiredColumns = []string{"gene_id", "chr", "start", "end"}

// Table is an in-memory gene position table keyed by normalized id and alias.
// It is built once and read concurrently without locking.
type Table struct {
	byName map[string]gene.Position
	genes  int
}

// LoadFile reads a tab-separated table from path.
func LoadFile(path string, logger *zap.Logger) (*Table, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open gene table %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return Load(f, logger)
}

// Load parses a tab-separated table with a header row.
// Required columns: gene_id, chr, start, end. An optional aliases column holds
// comma-separated symbols. Malformed rows are skipped with a warning.
func Load(r io.Reader, logger *zap.Logger) (*Table, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read gene table header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("gene table missing column %q", c)
		}
	}
	aliasCol, hasAliases := cols["aliases"]

	t := &Table{byName: make(map[string]gene.Position)}
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read gene table line %d: %w", line, err)
		}

		pos, err := parseRow(rec, cols)
		if err != nil {
			logger.Warn("Skipping gene table row", zap.Int("line", line), zap.Error(err))
			continue
		}

		t.genes++
		t.add(pos.GeneID, pos)
		if hasAliases && aliasCol < len(rec) {
			for _, a := range strings.Split(rec[aliasCol], ",") {
				t.add(a, pos)
			}
		}
	}

	logger.Info("Gene table loaded", zap.Int("genes", t.genes), zap.Int("names", len(t.byName)))
	return t, nil
}

func parseRow(rec []string, cols map[string]int) (gene.Position, error) {
	field := func(name string) string {
		i := cols[name]
		if i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	id := field("gene_id")
	if id == "" {
		return gene.Position{}, fmt.Errorf("empty gene_id")
	}
	start, err := strconv.ParseInt(field("start"), 10, 64)
	if err != nil {
		return gene.Position{}, fmt.Errorf("start: %w", err)
	}
	end, err := strconv.ParseInt(field("end"), 10, 64)
	if err != nil {
		return gene.Position{}, fmt.Errorf("end: %w", err)
	}
	pos, err := gene.NewPosition(field("chr"), start, end)
	if err != nil {
		return gene.Position{}, err
	}
	pos.GeneID = id
	return pos, nil
}

// add registers a name. The first row wins on conflicts.
func (t *Table) add(name string, pos gene.Position) {
	key := gene.Normalize(name)
	if key == "" {
		return
	}
	if _, ok := t.byName[key]; !ok {
		t.byName[key] = pos
	}
}

// Len returns the number of genes loaded.
func (t *Table) Len() int { return t.genes }

// Locate resolves a gene id or alias.
func (t *Table) Locate(_ context.Context, name string) (gene.Position, error) {
	if pos, ok := t.byName[gene.Normalize(name)]; ok {
		return pos, nil
	}
	return gene.Position{}, fmt.Errorf("%w: %s", domain.ErrGeneNotFound, name)
}
