package export

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/USCbiostats/annoq-api-v2/internal/domain/search/request"
	domsnp "github.com/USCbiostats/annoq-api-v2/internal/domain/snp"
)

// DefaultFlushEvery is the number of records between flushes of an inline stream.
const DefaultFlushEvery = 1000

// Job describes one export.
type Job struct {
	Selection request.Selection
	// Fields are external names; empty means the default set.
	Fields []string
	Format Format
	// Limit caps the exported records; <= 0 means the configured maximum.
	Limit int
}

// Artifact is a finished export file.
type Artifact struct {
	Name    string `json:"file"`
	Path    string `json:"-"`
	URL     string `json:"url,omitempty"`
	Records int    `json:"records"`
	Bytes   int64  `json:"bytes"`
}

// Config holds export settings.
type Config struct {
	Dir        string
	Gzip       bool
	FlushEvery int
}

// Service writes exports inline or to artifacts.
type Service struct {
	src    RecordSource
	store  ArtifactStore
	cfg    Config
	logger *zap.Logger
	newID  func() string
}

// New creates an export service. store can be nil; artifacts then stay local.
func New(src RecordSource, store ArtifactStore, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FlushEvery <= 0 {
		cfg.FlushEvery = DefaultFlushEvery
	}
	if cfg.Dir == "" {
		cfg.Dir = os.TempDir()
	}
	return &Service{src: src, store: store, cfg: cfg, logger: logger, newID: uuid.NewString}
}

// Write streams the export onto w, calling flush every FlushEvery records and at the end.
// Records already written stay written when the stream fails. A stream that fails before
// delivering anything writes nothing, not even the header row.
func (s *Service) Write(ctx context.Context, w io.Writer, flush func(), job Job) (int, error) {
	if flush == nil {
		flush = func() {}
	}
	cols, err := s.src.ExportColumns(job.Fields)
	if err != nil {
		return 0, err
	}
	rw, err := NewRecordWriter(w, job.Format, cols)
	if err != nil {
		return 0, err
	}

	pending := 0
	n, streamErr := s.src.Stream(ctx, job.Selection, cols, job.Limit, func(rec domsnp.Record) error {
		if err := rw.Write(rec); err != nil {
			return err
		}
		pending++
		if pending >= s.cfg.FlushEvery {
			pending = 0
			if err := rw.Flush(); err != nil {
				return err
			}
			flush()
		}
		return nil
	})

	if streamErr != nil && n == 0 {
		return 0, streamErr
	}
	flushErr := rw.Flush()
	flush()
	if streamErr != nil {
		s.logger.Warn("Inline export ended early", zap.Int("records", n), zap.Error(streamErr))
		return n, streamErr
	}
	if flushErr != nil {
		return n, flushErr
	}
	return n, nil
}

// Export writes the job to a new file under the export directory, optionally gzipped, and
// uploads it when a store is configured. A failed export leaves no file behind.
func (s *Service) Export(ctx context.Context, job Job) (Artifact, error) {
	name := s.newID() + "." + job.Format.Extension()
	if s.cfg.Gzip {
		name += ".gz"
	}
	path := filepath.Join(s.cfg.Dir, name)

	n, err := s.writeFile(ctx, path, job)
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			s.logger.Warn("Failed to remove incomplete export", zap.String("path", path), zap.Error(rmErr))
		}
		return Artifact{}, fmt.Errorf("export %s: %w", name, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("stat export %s: %w", name, err)
	}
	art := Artifact{Name: name, Path: path, Records: n, Bytes: info.Size()}

	if s.store != nil {
		contentType := job.Format.ContentType()
		if s.cfg.Gzip {
			contentType = "application/gzip"
		}
		u, err := s.store.Upload(ctx, name, path, contentType)
		if err != nil {
			return Artifact{}, fmt.Errorf("upload export %s: %w", name, err)
		}
		art.URL = u
	}

	s.logger.Info("Export written",
		zap.String("file", name),
		zap.Int("records", n),
		zap.Int64("bytes", art.Bytes),
		zap.Bool("uploaded", art.URL != ""),
	)
	return art, nil
}

func (s *Service) writeFile(ctx context.Context, path string, job Job) (n int, err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return 0, fmt.Errorf("create export dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return 0, fmt.Errorf("create export file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close export file: %w", cerr)
		}
	}()

	buf := bufio.NewWriter(f)
	var w io.Writer = buf
	var gz *gzip.Writer
	if s.cfg.Gzip {
		gz = gzip.NewWriter(buf)
		w = gz
	}

	n, err = s.Write(ctx, w, nil, job)
	if err != nil {
		return n, err
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return n, fmt.Errorf("close gzip: %w", err)
		}
	}
	if err := buf.Flush(); err != nil {
		return n, fmt.Errorf("flush export file: %w", err)
	}
	return n, nil
}
