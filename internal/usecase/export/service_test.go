package export

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/USCbiostats/annoq-api-v2/internal/domain"
)

func newTestService(t *testing.T, src RecordSource, store ArtifactStore, gz bool) *Service {
	t.Helper()
	svc := New(src, store, Config{Dir: t.TempDir(), Gzip: gz, FlushEvery: 2}, nil)
	svc.newID = func() string { return "fixed" }
	return svc
}

func TestWrite_FlushesPeriodically(t *testing.T) {
	src := newMockSource(testRecords(5))
	svc := newTestService(t, src, nil, false)

	var buf bytes.Buffer
	flushes := 0
	n, err := svc.Write(context.Background(), &buf, func() { flushes++ }, Job{
		Selection: testSelection(t),
		Fields:    []string{"chr", "pos"},
		Format:    CSV,
		Limit:     10,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	// every 2 records plus the final flush
	assert.Equal(t, 3, flushes)
	assert.Equal(t, []string{"id", "chr", "pos"}, src.gotFields)
	assert.Equal(t, 10, src.gotLimit)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 6)
	assert.Equal(t, "id,chr,pos", lines[0])
}

func TestWrite_PartialKeepsPrefix(t *testing.T) {
	src := newMockSource(testRecords(5))
	src.failAfter = 3
	svc := newTestService(t, src, nil, false)

	var buf bytes.Buffer
	n, err := svc.Write(context.Background(), &buf, nil, Job{Selection: testSelection(t), Format: CSV})

	var partial *domain.PartialDeliveryError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, 3, partial.Delivered)
	assert.Equal(t, 3, n)
	assert.Len(t, strings.Split(strings.TrimSpace(buf.String()), "\n"), 4)
}

func TestWrite_ColumnsError(t *testing.T) {
	src := newMockSource(nil)
	src.colsErr = domain.ErrTooManyFields
	svc := newTestService(t, src, nil, false)

	var buf bytes.Buffer
	_, err := svc.Write(context.Background(), &buf, nil, Job{Selection: testSelection(t), Format: CSV})
	require.ErrorIs(t, err, domain.ErrTooManyFields)
	assert.Zero(t, buf.Len())
}

func TestExport_LocalFile(t *testing.T) {
	svc := newTestService(t, newMockSource(testRecords(3)), nil, false)

	art, err := svc.Export(context.Background(), Job{Selection: testSelection(t), Format: NDJSON})
	require.NoError(t, err)
	assert.Equal(t, "fixed.ndjson", art.Name)
	assert.Equal(t, 3, art.Records)
	assert.Empty(t, art.URL)

	data, err := os.ReadFile(art.Path)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), art.Bytes)
	assert.Equal(t, 3, strings.Count(string(data), "\n"))
}

func TestExport_GzipAndUpload(t *testing.T) {
	store := &mockStore{}
	svc := newTestService(t, newMockSource(testRecords(4)), store, true)

	art, err := svc.Export(context.Background(), Job{Selection: testSelection(t), Format: CSV})
	require.NoError(t, err)
	assert.Equal(t, "fixed.csv.gz", art.Name)
	assert.Equal(t, "https://store.example/fixed.csv.gz", art.URL)
	assert.Equal(t, "application/gzip", store.contentType)
	assert.Equal(t, art.Path, store.path)

	f, err := os.Open(art.Path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	plain, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(plain), "id,chr,pos\n"))
	assert.Len(t, strings.Split(strings.TrimSpace(string(plain)), "\n"), 5)
}

func TestExport_FailureRemovesFile(t *testing.T) {
	src := newMockSource(testRecords(5))
	src.failAfter = 2
	svc := newTestService(t, src, nil, false)

	_, err := svc.Export(context.Background(), Job{Selection: testSelection(t), Format: CSV})
	var partial *domain.PartialDeliveryError
	require.ErrorAs(t, err, &partial)

	_, statErr := os.Stat(filepath.Join(svc.cfg.Dir, "fixed.csv"))
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestExport_UploadFailure(t *testing.T) {
	store := &mockStore{uploadFn: func(context.Context, string, string, string) (string, error) {
		return "", errors.New("bucket gone")
	}}
	svc := newTestService(t, newMockSource(testRecords(1)), store, false)

	_, err := svc.Export(context.Background(), Job{Selection: testSelection(t), Format: CSV})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket gone")
}

func TestWrite_EarlyFailureWritesNothing(t *testing.T) {
	src := newMockSource(testRecords(3))
	src.failAfter = 0
	svc := newTestService(t, src, nil, false)

	var buf bytes.Buffer
	flushed := false
	n, err := svc.Write(context.Background(), &buf, func() { flushed = true }, Job{Selection: testSelection(t), Format: CSV})
	require.Error(t, err)
	assert.Zero(t, n)
	assert.False(t, flushed)
	assert.Zero(t, buf.Len())
}
