package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/USCbiostats/annoq-api-v2/internal/domain"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/search/mode"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/search/request"
	exportuc "github.com/USCbiostats/annoq-api-v2/internal/usecase/export"
)

type exportOptions struct {
	mode          string
	chr           string
	start         int64
	end           int64
	ids           []string
	rsids         []string
	gene          string
	keyword       string
	keywordFields []string
	geneFields    bool
	fields        []string
	filterFields  []string
	format        string
	out           string
	limit         int
	artifact      bool
}

func newExportCmd(global *globalOptions) *cobra.Command {
	opts := &exportOptions{}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every record of a selection as CSV or NDJSON",
		Long: `Streams all records matching a selection through a snapshot.
Without --artifact the records go to --out (stdout by default). With --artifact
they are written to the export directory and uploaded when an object store is configured.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			job, err := opts.job()
			if err != nil {
				return err
			}
			return global.withApp(cmd.Context(), func(a *app) error {
				if opts.artifact {
					return runArtifactExport(cmd, a, job)
				}
				return runInlineExport(cmd, a, job, opts.out)
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.mode, "mode", string(mode.Chromosome), "selection mode: chr, rsidList, ids, gene_product, keyword")
	f.StringVar(&opts.chr, "chr", "", "chromosome (chr mode)")
	f.Int64Var(&opts.start, "start", 0, "inclusive start position (chr mode)")
	f.Int64Var(&opts.end, "end", 0, "inclusive end position (chr mode)")
	f.StringSliceVar(&opts.ids, "ids", nil, "record ids (ids mode)")
	f.StringSliceVar(&opts.rsids, "rsids", nil, "dbSNP rs identifiers (rsidList mode)")
	f.StringVar(&opts.gene, "gene", "", "gene symbol or identifier (gene_product mode)")
	f.StringVar(&opts.keyword, "keyword", "", "free-text query (keyword mode)")
	f.StringSliceVar(&opts.keywordFields, "keyword-fields", nil, "restrict keyword matching to these attributes")
	f.BoolVar(&opts.geneFields, "gene-fields", false, "restrict keyword matching to gene columns")
	f.StringSliceVar(&opts.fields, "fields", nil, "attributes to export (default: the default attribute set)")
	f.StringSliceVar(&opts.filterFields, "filter-fields", nil, "only export records where these attributes exist")
	f.StringVar(&opts.format, "format", string(exportuc.CSV), "output format: csv, ndjson")
	f.StringVarP(&opts.out, "out", "o", "-", "output file, - for stdout")
	f.IntVar(&opts.limit, "limit", 0, "maximum records to export (0: configured maximum)")
	f.BoolVar(&opts.artifact, "artifact", false, "write an artifact to the export directory instead of --out")
	return cmd
}

// job validates the flags into an export job.
func (o *exportOptions) job() (exportuc.Job, error) {
	m := mode.Mode(o.mode)
	if !m.IsValid() {
		return exportuc.Job{}, fmt.Errorf("%w: invalid search mode %q", domain.ErrInvalidRequest, o.mode)
	}

	var p request.Params
	switch m {
	case mode.Chromosome:
		p.Chromosome = &request.Chromosome{Chr: o.chr, Start: o.start, End: o.end}
	case mode.RsIDList:
		p.RsIDs = o.rsids
	case mode.IDList:
		p.IDs = o.ids
	case mode.GeneProduct:
		p.Gene = o.gene
	case mode.Keyword:
		p.Keyword = &request.Keyword{Text: o.keyword, Fields: o.keywordFields, GeneFields: o.geneFields}
	}

	sel, err := request.NewSelection(m, p, o.filterFields)
	if err != nil {
		return exportuc.Job{}, err
	}
	format, err := exportuc.ParseFormat(o.format)
	if err != nil {
		return exportuc.Job{}, err
	}
	return exportuc.Job{Selection: sel, Fields: o.fields, Format: format, Limit: o.limit}, nil
}

func runInlineExport(cmd *cobra.Command, a *app, job exportuc.Job, out string) (err error) {
	var w io.Writer = cmd.OutOrStdout()
	if out != "-" {
		f, oerr := os.Create(filepath.Clean(out))
		if oerr != nil {
			return fmt.Errorf("create output: %w", oerr)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("close output: %w", cerr)
			}
		}()
		w = f
	}

	bw := bufio.NewWriter(w)
	n, err := a.exports.Write(cmd.Context(), bw, func() { _ = bw.Flush() }, job)
	if ferr := bw.Flush(); ferr != nil && err == nil {
		err = fmt.Errorf("flush output: %w", ferr)
	}

	var partial *domain.PartialDeliveryError
	switch {
	case errors.As(err, &partial):
		a.logger.Error("Export ended early", zap.Int("records", n), zap.Error(err))
		return err
	case err != nil:
		return err
	}
	a.logger.Info("Export complete", zap.Int("records", n), zap.String("out", out))
	return nil
}

func runArtifactExport(cmd *cobra.Command, a *app, job exportuc.Job) error {
	artifact, err := a.exports.Export(cmd.Context(), job)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(struct {
		exportuc.Artifact
		Path string `json:"path"`
	}{artifact, artifact.Path}); err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	return nil
}
