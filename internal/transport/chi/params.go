package chi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/oapi-codegen/runtime"

	"github.com/USCbiostats/annoq-api-v2/internal/domain"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/search/aggregation"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/search/mode"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/search/request"
	snpuc "github.com/USCbiostats/annoq-api-v2/internal/usecase/snp"
)

const maxBodyBytes = 1 << 20

// Query parameter names.
const (
	paramChr          = "chromosome_identifier"
	paramStart        = "start_position"
	paramEnd          = "end_position"
	paramRsIDs        = "rsid_list"
	paramIDs          = "ids"
	paramGene         = "gene_product"
	paramKeyword      = "keyword"
	paramKeywordField = "keyword_fields"
	paramGeneFields   = "gene_fields"
	paramFields       = "fields"
	paramFilterFields = "filter_fields"
	paramFrom         = "pagination_from"
	paramSize         = "pagination_size"
	paramFormat       = "format"
	paramMaxRecords   = "max_records"
)

// bind reads one form-style query parameter. Lists are comma separated.
func bind(q url.Values, name string, required bool, dest any) error {
	if err := runtime.BindQueryParameter("form", false, required, name, q, dest); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}
	return nil
}

// selectionFromQuery reads the mode-specific parameters of a GET request.
func selectionFromQuery(m mode.Mode, q url.Values) (request.Selection, error) {
	var p request.Params
	switch m {
	case mode.Chromosome:
		c := request.Chromosome{}
		if err := bind(q, paramChr, true, &c.Chr); err != nil {
			return request.Selection{}, err
		}
		if err := bind(q, paramStart, true, &c.Start); err != nil {
			return request.Selection{}, err
		}
		if err := bind(q, paramEnd, true, &c.End); err != nil {
			return request.Selection{}, err
		}
		p.Chromosome = &c
	case mode.RsIDList:
		if err := bind(q, paramRsIDs, true, &p.RsIDs); err != nil {
			return request.Selection{}, err
		}
	case mode.IDList:
		if err := bind(q, paramIDs, true, &p.IDs); err != nil {
			return request.Selection{}, err
		}
	case mode.GeneProduct:
		if err := bind(q, paramGene, true, &p.Gene); err != nil {
			return request.Selection{}, err
		}
	case mode.Keyword:
		k := request.Keyword{}
		if err := bind(q, paramKeyword, true, &k.Text); err != nil {
			return request.Selection{}, err
		}
		if err := bind(q, paramKeywordField, false, &k.Fields); err != nil {
			return request.Selection{}, err
		}
		if err := bind(q, paramGeneFields, false, &k.GeneFields); err != nil {
			return request.Selection{}, err
		}
		p.Keyword = &k
	default:
		return request.Selection{}, fmt.Errorf("%w: invalid search mode %q", domain.ErrInvalidRequest, m)
	}

	var filterFields []string
	if err := bind(q, paramFilterFields, false, &filterFields); err != nil {
		return request.Selection{}, err
	}
	return request.NewSelection(m, p, filterFields)
}

// parseFields accepts {"_source":[...]} or a comma list. Empty means the default set.
func parseFields(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if strings.HasPrefix(raw, "{") {
		var doc struct {
			Source []string `json:"_source"`
		}
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("%w: fields: %w", domain.ErrInvalidRequest, err)
		}
		return doc.Source, nil
	}
	return strings.Split(raw, ","), nil
}

// searchRequestFromQuery builds a validated page request from a GET request.
func searchRequestFromQuery(m mode.Mode, q url.Values, lim request.Limits) (request.Request, error) {
	sel, err := selectionFromQuery(m, q)
	if err != nil {
		return request.Request{}, err
	}
	fields, err := parseFields(q.Get(paramFields))
	if err != nil {
		return request.Request{}, err
	}
	var from, size int
	if err := bind(q, paramFrom, false, &from); err != nil {
		return request.Request{}, err
	}
	if err := bind(q, paramSize, false, &size); err != nil {
		return request.Request{}, err
	}
	return request.New(sel, fields, from, size, lim)
}

// selectionBody is the JSON form of a selection.
type selectionBody struct {
	Mode          mode.Mode `json:"mode"`
	Chr           string    `json:"chr"`
	Start         int64     `json:"start"`
	End           int64     `json:"end"`
	IDs           []string  `json:"ids"`
	RsIDs         []string  `json:"rsids"`
	Gene          string    `json:"gene"`
	Keyword       string    `json:"keyword"`
	KeywordFields []string  `json:"keyword_fields"`
	GeneFields    bool      `json:"gene_fields"`
	FilterFields  []string  `json:"filter_fields"`
}

func (b selectionBody) selection() (request.Selection, error) {
	p := request.Params{
		IDs:   b.IDs,
		RsIDs: b.RsIDs,
		Gene:  b.Gene,
	}
	switch b.Mode {
	case mode.Chromosome:
		p.Chromosome = &request.Chromosome{Chr: b.Chr, Start: b.Start, End: b.End}
	case mode.Keyword:
		p.Keyword = &request.Keyword{Text: b.Keyword, Fields: b.KeywordFields, GeneFields: b.GeneFields}
	}
	return request.NewSelection(b.Mode, p, b.FilterFields)
}

type aggregationBody struct {
	Field     string                     `json:"field"`
	Kinds     []aggregation.Kind         `json:"kinds"`
	Histogram *aggregation.HistogramSpec `json:"histogram"`
}

// searchBody is the JSON body of POST /snp/search.
type searchBody struct {
	selectionBody
	Fields       []string                   `json:"fields"`
	From         int                        `json:"from"`
	Size         int                        `json:"size"`
	Aggregations []aggregationBody          `json:"aggregations"`
	Histogram    *aggregation.HistogramSpec `json:"histogram"`
}

func (b searchBody) request(lim request.Limits) (request.Request, *snpuc.Aggregations, error) {
	sel, err := b.selection()
	if err != nil {
		return request.Request{}, nil, err
	}
	req, err := request.New(sel, b.Fields, b.From, b.Size, lim)
	if err != nil {
		return request.Request{}, nil, err
	}

	aggs := &snpuc.Aggregations{Global: defaultedHistogram(b.Histogram)}
	for _, a := range b.Aggregations {
		spec, err := aggregation.NewSpec(a.Field, a.Kinds, defaultedHistogram(a.Histogram))
		if err != nil {
			return request.Request{}, nil, err
		}
		aggs.Specs = append(aggs.Specs, spec)
	}
	return req, aggs, nil
}

// defaultedHistogram turns an empty histogram object into the default bucketing.
func defaultedHistogram(h *aggregation.HistogramSpec) *aggregation.HistogramSpec {
	if h != nil && *h == (aggregation.HistogramSpec{}) {
		d := aggregation.DefaultHistogram()
		return &d
	}
	return h
}

// exportBody is the JSON body of POST /export.
type exportBody struct {
	selectionBody
	Fields     []string `json:"fields"`
	Format     string   `json:"format"`
	MaxRecords int      `json:"max_records"`
}

func decodeBody(r *http.Request, w http.ResponseWriter, dest any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return fmt.Errorf("%w: request body: %w", domain.ErrInvalidRequest, err)
	}
	return nil
}
