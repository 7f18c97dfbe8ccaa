package search

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "searchmodel/internal/common/errors"
	"searchmodel/internal/common/logger"
	"searchmodel/internal/common/metrics"
)

const (
	DefaultLimit  = 10
	MaxLimit      = 100
	ScanBatchSize = 1000

	ModeList = "list"
	ModeMap  = "map"
)

var tracer = otel.Tracer("searchmodel/internal/search")

// Pagination describes the filtered result set of a listing.
type Pagination struct {
	TotalCount  int64 `json:"totalCount"`
	PageCount   int64 `json:"pageCount"`
	CurrentPage int   `json:"currentPage"`
}

// ResultPage is one page of a listing.
type ResultPage struct {
	Result     []Document `json:"result"`
	Pagination Pagination `json:"pagination"`
}

// MapResult is the outcome of a full scan: either the flat document list or,
// when clustering applied, the geohash buckets in first-seen order.
type MapResult struct {
	Documents []Document
	Clusters  [][]Document
	Clustered bool
}

// Payload returns whichever representation the scan produced.
func (r *MapResult) Payload() interface{} {
	if r.Clustered {
		return r.Clusters
	}
	return r.Documents
}

// Option configures a Model.
type Option func(*Model)

// WithLogger sets the model logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Model) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithName sets the name used in logs, spans and metric labels. Defaults to the index.
func WithName(name string) Option {
	return func(m *Model) {
		if name != "" {
			m.name = name
		}
	}
}

// WithDefaultLimit sets the page size used when params carry no limit.
func WithDefaultLimit(limit int) Option {
	return func(m *Model) {
		if limit > 0 {
			m.defaultLimit = limit
		}
	}
}

// WithFixedLimit is the construction-time form of EnableFixLimitResult.
func WithFixedLimit(limit int) Option {
	return func(m *Model) {
		m.EnableFixLimitResult(limit)
	}
}

// WithMaxScanBatches bounds the number of non-empty batches a full scan may
// read. Zero leaves the scan unbounded.
func WithMaxScanBatches(n int) Option {
	return func(m *Model) {
		if n >= 0 {
			m.maxScanBatches = n
		}
	}
}

// Model runs searches for one index with one rule schema. Configure it before
// sharing it; after that every search keeps its state on the call stack, so a
// Model is safe for concurrent use.
type Model struct {
	name    string
	index   string
	schema  *Schema
	gateway Gateway
	logger  logger.Logger

	defaultLimit   int
	fixLimit       bool
	fixedLimit     int
	maxScanBatches int
}

// NewModel creates a search model over index.
func NewModel(gateway Gateway, index string, schema *Schema, opts ...Option) *Model {
	if schema == nil {
		schema = NewSchema().MustBuild()
	}
	m := &Model{
		name:         index,
		index:        index,
		schema:       schema,
		gateway:      gateway,
		logger:       logger.NewNoOpLogger(),
		defaultLimit: DefaultLimit,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.WithFields(map[string]interface{}{
		"model": m.name,
		"index": m.index,
	})
	return m
}

func (m *Model) Name() string    { return m.name }
func (m *Model) Index() string   { return m.index }
func (m *Model) Schema() *Schema { return m.schema }

// EnableFixLimitResult pins every listing to limit results per page regardless of
// params. A non-positive limit pins it to MaxLimit.
func (m *Model) EnableFixLimitResult(limit int) {
	if limit <= 0 {
		limit = MaxLimit
	}
	m.fixedLimit = limit
	m.fixLimit = true
}

// Limit resolves the page size for params. Requested limits above MaxLimit are
// truncated to MaxLimit; missing, non-numeric or non-positive ones fall back to
// the default.
func (m *Model) Limit(params Params) int {
	if m.fixLimit {
		return m.fixedLimit
	}

	limit := m.defaultLimit
	if isset(params, "limit") {
		if f, ok := toFloat(params["limit"]); ok {
			switch {
			case f >= MaxLimit:
				limit = MaxLimit
			case f >= 1:
				limit = int(f)
			}
		}
	}

	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Offset returns the first hit index of page for the given limit.
func Offset(page, limit int) int {
	if page <= 1 {
		return 0
	}
	return (page - 1) * limit
}

// SearchList returns one page of matching documents together with the counts of
// the whole filtered set.
func (m *Model) SearchList(ctx context.Context, page int, params Params) (_ *ResultPage, err error) {
	start := time.Now()
	ctx, span := m.startSpan(ctx, ModeList)
	defer func() { m.finish(span, ModeList, start, err) }()

	compiled, sort, err := m.prepare(ctx, params)
	if err != nil {
		return nil, err
	}

	limit := m.Limit(params)
	from := Offset(page, limit)
	query := compiled.BoolQuery()
	span.SetAttributes(
		attribute.Int("search.page", page),
		attribute.Int("search.limit", limit),
	)

	resp, err := m.gateway.Search(ctx, m.index, SearchRequest{
		From:  from,
		Size:  limit,
		Query: query,
		Sort:  sort,
	})
	if err != nil {
		return nil, searchFailure("search", err)
	}

	total, err := m.gateway.Count(ctx, m.index, query)
	if err != nil {
		return nil, searchFailure("count", err)
	}

	docs := project(resp)
	metrics.SearchDocumentsReturned.WithLabelValues(m.name, ModeList).Add(float64(len(docs)))

	if page < 1 {
		page = 1
	}

	m.logger.Debug("listing completed", map[string]interface{}{
		"page":     page,
		"limit":    limit,
		"from":     from,
		"returned": len(docs),
		"total":    total,
	})

	return &ResultPage{
		Result: docs,
		Pagination: Pagination{
			TotalCount:  total,
			PageCount:   pageCount(total, limit),
			CurrentPage: page,
		},
	}, nil
}

// SearchMap returns every matching document by requesting fixed-size batches
// until one comes back empty. Results are clustered by geohash when the request
// asked for clustering at a high enough zoom.
func (m *Model) SearchMap(ctx context.Context, params Params) (_ *MapResult, err error) {
	start := time.Now()
	ctx, span := m.startSpan(ctx, ModeMap)
	defer func() { m.finish(span, ModeMap, start, err) }()

	compiled, sort, err := m.prepare(ctx, params)
	if err != nil {
		return nil, err
	}

	query := compiled.BoolQuery()
	var all []Document

	for batch := 0; ; batch++ {
		resp, err := m.gateway.Search(ctx, m.index, SearchRequest{
			From:  batch * ScanBatchSize,
			Size:  ScanBatchSize,
			Query: query,
			Sort:  sort,
		})
		if err != nil {
			return nil, searchFailure("search", err)
		}
		metrics.ScanBatches.WithLabelValues(m.name).Inc()

		docs := project(resp)
		if len(docs) == 0 {
			span.SetAttributes(attribute.Int("search.batches", batch+1))
			break
		}
		// The request after the last allowed batch may only confirm the end.
		if m.maxScanBatches > 0 && batch >= m.maxScanBatches {
			return nil, apperrors.NewSearchExecutionError("scan",
				fmt.Errorf("scan exceeded %d batches of %d documents", m.maxScanBatches, ScanBatchSize))
		}
		all = append(all, docs...)
	}

	metrics.SearchDocumentsReturned.WithLabelValues(m.name, ModeMap).Add(float64(len(all)))

	result := &MapResult{Documents: all}
	if compiled.Geo.ShouldCluster() {
		result.Clusters = Cluster(all)
		result.Clustered = true
	}

	m.logger.Debug("scan completed", map[string]interface{}{
		"documents": len(all),
		"clustered": result.Clustered,
		"clusters":  len(result.Clusters),
	})

	return result, nil
}

// prepare checks the index and runs compile then sort, in that order.
func (m *Model) prepare(ctx context.Context, params Params) (*Compiled, []SortSpec, error) {
	if err := m.ensureIndex(ctx); err != nil {
		return nil, nil, err
	}

	compiled, err := Compile(m.schema, params)
	if err != nil {
		return nil, nil, err
	}

	return compiled, ComposeSort(compiled.Geo, m.schema.Sort()), nil
}

func (m *Model) ensureIndex(ctx context.Context) error {
	exists, err := m.gateway.IndexExists(ctx, m.index)
	if err != nil {
		return searchFailure("index exists", err)
	}
	if !exists {
		return apperrors.NewIndexNotFoundError(m.index)
	}
	return nil
}

func (m *Model) startSpan(ctx context.Context, mode string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "search."+mode, trace.WithAttributes(
		attribute.String("search.model", m.name),
		attribute.String("search.index", m.index),
	))
}

func (m *Model) finish(span trace.Span, mode string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.logger.Error("search failed", map[string]interface{}{
			"mode":  mode,
			"error": err,
		})
	}
	span.End()

	metrics.SearchRequests.WithLabelValues(m.name, mode, status).Inc()
	metrics.SearchDuration.WithLabelValues(m.name, mode).Observe(time.Since(start).Seconds())
}

func project(resp *SearchResponse) []Document {
	if resp == nil || len(resp.Hits) == 0 {
		return nil
	}
	docs := make([]Document, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		docs = append(docs, hit.Source)
	}
	return docs
}

func pageCount(total int64, limit int) int64 {
	if limit <= 0 || total <= 0 {
		return 0
	}
	l := int64(limit)
	return (total + l - 1) / l
}

// searchFailure keeps structured gateway errors as they are and wraps anything
// else as a search execution failure carrying the original message.
func searchFailure(operation string, err error) error {
	if _, ok := apperrors.AsStandardError(err); ok {
		return err
	}
	return apperrors.NewSearchExecutionError(operation, err)
}
