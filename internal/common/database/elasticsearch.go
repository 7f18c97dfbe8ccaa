// internal/common/database/elasticsearch.go
package database

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"searchmodel/internal/common/config"
	apperrors "searchmodel/internal/common/errors"
	"searchmodel/internal/search"
)

// ElasticsearchClient wraps the Elasticsearch client and serves as the search
// gateway of every model.
type ElasticsearchClient struct {
	Client *elasticsearch.Client
}

var _ search.Gateway = (*ElasticsearchClient)(nil)

// NewElasticsearch creates a new Elasticsearch client
func NewElasticsearch(cfg config.ElasticsearchConfig) (*ElasticsearchClient, error) {
	esCfg := elasticsearch.Config{
		Addresses: cfg.Addresses,
	}
	if len(esCfg.Addresses) == 0 && cfg.URL != "" {
		esCfg.Addresses = []string{cfg.URL}
	}

	if cfg.Username != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}
	if cfg.MaxRetries > 0 {
		esCfg.MaxRetries = cfg.MaxRetries
	}

	es, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	return &ElasticsearchClient{Client: es}, nil
}

// Ping tests the Elasticsearch connection
func (c *ElasticsearchClient) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := c.Client.Ping(
		c.Client.Ping.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch ping failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping error: %s", res.Status())
	}

	return nil
}

// Info returns cluster information
func (c *ElasticsearchClient) Info(ctx context.Context) error {
	res, err := c.Client.Info(
		c.Client.Info.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch info error: %s", res.Status())
	}

	return nil
}

// IndexExists reports whether index exists.
func (c *ElasticsearchClient) IndexExists(ctx context.Context, index string) (bool, error) {
	res, err := c.Client.Indices.Exists(
		[]string{index},
		c.Client.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return false, transportError("index exists", err)
	}
	defer drain(res)

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	}
	return false, responseError(res)
}

// CreateIndex creates index with the given settings and mappings.
func (c *ElasticsearchClient) CreateIndex(ctx context.Context, index string, body map[string]interface{}) error {
	buf, err := encode(body)
	if err != nil {
		return err
	}

	res, err := c.Client.Indices.Create(
		index,
		c.Client.Indices.Create.WithContext(ctx),
		c.Client.Indices.Create.WithBody(buf),
	)
	if err != nil {
		return transportError("create index", err)
	}
	defer drain(res)

	if res.IsError() {
		return responseError(res)
	}
	return nil
}

// DeleteIndex drops index.
func (c *ElasticsearchClient) DeleteIndex(ctx context.Context, index string) error {
	res, err := c.Client.Indices.Delete(
		[]string{index},
		c.Client.Indices.Delete.WithContext(ctx),
	)
	if err != nil {
		return transportError("delete index", err)
	}
	defer drain(res)

	if res.IsError() {
		return responseError(res)
	}
	return nil
}

type searchResult struct {
	Took int64 `json:"took"`
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string                 `json:"_id"`
			Score  *float64               `json:"_score"`
			Source map[string]interface{} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search runs one from/size page of req against index.
func (c *ElasticsearchClient) Search(ctx context.Context, index string, req search.SearchRequest) (*search.SearchResponse, error) {
	body := map[string]interface{}{}
	if req.Query != nil {
		body["query"] = req.Query
	}
	if len(req.Sort) > 0 {
		body["sort"] = req.Sort
	}
	buf, err := encode(body)
	if err != nil {
		return nil, err
	}

	res, err := c.Client.Search(
		c.Client.Search.WithContext(ctx),
		c.Client.Search.WithIndex(index),
		c.Client.Search.WithBody(buf),
		c.Client.Search.WithFrom(req.From),
		c.Client.Search.WithSize(req.Size),
	)
	if err != nil {
		return nil, transportError("search", err)
	}
	defer drain(res)

	if res.StatusCode == http.StatusNotFound {
		return nil, apperrors.NewIndexNotFoundError(index)
	}
	if res.IsError() {
		return nil, responseError(res)
	}

	var r searchResult
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := &search.SearchResponse{
		Hits:  make([]search.Hit, 0, len(r.Hits.Hits)),
		Total: r.Hits.Total.Value,
		Took:  r.Took,
	}
	for _, h := range r.Hits.Hits {
		hit := search.Hit{ID: h.ID, Source: h.Source}
		if h.Score != nil {
			hit.Score = *h.Score
		}
		out.Hits = append(out.Hits, hit)
	}
	return out, nil
}

// Count returns the number of documents in index matching query.
func (c *ElasticsearchClient) Count(ctx context.Context, index string, query map[string]interface{}) (int64, error) {
	opts := []func(*esapi.CountRequest){
		c.Client.Count.WithContext(ctx),
		c.Client.Count.WithIndex(index),
	}
	if query != nil {
		buf, err := encode(map[string]interface{}{"query": query})
		if err != nil {
			return 0, err
		}
		opts = append(opts, c.Client.Count.WithBody(buf))
	}

	res, err := c.Client.Count(opts...)
	if err != nil {
		return 0, transportError("count", err)
	}
	defer drain(res)

	if res.StatusCode == http.StatusNotFound {
		return 0, apperrors.NewIndexNotFoundError(index)
	}
	if res.IsError() {
		return 0, responseError(res)
	}

	var r struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, fmt.Errorf("decode count response: %w", err)
	}
	return r.Count, nil
}

// DeleteByQuery removes every document in index matching query.
func (c *ElasticsearchClient) DeleteByQuery(ctx context.Context, index string, query map[string]interface{}) error {
	buf, err := encode(map[string]interface{}{"query": query})
	if err != nil {
		return err
	}

	res, err := c.Client.DeleteByQuery(
		[]string{index},
		buf,
		c.Client.DeleteByQuery.WithContext(ctx),
		c.Client.DeleteByQuery.WithRefresh(true),
		c.Client.DeleteByQuery.WithConflicts("proceed"),
	)
	if err != nil {
		return transportError("delete by query", err)
	}
	defer drain(res)

	if res.IsError() {
		return responseError(res)
	}
	return nil
}

// IndexDocument stores body as a new document of index.
func (c *ElasticsearchClient) IndexDocument(ctx context.Context, index string, body map[string]interface{}) error {
	buf, err := encode(body)
	if err != nil {
		return err
	}

	res, err := c.Client.Index(
		index,
		buf,
		c.Client.Index.WithContext(ctx),
		c.Client.Index.WithRefresh("true"),
	)
	if err != nil {
		return transportError("index document", err)
	}
	defer drain(res)

	if res.IsError() {
		return responseError(res)
	}
	return nil
}

func encode(body map[string]interface{}) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}
	return &buf, nil
}

func drain(res *esapi.Response) {
	_, _ = io.Copy(io.Discard, res.Body)
	res.Body.Close()
}

// transportError maps deadline expiry to SEARCH_TIMEOUT and keeps anything else
// as a plain error for the caller to classify.
func transportError(operation string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewSearchTimeoutError(operation, err)
	}
	return fmt.Errorf("elasticsearch %s: %w", operation, err)
}

func responseError(res *esapi.Response) error {
	var e struct {
		Error struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	}
	if err := json.NewDecoder(res.Body).Decode(&e); err != nil || e.Error.Type == "" {
		return fmt.Errorf("elasticsearch error: %s", res.Status())
	}
	return fmt.Errorf("elasticsearch error: %s: %s: %s", res.Status(), e.Error.Type, e.Error.Reason)
}
