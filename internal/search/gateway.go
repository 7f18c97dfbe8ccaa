package search

import "context"

// Document is a projected hit source.
type Document = map[string]interface{}

// SearchRequest is one bounded search against an index. Query is nil when no
// condition was compiled.
type SearchRequest struct {
	From  int
	Size  int
	Query map[string]interface{}
	Sort  []SortSpec
}

// Hit is a raw search hit.
type Hit struct {
	ID     string
	Score  float64
	Source map[string]interface{}
}

// SearchResponse is the subset of a search response the models consume.
type SearchResponse struct {
	Hits  []Hit
	Total int64
	Took  int64
}

// Gateway is the search engine surface the models depend on.
type Gateway interface {
	IndexExists(ctx context.Context, index string) (bool, error)
	CreateIndex(ctx context.Context, index string, body map[string]interface{}) error
	DeleteIndex(ctx context.Context, index string) error
	Search(ctx context.Context, index string, req SearchRequest) (*SearchResponse, error)
	Count(ctx context.Context, index string, query map[string]interface{}) (int64, error)
	DeleteByQuery(ctx context.Context, index string, query map[string]interface{}) error
	IndexDocument(ctx context.Context, index string, body map[string]interface{}) error
}
