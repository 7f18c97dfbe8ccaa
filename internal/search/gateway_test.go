package search

import (
	"context"
	"fmt"
	"sync"
)

// fakeGateway records every call and answers from canned values.
type fakeGateway struct {
	exists    bool
	existsErr error

	searchFn  func(req SearchRequest) (*SearchResponse, error)
	count     int64
	countErr  error
	createErr error
	deleteErr error
	indexErr  error

	existsCalls int
	searches    []SearchRequest
	counts      []map[string]interface{}
	created     []map[string]interface{}
	deleted     int
	deletes     []map[string]interface{}
	indexed     []map[string]interface{}
	calls       []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{exists: true}
}

func (f *fakeGateway) IndexExists(_ context.Context, _ string) (bool, error) {
	f.existsCalls++
	f.calls = append(f.calls, "exists")
	return f.exists, f.existsErr
}

func (f *fakeGateway) CreateIndex(_ context.Context, _ string, body map[string]interface{}) error {
	f.calls = append(f.calls, "create")
	f.created = append(f.created, body)
	if f.createErr != nil {
		return f.createErr
	}
	f.exists = true
	return nil
}

func (f *fakeGateway) DeleteIndex(_ context.Context, _ string) error {
	f.calls = append(f.calls, "delete")
	f.deleted++
	f.exists = false
	return nil
}

func (f *fakeGateway) Search(_ context.Context, _ string, req SearchRequest) (*SearchResponse, error) {
	f.calls = append(f.calls, "search")
	f.searches = append(f.searches, req)
	if f.searchFn == nil {
		return &SearchResponse{}, nil
	}
	return f.searchFn(req)
}

func (f *fakeGateway) Count(_ context.Context, _ string, query map[string]interface{}) (int64, error) {
	f.calls = append(f.calls, "count")
	f.counts = append(f.counts, query)
	return f.count, f.countErr
}

func (f *fakeGateway) DeleteByQuery(_ context.Context, _ string, query map[string]interface{}) error {
	f.calls = append(f.calls, "deleteByQuery")
	f.deletes = append(f.deletes, query)
	return f.deleteErr
}

func (f *fakeGateway) IndexDocument(_ context.Context, _ string, body map[string]interface{}) error {
	f.calls = append(f.calls, "index")
	f.indexed = append(f.indexed, body)
	return f.indexErr
}

// fullBatches serves n batches of exactly req.Size hits, then empty batches.
func fullBatches(n int) func(req SearchRequest) (*SearchResponse, error) {
	return func(req SearchRequest) (*SearchResponse, error) {
		if req.From >= n*req.Size {
			return &SearchResponse{}, nil
		}
		hits := make([]Hit, req.Size)
		for i := range hits {
			hits[i] = Hit{
				ID:     fmt.Sprintf("%d", req.From+i),
				Source: map[string]interface{}{"id": req.From + i},
			}
		}
		return &SearchResponse{Hits: hits, Total: int64(n * req.Size)}, nil
	}
}

func hitsOf(sources ...map[string]interface{}) *SearchResponse {
	hits := make([]Hit, len(sources))
	for i, s := range sources {
		hits[i] = Hit{ID: fmt.Sprintf("%d", i), Source: s}
	}
	return &SearchResponse{Hits: hits, Total: int64(len(hits))}
}

// lockedGateway serializes access to a fakeGateway for concurrent callers.
type lockedGateway struct {
	mu   sync.Mutex
	fake *fakeGateway
}

func (l *lockedGateway) IndexExists(ctx context.Context, index string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fake.IndexExists(ctx, index)
}

func (l *lockedGateway) CreateIndex(ctx context.Context, index string, body map[string]interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fake.CreateIndex(ctx, index, body)
}

func (l *lockedGateway) DeleteIndex(ctx context.Context, index string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fake.DeleteIndex(ctx, index)
}

func (l *lockedGateway) Search(ctx context.Context, index string, req SearchRequest) (*SearchResponse, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fake.Search(ctx, index, req)
}

func (l *lockedGateway) Count(ctx context.Context, index string, query map[string]interface{}) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fake.Count(ctx, index, query)
}

func (l *lockedGateway) DeleteByQuery(ctx context.Context, index string, query map[string]interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fake.DeleteByQuery(ctx, index, query)
}

func (l *lockedGateway) IndexDocument(ctx context.Context, index string, body map[string]interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fake.IndexDocument(ctx, index, body)
}
