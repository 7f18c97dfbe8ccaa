package database

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"searchmodel/internal/common/config"
	apperrors "searchmodel/internal/common/errors"
	"searchmodel/internal/search"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  map[string]string
	Body   map[string]interface{}
}

// fakeCluster answers Elasticsearch REST calls from a route table keyed by
// "METHOD path", or "* path" for any method, and records what it received.
type fakeCluster struct {
	t      *testing.T
	mu     sync.Mutex
	routes map[string]func(w http.ResponseWriter)
	seen   []recordedRequest
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	rec := recordedRequest{Method: r.Method, Path: r.URL.Path, Query: map[string]string{}}
	for k := range r.URL.Query() {
		rec.Query[k] = r.URL.Query().Get(k)
	}
	if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
		require.NoError(f.t, json.Unmarshal(raw, &rec.Body))
	}

	f.mu.Lock()
	f.seen = append(f.seen, rec)
	route, ok := f.routes[r.Method+" "+r.URL.Path]
	if !ok {
		route, ok = f.routes["* "+r.URL.Path]
	}
	f.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"index_not_found_exception","reason":"no such index"},"status":404}`))
		return
	}
	route(w)
}

func (f *fakeCluster) last() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen[len(f.seen)-1]
}

func respond(status int, body string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func newTestClient(t *testing.T, routes map[string]func(w http.ResponseWriter)) (*ElasticsearchClient, *fakeCluster) {
	cluster := &fakeCluster{t: t, routes: routes}
	srv := httptest.NewServer(cluster)
	t.Cleanup(srv.Close)

	client, err := NewElasticsearch(config.ElasticsearchConfig{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return client, cluster
}

func TestElasticsearch_IndexExists(t *testing.T) {
	client, _ := newTestClient(t, map[string]func(w http.ResponseWriter){
		"HEAD /franchises": respond(http.StatusOK, ""),
	})

	exists, err := client.IndexExists(context.Background(), "franchises")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = client.IndexExists(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestElasticsearch_IndexExistsServerError(t *testing.T) {
	client, _ := newTestClient(t, map[string]func(w http.ResponseWriter){
		"HEAD /franchises": respond(http.StatusBadRequest, ""),
	})

	_, err := client.IndexExists(context.Background(), "franchises")
	assert.Error(t, err)
}

func TestElasticsearch_Search(t *testing.T) {
	client, cluster := newTestClient(t, map[string]func(w http.ResponseWriter){
		"* /franchises/_search": respond(http.StatusOK, `{
			"took": 3,
			"hits": {
				"total": {"value": 2, "relation": "eq"},
				"hits": [
					{"_id": "1", "_score": 1.5, "_source": {"name": "Pizza Day"}},
					{"_id": "2", "_score": null, "_source": {"name": "Burger Bar"}}
				]
			}
		}`),
	})

	query := map[string]interface{}{"bool": map[string]interface{}{
		"filter": []interface{}{map[string]interface{}{"term": map[string]interface{}{"type": 1}}},
	}}
	resp, err := client.Search(context.Background(), "franchises", search.SearchRequest{
		From:  20,
		Size:  10,
		Query: query,
		Sort:  []search.SortSpec{{"_score": search.SortDesc}},
	})

	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.Total)
	assert.Equal(t, int64(3), resp.Took)
	require.Len(t, resp.Hits, 2)
	assert.Equal(t, "1", resp.Hits[0].ID)
	assert.Equal(t, 1.5, resp.Hits[0].Score)
	assert.Equal(t, map[string]interface{}{"name": "Burger Bar"}, resp.Hits[1].Source)

	req := cluster.last()
	assert.Equal(t, "20", req.Query["from"])
	assert.Equal(t, "10", req.Query["size"])
	assert.Equal(t, []interface{}{map[string]interface{}{"_score": "desc"}}, req.Body["sort"])
	assert.Contains(t, req.Body, "query")
}

func TestElasticsearch_SearchWithoutQuery(t *testing.T) {
	client, cluster := newTestClient(t, map[string]func(w http.ResponseWriter){
		"* /franchises/_search": respond(http.StatusOK, `{"hits":{"total":{"value":0},"hits":[]}}`),
	})

	resp, err := client.Search(context.Background(), "franchises", search.SearchRequest{Size: 1000})

	require.NoError(t, err)
	assert.Empty(t, resp.Hits)
	assert.NotContains(t, cluster.last().Body, "query")
}

func TestElasticsearch_SearchMissingIndex(t *testing.T) {
	client, _ := newTestClient(t, nil)

	_, err := client.Search(context.Background(), "missing", search.SearchRequest{Size: 10})

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeIndexNotFound))
}

func TestElasticsearch_SearchEngineError(t *testing.T) {
	client, _ := newTestClient(t, map[string]func(w http.ResponseWriter){
		"* /franchises/_search": respond(http.StatusBadRequest,
			`{"error":{"type":"parsing_exception","reason":"unknown query [nope]"},"status":400}`),
	})

	_, err := client.Search(context.Background(), "franchises", search.SearchRequest{Size: 10})

	require.Error(t, err)
	_, structured := apperrors.AsStandardError(err)
	assert.False(t, structured)
	assert.Contains(t, err.Error(), "parsing_exception")
	assert.Contains(t, err.Error(), "unknown query [nope]")
}

func TestElasticsearch_Count(t *testing.T) {
	client, cluster := newTestClient(t, map[string]func(w http.ResponseWriter){
		"* /franchises/_count": respond(http.StatusOK, `{"count": 42}`),
	})

	total, err := client.Count(context.Background(), "franchises", map[string]interface{}{"match_all": map[string]interface{}{}})
	require.NoError(t, err)
	assert.Equal(t, int64(42), total)
	assert.Equal(t, map[string]interface{}{"match_all": map[string]interface{}{}}, cluster.last().Body["query"])

	total, err = client.Count(context.Background(), "franchises", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(42), total)
	assert.Nil(t, cluster.last().Body)
}

func TestElasticsearch_IndexLifecycle(t *testing.T) {
	client, cluster := newTestClient(t, map[string]func(w http.ResponseWriter){
		"PUT /franchises":    respond(http.StatusOK, `{"acknowledged":true}`),
		"DELETE /franchises": respond(http.StatusOK, `{"acknowledged":true}`),
	})

	require.NoError(t, client.CreateIndex(context.Background(), "franchises", search.GeoMapping()))
	created := cluster.last()
	assert.Equal(t, "PUT", created.Method)
	assert.Equal(t, map[string]interface{}{
		"properties": map[string]interface{}{
			"location": map[string]interface{}{"type": "geo_point"},
		},
	}, created.Body["mappings"])

	require.NoError(t, client.DeleteIndex(context.Background(), "franchises"))
	assert.Equal(t, "DELETE", cluster.last().Method)

	assert.Error(t, client.DeleteIndex(context.Background(), "missing"))
}

func TestElasticsearch_DocumentWrites(t *testing.T) {
	client, cluster := newTestClient(t, map[string]func(w http.ResponseWriter){
		"POST /franchises/_delete_by_query": respond(http.StatusOK, `{"deleted":1}`),
		"POST /franchises/_doc":             respond(http.StatusCreated, `{"result":"created"}`),
	})

	err := client.DeleteByQuery(context.Background(), "franchises", map[string]interface{}{
		"match": map[string]interface{}{"id": 7},
	})
	require.NoError(t, err)
	deleted := cluster.last()
	assert.Equal(t, "true", deleted.Query["refresh"])
	assert.Equal(t, map[string]interface{}{"match": map[string]interface{}{"id": float64(7)}}, deleted.Body["query"])

	require.NoError(t, client.IndexDocument(context.Background(), "franchises", map[string]interface{}{"id": 7}))
	indexed := cluster.last()
	assert.Equal(t, "true", indexed.Query["refresh"])
	assert.Equal(t, map[string]interface{}{"id": float64(7)}, indexed.Body)
}

func TestElasticsearch_ModelRoundTrip(t *testing.T) {
	client, cluster := newTestClient(t, map[string]func(w http.ResponseWriter){
		"HEAD /franchises":         respond(http.StatusOK, ""),
		"* /franchises/_search": respond(http.StatusOK, `{"hits":{"total":{"value":1},"hits":[{"_id":"1","_source":{"name":"Pizza"}}]}}`),
		"* /franchises/_count":  respond(http.StatusOK, `{"count": 1}`),
	})

	schema := search.NewSchema().
		Rule(search.GroupMust, search.KindLike, search.Binding{Key: "name", Path: "name"}).
		MustBuild()
	model := search.NewModel(client, "franchises", schema)

	page, err := model.SearchList(context.Background(), 1, search.Params{"name": "Pizza"})

	require.NoError(t, err)
	assert.Equal(t, []search.Document{{"name": "Pizza"}}, page.Result)
	assert.Equal(t, search.Pagination{TotalCount: 1, PageCount: 1, CurrentPage: 1}, page.Pagination)
	assert.Equal(t, "/franchises/_count", cluster.last().Path)
}
