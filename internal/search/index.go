package search

import (
	"context"

	apperrors "searchmodel/internal/common/errors"
)

// GeoMapping is the index body declaring GeoField as a geo_point.
func GeoMapping() map[string]interface{} {
	return map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				GeoField: map[string]interface{}{
					"type": "geo_point",
				},
			},
		},
	}
}

// CreateIndex creates the model index with the given body.
func (m *Model) CreateIndex(ctx context.Context, body map[string]interface{}) error {
	if err := m.gateway.CreateIndex(ctx, m.index, body); err != nil {
		return indexFailure("create index", err)
	}
	m.logger.Info("index created", nil)
	return nil
}

// DeleteIndex removes the model index.
func (m *Model) DeleteIndex(ctx context.Context) error {
	if err := m.gateway.DeleteIndex(ctx, m.index); err != nil {
		return indexFailure("delete index", err)
	}
	m.logger.Info("index deleted", nil)
	return nil
}

// RecreateIndex drops the index when present and creates it again with the geo
// mapping the location filters and sorts rely on.
func (m *Model) RecreateIndex(ctx context.Context) error {
	exists, err := m.gateway.IndexExists(ctx, m.index)
	if err != nil {
		return indexFailure("index exists", err)
	}
	if exists {
		if err := m.DeleteIndex(ctx); err != nil {
			return err
		}
	}
	return m.CreateIndex(ctx, GeoMapping())
}

// AddDocument replaces the documents whose primaryKey matches primaryValue with
// body. The delete and the write are two requests; concurrent writers for the
// same key can interleave.
func (m *Model) AddDocument(ctx context.Context, body map[string]interface{}, primaryKey string, primaryValue interface{}) error {
	if err := m.RemoveDocument(ctx, primaryKey, primaryValue); err != nil {
		return err
	}
	if err := m.gateway.IndexDocument(ctx, m.index, body); err != nil {
		return indexFailure("index document", err)
	}
	m.logger.Debug("document indexed", map[string]interface{}{
		"primaryKey":   primaryKey,
		"primaryValue": primaryValue,
	})
	return nil
}

// RemoveDocument deletes every document whose primaryKey matches primaryValue.
func (m *Model) RemoveDocument(ctx context.Context, primaryKey string, primaryValue interface{}) error {
	query := map[string]interface{}{
		"match": map[string]interface{}{
			primaryKey: primaryValue,
		},
	}
	if err := m.gateway.DeleteByQuery(ctx, m.index, query); err != nil {
		return indexFailure("delete by query", err)
	}
	return nil
}

func indexFailure(operation string, err error) error {
	if _, ok := apperrors.AsStandardError(err); ok {
		return err
	}
	return apperrors.NewIndexOperationError(operation, err)
}
