// internal/workers/data-access/search-model/models.go
package searchmodel

import (
	"searchmodel/internal/common/validation"
	"searchmodel/internal/search"
)

const (
	TaskTypeList   = "search-list"
	TaskTypeMap    = "search-map"
	TaskTypeIndex  = "index-document"
	TaskTypeRemove = "remove-document"
)

// TaskTypes lists every task type served by this package.
var TaskTypes = []string{TaskTypeList, TaskTypeMap, TaskTypeIndex, TaskTypeRemove}

type ListInput struct {
	Model  string                 `json:"model"`
	Page   int                    `json:"page"`
	Params map[string]interface{} `json:"params"`
}

type ListOutput struct {
	RequestID  string            `json:"requestId"`
	Result     []search.Document `json:"result"`
	Pagination search.Pagination `json:"pagination"`
}

type MapInput struct {
	Model  string                 `json:"model"`
	Params map[string]interface{} `json:"params"`
}

// MapOutput carries a flat document list, or geohash buckets when Clustered.
type MapOutput struct {
	RequestID string      `json:"requestId"`
	Result    interface{} `json:"result"`
	Clustered bool        `json:"clustered"`
	Count     int         `json:"count"`
}

type IndexInput struct {
	Model        string                 `json:"model"`
	Document     map[string]interface{} `json:"document"`
	PrimaryKey   string                 `json:"primaryKey"`
	PrimaryValue interface{}            `json:"primaryValue"`
}

type RemoveInput struct {
	Model        string      `json:"model"`
	PrimaryKey   string      `json:"primaryKey"`
	PrimaryValue interface{} `json:"primaryValue"`
}

type WriteOutput struct {
	RequestID string `json:"requestId"`
	Model     string `json:"model"`
	Success   bool   `json:"success"`
}

var modelProperty = map[string]interface{}{"type": "string", "minLength": 1}

var (
	listInputSchema = validation.MustCompile(map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"model"},
		"properties": map[string]interface{}{
			"model":  modelProperty,
			"page":   map[string]interface{}{"type": "integer"},
			"params": map[string]interface{}{"type": "object"},
		},
	})

	mapInputSchema = validation.MustCompile(map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"model"},
		"properties": map[string]interface{}{
			"model":  modelProperty,
			"params": map[string]interface{}{"type": "object"},
		},
	})

	indexInputSchema = validation.MustCompile(map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"model", "document"},
		"properties": map[string]interface{}{
			"model":      modelProperty,
			"document":   map[string]interface{}{"type": "object"},
			"primaryKey": map[string]interface{}{"type": "string"},
		},
	})

	removeInputSchema = validation.MustCompile(map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"model", "primaryValue"},
		"properties": map[string]interface{}{
			"model":      modelProperty,
			"primaryKey": map[string]interface{}{"type": "string"},
		},
	})
)
