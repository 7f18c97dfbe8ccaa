// internal/workers/data-access/search-model/handler.go
package searchmodel

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"searchmodel/internal/common/camunda"
	apperrors "searchmodel/internal/common/errors"
	"searchmodel/internal/common/logger"
	"searchmodel/internal/common/metrics"
	"searchmodel/internal/common/observability"
	"searchmodel/internal/common/validation"
	"searchmodel/internal/search"
)

var tracer = otel.Tracer("searchmodel/internal/workers/data-access/search-model")

// Models resolves search models by name.
type Models interface {
	Model(name string) (*search.Model, error)
	PrimaryKey(name string) string
}

type Handler struct {
	tasks         map[string]taskRuntime
	models        Models
	logger        logger.Logger
	observability *observability.Observability
	retry         *camunda.RetryConfig
}

// taskRuntime is the per task type configuration of a Handler.
type taskRuntime struct {
	config       *Config
	errorHandler *apperrors.ErrorHandler
}

type HandlerOptions struct {
	// Configs holds one worker config per task type. Missing task types use
	// the defaults of LoadConfig.
	Configs       map[string]*Config
	Models        Models
	Logger        logger.Logger
	Observability *observability.Observability
	Retry         *camunda.RetryConfig
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	if opts.Models == nil {
		return nil, fmt.Errorf("models are required")
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewStructured("info", "json")
	}

	obs := opts.Observability
	if obs == nil {
		obs = &observability.Observability{}
	}

	errorHandler := apperrors.NewErrorHandler(log)
	tasks := make(map[string]taskRuntime, len(TaskTypes))
	for _, taskType := range TaskTypes {
		cfg := opts.Configs[taskType]
		if cfg == nil {
			cfg = LoadConfig(nil, taskType)
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration for %s: %w", taskType, err)
		}
		tasks[taskType] = taskRuntime{
			config:       cfg,
			errorHandler: errorHandler.WithMaxRetries(cfg.MaxRetries),
		}
	}

	return &Handler{
		tasks:         tasks,
		models:        opts.Models,
		logger:        log,
		observability: obs,
		retry:         opts.Retry,
	}, nil
}

// Config returns the worker config used for taskType.
func (h *Handler) Config(taskType string) *Config {
	return h.tasks[taskType].config
}

func (h *Handler) HandleList(client worker.JobClient, job entities.Job) {
	h.handle(client, job, TaskTypeList, func(ctx context.Context, vars []byte) (interface{}, error) {
		input, err := decode[ListInput](vars, listInputSchema)
		if err != nil {
			return nil, err
		}
		return h.ExecuteList(ctx, input)
	})
}

func (h *Handler) HandleMap(client worker.JobClient, job entities.Job) {
	h.handle(client, job, TaskTypeMap, func(ctx context.Context, vars []byte) (interface{}, error) {
		input, err := decode[MapInput](vars, mapInputSchema)
		if err != nil {
			return nil, err
		}
		return h.ExecuteMap(ctx, input)
	})
}

func (h *Handler) HandleIndex(client worker.JobClient, job entities.Job) {
	h.handle(client, job, TaskTypeIndex, func(ctx context.Context, vars []byte) (interface{}, error) {
		input, err := decode[IndexInput](vars, indexInputSchema)
		if err != nil {
			return nil, err
		}
		return h.ExecuteIndex(ctx, input)
	})
}

func (h *Handler) HandleRemove(client worker.JobClient, job entities.Job) {
	h.handle(client, job, TaskTypeRemove, func(ctx context.Context, vars []byte) (interface{}, error) {
		input, err := decode[RemoveInput](vars, removeInputSchema)
		if err != nil {
			return nil, err
		}
		return h.ExecuteRemove(ctx, input)
	})
}

// Handlers maps every task type to its job handler.
func (h *Handler) Handlers() map[string]worker.JobHandler {
	return map[string]worker.JobHandler{
		TaskTypeList:   h.HandleList,
		TaskTypeMap:    h.HandleMap,
		TaskTypeIndex:  h.HandleIndex,
		TaskTypeRemove: h.HandleRemove,
	}
}

type runFunc func(ctx context.Context, variables []byte) (interface{}, error)

func (h *Handler) handle(client worker.JobClient, job entities.Job, taskType string, run runFunc) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(taskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(taskType).Dec()

	task := h.tasks[taskType]
	ctx, cancel := h.jobContext(taskType)
	defer cancel()

	ctx, span := tracer.Start(ctx, "job."+taskType, trace.WithAttributes(
		attribute.String("job.type", taskType),
		attribute.Int64("job.key", job.GetKey()),
	))
	defer span.End()

	log := h.logger.WithFields(map[string]interface{}{
		"taskType":           taskType,
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})
	log.Info("processing job", nil)

	output, err := run(ctx, []byte(job.GetVariables()))
	if err != nil {
		err = classify(ctx, taskType, err)
		stdErr := apperrors.Normalize(err)
		span.RecordError(err)

		metrics.WorkerJobsFailed.WithLabelValues(taskType, string(stdErr.Code)).Inc()
		h.observability.RecordJobProcessed(ctx, taskType, "error")
		h.observability.RecordJobDuration(ctx, taskType, time.Since(start), "error")

		task.errorHandler.HandleJobError(context.Background(), client, job, stdErr)
		return
	}

	if err := h.completeJob(client, job, task.config.Timeout, output); err != nil {
		log.Error("failed to complete job", map[string]interface{}{"error": err})
		metrics.WorkerJobsFailed.WithLabelValues(taskType, "COMPLETE_FAILED").Inc()
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(taskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(time.Since(start).Seconds())
	h.observability.RecordJobProcessed(ctx, taskType, "success")
	h.observability.RecordJobDuration(ctx, taskType, time.Since(start), "success")

	log.Info("job completed", map[string]interface{}{"duration": time.Since(start).String()})
}

// jobContext bounds a job of taskType by its configured timeout.
func (h *Handler) jobContext(taskType string) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), h.tasks[taskType].config.Timeout)
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, timeout time.Duration, output interface{}) error {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.GetKey()).
		VariablesFromObject(output)
	if err != nil {
		return fmt.Errorf("create complete job command: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return camunda.WithRetry(ctx, h.retry, "complete job", func(ctx context.Context) error {
		_, err := cmd.Send(ctx)
		return err
	})
}

// ExecuteList returns one page of the named model.
func (h *Handler) ExecuteList(ctx context.Context, input *ListInput) (*ListOutput, error) {
	model, err := h.models.Model(input.Model)
	if err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	page, err := model.SearchList(ctx, input.Page, search.Params(input.Params))
	if err != nil {
		return nil, err
	}

	h.logger.Debug("listing served", map[string]interface{}{
		"requestId": requestID,
		"model":     input.Model,
		"page":      page.Pagination.CurrentPage,
		"total":     page.Pagination.TotalCount,
	})

	result := page.Result
	if result == nil {
		result = []search.Document{}
	}
	return &ListOutput{
		RequestID:  requestID,
		Result:     result,
		Pagination: page.Pagination,
	}, nil
}

// ExecuteMap scans every matching document of the named model.
func (h *Handler) ExecuteMap(ctx context.Context, input *MapInput) (*MapOutput, error) {
	model, err := h.models.Model(input.Model)
	if err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	result, err := model.SearchMap(ctx, search.Params(input.Params))
	if err != nil {
		return nil, err
	}

	payload := result.Payload()
	if !result.Clustered && result.Documents == nil {
		payload = []search.Document{}
	}

	h.logger.Debug("scan served", map[string]interface{}{
		"requestId": requestID,
		"model":     input.Model,
		"documents": len(result.Documents),
		"clustered": result.Clustered,
	})

	return &MapOutput{
		RequestID: requestID,
		Result:    payload,
		Clustered: result.Clustered,
		Count:     len(result.Documents),
	}, nil
}

// ExecuteIndex replaces the document identified by its primary key.
func (h *Handler) ExecuteIndex(ctx context.Context, input *IndexInput) (*WriteOutput, error) {
	model, err := h.models.Model(input.Model)
	if err != nil {
		return nil, err
	}

	key := h.primaryKey(input.Model, input.PrimaryKey)
	if key == "" {
		return nil, apperrors.NewInvalidInputError("primaryKey is required when the model declares none")
	}

	value := input.PrimaryValue
	if value == nil {
		value = input.Document[key]
	}
	if value == nil {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("document has no value for primary key %q", key))
	}

	if err := model.AddDocument(ctx, input.Document, key, value); err != nil {
		return nil, err
	}

	return &WriteOutput{RequestID: uuid.NewString(), Model: input.Model, Success: true}, nil
}

// ExecuteRemove deletes the documents matching the primary key value.
func (h *Handler) ExecuteRemove(ctx context.Context, input *RemoveInput) (*WriteOutput, error) {
	model, err := h.models.Model(input.Model)
	if err != nil {
		return nil, err
	}

	key := h.primaryKey(input.Model, input.PrimaryKey)
	if key == "" {
		return nil, apperrors.NewInvalidInputError("primaryKey is required when the model declares none")
	}

	if err := model.RemoveDocument(ctx, key, input.PrimaryValue); err != nil {
		return nil, err
	}

	return &WriteOutput{RequestID: uuid.NewString(), Model: input.Model, Success: true}, nil
}

func (h *Handler) primaryKey(model, requested string) string {
	if requested != "" {
		return requested
	}
	return h.models.PrimaryKey(model)
}

// decode validates job variables against schema and decodes them into T.
func decode[T any](variables []byte, schema *validation.Schema) (*T, error) {
	result, err := schema.ValidateJSON(variables)
	if err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}
	if !result.Valid {
		return nil, apperrors.NewInvalidInputError(result.Error())
	}

	var input T
	if err := json.Unmarshal(variables, &input); err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}
	return &input, nil
}

// classify turns an expired job deadline into SEARCH_TIMEOUT unless the error
// is already structured.
func classify(ctx context.Context, taskType string, err error) error {
	if _, ok := apperrors.AsStandardError(err); ok {
		return err
	}
	if ctx.Err() == context.DeadlineExceeded {
		return apperrors.NewSearchTimeoutError(taskType, err)
	}
	return err
}
