// internal/common/errors/handler.go
package errors

import (
	"context"
	"encoding/json"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// ErrorHandler reports failed search jobs back to the workflow engine.
type ErrorHandler struct {
	logger     Logger
	maxRetries int
	capped     bool
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// WithMaxRetries returns a copy of h whose retry policy never exceeds n.
func (h *ErrorHandler) WithMaxRetries(n int) *ErrorHandler {
	if n < 0 {
		n = 0
	}
	capped := *h
	capped.maxRetries = n
	capped.capped = true
	return &capped
}

// HandleJobError fails the job with retries when the error is transient and
// retries remain, and throws a BPMN error otherwise.
func (h *ErrorHandler) HandleJobError(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := Normalize(err)
	bpmnErr := h.convert(stdErr)

	h.logError(job, stdErr, bpmnErr)

	if bpmnErr.Retries > 0 && job.Retries > 1 {
		h.failJob(ctx, client, job, bpmnErr)
		return
	}
	h.throwBPMNError(ctx, client, job, bpmnErr)
}

func (h *ErrorHandler) convert(stdErr *StandardError) *BPMNError {
	bpmnErr := ConvertToBPMNError(stdErr)
	if h.capped && bpmnErr.Retries > h.maxRetries {
		bpmnErr.Retries = h.maxRetries
	}
	return bpmnErr
}

// Normalize returns the StandardError carried by err, or wraps err as an
// internal error.
func Normalize(err error) *StandardError {
	if stdErr, ok := AsStandardError(err); ok {
		return stdErr
	}
	return NewInternalError(err)
}

// RetriesLeft caps the engine-side remaining retries by the code policy, after
// consuming the current attempt.
func RetriesLeft(job entities.Job, policy int) int32 {
	left := job.Retries - 1
	if left > int32(policy) {
		left = int32(policy)
	}
	if left < 0 {
		left = 0
	}
	return left
}

func (h *ErrorHandler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, bpmnErr *BPMNError) {
	cmd := client.NewFailJobCommand().
		JobKey(job.Key).
		Retries(RetriesLeft(job, bpmnErr.Retries)).
		ErrorMessage(bpmnErr.Message)

	if vars, err := json.Marshal(bpmnErr.ToErrorVariables()); err == nil {
		if withVars, err := cmd.VariablesFromString(string(vars)); err == nil {
			if _, err := withVars.Send(ctx); err != nil {
				h.logger.Error("failed to send fail job command", map[string]interface{}{"error": err})
			}
			return
		}
	}

	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send fail job command", map[string]interface{}{"error": err})
	}
}

func (h *ErrorHandler) throwBPMNError(ctx context.Context, client worker.JobClient, job entities.Job, bpmnErr *BPMNError) {
	cmd := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(bpmnErr.Code).
		ErrorMessage(bpmnErr.Message)

	if vars, err := json.Marshal(bpmnErr.ToErrorVariables()); err == nil {
		if withVars, err := cmd.VariablesFromString(string(vars)); err == nil {
			if _, err := withVars.Send(ctx); err != nil {
				h.logger.Error("failed to throw error", map[string]interface{}{"error": err})
			}
			return
		}
	}

	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to throw error", map[string]interface{}{"error": err})
	}
}

func (h *ErrorHandler) logError(job entities.Job, stdErr *StandardError, bpmnErr *BPMNError) {
	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":           job.Key,
		"jobType":          job.Type,
		"errorCode":        string(stdErr.Code),
		"bpmnErrorCode":    bpmnErr.Code,
		"message":          bpmnErr.Message,
		"details":          stdErr.Details,
		"retryable":        stdErr.Retryable,
		"retries":          bpmnErr.Retries,
		"errorCategory":    GetErrorCategory(stdErr.Code),
		"workflowInstance": job.ProcessInstanceKey,
	})
}
