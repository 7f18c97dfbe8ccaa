// internal/common/camunda/worker.go
package camunda

import (
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	"searchmodel/internal/common/logger"
)

// CamundaWorker is an open job subscription for one task type.
type CamundaWorker struct {
	worker   worker.JobWorker
	logger   logger.Logger
	taskType string
}

func NewWorker(
	client zbc.Client,
	taskType string,
	maxJobsActive int,
	timeout time.Duration,
	handler worker.JobHandler,
	log logger.Logger,
) *CamundaWorker {
	jobWorker := client.NewJobWorker().
		JobType(taskType).
		Handler(handler).
		MaxJobsActive(maxJobsActive).
		Timeout(timeout).
		Open()

	log.Info("worker started", map[string]interface{}{"taskType": taskType, "maxJobsActive": maxJobsActive})

	return &CamundaWorker{
		worker:   jobWorker,
		logger:   log,
		taskType: taskType,
	}
}

// Stop closes the subscription and waits for in-flight jobs.
func (w *CamundaWorker) Stop() {
	w.logger.Info("stopping worker", map[string]interface{}{"taskType": w.taskType})
	w.worker.Close()
	w.worker.AwaitClose()
}
