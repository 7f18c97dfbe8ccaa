package observability

import (
	"context"
	"strings"
	"testing"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestObservability_RecordsJobMetrics(t *testing.T) {
	reg := promclient.NewRegistry()
	o, err := NewWithRegisterer("search-worker-test", reg)
	require.NoError(t, err)
	defer o.Shutdown(context.Background())

	ctx := context.Background()
	o.RecordJobProcessed(ctx, "search-list", "success")
	o.RecordJobProcessed(ctx, "search-list", "success")
	o.RecordJobDuration(ctx, "search-list", 25*time.Millisecond, "success")

	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	joined := strings.Join(names, ",")
	assert.Contains(t, joined, "jobs_processed")
	assert.Contains(t, joined, "jobs_duration")
}

func TestObservability_RecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	o, err := NewWithRegisterer("search-worker-test", promclient.NewRegistry(), recorder)
	require.NoError(t, err)

	_, span := o.TracerProvider().Tracer("test").Start(context.Background(), "search.list")
	span.End()

	require.Len(t, recorder.Ended(), 1)
	assert.Equal(t, "search.list", recorder.Ended()[0].Name())
	assert.NoError(t, o.Shutdown(context.Background()))
}

func TestObservability_ZeroValueIsNoop(t *testing.T) {
	o := &Observability{}

	assert.NotPanics(t, func() {
		o.RecordJobProcessed(context.Background(), "search-map", "error")
		o.RecordJobDuration(context.Background(), "search-map", time.Second, "error")
	})
	assert.NoError(t, o.Shutdown(context.Background()))
	assert.Nil(t, o.TracerProvider())
}
