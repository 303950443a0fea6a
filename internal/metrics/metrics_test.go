package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestGinMiddlewareLabelsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/v1/books/:id", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	before := testutil.ToFloat64(requestTotal.WithLabelValues(http.MethodGet, "/v1/books/:id", "200"))
	for _, path := range []string{"/v1/books/1", "/v1/books/2", "/health"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	after := testutil.ToFloat64(requestTotal.WithLabelValues(http.MethodGet, "/v1/books/:id", "200"))
	if after-before != 2 {
		t.Fatalf("expected 2 requests under the route template, got %v", after-before)
	}
	if got := testutil.ToFloat64(requestTotal.WithLabelValues(http.MethodGet, "/health", "200")); got != 0 {
		t.Fatalf("health probes should not be counted, got %v", got)
	}

	unmatchedBefore := testutil.ToFloat64(requestTotal.WithLabelValues(http.MethodGet, unmatchedRoute, "404"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/wp-login.php", nil))
	if got := testutil.ToFloat64(requestTotal.WithLabelValues(http.MethodGet, unmatchedRoute, "404")); got-unmatchedBefore != 1 {
		t.Fatalf("expected unmatched request to be counted once, got %v", got-unmatchedBefore)
	}
}

func TestAsynqMetricsMiddlewareOutcomes(t *testing.T) {
	const taskType = "test:metrics"
	results := []error{nil, errors.New("boom"), fmt.Errorf("bad payload: %w", asynq.SkipRetry)}

	handler := AsynqMetricsMiddleware()(asynq.HandlerFunc(func(ctx context.Context, task *asynq.Task) error {
		err := results[0]
		results = results[1:]
		return err
	}))

	for i := 0; i < 3; i++ {
		_ = handler.ProcessTask(context.Background(), asynq.NewTask(taskType, nil))
	}

	for outcome, want := range map[string]float64{outcomeSuccess: 1, outcomeRetry: 1, outcomeSkipped: 1, outcomeDead: 0} {
		if got := testutil.ToFloat64(taskProcessedTotal.WithLabelValues(taskType, outcome)); got != want {
			t.Errorf("outcome %s = %v, want %v", outcome, got, want)
		}
	}
	if got := testutil.ToFloat64(taskInProgress.WithLabelValues(taskType)); got != 0 {
		t.Fatalf("in-progress gauge should return to zero, got %v", got)
	}
}

func TestExportCounters(t *testing.T) {
	before := testutil.ToFloat64(exportsTotal.WithLabelValues("epub", "success"))
	ExportSucceeded("epub", 2048)
	ExportFailed("epub")
	if got := testutil.ToFloat64(exportsTotal.WithLabelValues("epub", "success")); got-before != 1 {
		t.Fatalf("expected one success, got %v", got-before)
	}
	if got := testutil.ToFloat64(exportsTotal.WithLabelValues("epub", "failure")); got < 1 {
		t.Fatalf("expected failure counted, got %v", got)
	}
}
