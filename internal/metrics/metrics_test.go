package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// CollectorはRecorderインターフェースを満たすことを検証
func TestCollector_ImplementsRecorder(t *testing.T) {
	var _ Recorder = (*Collector)(nil)
}

// カウンターが記録のたびに増加することを検証
func TestCollector_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordTaskCreated()
	c.RecordTaskCreated()
	c.RecordTaskUpdated()
	c.RecordTaskDeleted()
	c.RecordProjectCreated()
	c.RecordUserSync()

	if got := testutil.ToFloat64(c.tasksCreated); got != 2 {
		t.Errorf("tasksCreated = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.tasksUpdated); got != 1 {
		t.Errorf("tasksUpdated = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.tasksDeleted); got != 1 {
		t.Errorf("tasksDeleted = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.projectsCreated); got != 1 {
		t.Errorf("projectsCreated = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.userSyncs); got != 1 {
		t.Errorf("userSyncs = %v, want 1", got)
	}
}

// プロジェクト削除がカスケード削除タスク数も記録することを検証
func TestCollector_RecordProjectDeleted_CountsCascade(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordProjectDeleted(4)

	if got := testutil.ToFloat64(c.projectsDeleted); got != 1 {
		t.Errorf("projectsDeleted = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.cascadedTasks); got != 4 {
		t.Errorf("cascadedTasks = %v, want 4", got)
	}
}

// /metricsハンドラーが登録済みメトリクスを公開することを検証
func TestHandler_ExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordTaskCreated()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "taskwise_tasks_created_total") {
		t.Error("expected taskwise_tasks_created_total in metrics output")
	}
}
