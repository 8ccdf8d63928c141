// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder はメトリクス収集のインターフェース。
// サービス層とHTTPミドルウェアから利用する。
type Recorder interface {
	RecordTaskCreated()
	RecordTaskUpdated()
	RecordTaskDeleted()
	RecordProjectCreated()
	RecordProjectDeleted(cascadedTasks int64)
	RecordUserSync()
	RecordQueryLatency(operation string, duration time.Duration)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	tasksCreated    prometheus.Counter
	tasksUpdated    prometheus.Counter
	tasksDeleted    prometheus.Counter
	projectsCreated prometheus.Counter
	projectsDeleted prometheus.Counter
	cascadedTasks   prometheus.Counter
	userSyncs       prometheus.Counter
	queryLatency    *prometheus.HistogramVec
	httpStatus      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		tasksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskwise_tasks_created_total",
			Help: "作成されたタスクの合計数",
		}),
		tasksUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskwise_tasks_updated_total",
			Help: "部分更新されたタスクの合計数",
		}),
		tasksDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskwise_tasks_deleted_total",
			Help: "明示的に削除されたタスクの合計数",
		}),
		projectsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskwise_projects_created_total",
			Help: "作成されたプロジェクトの合計数",
		}),
		projectsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskwise_projects_deleted_total",
			Help: "削除されたプロジェクトの合計数",
		}),
		cascadedTasks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskwise_cascaded_tasks_total",
			Help: "プロジェクト削除に伴いカスケード削除されたタスクの合計数",
		}),
		userSyncs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskwise_user_syncs_total",
			Help: "ユーザー同期（アップサート）の合計数",
		}),
		queryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taskwise_query_latency_seconds",
			Help:    "所有者スコープクエリのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskwise_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.tasksCreated,
		c.tasksUpdated,
		c.tasksDeleted,
		c.projectsCreated,
		c.projectsDeleted,
		c.cascadedTasks,
		c.userSyncs,
		c.queryLatency,
		c.httpStatus,
	)

	return c
}

// RecordTaskCreated はタスク作成を記録する。
func (c *Collector) RecordTaskCreated() {
	c.tasksCreated.Inc()
}

// RecordTaskUpdated はタスク更新を記録する。
func (c *Collector) RecordTaskUpdated() {
	c.tasksUpdated.Inc()
}

// RecordTaskDeleted はタスク削除を記録する。
func (c *Collector) RecordTaskDeleted() {
	c.tasksDeleted.Inc()
}

// RecordProjectCreated はプロジェクト作成を記録する。
func (c *Collector) RecordProjectCreated() {
	c.projectsCreated.Inc()
}

// RecordProjectDeleted はプロジェクト削除とカスケード削除タスク数を記録する。
func (c *Collector) RecordProjectDeleted(cascadedTasks int64) {
	c.projectsDeleted.Inc()
	c.cascadedTasks.Add(float64(cascadedTasks))
}

// RecordUserSync はユーザー同期を記録する。
func (c *Collector) RecordUserSync() {
	c.userSyncs.Inc()
}

// RecordQueryLatency はクエリ操作のレイテンシを記録する。
func (c *Collector) RecordQueryLatency(operation string, duration time.Duration) {
	c.queryLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ Recorder = (*Collector)(nil)
