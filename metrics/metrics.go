package metrics

import (
	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

/* ========================================================================
 * Prometheus Metrics - 可观测性指标
 * ========================================================================
 * 职责: 提供行为插件与数据库的 Prometheus 指标注册和暴露
 * ======================================================================== */

var (
	// BehaviorEventTotal 行为插件处理的生命周期事件数
	BehaviorEventTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "app",
			Subsystem: "behaviors",
			Name:      "event_total",
			Help:      "Total number of lifecycle events handled by behaviors",
		},
		[]string{"behavior", "event", "table"},
	)

	// BehaviorErrorTotal 行为插件在回调中产生的错误数
	BehaviorErrorTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "app",
			Subsystem: "behaviors",
			Name:      "error_total",
			Help:      "Total number of errors raised by behaviors",
		},
		[]string{"behavior", "event"},
	)

	// SlugCollisionTotal slug 冲突次数（每次追加后缀重试计一次）
	SlugCollisionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "app",
			Subsystem: "behaviors",
			Name:      "slug_collision_total",
			Help:      "Total number of slug collisions resolved by suffixing",
		},
		[]string{"table", "source"}, // source: database, batch, reservation
	)

	// SoftDeleteTotal 被改写为软删除的删除语句数
	SoftDeleteTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "app",
			Subsystem: "behaviors",
			Name:      "soft_delete_total",
			Help:      "Total number of delete statements rewritten into soft deletes",
		},
		[]string{"table"},
	)

	// DBQueryDuration 数据库查询延迟
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "app",
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

// RegisterMetricsEndpoint 注册 /metrics 端点
func RegisterMetricsEndpoint(app *fiber.App) {
	// 使用 fasthttpadaptor 将 promhttp.Handler 适配到 Fiber
	handler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	app.Get("/metrics", func(c fiber.Ctx) error {
		handler(c.RequestCtx())
		return nil
	})
}

// NewCounter 创建自定义 Counter
func NewCounter(namespace, subsystem, name, help string, labels []string) *prometheus.CounterVec {
	return promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		},
		labels,
	)
}
