package metrics

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CacheLookups counts cache reads by key namespace and outcome (hit, miss, error).
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prapti_cache_lookups_total",
			Help: "Cache lookups partitioned by namespace and result",
		},
		[]string{"namespace", "result"},
	)

	// BackgroundTasks counts fire-and-forget tasks by name and final status.
	BackgroundTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prapti_background_tasks_total",
			Help: "Background tasks partitioned by task name and status",
		},
		[]string{"task", "status"},
	)

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prapti_http_requests_total",
			Help: "HTTP requests partitioned by method and status code",
		},
		[]string{"method", "status"},
	)
)

func init() {
	prometheus.MustRegister(CacheLookups, BackgroundTasks, HTTPRequests)
}

// ObserveRequest records a finished HTTP request.
func ObserveRequest(method string, status int) {
	HTTPRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// Handler exposes the default registry in the prometheus text format.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
