package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Task metrics
	TasksScheduled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coro_tasks_scheduled_total",
			Help: "Total number of tasks admitted to a processor's ready queue",
		},
		[]string{"importance"},
	)

	TasksCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coro_tasks_completed_total",
			Help: "Total number of tasks that reached a terminal state",
		},
		[]string{"status"},
	)

	TasksRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coro_tasks_rejected_total",
			Help: "Total number of tasks rejected by admission control",
		},
		[]string{"reason"},
	)

	TaskStepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coro_task_step_duration_seconds",
			Help:    "Wall time a single DoStep call spent running or resuming a task",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 20), // 10us to ~5s
		},
		[]string{"processor_id"},
	)

	// Queue metrics
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "coro_ready_queue_depth",
			Help: "Current number of tasks sitting in a processor's ready queue",
		},
		[]string{"processor_id"},
	)

	QueueLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coro_ready_queue_latency_seconds",
			Help:    "Time a task spent in the ready queue before its DoStep ran",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 18),
		},
		[]string{"processor_id"},
	)

	// Worker metrics
	ActiveWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coro_active_workers",
			Help: "Current number of worker goroutines across all processors",
		},
	)

	ActiveTasks = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "coro_active_tasks",
			Help: "Current number of tasks tracked as running or suspended",
		},
		[]string{"processor_id"},
	)

	// Event thread / timer metrics
	ReactorCallbackQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coro_reactor_callback_queue_depth",
			Help: "Current number of callbacks queued to run on the event thread",
		},
	)

	TimersArmed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coro_timers_armed_total",
			Help: "Total number of deadline timers armed across all tasks",
		},
	)

	// HTTP metrics (admin API)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coro_http_request_duration_seconds",
			Help:    "Admin API HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coro_http_requests_total",
			Help: "Total number of admin API HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// WebSocket metrics (admin API live task feed)
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coro_websocket_connections",
			Help: "Current number of admin API WebSocket connections",
		},
	)

	WebSocketMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coro_websocket_messages_total",
			Help: "Total number of WebSocket messages sent on the admin API feed",
		},
		[]string{"type"},
	)

	// Redis metrics (examples/redistx)
	RedisOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coro_redis_operation_duration_seconds",
			Help:    "Redis operation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		},
		[]string{"operation"},
	)

	RedisErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coro_redis_errors_total",
			Help: "Total number of Redis errors",
		},
		[]string{"operation"},
	)

	// Postgres metrics (examples/pgparamstore)
	PostgresOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coro_postgres_operation_duration_seconds",
			Help:    "Postgres operation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		},
		[]string{"operation"},
	)

	// gRPC metrics (examples/grpcclient)
	GRPCClientCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coro_grpc_client_call_duration_seconds",
			Help:    "Outbound gRPC call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "code"},
	)
)

// RecordTaskScheduled records admission of a task into a processor's ready
// queue.
func RecordTaskScheduled(importance string) {
	TasksScheduled.WithLabelValues(importance).Inc()
}

// RecordTaskCompletion records a task reaching a terminal state.
func RecordTaskCompletion(status string) {
	TasksCompleted.WithLabelValues(status).Inc()
}

// RecordTaskRejected records admission control rejecting a task.
func RecordTaskRejected(reason string) {
	TasksRejected.WithLabelValues(reason).Inc()
}

// UpdateQueueDepth updates a processor's ready queue depth gauge.
func UpdateQueueDepth(processorID string, depth float64) {
	QueueDepth.WithLabelValues(processorID).Set(depth)
}

// RecordQueueLatency records the time a task spent in the ready queue.
func RecordQueueLatency(processorID string, latency float64) {
	QueueLatency.WithLabelValues(processorID).Observe(latency)
}

// SetActiveWorkers sets the active-workers gauge.
func SetActiveWorkers(count float64) {
	ActiveWorkers.Set(count)
}

// SetActiveTasks sets a processor's active-tasks gauge.
func SetActiveTasks(processorID string, count float64) {
	ActiveTasks.WithLabelValues(processorID).Set(count)
}

// RecordHTTPRequest records an admin API HTTP request.
func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration)
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
}

// SetWebSocketConnections sets the WebSocket connections gauge.
func SetWebSocketConnections(count float64) {
	WebSocketConnections.Set(count)
}

// RecordWebSocketMessage records a WebSocket message sent on the admin feed.
func RecordWebSocketMessage(msgType string) {
	WebSocketMessages.WithLabelValues(msgType).Inc()
}

// RecordRedisOperation records a Redis operation's duration.
func RecordRedisOperation(operation string, duration float64) {
	RedisOperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordRedisError records a Redis error.
func RecordRedisError(operation string) {
	RedisErrors.WithLabelValues(operation).Inc()
}

// RecordPostgresOperation records a Postgres operation's duration.
func RecordPostgresOperation(operation string, duration float64) {
	PostgresOperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordGRPCClientCall records an outbound gRPC call's duration and status.
func RecordGRPCClientCall(method, code string, duration float64) {
	GRPCClientCallDuration.WithLabelValues(method, code).Observe(duration)
}
