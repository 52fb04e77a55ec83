package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/retailcore/noos-go/internal/domain/task"
)

// TaskMetricsCollector records task engine lifecycle metrics. It implements
// the engine's observer port; every method is cheap and never blocks a
// worker.
type TaskMetricsCollector struct {
	tasksSubmitted *prometheus.CounterVec
	tasksStarted   *prometheus.CounterVec
	tasksFinished  *prometheus.CounterVec
	taskDuration   *prometheus.HistogramVec
	queueDepth     *prometheus.GaugeVec
}

// NewTaskMetricsCollector creates a new task metrics collector
func NewTaskMetricsCollector() *TaskMetricsCollector {
	return &TaskMetricsCollector{
		tasksSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "tasks_submitted_total",
				Help:      "Total number of tasks admitted by type",
			},
			[]string{"task_type"},
		),

		tasksStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "tasks_started_total",
				Help:      "Total number of tasks picked up by a worker",
			},
			[]string{"task_type"},
		),

		tasksFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "tasks_finished_total",
				Help:      "Total number of terminal task transitions by type and status",
			},
			[]string{"task_type", "status"},
		),

		taskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "task_duration_seconds",
				Help:      "Task execution duration distribution",
				Buckets:   []float64{1, 5, 10, 30, 60, 300, 600, 1800},
			},
			[]string{"task_type"},
		),

		queueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "queue_depth",
				Help:      "Number of queued task ids per worker pool category",
			},
			[]string{"category"},
		),
	}
}

// Register registers all task metrics with the Prometheus registry
func (c *TaskMetricsCollector) Register() error {
	if Registry == nil {
		return nil // Metrics not enabled
	}

	metrics := []prometheus.Collector{
		c.tasksSubmitted,
		c.tasksStarted,
		c.tasksFinished,
		c.taskDuration,
		c.queueDepth,
	}

	for _, metric := range metrics {
		if err := Registry.Register(metric); err != nil {
			return err
		}
	}

	return nil
}

// TaskSubmitted records an admitted submission
func (c *TaskMetricsCollector) TaskSubmitted(taskType task.Type) {
	c.tasksSubmitted.WithLabelValues(string(taskType)).Inc()
}

// TaskStarted records a worker picking up a task
func (c *TaskMetricsCollector) TaskStarted(taskType task.Type) {
	c.tasksStarted.WithLabelValues(string(taskType)).Inc()
}

// TaskFinished records a terminal transition. Runtime zero means the task
// never ran (cancelled while queued) and is excluded from the histogram.
func (c *TaskMetricsCollector) TaskFinished(taskType task.Type, status task.Status, runtime time.Duration) {
	c.tasksFinished.WithLabelValues(string(taskType), string(status)).Inc()
	if runtime > 0 {
		c.taskDuration.WithLabelValues(string(taskType)).Observe(runtime.Seconds())
	}
}

// QueueDepth records the current queue backlog for a category
func (c *TaskMetricsCollector) QueueDepth(category task.Category, depth int) {
	c.queueDepth.WithLabelValues(string(category)).Set(float64(depth))
}
