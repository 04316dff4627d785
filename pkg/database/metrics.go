package database

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.mongodb.org/mongo-driver/event"
)

// poolMetric maps one pgxpool statistic to a Prometheus descriptor.
type poolMetric struct {
	desc      *prometheus.Desc
	valueType prometheus.ValueType
	value     func(*pgxpool.Stat) float64
}

// PoolStatsCollector implements prometheus.Collector for pgxpool connection metrics.
type PoolStatsCollector struct {
	stat    func() *pgxpool.Stat
	service string
	metrics []poolMetric
}

// NewPoolStatsCollector creates a collector that exports pgxpool statistics.
// A nil pool yields a collector that can only be described.
func NewPoolStatsCollector(pool *pgxpool.Pool, service string) *PoolStatsCollector {
	c := &PoolStatsCollector{service: service}
	if pool != nil {
		c.stat = pool.Stat
	}

	gauge := func(name, help string, fn func(*pgxpool.Stat) float64) poolMetric {
		return poolMetric{prometheus.NewDesc(name, help, []string{"service"}, nil), prometheus.GaugeValue, fn}
	}
	counter := func(name, help string, fn func(*pgxpool.Stat) float64) poolMetric {
		return poolMetric{prometheus.NewDesc(name, help, []string{"service"}, nil), prometheus.CounterValue, fn}
	}

	c.metrics = []poolMetric{
		gauge("db_pool_acquired_connections", "Number of currently acquired connections",
			func(s *pgxpool.Stat) float64 { return float64(s.AcquiredConns()) }),
		gauge("db_pool_idle_connections", "Number of currently idle connections",
			func(s *pgxpool.Stat) float64 { return float64(s.IdleConns()) }),
		gauge("db_pool_total_connections", "Total number of connections in the pool",
			func(s *pgxpool.Stat) float64 { return float64(s.TotalConns()) }),
		gauge("db_pool_max_connections", "Maximum number of connections allowed",
			func(s *pgxpool.Stat) float64 { return float64(s.MaxConns()) }),
		gauge("db_pool_constructing_connections", "Number of connections currently being constructed",
			func(s *pgxpool.Stat) float64 { return float64(s.ConstructingConns()) }),
		counter("db_pool_acquire_count_total", "Total number of connection acquires",
			func(s *pgxpool.Stat) float64 { return float64(s.AcquireCount()) }),
		counter("db_pool_acquire_duration_seconds_total", "Total time spent acquiring connections in seconds",
			func(s *pgxpool.Stat) float64 { return s.AcquireDuration().Seconds() }),
		counter("db_pool_canceled_acquire_count_total", "Total number of canceled connection acquires",
			func(s *pgxpool.Stat) float64 { return float64(s.CanceledAcquireCount()) }),
		counter("db_pool_empty_acquire_count_total", "Total number of acquires that had to wait for a connection",
			func(s *pgxpool.Stat) float64 { return float64(s.EmptyAcquireCount()) }),
		counter("db_pool_new_connections_total", "Total number of new connections created",
			func(s *pgxpool.Stat) float64 { return float64(s.NewConnsCount()) }),
		counter("db_pool_max_lifetime_destroy_total", "Total connections destroyed due to max lifetime",
			func(s *pgxpool.Stat) float64 { return float64(s.MaxLifetimeDestroyCount()) }),
		counter("db_pool_max_idle_destroy_total", "Total connections destroyed due to max idle time",
			func(s *pgxpool.Stat) float64 { return float64(s.MaxIdleDestroyCount()) }),
	}
	return c
}

// Describe sends the descriptors of all metrics to the provided channel.
func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.metrics {
		ch <- m.desc
	}
}

// Collect reads current pool statistics and sends them as Prometheus metrics.
func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	if c.stat == nil {
		return
	}
	stat := c.stat()
	for _, m := range c.metrics {
		ch <- prometheus.MustNewConstMetric(m.desc, m.valueType, m.value(stat), c.service)
	}
}

// RegisterPoolMetrics creates and registers a pgxpool metrics collector with
// the default Prometheus registry.
func RegisterPoolMetrics(pool *pgxpool.Pool, service string) {
	prometheus.MustRegister(NewPoolStatsCollector(pool, service))
}

// MongoPoolMetrics tracks the MongoDB driver's connection pool through its
// pool event stream.
type MongoPoolMetrics struct {
	open       prometheus.Gauge
	checkedOut prometheus.Gauge
	failures   prometheus.Counter
	cleared    prometheus.Counter
}

// NewMongoPoolMetrics registers the MongoDB pool metrics on reg.
func NewMongoPoolMetrics(reg prometheus.Registerer, service string) *MongoPoolMetrics {
	factory := promauto.With(reg)
	labels := prometheus.Labels{"service": service}
	return &MongoPoolMetrics{
		open: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "mongo_pool_open_connections",
			Help:        "Number of open MongoDB connections",
			ConstLabels: labels,
		}),
		checkedOut: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "mongo_pool_checked_out_connections",
			Help:        "Number of MongoDB connections currently in use",
			ConstLabels: labels,
		}),
		failures: factory.NewCounter(prometheus.CounterOpts{
			Name:        "mongo_pool_checkout_failures_total",
			Help:        "Total number of failed MongoDB connection checkouts",
			ConstLabels: labels,
		}),
		cleared: factory.NewCounter(prometheus.CounterOpts{
			Name:        "mongo_pool_cleared_total",
			Help:        "Total number of times a MongoDB pool was cleared",
			ConstLabels: labels,
		}),
	}
}

// Monitor returns a driver pool monitor feeding these metrics.
func (m *MongoPoolMetrics) Monitor() *event.PoolMonitor {
	return &event.PoolMonitor{Event: m.observe}
}

func (m *MongoPoolMetrics) observe(evt *event.PoolEvent) {
	switch evt.Type {
	case event.ConnectionCreated:
		m.open.Inc()
	case event.ConnectionClosed:
		m.open.Dec()
	case event.GetSucceeded:
		m.checkedOut.Inc()
	case event.ConnectionReturned:
		m.checkedOut.Dec()
	case event.GetFailed:
		m.failures.Inc()
	case event.PoolCleared:
		m.cleared.Inc()
	}
}
