package metrics

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
)

// poolCollector reads sql.DBStats on every scrape.
type poolCollector struct {
	stats func() sql.DBStats

	maxOpen   *prometheus.Desc
	open      *prometheus.Desc
	inUse     *prometheus.Desc
	idle      *prometheus.Desc
	waitCount *prometheus.Desc
	waitTime  *prometheus.Desc
}

func newPoolCollector(stats func() sql.DBStats) *poolCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "db_pool", name), help, nil, nil)
	}
	return &poolCollector{
		stats:     stats,
		maxOpen:   desc("max_open_connections", "Maximum number of open connections."),
		open:      desc("open_connections", "Established connections, in use and idle."),
		inUse:     desc("in_use_connections", "Connections currently in use."),
		idle:      desc("idle_connections", "Idle connections."),
		waitCount: desc("wait_count_total", "Total number of waits for a free connection."),
		waitTime:  desc("wait_duration_seconds_total", "Total time blocked waiting for a free connection."),
	}
}

func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.maxOpen
	ch <- c.open
	ch <- c.inUse
	ch <- c.idle
	ch <- c.waitCount
	ch <- c.waitTime
}

func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats()
	ch <- prometheus.MustNewConstMetric(c.maxOpen, prometheus.GaugeValue, float64(s.MaxOpenConnections))
	ch <- prometheus.MustNewConstMetric(c.open, prometheus.GaugeValue, float64(s.OpenConnections))
	ch <- prometheus.MustNewConstMetric(c.inUse, prometheus.GaugeValue, float64(s.InUse))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(s.Idle))
	ch <- prometheus.MustNewConstMetric(c.waitCount, prometheus.CounterValue, float64(s.WaitCount))
	ch <- prometheus.MustNewConstMetric(c.waitTime, prometheus.CounterValue, s.WaitDuration.Seconds())
}
