// Package metrics exposes bot activity as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"stash-bot/internal/command"
)

// Collector holds every metric of the bot in its own registry.
type Collector struct {
	registry *prometheus.Registry

	Commands         *prometheus.CounterVec
	DispatchDuration *prometheus.HistogramVec
	Replacements     *prometheus.CounterVec
	Backups          *prometheus.CounterVec
	LastBackup       prometheus.Gauge
}

// NewCollector creates the metrics under namespace, plus Go runtime and process metrics.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		Commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_total",
				Help:      "Dispatched commands by name and outcome",
			},
			[]string{"command", "status"},
		),
		DispatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "command_duration_seconds",
				Help:      "Time from dispatch to result",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"command"},
		),
		Replacements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "replacements_total",
				Help:      "Stored text lookups by result",
			},
			[]string{"result"},
		),
		Backups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backups_total",
				Help:      "Snapshot attempts by trigger and result",
			},
			[]string{"trigger", "result"},
		),
		LastBackup: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_backup_timestamp_seconds",
				Help:      "Unix time of the last successful snapshot",
			},
		),
	}

	registry.MustRegister(
		c.Commands,
		c.DispatchDuration,
		c.Replacements,
		c.Backups,
		c.LastBackup,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// ObserveCommand implements command.Observer.
func (c *Collector) ObserveCommand(name string, status command.Status, took time.Duration) {
	c.Commands.WithLabelValues(name, status.String()).Inc()
	c.DispatchDuration.WithLabelValues(name).Observe(took.Seconds())
}

// ObserveReplacement implements router.Observer.
func (c *Collector) ObserveReplacement(result string) {
	c.Replacements.WithLabelValues(result).Inc()
}

// ObserveBackup implements backup.Observer.
func (c *Collector) ObserveBackup(trigger string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	} else {
		c.LastBackup.SetToCurrentTime()
	}
	c.Backups.WithLabelValues(trigger, result).Inc()
}
