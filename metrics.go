package main

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "slurmconf"

// WriteMetricsTextfile exports the discovered profile in the node_exporter
// textfile format.
func WriteMetricsTextfile(path string, alloc *SlurmAllocation, cpus, memory int) error {
	reg := prometheus.NewRegistry()
	labels := prometheus.Labels{"server": alloc.Server}

	gauge := func(name, help string, value float64) {
		g := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
		g.Set(value)
		reg.MustRegister(g)
	}
	gauge("client_nodes", "Number of client nodes in the allocation.", float64(len(alloc.Clients)))
	gauge("cpus_per_node", "CPUs assumed per node.", float64(cpus))
	gauge("memory_per_node_megabytes", "Usable memory per node in megabytes.", float64(memory))

	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return errors.Wrapf(err, "unable to write metrics textfile %s", path)
	}
	logger.WithField("path", path).Debug("metrics textfile written")
	return nil
}
