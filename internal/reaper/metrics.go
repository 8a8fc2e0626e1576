package reaper

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	lockdirErrors "github.com/bashhack/lockdir/internal/errors"
)

// WriteMetrics writes the report to path in the Prometheus text format read
// by node_exporter's textfile collector. The file is replaced atomically.
func WriteMetrics(path string, report *Report) error {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	factory.NewGauge(prometheus.GaugeOpts{
		Name: "lockdir_reap_removed",
		Help: "Stale locks removed by the last reaper run.",
	}).Set(float64(report.Removed()))

	factory.NewGauge(prometheus.GaugeOpts{
		Name: "lockdir_reap_skipped",
		Help: "Locks left in place by the last reaper run.",
	}).Set(float64(report.Skipped()))

	factory.NewGauge(prometheus.GaugeOpts{
		Name: "lockdir_reap_errors",
		Help: "Locks the last reaper run could not process.",
	}).Set(float64(report.Errors()))

	factory.NewGauge(prometheus.GaugeOpts{
		Name: "lockdir_reap_last_run_timestamp_seconds",
		Help: "Unix time the last reaper run started.",
	}).Set(float64(report.Started.UnixNano()) / 1e9)

	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return lockdirErrors.Wrapf(err, "failed to write metrics to %s", path)
	}
	return nil
}
