package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PipelineStats provides the collector access to live pipeline state.
type PipelineStats interface {
	InFlight() int
	TempFiles() int
	ConverterAvailable() bool
}

// Collector implements prometheus.Collector to read live gauges at scrape time.
type Collector struct {
	stats PipelineStats

	inFlight       *prometheus.Desc
	tempFiles      *prometheus.Desc
	converterReady *prometheus.Desc
}

// NewCollector creates a collector that reads live state at scrape time.
// stats may be nil (gauges report 0).
func NewCollector(stats PipelineStats) *Collector {
	return &Collector{
		stats: stats,
		inFlight: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "transcriptions_in_flight"),
			"Transcription requests currently being processed.",
			nil, nil,
		),
		tempFiles: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "temp_files"),
			"Files currently present in the upload temp directory.",
			nil, nil,
		),
		converterReady: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "converter_available"),
			"1 if the audio conversion tool was found on PATH.",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.inFlight
	ch <- c.tempFiles
	ch <- c.converterReady
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	var inFlight, tempFiles, ready float64
	if c.stats != nil {
		inFlight = float64(c.stats.InFlight())
		tempFiles = float64(c.stats.TempFiles())
		if c.stats.ConverterAvailable() {
			ready = 1
		}
	}
	ch <- prometheus.MustNewConstMetric(c.inFlight, prometheus.GaugeValue, inFlight)
	ch <- prometheus.MustNewConstMetric(c.tempFiles, prometheus.GaugeValue, tempFiles)
	ch <- prometheus.MustNewConstMetric(c.converterReady, prometheus.GaugeValue, ready)
}
