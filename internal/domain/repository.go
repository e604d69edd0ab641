package domain

import "time"

// ConfigReader loads the benchmark configuration.
type ConfigReader interface {
	ReadConfig(path string) (*Config, error)
}

// StructureReader loads workload structures from a file.
type StructureReader interface {
	ReadStructures(filename string) ([]WorkItem, error)
}

// TimingRow is one line of the raw per-item timing report.
type TimingRow struct {
	WorkID string
	Local  time.Duration
	Remote time.Duration
}

// TimingsWriter writes the per-item timing table.
type TimingsWriter interface {
	WriteTimings(filename string, rows []TimingRow) error
}

// ChartWriter renders the local-vs-remote comparison chart.
type ChartWriter interface {
	WriteChart(filename string, localSeconds, remoteSeconds float64) error
}
