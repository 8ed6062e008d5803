package testsupport

import (
	"path/filepath"
	"testing"

	"radreport/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Source.URL = "https://source.example.org"
	cfgVal.Source.Username = "importer"
	cfgVal.Source.Password = "secret"
	cfgVal.Destination.URL = "https://destination.example.org"
	cfgVal.Destination.Username = "exporter"
	cfgVal.Destination.Password = "secret"
	cfgVal.Destination.Project = "REPORTING"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithReportInterval overrides the report interval on the test config.
func WithReportInterval(days int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Reporting.ReportIntervalDays = days
	}
}

// WithArchives points the source and destination archives at test servers.
func WithArchives(sourceURL, destinationURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Source.URL = sourceURL
		b.cfg.Destination.URL = destinationURL
	}
}
