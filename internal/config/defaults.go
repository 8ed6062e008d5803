package config

const (
	defaultDataDir            = "~/.local/share/radreport"
	defaultStagingDir         = "~/.local/share/radreport/staging"
	defaultLogDir             = "~/.local/share/radreport/logs"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultRequestTimeout     = 60
	defaultReportIntervalDays = 365
	defaultScanTypesPageSize  = 20
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
		},
		Source: Archive{
			RequestTimeout: defaultRequestTimeout,
		},
		Destination: Archive{
			RequestTimeout: defaultRequestTimeout,
		},
		Reporting: Reporting{
			ReportIntervalDays: defaultReportIntervalDays,
			ScanTypesPageSize:  defaultScanTypesPageSize,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
