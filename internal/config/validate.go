package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateArchive("source", &c.Source, false); err != nil {
		return err
	}
	if err := c.validateArchive("destination", &c.Destination, true); err != nil {
		return err
	}
	if err := c.validateReporting(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateArchive(section string, a *Archive, requireProject bool) error {
	if a.URL == "" {
		return fmt.Errorf("%s.url must be set (create a config with 'radreport config init')", section)
	}
	if requireProject && a.Project == "" {
		return fmt.Errorf("%s.project must be set to the destination project code", section)
	}
	return nil
}

func (c *Config) validateReporting() error {
	if c.Reporting.ReportIntervalDays < 0 {
		return errors.New("reporting.report_interval_days must not be negative")
	}
	if c.Reporting.ScanTypesPageSize <= 0 {
		return errors.New("reporting.scan_types_page_size must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
