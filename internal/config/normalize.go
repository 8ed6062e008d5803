package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeArchives()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeArchives() {
	normalizeArchive(&c.Source, "RADREPORT_SOURCE_PASSWORD")
	normalizeArchive(&c.Destination, "RADREPORT_DEST_PASSWORD")
}

func normalizeArchive(a *Archive, passwordEnv string) {
	a.URL = strings.TrimRight(strings.TrimSpace(a.URL), "/")
	a.Username = strings.TrimSpace(a.Username)
	a.Project = strings.TrimSpace(a.Project)
	if a.Password == "" {
		a.Password = os.Getenv(passwordEnv)
	}
	if a.RequestTimeout <= 0 {
		a.RequestTimeout = defaultRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
