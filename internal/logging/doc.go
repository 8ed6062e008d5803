// Package logging builds the slog loggers used across radreport.
//
// Two output formats are supported: a console handler that renders
// "TIMESTAMP LEVEL component: message key=value" lines for interactive use,
// and a JSON handler for machine consumption. NewFromConfig tees output to
// stdout and a log file under the configured log directory.
package logging
