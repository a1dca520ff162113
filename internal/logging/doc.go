// Package logging provides a simple leveled logging interface for the
// artwork service.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable.
// Component loggers created with Named can force debug output for a
// single request, which the artwork and video engines use for their
// Debug option.
package logging
