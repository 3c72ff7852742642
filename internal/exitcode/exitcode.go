// Package exitcode defines process exit codes.
package exitcode

const (
	// Success indicates the run completed, including runs where some
	// individual task updates failed.
	Success = 0

	// ConfigError indicates a missing credential or invalid configuration.
	ConfigError = 2

	// BackendError indicates the overdue tasks could not be fetched.
	BackendError = 3
)
