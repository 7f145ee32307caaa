// Package emoji provides symbol constants for CLI output.
package emoji

// Status symbols printed ahead of human-readable CLI messages.
const (
	// Success marks a completed build, export, or shutdown.
	Success = "✓"

	// Error marks a failed operation.
	Error = "✗"

	// Stop marks a shutdown in progress.
	Stop = "✗"

	// Warning marks a partial result, e.g. a catalog with failed providers.
	Warning = "!"

	// Info marks neutral progress output.
	Info = "i"
)
