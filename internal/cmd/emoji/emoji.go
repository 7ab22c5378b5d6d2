// Package emoji provides symbol constants for CLI output.
package emoji

// Symbols used for status indicators and user feedback in terminal output.
const (
	// Success represents successful completion of an operation.
	Success = "✓"

	// Error represents a failed operation.
	Error = "✗"

	// Stop represents shutdowns and stop signals.
	Stop = "✗"

	// Warning represents non-critical issues such as a dropped connection.
	Warning = "!"

	// Info represents informational messages.
	Info = "i"
)
