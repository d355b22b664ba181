// Package logging provides structured logging utilities for nnctl.
package logging

// Standard field names for consistent logging across the application.
const (
	// FieldInvocationID identifies a single orchestration call.
	FieldInvocationID = "invocation_id"

	// FieldAction is the lifecycle action being performed.
	FieldAction = "action"

	// FieldHostname is the local host name.
	FieldHostname = "hostname"

	// FieldNamenodeID is the HA NameNode identifier.
	FieldNamenodeID = "namenode_id"

	// FieldAttempt is the 1-based attempt number inside a retry loop.
	FieldAttempt = "attempt"

	// FieldExitCode is the exit code of an executed command.
	FieldExitCode = "exit_code"

	// FieldCommand is the rendered command line.
	FieldCommand = "command"

	// FieldUser is the OS user a command runs as.
	FieldUser = "user"

	// FieldDuration is the duration of an operation.
	FieldDuration = "duration_ms"

	// FieldRequestID is a unique identifier for each agent HTTP request.
	FieldRequestID = "request_id"

	// FieldMethod is the HTTP method of a request.
	FieldMethod = "method"

	// FieldPath is the URL path of an HTTP request.
	FieldPath = "path"

	// FieldRemoteAddr is the client address of an HTTP request.
	FieldRemoteAddr = "remote_addr"

	// FieldStatusCode is the HTTP status code of a response.
	FieldStatusCode = "status_code"

	// FieldError is the error message, if any.
	FieldError = "error"

	// FieldComponent identifies the component generating the log.
	FieldComponent = "component"
)
