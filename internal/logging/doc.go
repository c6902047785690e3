// Package logging builds the slog loggers every mediaflow component writes
// through.
//
// New picks a console or JSON handler and fans records out to the configured
// outputs. WithContext copies job, activity, step and correlation IDs from a
// context onto a logger, and WithTelemetry tees records into the OTLP logs
// pipeline. Event fields (event_type, error_hint, impact) are plain string
// attributes so log queries can filter on them.
package logging
