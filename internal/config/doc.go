// Package config loads mediaflow's TOML configuration.
//
// Load fills defaults, reads the file, expands paths, applies environment
// fallbacks (MEDIAFLOW_API_TOKEN, OPENAI_API_KEY, MEDIAFLOW_GCS_BUCKET,
// OTEL_EXPORTER_OTLP_ENDPOINT) and validates the result. The daemon, the CLI
// and in-process runs all resolve settings through it.
package config
