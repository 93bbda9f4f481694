// Package config loads the TOML configuration for the CLI and REST server.
//
// A config file is optional: Default supplies every value, a file overrides
// any subset of them and a few SONIDO_* environment variables override the
// file. Component configs for the decoder, extractor, scorer, logger and
// tracer are derived from the loaded Config.
package config
