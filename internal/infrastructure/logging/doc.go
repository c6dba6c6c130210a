// Package logging provides structured logging for Mussel Core.
//
// It wraps log/slog with JSON (default) or text output, level filtering,
// and service/version fields on every entry.
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Never log MQTT passwords or InfluxDB tokens.
package logging
