package telemetry

import "errors"

var (
	// ErrDecodeFailed indicates a status payload that is not a JSON object,
	// has a field of the wrong type, or carries an invalid lamp_state.
	ErrDecodeFailed = errors.New("telemetry: decode failed")

	// ErrPersistFailed indicates the sample could not be appended to the log.
	ErrPersistFailed = errors.New("telemetry: persist failed")

	// ErrNoSamples is returned by Latest when the log is empty.
	ErrNoSamples = errors.New("telemetry: no samples recorded")
)
