package telemetry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/mussel-core/internal/device"
)

// FieldError names the status field that could not be decoded.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// DecodeStatus parses a status payload.
//
// The payload must be a JSON object. Unknown keys are ignored and missing or
// null keys leave the reading absent. Anything else fails with
// ErrDecodeFailed; a bad field is reported as a *FieldError in the chain.
// One bad field rejects the whole message.
func DecodeStatus(payload []byte) (Status, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Status{}, fmt.Errorf("%w: payload is not a JSON object", ErrDecodeFailed)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return Status{}, fmt.Errorf("%w: %w", ErrDecodeFailed, err)
	}

	var status Status
	targets := []struct {
		field string
		dst   any
	}{
		{device.FieldTemperature, &status.Temperature},
		{device.FieldODValue, &status.OpticalDensity},
		{device.FieldPumpSpeed, &status.PumpSpeed},
		{device.FieldTargetTemp, &status.TargetTemp},
		{device.FieldPIDP, &status.PIDP},
		{device.FieldPIDI, &status.PIDI},
		{device.FieldPIDD, &status.PIDD},
		{device.FieldLampState, &status.LampState},
	}
	for _, t := range targets {
		value, ok := raw[t.field]
		if !ok {
			continue
		}
		if err := json.Unmarshal(value, t.dst); err != nil {
			return Status{}, fmt.Errorf("%w: %w", ErrDecodeFailed, &FieldError{Field: t.field, Err: err})
		}
	}
	return status, nil
}
