package device

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// LampState is the on/off state of the grow lamp.
//
// Only the exact strings "ON" and "OFF" are valid, on every channel:
// telemetry, commands, the HTTP API and the database.
type LampState string

const (
	LampOn  LampState = "ON"
	LampOff LampState = "OFF"
)

// ParseLampState validates s. Matching is case-sensitive.
func ParseLampState(s string) (LampState, error) {
	switch l := LampState(s); l {
	case LampOn, LampOff:
		return l, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidLampState, s)
	}
}

// Valid reports whether l is ON or OFF.
func (l LampState) Valid() bool {
	return l == LampOn || l == LampOff
}

// On reports whether the lamp is lit.
func (l LampState) On() bool {
	return l == LampOn
}

// Ptr returns a pointer to a copy of l.
func (l LampState) Ptr() *LampState {
	return &l
}

// UnmarshalJSON rejects anything other than the strings "ON" and "OFF".
func (l *LampState) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidLampState, data)
	}
	parsed, err := ParseLampState(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Value implements driver.Valuer.
func (l LampState) Value() (driver.Value, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidLampState, string(l))
	}
	return string(l), nil
}

// Scan implements sql.Scanner.
func (l *LampState) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("%w: unsupported column type %T", ErrInvalidLampState, src)
	}
	parsed, err := ParseLampState(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
