package device

import "errors"

// ErrInvalidLampState is returned for any lamp value other than "ON" or "OFF".
var ErrInvalidLampState = errors.New("device: lamp_state must be ON or OFF")
