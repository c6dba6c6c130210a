// Package device holds the vocabulary shared by everything that talks to
// the mussel growth device: the LampState enum and the wire field names.
//
// The device reports temperature, optical density (od_value), pump speed,
// its target temperature, PID gains and the lamp state. It accepts changes
// to target_temp, lamp_state and the PID gains.
package device
