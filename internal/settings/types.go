package settings

import (
	"sort"
	"time"

	"github.com/nerrad567/mussel-core/internal/device"
)

// Default values used until the first settings change is stored.
const (
	DefaultTargetTemp = 25.0
	DefaultLampState  = device.LampOff
)

// State is one complete settings record. Every field is always populated.
type State struct {
	ID         int64            `json:"id,omitempty"`
	TargetTemp float64          `json:"target_temp"`
	LampState  device.LampState `json:"lamp_state"`
	PIDP       float64          `json:"pid_p"`
	PIDI       float64          `json:"pid_i"`
	PIDD       float64          `json:"pid_d"`
	Timestamp  time.Time        `json:"timestamp"`
}

// Defaults returns the settings in effect before any change is stored.
func Defaults() State {
	return State{TargetTemp: DefaultTargetTemp, LampState: DefaultLampState}
}

// Partial is a change request. Nil fields are left unchanged.
type Partial struct {
	TargetTemp *float64          `json:"target_temp,omitempty"`
	LampState  *device.LampState `json:"lamp_state,omitempty"`
	PIDP       *float64          `json:"pid_p,omitempty"`
	PIDI       *float64          `json:"pid_i,omitempty"`
	PIDD       *float64          `json:"pid_d,omitempty"`
}

// Empty reports whether p sets no field.
func (p Partial) Empty() bool {
	return p.TargetTemp == nil && p.LampState == nil && p.PIDP == nil && p.PIDI == nil && p.PIDD == nil
}

// Diff maps wire field names to their new values. Numeric values are
// float64 and the lamp is a device.LampState.
type Diff map[string]any

// Fields returns the changed field names in sorted order.
func (d Diff) Fields() []string {
	fields := make([]string, 0, len(d))
	for f := range d {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Merge applies p over prior. ID and Timestamp are cleared because the
// result is a new record.
func Merge(prior State, p Partial) State {
	merged := prior
	merged.ID = 0
	merged.Timestamp = time.Time{}

	if p.TargetTemp != nil {
		merged.TargetTemp = *p.TargetTemp
	}
	if p.LampState != nil {
		merged.LampState = *p.LampState
	}
	if p.PIDP != nil {
		merged.PIDP = *p.PIDP
	}
	if p.PIDI != nil {
		merged.PIDI = *p.PIDI
	}
	if p.PIDD != nil {
		merged.PIDD = *p.PIDD
	}
	return merged
}

// Compare returns the fields of merged that differ from prior. Floats are
// compared exactly. A nil prior means nothing was stored yet; every field
// the request supplied then counts as changed.
func Compare(prior *State, p Partial, merged State) Diff {
	diff := Diff{}
	put := func(field string, supplied, changed bool, value any) {
		if prior == nil {
			changed = supplied
		}
		if changed {
			diff[field] = value
		}
	}

	var old State
	if prior != nil {
		old = *prior
	}
	put(device.FieldTargetTemp, p.TargetTemp != nil, old.TargetTemp != merged.TargetTemp, merged.TargetTemp)
	put(device.FieldLampState, p.LampState != nil, old.LampState != merged.LampState, merged.LampState)
	put(device.FieldPIDP, p.PIDP != nil, old.PIDP != merged.PIDP, merged.PIDP)
	put(device.FieldPIDI, p.PIDI != nil, old.PIDI != merged.PIDI, merged.PIDI)
	put(device.FieldPIDD, p.PIDD != nil, old.PIDD != merged.PIDD, merged.PIDD)
	return diff
}
