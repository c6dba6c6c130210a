package telemetry

import (
	"time"

	"github.com/nerrad567/mussel-core/internal/device"
)

// Status is one decoded status message. A nil field means the device did
// not report that reading.
type Status struct {
	Temperature    *float64          `json:"temperature"`
	OpticalDensity *float64          `json:"od_value"`
	PumpSpeed      *float64          `json:"pump_speed"`
	TargetTemp     *float64          `json:"target_temp"`
	PIDP           *float64          `json:"pid_p"`
	PIDI           *float64          `json:"pid_i"`
	PIDD           *float64          `json:"pid_d"`
	LampState      *device.LampState `json:"lamp_state"`
}

// Sample is a persisted Status stamped with its arrival time.
// Samples are immutable once appended.
type Sample struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Status
}

// Snapshot is the cached view of the most recent status message.
type Snapshot struct {
	ReceivedAt time.Time `json:"received_at"`
	Status
}

// Clone returns a deep copy of s.
func (s Status) Clone() Status {
	return Status{
		Temperature:    cloneFloat(s.Temperature),
		OpticalDensity: cloneFloat(s.OpticalDensity),
		PumpSpeed:      cloneFloat(s.PumpSpeed),
		TargetTemp:     cloneFloat(s.TargetTemp),
		PIDP:           cloneFloat(s.PIDP),
		PIDI:           cloneFloat(s.PIDI),
		PIDD:           cloneFloat(s.PIDD),
		LampState:      cloneLamp(s.LampState),
	}
}

// Readings returns the numeric readings that are present, keyed by wire
// field name.
func (s Status) Readings() map[string]float64 {
	out := make(map[string]float64, 7)
	for field, v := range s.numeric() {
		if v != nil {
			out[field] = *v
		}
	}
	return out
}

// Fields returns the present readings as time-series fields. The lamp is
// reported as the boolean lamp_on.
func (s Status) Fields() map[string]interface{} {
	readings := s.Readings()
	out := make(map[string]interface{}, len(readings)+1)
	for field, v := range readings {
		out[field] = v
	}
	if s.LampState != nil {
		out["lamp_on"] = s.LampState.On()
	}
	return out
}

// Empty reports whether no reading is present.
func (s Status) Empty() bool {
	return len(s.Readings()) == 0 && s.LampState == nil
}

func (s Status) numeric() map[string]*float64 {
	return map[string]*float64{
		device.FieldTemperature: s.Temperature,
		device.FieldODValue:     s.OpticalDensity,
		device.FieldPumpSpeed:   s.PumpSpeed,
		device.FieldTargetTemp:  s.TargetTemp,
		device.FieldPIDP:        s.PIDP,
		device.FieldPIDI:        s.PIDI,
		device.FieldPIDD:        s.PIDD,
	}
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneLamp(l *device.LampState) *device.LampState {
	if l == nil {
		return nil
	}
	return l.Ptr()
}
