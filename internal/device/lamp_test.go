package device

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseLampState(t *testing.T) {
	tests := []struct {
		input   string
		want    LampState
		wantErr bool
	}{
		{"ON", LampOn, false},
		{"OFF", LampOff, false},
		{"on", "", true},
		{"Off", "", true},
		{"", "", true},
		{"DIM", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLampState(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLampState(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidLampState) {
				t.Errorf("error = %v, want ErrInvalidLampState", err)
			}
			if got != tt.want {
				t.Errorf("ParseLampState(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestLampState_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    LampState
		wantErr bool
	}{
		{"on", `{"lamp":"ON"}`, LampOn, false},
		{"off", `{"lamp":"OFF"}`, LampOff, false},
		{"lowercase", `{"lamp":"on"}`, "", true},
		{"bool", `{"lamp":true}`, "", true},
		{"number", `{"lamp":1}`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v struct {
				Lamp LampState `json:"lamp"`
			}
			err := json.Unmarshal([]byte(tt.body), &v)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidLampState) {
				t.Errorf("error = %v, want ErrInvalidLampState", err)
			}
			if v.Lamp != tt.want {
				t.Errorf("Lamp = %q, want %q", v.Lamp, tt.want)
			}
		})
	}
}

func TestLampState_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(map[string]LampState{"lamp_state": LampOn})
	if err != nil {
		t.Fatalf("Marshal error = %v", err)
	}
	if string(b) != `{"lamp_state":"ON"}` {
		t.Errorf("Marshal = %s", b)
	}
}

func TestLampState_SQL(t *testing.T) {
	v, err := LampOff.Value()
	if err != nil || v != "OFF" {
		t.Errorf("Value() = %v, %v", v, err)
	}
	if _, err := LampState("DIM").Value(); !errors.Is(err, ErrInvalidLampState) {
		t.Errorf("Value() invalid error = %v", err)
	}

	var l LampState
	if err := l.Scan([]byte("ON")); err != nil || l != LampOn {
		t.Errorf("Scan([]byte) = %q, %v", l, err)
	}
	if err := l.Scan("OFF"); err != nil || l != LampOff {
		t.Errorf("Scan(string) = %q, %v", l, err)
	}
	if err := l.Scan(int64(1)); err == nil {
		t.Error("Scan(int64) expected error")
	}
}

func TestLampState_Helpers(t *testing.T) {
	if !LampOn.On() || LampOff.On() {
		t.Error("On() mismatch")
	}
	if !LampOn.Valid() || LampState("x").Valid() {
		t.Error("Valid() mismatch")
	}
	p := LampOn.Ptr()
	*p = LampOff
	if LampOn != "ON" {
		t.Error("Ptr() aliased the constant")
	}
}
