package device

// Wire field names shared by the status topic, the command topic, the
// HTTP API and the database columns.
const (
	FieldTemperature = "temperature"
	FieldODValue     = "od_value"
	FieldPumpSpeed   = "pump_speed"
	FieldTargetTemp  = "target_temp"
	FieldPIDP        = "pid_p"
	FieldPIDI        = "pid_i"
	FieldPIDD        = "pid_d"
	FieldLampState   = "lamp_state"
)
