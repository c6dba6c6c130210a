// Package command publishes settings changes to the device and keeps an
// audit log of what was sent.
//
// A Dispatcher serialises a settings.Diff as a JSON object holding exactly
// the changed fields, publishes it on the command topic through a circuit
// breaker and then appends a Record. A record is written only after the
// broker has accepted the publish, so the log lists commands believed sent.
package command
