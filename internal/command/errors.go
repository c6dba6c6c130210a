package command

import "errors"

var (
	// ErrPublishFailed indicates the command did not reach the broker,
	// including when the circuit breaker is open.
	ErrPublishFailed = errors.New("command: publish failed")

	// ErrEncodeFailed indicates the diff could not be serialised.
	ErrEncodeFailed = errors.New("command: encode failed")

	// ErrAuditFailed indicates the command was published but could not be
	// recorded.
	ErrAuditFailed = errors.New("command: audit append failed")
)
