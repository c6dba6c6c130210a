package settings

import "errors"

var (
	// ErrPersistFailed indicates the settings log could not be read or
	// appended to.
	ErrPersistFailed = errors.New("settings: persist failed")

	// ErrNoSettings is returned by Repository.Latest when nothing has been
	// stored yet.
	ErrNoSettings = errors.New("settings: none stored")
)
