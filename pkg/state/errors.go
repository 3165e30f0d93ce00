package state

import "errors"

// Precondition failures. They are returned before any network call and are
// never shown as toasts.
var (
	ErrNoPeerSelected  = errors.New("state: no conversation partner selected")
	ErrNotConnected    = errors.New("state: push channel not connected")
	ErrBusy            = errors.New("state: operation already in progress")
	ErrEmptyMessage    = errors.New("state: message has neither text nor image")
	ErrEmptyPreference = errors.New("state: preference value is empty")
)
