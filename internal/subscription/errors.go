package subscription

import "errors"

var (
	// ErrConflict indicates a channel or group that already has an active
	// binding. User-correctable: unbind the existing pairing first.
	ErrConflict = errors.New("already bound")

	// ErrNotFound indicates a missing binding code. Also reported to the
	// loser of a concurrent redemption race.
	ErrNotFound = errors.New("binding code not found")

	// ErrExpired indicates a binding code past its five minute lifetime.
	// The code is deleted as a side effect of the failed redemption.
	ErrExpired = errors.New("binding code expired")
)
