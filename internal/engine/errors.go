package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyScope is returned when the account set or the region set is
	// empty.
	ErrEmptyScope = errors.New("scope has no accounts or no regions")

	// ErrCallbackFailed is matched by every *CallbackError.
	ErrCallbackFailed = errors.New("callback failed")
)

// CallbackError wraps an error returned (or a panic raised) by a Callback
// for one cell.
type CallbackError struct {
	AccountID string
	Region    string
	Err       error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("callback for %s/%s: %v", e.AccountID, e.Region, e.Err)
}

func (e *CallbackError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrCallbackFailed) match any CallbackError.
func (e *CallbackError) Is(target error) bool { return target == ErrCallbackFailed }
