package analysis

// #region imports
import (
	"errors"
	"fmt"
)

// #endregion

// #region sentinels

// ErrInvalidRequest marks a request rejected before any provider ran.
var ErrInvalidRequest = errors.New("invalid request")

// ErrCancelled marks an execution stopped by caller cancellation.
var ErrCancelled = errors.New("analysis cancelled")

// #endregion

// #region all-providers-failed

// AllProvidersFailedError reports that every provider in the plan failed.
type AllProvidersFailedError struct {
	LastKind FailureKind
	Attempts int
}

func (e *AllProvidersFailedError) Error() string {
	return fmt.Sprintf("all providers failed after %d attempts (last: %s)", e.Attempts, e.LastKind)
}

// #endregion
