package model

// #region imports
import (
	"time"
)

// #endregion

// #region status

// Status is the model lifecycle state.
type Status string

const (
	StatusNotLoaded Status = "not_loaded"
	StatusLoading   Status = "loading"
	StatusLoaded    Status = "loaded"
	StatusUpdating  Status = "updating"
	StatusUpdated   Status = "updated"
	StatusError     Status = "error"
)

// Ready reports whether local inference can run against the active model.
func (s Status) Ready() bool {
	return s == StatusLoaded || s == StatusUpdated
}

// #endregion

// #region event

// Event is one lifecycle status change.
type Event struct {
	Status  Status    `json:"status"`
	Version string    `json:"version,omitempty"`
	Err     string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

// #endregion
