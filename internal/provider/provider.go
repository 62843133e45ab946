package provider

// #region imports
import (
	"context"
	"errors"

	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/analysis"
)

// #endregion

// #region interface

// Provider executes one analysis attempt on a single surface.
// Implementations must respect ctx deadlines and cancellation.
type Provider interface {
	Kind() analysis.ProviderKind
	Analyze(ctx context.Context, req analysis.Request) (analysis.Scores, error)
}

// #endregion

// #region errors

// ErrModelUnavailable means the surface has no usable model right now.
var ErrModelUnavailable = errors.New("model unavailable")

// ErrTransport covers network and remote-service failures.
var ErrTransport = errors.New("transport error")

// FailureKindOf classifies a provider error for provenance and stats.
func FailureKindOf(err error) analysis.FailureKind {
	switch {
	case err == nil:
		return analysis.FailureNone
	case errors.Is(err, context.DeadlineExceeded):
		return analysis.FailureTimeout
	case errors.Is(err, context.Canceled):
		return analysis.FailureCancelled
	case errors.Is(err, ErrModelUnavailable):
		return analysis.FailureModelUnavailable
	case errors.Is(err, ErrTransport):
		return analysis.FailureTransport
	default:
		return analysis.FailureUnknown
	}
}

// #endregion
