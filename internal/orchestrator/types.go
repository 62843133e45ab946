package orchestrator

// #region imports
import (
	"context"
	"time"

	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/analysis"
)

// #endregion

// #region config

// Config carries the execution knobs.
type Config struct {
	LocalDeadline   time.Duration
	CloudDeadline   time.Duration
	OfflineDeadline time.Duration
	LowConfidence   float32       // below this, hold the result and seek a second opinion
	GraceWindow     time.Duration // how long a provisional hybrid winner waits for the slower side
	ImproveDelta    float32       // absolute confidence gain the slower side must bring
	HybridRace      bool
}

// DefaultConfig returns the shipped execution configuration.
func DefaultConfig() Config {
	return Config{
		LocalDeadline:   5 * time.Second,
		CloudDeadline:   10 * time.Second,
		OfflineDeadline: 1 * time.Second,
		LowConfidence:   0.3,
		GraceWindow:     1500 * time.Millisecond,
		ImproveDelta:    0.1,
		HybridRace:      true,
	}
}

// #endregion

// #region interfaces

// Journal persists final results. Storage failures must not fail execution.
type Journal interface {
	SaveResult(ctx context.Context, res analysis.Result) error
}

// Recorder sees every attempt. *stats.Recorder satisfies it.
type Recorder interface {
	RecordAttempt(rec analysis.AttemptRecord, topConfidence float32)
}

// Annotator appends validation warnings. *validate.Validator satisfies it.
type Annotator interface {
	Annotate(ctx context.Context, req analysis.Request, res *analysis.Result)
}

// #endregion

// #region candidate

// candidate is a usable score set waiting to be finalized.
type candidate struct {
	kind   analysis.ProviderKind
	scores analysis.Scores
	top    float32
}

// #endregion
