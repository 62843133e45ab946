package plan

// #region imports
import (
	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/analysis"
)

// #endregion

// #region plan

// Plan is the ordered provider chain for one execution. It is never
// empty and always ends with the offline heuristic.
type Plan struct {
	Providers  []analysis.ProviderKind
	LocalScore float32
	CloudScore float32
	Hybrid     bool // automatic mode with both networked surfaces viable
	Reason     string
}

// Primary returns the first provider in the chain.
func (p Plan) Primary() analysis.ProviderKind {
	if len(p.Providers) == 0 {
		return analysis.ProviderOffline
	}
	return p.Providers[0]
}

// #endregion

// #region weights

// Weights are the affinity scoring knobs. Defaults implement the
// shipped routing behavior; all of them are config-tunable.
type Weights struct {
	LocalModelReady float32 // model ready on capable hardware
	LocalBattery    float32 // battery above the floor
	LocalThermal    float32 // thermal pressure nominal
	LocalPrefAuto   float32 // caller left routing automatic
	BatteryFloor    float32

	CloudReachable  float32 // any connectivity at all
	CloudGoodLink   float32 // link classified good
	CloudWeakLocal  float32 // local side scored weak
	WeakLocalCutoff float32

	BiasCap float32 // max historical nudge in either direction
}

// DefaultWeights returns the shipped scoring configuration.
func DefaultWeights() Weights {
	return Weights{
		LocalModelReady: 0.4,
		LocalBattery:    0.2,
		LocalThermal:    0.2,
		LocalPrefAuto:   0.2,
		BatteryFloor:    0.3,
		CloudReachable:  0.5,
		CloudGoodLink:   0.3,
		CloudWeakLocal:  0.2,
		WeakLocalCutoff: 0.4,
		BiasCap:         0.1,
	}
}

// #endregion

// #region bias-source

// BiasSource supplies decay-weighted per-provider quality nudges learned
// from past outcomes. Values are deltas around zero; the selector clamps
// them to ±BiasCap.
type BiasSource interface {
	ProviderBias() (map[analysis.ProviderKind]float32, error)
}

// #endregion
