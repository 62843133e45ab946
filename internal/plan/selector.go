package plan

// #region imports
import (
	"fmt"
	"log"

	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/analysis"
	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/probe"
)

// #endregion

// #region selector

// Selector turns a context snapshot into an execution plan. Selection is
// pure: same snapshot, same plan. The optional bias source only nudges
// affinity scores in automatic mode and never overrides a pinned
// preference.
type Selector struct {
	weights Weights
	bias    BiasSource // nil = no historical nudge
}

// NewSelector creates a selector with the given weights and optional bias.
func NewSelector(w Weights, bias BiasSource) *Selector {
	return &Selector{weights: w, bias: bias}
}

// #endregion

// #region affinity

// LocalAffinity scores how attractive on-device execution is right now.
func LocalAffinity(ctx probe.Context, w Weights) float32 {
	var s float32
	if ctx.DeviceCapable && ctx.ModelStatus.Ready() {
		s += w.LocalModelReady
	}
	if ctx.BatteryLevel > w.BatteryFloor {
		s += w.LocalBattery
	}
	if ctx.Thermal == probe.ThermalNominal {
		s += w.LocalThermal
	}
	if analysis.NormalizePref(ctx.Pref) == analysis.PrefAutomatic {
		s += w.LocalPrefAuto
	}
	return clamp01(s)
}

// CloudAffinity scores the remote path given the local score.
func CloudAffinity(ctx probe.Context, w Weights, localScore float32) float32 {
	var s float32
	if ctx.Network.Reachable() {
		s = w.CloudReachable
	}
	if ctx.Network == probe.NetworkGood {
		s += w.CloudGoodLink
	}
	if localScore < w.WeakLocalCutoff {
		s += w.CloudWeakLocal
	}
	return clamp01(s)
}

// #endregion

// #region select

// Select builds the provider chain for the snapshot. Explicit
// preferences pin their provider to the front; automatic mode orders the
// viable networked providers by affinity with ties going local. The
// chain always ends with the offline heuristic.
func (s *Selector) Select(ctx probe.Context) Plan {
	switch analysis.NormalizePref(ctx.Pref) {
	case analysis.PrefOfflineOnly:
		return Plan{
			Providers: []analysis.ProviderKind{analysis.ProviderOffline},
			Reason:    "preference pins offline",
		}
	case analysis.PrefForceLocal:
		return Plan{
			Providers: []analysis.ProviderKind{analysis.ProviderLocal, analysis.ProviderOffline},
			Reason:    "preference pins local",
		}
	case analysis.PrefForceCloud:
		return Plan{
			Providers: []analysis.ProviderKind{analysis.ProviderCloud, analysis.ProviderOffline},
			Reason:    "preference pins cloud",
		}
	}

	local := LocalAffinity(ctx, s.weights)
	cloud := CloudAffinity(ctx, s.weights, local)
	local, cloud = s.applyBias(local, cloud)

	localViable := ctx.DeviceCapable && ctx.ModelStatus.Ready()
	cloudViable := ctx.Network.Reachable()

	var providers []analysis.ProviderKind
	switch {
	case localViable && cloudViable:
		if cloud > local {
			providers = []analysis.ProviderKind{analysis.ProviderCloud, analysis.ProviderLocal}
		} else {
			providers = []analysis.ProviderKind{analysis.ProviderLocal, analysis.ProviderCloud}
		}
	case localViable:
		providers = []analysis.ProviderKind{analysis.ProviderLocal}
	case cloudViable:
		providers = []analysis.ProviderKind{analysis.ProviderCloud}
	}
	providers = append(providers, analysis.ProviderOffline)

	p := Plan{
		Providers:  providers,
		LocalScore: local,
		CloudScore: cloud,
		Hybrid:     localViable && cloudViable,
		Reason:     fmt.Sprintf("scored local=%.2f cloud=%.2f", local, cloud),
	}
	log.Printf("[plan] automatic: local=%.2f cloud=%.2f viable(local=%v cloud=%v) → %v",
		local, cloud, localViable, cloudViable, providers)
	return p
}

func (s *Selector) applyBias(local, cloud float32) (float32, float32) {
	if s.bias == nil {
		return local, cloud
	}
	nudges, err := s.bias.ProviderBias()
	if err != nil {
		log.Printf("[plan] bias source failed: %v (ignoring)", err)
		return local, cloud
	}
	local = clamp01(local + clampAbs(nudges[analysis.ProviderLocal], s.weights.BiasCap))
	cloud = clamp01(cloud + clampAbs(nudges[analysis.ProviderCloud], s.weights.BiasCap))
	return local, cloud
}

// #endregion

// #region helpers

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampAbs(v, limit float32) float32 {
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}

// #endregion
