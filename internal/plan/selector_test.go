package plan

import (
	"errors"
	"reflect"
	"testing"

	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/analysis"
	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/model"
	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/probe"
)

// healthyCtx is a device with everything going for local execution.
func healthyCtx() probe.Context {
	return probe.Context{
		BatteryLevel:  0.9,
		Thermal:       probe.ThermalNominal,
		Network:       probe.NetworkGood,
		DeviceCapable: true,
		ModelStatus:   model.StatusLoaded,
		Pref:          analysis.PrefAutomatic,
	}
}

func TestSelect_PinnedPreferences(t *testing.T) {
	selector := NewSelector(DefaultWeights(), nil)

	tests := []struct {
		name string
		pref analysis.ExecutionPref
		want []analysis.ProviderKind
	}{
		{"offline-only", analysis.PrefOfflineOnly, []analysis.ProviderKind{analysis.ProviderOffline}},
		{"force-local", analysis.PrefForceLocal, []analysis.ProviderKind{analysis.ProviderLocal, analysis.ProviderOffline}},
		{"force-cloud", analysis.PrefForceCloud, []analysis.ProviderKind{analysis.ProviderCloud, analysis.ProviderOffline}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := healthyCtx()
			ctx.Pref = tt.pref
			got := selector.Select(ctx)
			if !reflect.DeepEqual(got.Providers, tt.want) {
				t.Errorf("got %v, want %v", got.Providers, tt.want)
			}
			if got.Hybrid {
				t.Error("pinned plans must not race")
			}
		})
	}
}

func TestSelect_AlwaysEndsOffline(t *testing.T) {
	selector := NewSelector(DefaultWeights(), nil)

	contexts := []probe.Context{
		healthyCtx(),
		{Pref: analysis.PrefAutomatic}, // everything down
		{Pref: analysis.PrefForceLocal},
		{Pref: analysis.PrefForceCloud, Network: probe.NetworkGood},
		{Pref: analysis.PrefOfflineOnly, DeviceCapable: true, ModelStatus: model.StatusLoaded},
	}

	for i, ctx := range contexts {
		p := selector.Select(ctx)
		if len(p.Providers) == 0 {
			t.Fatalf("ctx %d: empty plan", i)
		}
		if last := p.Providers[len(p.Providers)-1]; last != analysis.ProviderOffline {
			t.Errorf("ctx %d: chain ends with %q, want offline heuristic", i, last)
		}
	}
}

func TestSelect_AutomaticScoring(t *testing.T) {
	selector := NewSelector(DefaultWeights(), nil)

	tests := []struct {
		name       string
		mutate     func(*probe.Context)
		want       []analysis.ProviderKind
		wantHybrid bool
	}{
		{
			"healthy-prefers-local",
			func(c *probe.Context) {},
			[]analysis.ProviderKind{analysis.ProviderLocal, analysis.ProviderCloud, analysis.ProviderOffline},
			true,
		},
		{
			"model-missing-goes-cloud",
			func(c *probe.Context) { c.ModelStatus = model.StatusNotLoaded },
			[]analysis.ProviderKind{analysis.ProviderCloud, analysis.ProviderOffline},
			false,
		},
		{
			"incapable-device-goes-cloud",
			func(c *probe.Context) { c.DeviceCapable = false },
			[]analysis.ProviderKind{analysis.ProviderCloud, analysis.ProviderOffline},
			false,
		},
		{
			"offline-device-goes-local",
			func(c *probe.Context) { c.Network = probe.NetworkOffline },
			[]analysis.ProviderKind{analysis.ProviderLocal, analysis.ProviderOffline},
			false,
		},
		{
			"nothing-viable-heuristic-only",
			func(c *probe.Context) {
				c.ModelStatus = model.StatusError
				c.Network = probe.NetworkOffline
			},
			[]analysis.ProviderKind{analysis.ProviderOffline},
			false,
		},
		{
			"degraded-local-prefers-cloud",
			func(c *probe.Context) {
				// Local stays viable but weak: low battery, hot device.
				c.BatteryLevel = 0.1
				c.Thermal = probe.ThermalSerious
			},
			[]analysis.ProviderKind{analysis.ProviderCloud, analysis.ProviderLocal, analysis.ProviderOffline},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := healthyCtx()
			tt.mutate(&ctx)
			got := selector.Select(ctx)
			if !reflect.DeepEqual(got.Providers, tt.want) {
				t.Errorf("got %v, want %v", got.Providers, tt.want)
			}
			if got.Hybrid != tt.wantHybrid {
				t.Errorf("hybrid = %v, want %v", got.Hybrid, tt.wantHybrid)
			}
		})
	}
}

func TestSelect_TieFavorsLocal(t *testing.T) {
	// local: ready 0.4 + thermal 0.2 + auto 0.2 = 0.8 (battery at floor, no bonus)
	// cloud: reachable 0.5 + good 0.3 = 0.8
	ctx := healthyCtx()
	ctx.BatteryLevel = 0.2

	got := NewSelector(DefaultWeights(), nil).Select(ctx)
	if got.LocalScore != got.CloudScore {
		t.Fatalf("not a tie: local=%v cloud=%v", got.LocalScore, got.CloudScore)
	}
	if got.Providers[0] != analysis.ProviderLocal {
		t.Errorf("tie broken toward %q, want local", got.Providers[0])
	}
}

func TestSelect_AffinityValues(t *testing.T) {
	w := DefaultWeights()

	ctx := healthyCtx()
	if got := LocalAffinity(ctx, w); got != 1.0 {
		t.Errorf("healthy local affinity = %v, want 1.0", got)
	}
	if got := CloudAffinity(ctx, w, 1.0); got != 0.8 {
		t.Errorf("healthy cloud affinity = %v, want 0.8", got)
	}

	// Weak local triggers the cloud bonus.
	if got := CloudAffinity(ctx, w, 0.2); got != 1.0 {
		t.Errorf("weak-local cloud affinity = %v, want 1.0", got)
	}
}

type stubBias struct {
	nudges map[analysis.ProviderKind]float32
	err    error
}

func (s stubBias) ProviderBias() (map[analysis.ProviderKind]float32, error) {
	return s.nudges, s.err
}

func TestSelect_BiasNudgesAndCaps(t *testing.T) {
	// Start from the tie scenario so a small nudge decides the order.
	ctx := healthyCtx()
	ctx.BatteryLevel = 0.2

	bias := stubBias{nudges: map[analysis.ProviderKind]float32{analysis.ProviderCloud: 0.05}}
	got := NewSelector(DefaultWeights(), bias).Select(ctx)
	if got.Providers[0] != analysis.ProviderCloud {
		t.Errorf("bias ignored: first = %q", got.Providers[0])
	}

	// A huge learned delta is capped at BiasCap.
	bias = stubBias{nudges: map[analysis.ProviderKind]float32{analysis.ProviderCloud: 5.0}}
	got = NewSelector(DefaultWeights(), bias).Select(ctx)
	if got.CloudScore > 0.9001 {
		t.Errorf("cloud score %v exceeds capped nudge", got.CloudScore)
	}
}

func TestSelect_BiasNeverOverridesPin(t *testing.T) {
	ctx := healthyCtx()
	ctx.Pref = analysis.PrefForceLocal
	bias := stubBias{nudges: map[analysis.ProviderKind]float32{analysis.ProviderCloud: 5.0}}

	got := NewSelector(DefaultWeights(), bias).Select(ctx)
	if got.Providers[0] != analysis.ProviderLocal {
		t.Errorf("pin overridden: first = %q", got.Providers[0])
	}
}

func TestSelect_BiasErrorIgnored(t *testing.T) {
	ctx := healthyCtx()
	bias := stubBias{err: errors.New("db locked")}

	got := NewSelector(DefaultWeights(), bias).Select(ctx)
	if got.Providers[0] != analysis.ProviderLocal {
		t.Errorf("bias error changed routing: %v", got.Providers)
	}
}

func TestSelect_Deterministic(t *testing.T) {
	selector := NewSelector(DefaultWeights(), nil)
	ctx := healthyCtx()

	first := selector.Select(ctx)
	for i := 0; i < 20; i++ {
		if got := selector.Select(ctx); !reflect.DeepEqual(got, first) {
			t.Fatalf("iteration %d: plan differs: %+v vs %+v", i, got, first)
		}
	}
}
