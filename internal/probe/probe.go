package probe

// #region imports
import (
	"log"
	"time"

	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/analysis"
	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/model"
)

// #endregion

// #region defaults

// Conservative fallbacks when a sensor cannot answer: assume a middling
// battery, some thermal pressure, and no connectivity.
const (
	defaultBatteryLevel = 0.5
	defaultThermal      = ThermalFair
	defaultNetwork      = NetworkOffline
)

// #endregion

// #region probe

// Probe assembles routing context snapshots from the device sensors.
type Probe struct {
	battery BatterySensor
	thermal ThermalSensor
	network NetworkSensor
	status  StatusSource
	capable bool
}

// NewProbe wires the sensors. Any sensor may be nil, in which case its
// conservative default is used.
func NewProbe(battery BatterySensor, thermal ThermalSensor, network NetworkSensor, status StatusSource, deviceCapable bool) *Probe {
	return &Probe{
		battery: battery,
		thermal: thermal,
		network: network,
		status:  status,
		capable: deviceCapable,
	}
}

// Snapshot reads every sensor once and returns the assembled context.
// Sensor failures degrade to defaults, never to an error: routing must
// always have something to work with. Pref is left for the caller to set.
func (p *Probe) Snapshot() Context {
	ctx := Context{
		BatteryLevel:  defaultBatteryLevel,
		Thermal:       defaultThermal,
		Network:       defaultNetwork,
		DeviceCapable: p.capable,
		ModelStatus:   model.StatusNotLoaded,
		Pref:          analysis.PrefAutomatic,
		TakenAt:       time.Now(),
	}

	if p.battery != nil {
		if level, err := p.battery.Level(); err == nil {
			ctx.BatteryLevel = clamp01(level)
		} else {
			log.Printf("[probe] battery sensor failed: %v (using %.1f)", err, defaultBatteryLevel)
		}
	}
	if p.thermal != nil {
		if state, err := p.thermal.State(); err == nil {
			ctx.Thermal = state
		} else {
			log.Printf("[probe] thermal sensor failed: %v (using %s)", err, defaultThermal)
		}
	}
	if p.network != nil {
		if quality, err := p.network.Quality(); err == nil {
			ctx.Network = quality
		} else {
			log.Printf("[probe] network sensor failed: %v (using %s)", err, defaultNetwork)
		}
	}
	if p.status != nil {
		ctx.ModelStatus = p.status.Status()
	}
	return ctx
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion
