package probe

// #region imports
import (
	"time"

	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/analysis"
	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/model"
)

// #endregion

// #region thermal-state

// ThermalState mirrors the device thermal pressure ladder.
type ThermalState string

const (
	ThermalNominal  ThermalState = "nominal"
	ThermalFair     ThermalState = "fair"
	ThermalSerious  ThermalState = "serious"
	ThermalCritical ThermalState = "critical"
)

// #endregion

// #region network-quality

// NetworkQuality is the coarse reachability classification for the cloud path.
type NetworkQuality string

const (
	NetworkOffline NetworkQuality = "offline"
	NetworkPoor    NetworkQuality = "poor"
	NetworkGood    NetworkQuality = "good"
)

// Reachable reports whether the cloud endpoint is worth attempting.
func (q NetworkQuality) Reachable() bool {
	return q == NetworkPoor || q == NetworkGood
}

// #endregion

// #region context

// Context is a point-in-time snapshot of everything routing depends on.
// Top-level operations take exactly one snapshot and reuse it throughout.
type Context struct {
	BatteryLevel  float32 // [0,1]
	Thermal       ThermalState
	Network       NetworkQuality
	DeviceCapable bool // hardware can run the local model at all
	ModelStatus   model.Status
	Pref          analysis.ExecutionPref
	TakenAt       time.Time
}

// #endregion

// #region sensors

// BatterySensor reports remaining charge in [0,1].
type BatterySensor interface {
	Level() (float32, error)
}

// ThermalSensor reports current thermal pressure.
type ThermalSensor interface {
	State() (ThermalState, error)
}

// NetworkSensor classifies connectivity toward the cloud endpoint.
type NetworkSensor interface {
	Quality() (NetworkQuality, error)
}

// StatusSource exposes the model lifecycle status. *model.Manager satisfies it.
type StatusSource interface {
	Status() model.Status
}

// #endregion
