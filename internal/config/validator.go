package config

import (
	"fmt"
)

// boolDefault fills a *bool that the file left unset.
func boolDefault(v **bool, def bool) {
	if *v == nil {
		b := def
		*v = &b
	}
}

// Validate checks the configuration and fills defaults for unset fields.
func Validate(cfg *Config) error {
	// Engine
	if cfg.Engine.LocalDeadlineMS == 0 {
		cfg.Engine.LocalDeadlineMS = 5000
	}
	if cfg.Engine.CloudDeadlineMS == 0 {
		cfg.Engine.CloudDeadlineMS = 10000
	}
	if cfg.Engine.OfflineDeadlineMS == 0 {
		cfg.Engine.OfflineDeadlineMS = 1000
	}
	if cfg.Engine.LocalDeadlineMS < 0 || cfg.Engine.CloudDeadlineMS < 0 || cfg.Engine.OfflineDeadlineMS < 0 {
		return fmt.Errorf("engine deadlines must be positive")
	}
	if cfg.Engine.LowConfidence == 0 {
		cfg.Engine.LowConfidence = 0.3
	}
	if cfg.Engine.LowConfidence < 0 || cfg.Engine.LowConfidence >= 1 {
		return fmt.Errorf("engine.low_confidence must be in [0, 1)")
	}
	if cfg.Engine.GraceWindowMS == 0 {
		cfg.Engine.GraceWindowMS = 1500
	}
	if cfg.Engine.ImproveDelta == 0 {
		cfg.Engine.ImproveDelta = 0.1
	}
	if cfg.Engine.ImproveDelta < 0 || cfg.Engine.ImproveDelta >= 1 {
		return fmt.Errorf("engine.improve_delta must be in [0, 1)")
	}
	boolDefault(&cfg.Engine.HybridRace, true)
	if cfg.Engine.BatchConcurrency == 0 {
		cfg.Engine.BatchConcurrency = 3
	}
	if cfg.Engine.BatchConcurrency < 1 {
		return fmt.Errorf("engine.batch_concurrency must be >= 1")
	}
	if cfg.Engine.ChangeShift == 0 {
		cfg.Engine.ChangeShift = 0.2
	}
	if cfg.Engine.ChangeShift <= 0 || cfg.Engine.ChangeShift >= 1 {
		return fmt.Errorf("engine.change_shift must be in (0, 1)")
	}

	// Model
	if cfg.Model.LoadTimeoutMS == 0 {
		cfg.Model.LoadTimeoutMS = 120000
	}
	if cfg.Model.Watch && cfg.Model.Path == "" {
		return fmt.Errorf("model.watch requires model.path")
	}

	// Probe
	if cfg.Probe.ReachabilityAddr == "" {
		cfg.Probe.ReachabilityAddr = "1.1.1.1:443"
	}
	boolDefault(&cfg.Probe.DeviceCapable, true)

	// Selection
	boolDefault(&cfg.Selection.BiasEnabled, true)
	if cfg.Selection.BatteryFloor == 0 {
		cfg.Selection.BatteryFloor = 0.3
	}
	if cfg.Selection.WeakLocalCutoff == 0 {
		cfg.Selection.WeakLocalCutoff = 0.4
	}
	if cfg.Selection.BiasCap == 0 {
		cfg.Selection.BiasCap = 0.1
	}

	// Validation
	if cfg.Validation.LowConfidence == 0 {
		cfg.Validation.LowConfidence = 0.7
	}
	if cfg.Validation.HistoryMinConf == 0 {
		cfg.Validation.HistoryMinConf = 0.5
	}

	// MQTT
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "panderm"
	}
	if cfg.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
	}
	if cfg.MQTT.Broker != "" && cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "panderm-engine"
	}

	// Server
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.RequestTimeoutMS == 0 {
		cfg.Server.RequestTimeoutMS = 30000
	}
	if cfg.Server.MaxImageBytes == 0 {
		cfg.Server.MaxImageBytes = 10 << 20
	}
	return nil
}
