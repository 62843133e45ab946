package engine

// #region imports
import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/analysis"
	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/archive"
	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/batch"
	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/change"
	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/config"
	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/emitter"
	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/model"
	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/orchestrator"
	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/plan"
	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/probe"
	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/provider"
	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/provider/cloud"
	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/provider/local"
	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/provider/offline"
	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/stats"
	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/validate"
)

// #endregion

// #region re-exports

// The wire-facing types live in internal packages; the aliases below are the
// public surface callers program against.
type (
	Request       = analysis.Request
	Result        = analysis.Result
	ExecutionPref = analysis.ExecutionPref
	ProviderKind  = analysis.ProviderKind
	BatchItem     = batch.Item
	BatchProgress = batch.Progress
	ChangeReport  = change.Report
	ChangePair    = change.Pair
	ProviderStats = stats.ProviderStats
	ModelStatus   = model.Status
	ModelEvent    = model.Event
	Config        = config.Config
)

const (
	PrefAutomatic   = analysis.PrefAutomatic
	PrefForceLocal  = analysis.PrefForceLocal
	PrefForceCloud  = analysis.PrefForceCloud
	PrefOfflineOnly = analysis.PrefOfflineOnly
)

// Sentinel errors callers can match with errors.Is.
var (
	ErrInvalidRequest = analysis.ErrInvalidRequest
	ErrCancelled      = analysis.ErrCancelled
)

// #endregion

// #region options

// Option customizes engine construction, mainly for tests.
type Option func(*Engine)

// WithProviders replaces the configured execution providers.
func WithProviders(providers ...provider.Provider) Option {
	return func(e *Engine) { e.providers = providers }
}

// WithSensors replaces the device sensors behind context probing.
func WithSensors(battery probe.BatterySensor, thermal probe.ThermalSensor, network probe.NetworkSensor) Option {
	return func(e *Engine) {
		e.battery = battery
		e.thermal = thermal
		e.network = network
	}
}

// WithStatusSource replaces where the probe reads model readiness from.
func WithStatusSource(src probe.StatusSource) Option {
	return func(e *Engine) { e.statusSrc = src }
}

// WithRunner supplies the local runner client, e.g. an in-process fake.
func WithRunner(rc local.RunnerClient) Option {
	return func(e *Engine) { e.runner = rc }
}

// WithLoader replaces the model loader.
func WithLoader(l model.Loader) Option {
	return func(e *Engine) { e.loader = l }
}

// #endregion

// #region engine

// Engine is the inference orchestration facade.
type Engine struct {
	cfg *config.Config

	// injectable seams
	providers []provider.Provider
	battery   probe.BatterySensor
	thermal   probe.ThermalSensor
	network   probe.NetworkSensor
	statusSrc probe.StatusSource
	runner    local.RunnerClient
	loader    model.Loader

	probe      *probe.Probe
	selector   *plan.Selector
	orch       *orchestrator.Orchestrator
	coord      *batch.Coordinator
	detector   *change.Detector
	recorder   *stats.Recorder
	store      *archive.Store
	manager    *model.Manager
	emit       *emitter.Emitter
	stopEvents func()
}

// New assembles an engine from the configuration. A nil cfg runs defaults:
// no local model, no cloud, no persistence, offline heuristic only.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration: %w", err)
	}
	e := &Engine{cfg: cfg, recorder: stats.New()}
	for _, opt := range opts {
		opt(e)
	}

	if cfg.Archive.Path != "" {
		store, err := archive.NewStore(cfg.Archive.Path)
		if err != nil {
			return nil, fmt.Errorf("open archive: %w", err)
		}
		e.store = store
	}

	if e.runner == nil && cfg.Runner.Socket != "" {
		e.runner = local.NewSocketClient(cfg.Runner.Socket)
	}
	if e.loader == nil && e.runner != nil {
		e.loader = local.NewLoader(e.runner)
	}
	if e.loader != nil && cfg.Model.Path != "" {
		e.manager = model.NewManager(e.loader, cfg.Model.Path)
		e.manager.SetLoadTimeout(time.Duration(cfg.Model.LoadTimeoutMS) * time.Millisecond)
		if cfg.Model.Watch {
			if err := e.manager.Watch(); err != nil {
				e.closePartial()
				return nil, fmt.Errorf("watch model: %w", err)
			}
		}
	}

	if len(e.providers) == 0 {
		if e.manager != nil && e.runner != nil {
			e.providers = append(e.providers, local.NewProvider(e.manager, e.runner))
		}
		if cfg.Cloud.BaseURL != "" {
			e.providers = append(e.providers, cloud.NewProvider(cfg.Cloud.BaseURL, cfg.Cloud.ResolveAPIKey()))
		}
		e.providers = append(e.providers, offline.New())
	}

	if e.battery == nil {
		e.battery = probe.HostBattery{}
	}
	if e.thermal == nil {
		e.thermal = probe.HostThermal{}
	}
	if e.network == nil {
		e.network = probe.DialNetwork{Addr: cfg.Probe.ReachabilityAddr}
	}
	if e.statusSrc == nil && e.manager != nil {
		e.statusSrc = e.manager
	}
	e.probe = probe.NewProbe(e.battery, e.thermal, e.network, e.statusSrc, *cfg.Probe.DeviceCapable)

	weights := plan.DefaultWeights()
	weights.BatteryFloor = cfg.Selection.BatteryFloor
	weights.WeakLocalCutoff = cfg.Selection.WeakLocalCutoff
	weights.BiasCap = cfg.Selection.BiasCap
	var bias plan.BiasSource
	if e.store != nil && *cfg.Selection.BiasEnabled {
		bias = e.store
	}
	e.selector = plan.NewSelector(weights, bias)

	var history validate.History
	if e.store != nil {
		history = e.store
	}
	validator := validate.New(validate.Config{
		LowConfidence:  cfg.Validation.LowConfidence,
		HistoryMinConf: cfg.Validation.HistoryMinConf,
	}, history)

	var rec orchestrator.Recorder = e.recorder
	var journal orchestrator.Journal
	if e.store != nil {
		rec = fanRecorder{e.recorder, e.store}
		journal = e.store
	}

	e.orch = orchestrator.New(orchestratorConfig(cfg), e.providers, validator, rec, journal)
	e.coord = batch.NewCoordinator(e.orch, e.selector, cfg.Engine.BatchConcurrency)
	e.detector = change.NewDetector(e.coord, cfg.Engine.ChangeShift)

	if cfg.MQTT.Broker != "" {
		e.emit = emitter.New(cfg.MQTT)
	}
	return e, nil
}

func orchestratorConfig(cfg *config.Config) orchestrator.Config {
	return orchestrator.Config{
		LocalDeadline:   time.Duration(cfg.Engine.LocalDeadlineMS) * time.Millisecond,
		CloudDeadline:   time.Duration(cfg.Engine.CloudDeadlineMS) * time.Millisecond,
		OfflineDeadline: time.Duration(cfg.Engine.OfflineDeadlineMS) * time.Millisecond,
		LowConfidence:   cfg.Engine.LowConfidence,
		GraceWindow:     time.Duration(cfg.Engine.GraceWindowMS) * time.Millisecond,
		ImproveDelta:    cfg.Engine.ImproveDelta,
		HybridRace:      *cfg.Engine.HybridRace,
	}
}

// fanRecorder forwards every attempt to each sink.
type fanRecorder []orchestrator.Recorder

func (f fanRecorder) RecordAttempt(rec analysis.AttemptRecord, top float32) {
	for _, r := range f {
		r.RecordAttempt(rec, top)
	}
}

// #endregion

// #region analyze

// Analyze runs one image through the engine. An empty request ID is assigned.
func (e *Engine) Analyze(ctx context.Context, req Request) (Result, error) {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	snap := e.probe.Snapshot()
	snap.Pref = analysis.NormalizePref(req.Pref)
	p := e.selector.Select(snap)

	res, err := e.orch.Execute(ctx, req, p)
	if err == nil && e.emit != nil {
		_ = e.emit.PublishResult(res)
	}
	return res, err
}

// AnalyzeBatch runs all requests under one device snapshot. The returned
// slice matches the request order; each item carries its own outcome.
func (e *Engine) AnalyzeBatch(ctx context.Context, reqs []Request, onProgress func(BatchProgress)) []BatchItem {
	for i := range reqs {
		if reqs[i].ID == "" {
			reqs[i].ID = uuid.New().String()
		}
	}
	cb := onProgress
	if e.emit != nil {
		cb = func(p BatchProgress) {
			_ = e.emit.PublishBatchProgress(p)
			if onProgress != nil {
				onProgress(p)
			}
		}
	}
	return e.coord.Run(ctx, reqs, e.probe.Snapshot(), cb)
}

// DetectChanges compares two equal-length image sets of the same lesion
// sequence and reports which positions moved.
func (e *Engine) DetectChanges(ctx context.Context, baseline, current []Request) (ChangeReport, error) {
	for i := range baseline {
		if baseline[i].ID == "" {
			baseline[i].ID = uuid.New().String()
		}
	}
	for i := range current {
		if current[i].ID == "" {
			current[i].ID = uuid.New().String()
		}
	}
	return e.detector.Detect(ctx, baseline, current, e.probe.Snapshot())
}

// #endregion

// #region performance

// PerformanceStats returns per-provider attempt aggregates.
func (e *Engine) PerformanceStats() []ProviderStats {
	return e.recorder.Snapshot()
}

// ClearPerformanceData resets the in-memory aggregates.
func (e *Engine) ClearPerformanceData() {
	e.recorder.Clear()
}

// #endregion

// #region model

// ErrNoLocalModel is returned by model operations when no local model is configured.
var ErrNoLocalModel = fmt.Errorf("no local model configured")

// ReloadModel loads the on-device model from scratch.
func (e *Engine) ReloadModel(ctx context.Context) error {
	if e.manager == nil {
		return ErrNoLocalModel
	}
	return e.manager.RequestReload(ctx)
}

// UpdateModel refreshes the on-device model to the current artifact.
func (e *Engine) UpdateModel(ctx context.Context) error {
	if e.manager == nil {
		return ErrNoLocalModel
	}
	return e.manager.RequestUpdate(ctx)
}

// ModelState returns the lifecycle status of the on-device model.
func (e *Engine) ModelState() ModelStatus {
	if e.manager == nil {
		return model.StatusNotLoaded
	}
	return e.manager.Status()
}

// ModelSnapshot returns status, active artifact info, and the last load error.
func (e *Engine) ModelSnapshot() (ModelStatus, model.Info, error) {
	if e.manager == nil {
		return model.StatusNotLoaded, model.Info{}, nil
	}
	return e.manager.Snapshot()
}

// SubscribeModelEvents registers for lifecycle transitions. Without a local
// model the channel is already closed.
func (e *Engine) SubscribeModelEvents() (<-chan ModelEvent, func()) {
	if e.manager == nil {
		ch := make(chan ModelEvent)
		close(ch)
		return ch, func() {}
	}
	return e.manager.Subscribe()
}

// #endregion

// #region events

// ConnectEvents attaches the engine to its configured MQTT broker and starts
// forwarding model lifecycle events. No-op without a broker.
func (e *Engine) ConnectEvents() error {
	if e.emit == nil {
		return nil
	}
	if err := e.emit.Connect(); err != nil {
		return err
	}
	if e.manager != nil && e.stopEvents == nil {
		ch, cancel := e.manager.Subscribe()
		done := make(chan struct{})
		go func() {
			defer close(done)
			for ev := range ch {
				_ = e.emit.PublishModelEvent(ev)
			}
		}()
		e.stopEvents = func() {
			cancel()
			<-done
		}
	}
	return nil
}

// EventStats reports broker publishing counters. ok is false without a broker.
func (e *Engine) EventStats() (emitter.Stats, bool) {
	if e.emit == nil {
		return emitter.Stats{}, false
	}
	return e.emit.Stats(), true
}

// #endregion

// #region close

// Close releases the watcher, runner, journal and broker connection.
func (e *Engine) Close() error {
	if e.stopEvents != nil {
		e.stopEvents()
		e.stopEvents = nil
	}
	if e.emit != nil {
		e.emit.Disconnect()
	}
	return e.closePartial()
}

func (e *Engine) closePartial() error {
	var firstErr error
	if e.manager != nil {
		if err := e.manager.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.runner != nil {
		if err := e.runner.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// #endregion
