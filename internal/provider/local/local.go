package local

// #region imports
import (
	"context"
	"fmt"

	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/analysis"
	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/model"
	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/provider"
)

// #endregion

// #region status-source

// StatusSource exposes the model lifecycle status. *model.Manager satisfies it.
type StatusSource interface {
	Status() model.Status
}

// #endregion

// #region provider

// Provider runs inference on-device through the runner process, gated on
// the lifecycle manager so calls fail fast while no model is usable.
type Provider struct {
	status StatusSource
	runner RunnerClient
}

// NewProvider wires the lifecycle gate and the runner client.
func NewProvider(status StatusSource, runner RunnerClient) *Provider {
	return &Provider{status: status, runner: runner}
}

func (p *Provider) Kind() analysis.ProviderKind {
	return analysis.ProviderLocal
}

// Analyze runs the active model over the request image.
func (p *Provider) Analyze(ctx context.Context, req analysis.Request) (analysis.Scores, error) {
	if st := p.status.Status(); !st.Ready() {
		return analysis.Scores{}, fmt.Errorf("%w: model status %s", provider.ErrModelUnavailable, st)
	}
	return p.runner.Infer(ctx, req.Image)
}

// #endregion

// #region loader

// Loader adapts the runner client to the lifecycle manager: loads and
// updates execute inside the runner process that serves inference.
type Loader struct {
	runner RunnerClient
}

// NewLoader returns a model.Loader backed by the runner.
func NewLoader(runner RunnerClient) *Loader {
	return &Loader{runner: runner}
}

func (l *Loader) Load(ctx context.Context, path string) (model.Info, error) {
	info, err := l.runner.Load(ctx, path)
	if err != nil {
		return model.Info{}, err
	}
	return model.Info{Version: info.Version, Labels: info.Labels}, nil
}

func (l *Loader) Update(ctx context.Context, path string) (model.Info, error) {
	info, err := l.runner.Update(ctx, path)
	if err != nil {
		return model.Info{}, err
	}
	return model.Info{Version: info.Version, Labels: info.Labels}, nil
}

// #endregion
