package orchestrator

// #region imports
import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/analysis"
	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/plan"
	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/provider"
)

// #endregion

// #region orchestrator

// Orchestrator drives one execution plan to a final result.
type Orchestrator struct {
	cfg       Config
	providers map[analysis.ProviderKind]provider.Provider
	validator Annotator
	recorder  Recorder
	journal   Journal
}

// New wires an orchestrator. validator, recorder and journal may each be nil.
func New(cfg Config, providers []provider.Provider, validator Annotator, recorder Recorder, journal Journal) *Orchestrator {
	byKind := make(map[analysis.ProviderKind]provider.Provider, len(providers))
	for _, p := range providers {
		byKind[p.Kind()] = p
	}
	return &Orchestrator{
		cfg:       cfg,
		providers: byKind,
		validator: validator,
		recorder:  recorder,
		journal:   journal,
	}
}

// #endregion

// #region execute

// Execute runs req against the plan's provider chain and returns the final result.
func (o *Orchestrator) Execute(ctx context.Context, req analysis.Request, p plan.Plan) (analysis.Result, error) {
	req.Pref = analysis.NormalizePref(req.Pref)
	if err := analysis.ValidateRequest(req); err != nil {
		return analysis.Result{}, err
	}
	start := time.Now()
	if o.cfg.HybridRace && p.Hybrid && len(p.Providers) >= 2 &&
		o.has(p.Providers[0]) && o.has(p.Providers[1]) {
		return o.executeHybrid(ctx, req, p, start)
	}
	return o.executeChain(ctx, req, p.Providers, start, nil, nil)
}

// executeChain walks the chain in order. attempts and held carry state over
// from a hybrid race that fell through to the tail.
func (o *Orchestrator) executeChain(ctx context.Context, req analysis.Request, chain []analysis.ProviderKind, start time.Time, attempts []analysis.AttemptRecord, held *candidate) (analysis.Result, error) {
	lastKind := lastFailureKind(attempts)

	for i, kind := range chain {
		if ctx.Err() != nil {
			return analysis.Result{}, cancelledErr(ctx)
		}
		prov, ok := o.providers[kind]
		if !ok {
			log.Printf("[orch] no provider wired for %s, skipping", kind)
			continue
		}

		att, scores, err := o.attempt(ctx, prov, req)
		if err != nil {
			o.record(att, -1)
			attempts = append(attempts, att)
			lastKind = att.FailureKind
			if att.FailureKind == analysis.FailureCancelled {
				return analysis.Result{}, cancelledErr(ctx)
			}
			log.Printf("[orch] %s failed (%s): %v", kind, att.FailureKind, err)
			continue
		}

		top := topConfidence(scores)
		if top < o.cfg.LowConfidence && i < len(chain)-1 {
			// Hold the result and let the next provider weigh in.
			att.FailureKind = analysis.FailureLowConfidence
			o.record(att, top)
			attempts = append(attempts, att)
			lastKind = analysis.FailureLowConfidence
			log.Printf("[orch] %s low confidence %.2f → second opinion", kind, top)
			if held == nil || top > held.top {
				held = &candidate{kind: kind, scores: scores, top: top}
			}
			continue
		}

		o.record(att, top)
		attempts = append(attempts, att)
		winner := &candidate{kind: kind, scores: scores, top: top}
		if held != nil && held.top > winner.top {
			winner = held
		}
		return o.finalize(ctx, req, winner, attempts, start)
	}

	if held != nil {
		return o.finalize(ctx, req, held, attempts, start)
	}
	return analysis.Result{}, &analysis.AllProvidersFailedError{LastKind: lastKind, Attempts: len(attempts)}
}

// #endregion

// #region attempt

// attempt runs one provider under its deadline. It does not record.
func (o *Orchestrator) attempt(ctx context.Context, prov provider.Provider, req analysis.Request) (analysis.AttemptRecord, analysis.Scores, error) {
	actx, cancel := context.WithTimeout(ctx, o.deadlineFor(prov.Kind()))
	defer cancel()

	started := time.Now()
	scores, err := prov.Analyze(actx, req)
	att := analysis.AttemptRecord{
		Provider:  prov.Kind(),
		StartedAt: started,
		Duration:  time.Since(started),
	}
	if err == nil && len(scores.Labels) == 0 {
		err = fmt.Errorf("provider %s returned no scores", prov.Kind())
	}
	if err != nil {
		att.FailureKind = provider.FailureKindOf(err)
		att.Err = err.Error()
		return att, analysis.Scores{}, err
	}
	att.FailureKind = analysis.FailureNone
	return att, scores, nil
}

// #endregion

// #region finalize

// finalize builds the result, annotates it, and hands it to stats and the journal.
func (o *Orchestrator) finalize(ctx context.Context, req analysis.Request, winner *candidate, attempts []analysis.AttemptRecord, start time.Time) (analysis.Result, error) {
	res, err := analysis.BuildResult(req.ID, winner.scores, winner.kind)
	if err != nil {
		return analysis.Result{}, err
	}
	res.Provenance.Attempts = attempts
	res.Provenance.TotalDuration = time.Since(start)
	res.Provenance.CompletedAt = time.Now()

	if o.validator != nil {
		o.validator.Annotate(ctx, req, &res)
	}
	if o.journal != nil {
		if err := o.journal.SaveResult(ctx, res); err != nil {
			log.Printf("[orch] journal save %s failed: %v", req.ID, err)
		}
	}
	top := res.Top()
	log.Printf("[orch] %s done: producedBy=%s top=%s %.2f attempts=%d warnings=%d",
		req.ID, res.Provenance.ProducedBy, top.Label, top.Confidence, len(attempts), len(res.Warnings))
	return res, nil
}

// #endregion

// #region helpers

func (o *Orchestrator) has(kind analysis.ProviderKind) bool {
	_, ok := o.providers[kind]
	return ok
}

func (o *Orchestrator) record(att analysis.AttemptRecord, top float32) {
	if o.recorder != nil {
		o.recorder.RecordAttempt(att, top)
	}
}

func (o *Orchestrator) deadlineFor(kind analysis.ProviderKind) time.Duration {
	switch kind {
	case analysis.ProviderLocal:
		return o.cfg.LocalDeadline
	case analysis.ProviderCloud:
		return o.cfg.CloudDeadline
	default:
		return o.cfg.OfflineDeadline
	}
}

// topConfidence returns the highest label confidence, or -1 for empty scores.
func topConfidence(s analysis.Scores) float32 {
	top := float32(-1)
	for _, c := range s.Labels {
		if c > top {
			top = c
		}
	}
	return top
}

func lastFailureKind(attempts []analysis.AttemptRecord) analysis.FailureKind {
	kind := analysis.FailureUnknown
	for _, a := range attempts {
		if a.FailureKind != analysis.FailureNone {
			kind = a.FailureKind
		}
	}
	return kind
}

func cancelledErr(ctx context.Context) error {
	return fmt.Errorf("%w: %v", analysis.ErrCancelled, ctx.Err())
}

// #endregion
