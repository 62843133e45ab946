package validate

// #region imports
import (
	"context"
	"fmt"
	"log"

	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/analysis"
)

// #endregion

// #region config

// Config holds the annotation thresholds.
type Config struct {
	LowConfidence  float32 // warn when the top confidence sits below this
	HistoryMinConf float32 // both results must be at least this sure to compare
}

// DefaultConfig returns the shipped thresholds.
func DefaultConfig() Config {
	return Config{
		LowConfidence:  0.7,
		HistoryMinConf: 0.5,
	}
}

// #endregion

// #region history

// History resolves a prior analysis for longitudinal comparison.
// A (nil, nil) return means no prior result exists.
type History interface {
	PriorResult(ctx context.Context, requestID string) (*analysis.Result, error)
}

// #endregion

// #region validator

// Validator annotates results with warnings. It never rejects: a result
// that reached this point is the best the engine could produce, and the
// caller decides what a warning means.
type Validator struct {
	cfg     Config
	history History // nil = skip the history rule
}

// New creates a validator. history may be nil.
func New(cfg Config, history History) *Validator {
	return &Validator{cfg: cfg, history: history}
}

// Annotate appends warnings to res in rule order. Lookup failures only
// log: annotation must never fail an otherwise good result.
func (v *Validator) Annotate(ctx context.Context, req analysis.Request, res *analysis.Result) {
	if len(res.Classifications) == 0 {
		return
	}
	top := res.Top()

	if top.Confidence < v.cfg.LowConfidence {
		res.Warnings = append(res.Warnings, analysis.Warning{
			Kind:   analysis.WarningLowConfidence,
			Detail: fmt.Sprintf("top confidence %.2f below %.2f", top.Confidence, v.cfg.LowConfidence),
		})
	}

	if w, flagged := v.checkPlausibility(top, res.Findings); flagged {
		res.Warnings = append(res.Warnings, w)
	}

	if w, flagged := v.checkHistory(ctx, req, top); flagged {
		res.Warnings = append(res.Warnings, w)
	}
}

// #endregion

// #region plausibility

// checkPlausibility flags a malignant top call whose own findings all
// read as harmless: the model is contradicting itself.
func (v *Validator) checkPlausibility(top analysis.Classification, findings []analysis.Finding) (analysis.Warning, bool) {
	if top.Category != analysis.CategoryMalignant || len(findings) == 0 {
		return analysis.Warning{}, false
	}
	for _, f := range findings {
		if f.Severity != analysis.SeverityLow && f.Severity != analysis.SeverityMild {
			return analysis.Warning{}, false
		}
	}
	return analysis.Warning{
		Kind:   analysis.WarningImplausibleCombination,
		Detail: fmt.Sprintf("%s classified malignant but every finding is low or mild", top.Label),
	}, true
}

// #endregion

// #region history-rule

// checkHistory flags a confident category flip against the prior result.
func (v *Validator) checkHistory(ctx context.Context, req analysis.Request, top analysis.Classification) (analysis.Warning, bool) {
	if v.history == nil || req.PriorRequestID == "" {
		return analysis.Warning{}, false
	}
	prior, err := v.history.PriorResult(ctx, req.PriorRequestID)
	if err != nil {
		log.Printf("[validate] prior lookup %s failed: %v (skipping history rule)", req.PriorRequestID, err)
		return analysis.Warning{}, false
	}
	if prior == nil || len(prior.Classifications) == 0 {
		return analysis.Warning{}, false
	}
	priorTop := prior.Top()

	if top.Confidence < v.cfg.HistoryMinConf || priorTop.Confidence < v.cfg.HistoryMinConf {
		return analysis.Warning{}, false
	}
	if top.Category == priorTop.Category {
		return analysis.Warning{}, false
	}
	return analysis.Warning{
		Kind: analysis.WarningInconsistentWithHistory,
		Detail: fmt.Sprintf("category moved %s → %s against prior %s",
			priorTop.Category, top.Category, req.PriorRequestID),
	}, true
}

// #endregion
