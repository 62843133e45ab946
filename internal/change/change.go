package change

// #region imports
import (
	"context"
	"fmt"
	"log"

	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/analysis"
	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/batch"
	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/probe"
)

// #endregion

// #region types

// DefaultShift is the top-confidence movement that counts as a change on its own.
const DefaultShift = 0.2

// Pair compares one image position across the baseline and current sets.
type Pair struct {
	Index         int             `json:"index"`
	Baseline      analysis.Result `json:"baseline"`
	Current       analysis.Result `json:"current"`
	Changed       bool            `json:"changed"`
	CategoryShift bool            `json:"categoryShift"`
	TopShift      float32         `json:"topShift"` // current top confidence minus baseline's
	Score         float32         `json:"score"`    // change magnitude in [0,1]
	Err           error           `json:"-"`
}

// Report is the outcome of one change-detection run.
type Report struct {
	Pairs   []Pair `json:"pairs"`
	Changed int    `json:"changed"`
	Failed  int    `json:"failed"`
}

// Runner analyzes a request set under one shared snapshot. *batch.Coordinator
// satisfies it.
type Runner interface {
	Run(ctx context.Context, reqs []analysis.Request, snap probe.Context, onProgress func(batch.Progress)) []batch.Item
}

// #endregion

// #region detector

// Detector analyzes two image sets of the same lesion sequence and reports
// which positions moved.
type Detector struct {
	runner Runner
	shift  float32
}

// NewDetector wires a detector. shift <= 0 selects the default.
func NewDetector(runner Runner, shift float32) *Detector {
	if shift <= 0 {
		shift = DefaultShift
	}
	return &Detector{runner: runner, shift: shift}
}

// Detect pairs baseline[i] with current[i]. The sets must be the same length.
// Both sets run under the same device snapshot so the comparison is not skewed
// by conditions drifting between them. Per-pair analysis failures are isolated
// into Pair.Err; only a structural problem fails the whole call.
func (d *Detector) Detect(ctx context.Context, baseline, current []analysis.Request, snap probe.Context) (Report, error) {
	if len(baseline) != len(current) {
		return Report{}, fmt.Errorf("%w: baseline has %d images, current has %d",
			analysis.ErrInvalidRequest, len(baseline), len(current))
	}
	n := len(baseline)
	if n == 0 {
		return Report{}, nil
	}

	combined := make([]analysis.Request, 0, n*2)
	combined = append(combined, baseline...)
	combined = append(combined, current...)
	items := d.runner.Run(ctx, combined, snap, nil)

	report := Report{Pairs: make([]Pair, n)}
	for i := 0; i < n; i++ {
		p := Pair{Index: i}
		b, c := items[i], items[n+i]
		switch {
		case b.Err != nil:
			p.Err = fmt.Errorf("baseline image %d: %w", i, b.Err)
		case c.Err != nil:
			p.Err = fmt.Errorf("current image %d: %w", i, c.Err)
		default:
			p.Baseline = b.Result
			p.Current = c.Result
			d.compare(&p)
		}
		if p.Err != nil {
			report.Failed++
		} else if p.Changed {
			report.Changed++
		}
		report.Pairs[i] = p
	}
	log.Printf("[change] %d pairs: %d changed, %d failed", n, report.Changed, report.Failed)
	return report, nil
}

// compare fills the pair's change fields from its two results.
func (d *Detector) compare(p *Pair) {
	bTop, cTop := p.Baseline.Top(), p.Current.Top()
	p.CategoryShift = analysis.CategoryOf(bTop.Label) != analysis.CategoryOf(cTop.Label)
	p.TopShift = cTop.Confidence - bTop.Confidence

	delta := p.TopShift
	if delta < 0 {
		delta = -delta
	}
	p.Changed = p.CategoryShift || delta > d.shift

	score := maxLabelShift(p.Baseline, p.Current)
	if p.CategoryShift {
		score += 0.5
	}
	p.Score = clamp01(score)
}

// #endregion

// #region scoring

// maxLabelShift is the largest per-label confidence movement across the union
// of both classification sets. A label absent from one side counts as zero.
func maxLabelShift(base, cur analysis.Result) float32 {
	bm := confMap(base)
	cm := confMap(cur)
	var top float32
	for label, bc := range bm {
		d := cm[label] - bc
		if d < 0 {
			d = -d
		}
		if d > top {
			top = d
		}
	}
	for label, cc := range cm {
		if _, seen := bm[label]; seen {
			continue
		}
		if cc > top {
			top = cc
		}
	}
	return top
}

func confMap(res analysis.Result) map[analysis.Label]float32 {
	m := make(map[analysis.Label]float32, len(res.Classifications))
	for _, c := range res.Classifications {
		m[c.Label] = c.Confidence
	}
	return m
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
