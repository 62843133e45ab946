package orchestrator

// #region imports
import (
	"context"
	"log"
	"time"

	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/analysis"
	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/plan"
)

// #endregion

// #region race

// raceOutcome is what one side of a hybrid race reports back.
type raceOutcome struct {
	att    analysis.AttemptRecord
	scores analysis.Scores
	err    error
}

// executeHybrid races the first two providers of the plan. The first usable
// result becomes provisional; the slower side replaces it only when it lands
// inside the grace window with a clear confidence improvement. If the race
// produces nothing usable, execution falls through to the rest of the chain.
func (o *Orchestrator) executeHybrid(ctx context.Context, req analysis.Request, p plan.Plan, start time.Time) (analysis.Result, error) {
	lead, rival := p.Providers[0], p.Providers[1]
	tail := p.Providers[2:]

	raceCtx, cancelRace := context.WithCancel(ctx)
	defer cancelRace()

	ch := make(chan raceOutcome, 2)
	run := func(kind analysis.ProviderKind) {
		att, scores, err := o.attempt(raceCtx, o.providers[kind], req)
		ch <- raceOutcome{att: att, scores: scores, err: err}
	}
	go run(lead)
	go run(rival)
	log.Printf("[orch] hybrid race %s vs %s (grace %s)", lead, rival, o.cfg.GraceWindow)

	var attempts []analysis.AttemptRecord
	take := func(r raceOutcome) float32 {
		top := float32(-1)
		if r.err == nil {
			top = topConfidence(r.scores)
		}
		o.record(r.att, top)
		attempts = append(attempts, r.att)
		return top
	}

	var first raceOutcome
	select {
	case first = <-ch:
	case <-ctx.Done():
		cancelRace()
		take(<-ch)
		take(<-ch)
		return analysis.Result{}, cancelledErr(ctx)
	}
	firstIdx := len(attempts)
	firstTop := take(first)

	if first.err == nil {
		winner := candidate{kind: first.att.Provider, scores: first.scores, top: firstTop}
		winnerIdx := firstIdx

		grace := time.NewTimer(o.cfg.GraceWindow)
		defer grace.Stop()
		select {
		case second := <-ch:
			secondIdx := len(attempts)
			secondTop := take(second)
			if second.err == nil && secondTop > firstTop+o.cfg.ImproveDelta {
				log.Printf("[orch] hybrid: %s improves %.2f → %.2f, replacing %s",
					second.att.Provider, firstTop, secondTop, winner.kind)
				winner = candidate{kind: second.att.Provider, scores: second.scores, top: secondTop}
				winnerIdx = secondIdx
			} else {
				log.Printf("[orch] hybrid: keeping %s at %.2f", winner.kind, winner.top)
			}
		case <-grace.C:
			log.Printf("[orch] hybrid: grace expired, keeping %s at %.2f", winner.kind, winner.top)
			cancelRace()
			take(<-ch)
		case <-ctx.Done():
			cancelRace()
			take(<-ch)
			return analysis.Result{}, cancelledErr(ctx)
		}

		if winner.top < o.cfg.LowConfidence && len(tail) > 0 {
			attempts[winnerIdx].FailureKind = analysis.FailureLowConfidence
			log.Printf("[orch] hybrid winner %s low confidence %.2f → second opinion", winner.kind, winner.top)
			return o.executeChain(ctx, req, tail, start, attempts, &winner)
		}
		return o.finalize(ctx, req, &winner, attempts, start)
	}

	// The fast side failed. Wait the slow side out in full.
	if ctx.Err() != nil {
		cancelRace()
		take(<-ch)
		return analysis.Result{}, cancelledErr(ctx)
	}
	var second raceOutcome
	select {
	case second = <-ch:
	case <-ctx.Done():
		cancelRace()
		take(<-ch)
		return analysis.Result{}, cancelledErr(ctx)
	}
	secondIdx := len(attempts)
	secondTop := take(second)
	if ctx.Err() != nil {
		return analysis.Result{}, cancelledErr(ctx)
	}

	if second.err == nil {
		winner := candidate{kind: second.att.Provider, scores: second.scores, top: secondTop}
		if secondTop < o.cfg.LowConfidence && len(tail) > 0 {
			attempts[secondIdx].FailureKind = analysis.FailureLowConfidence
			log.Printf("[orch] hybrid survivor %s low confidence %.2f → second opinion", winner.kind, secondTop)
			return o.executeChain(ctx, req, tail, start, attempts, &winner)
		}
		return o.finalize(ctx, req, &winner, attempts, start)
	}

	log.Printf("[orch] hybrid: both sides failed, falling back to %v", tail)
	return o.executeChain(ctx, req, tail, start, attempts, nil)
}

// #endregion
