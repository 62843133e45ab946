package orchestrator

// #region imports
import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/analysis"
	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/plan"
	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/provider"
)

// #endregion

// #region stubs

type stubProvider struct {
	kind   analysis.ProviderKind
	scores analysis.Scores
	err    error
	delay  time.Duration
	calls  atomic.Int32
}

func (s *stubProvider) Kind() analysis.ProviderKind { return s.kind }

func (s *stubProvider) Analyze(ctx context.Context, _ analysis.Request) (analysis.Scores, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return analysis.Scores{}, ctx.Err()
		}
	}
	if s.err != nil {
		return analysis.Scores{}, s.err
	}
	return s.scores, nil
}

type captureRecorder struct {
	mu   sync.Mutex
	recs []analysis.AttemptRecord
	tops []float32
}

func (c *captureRecorder) RecordAttempt(rec analysis.AttemptRecord, top float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recs = append(c.recs, rec)
	c.tops = append(c.tops, top)
}

func (c *captureRecorder) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.recs)
}

type captureJournal struct {
	mu    sync.Mutex
	saved []analysis.Result
	err   error
}

func (c *captureJournal) SaveResult(_ context.Context, res analysis.Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saved = append(c.saved, res)
	return c.err
}

type stampAnnotator struct{}

func (stampAnnotator) Annotate(_ context.Context, _ analysis.Request, res *analysis.Result) {
	res.Warnings = append(res.Warnings, analysis.Warning{
		Kind:   analysis.WarningLowConfidence,
		Detail: "stamped",
	})
}

// #endregion

// #region helpers

func testImage() []byte {
	img := make([]byte, 256)
	copy(img, []byte{0xFF, 0xD8, 0xFF, 0xE0})
	return img
}

func testRequest() analysis.Request {
	return analysis.Request{
		ID:         "req-1",
		Image:      testImage(),
		CapturedAt: time.Now(),
		Pref:       analysis.PrefAutomatic,
	}
}

func scoresOf(label analysis.Label, conf float32) analysis.Scores {
	return analysis.Scores{
		Labels:       map[analysis.Label]float32{label: conf},
		RiskScore:    -1,
		ModelVersion: "test/1",
	}
}

func chainPlan(kinds ...analysis.ProviderKind) plan.Plan {
	return plan.Plan{Providers: kinds}
}

func kindsOf(attempts []analysis.AttemptRecord) []analysis.FailureKind {
	kinds := make([]analysis.FailureKind, len(attempts))
	for i, a := range attempts {
		kinds[i] = a.FailureKind
	}
	return kinds
}

// #endregion

// #region sequential

func TestExecuteFirstProviderWins(t *testing.T) {
	local := &stubProvider{kind: analysis.ProviderLocal, scores: scoresOf(analysis.LabelNevus, 0.9)}
	offline := &stubProvider{kind: analysis.ProviderOffline, scores: scoresOf(analysis.LabelNevus, 0.3)}
	rec := &captureRecorder{}
	jnl := &captureJournal{}
	o := New(DefaultConfig(), []provider.Provider{local, offline}, nil, rec, jnl)

	res, err := o.Execute(context.Background(), testRequest(), chainPlan(analysis.ProviderLocal, analysis.ProviderOffline))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Provenance.ProducedBy != analysis.ProviderLocal {
		t.Errorf("producedBy = %s, want %s", res.Provenance.ProducedBy, analysis.ProviderLocal)
	}
	if len(res.Provenance.Attempts) != 1 {
		t.Fatalf("attempts = %d, want 1", len(res.Provenance.Attempts))
	}
	if res.Provenance.Attempts[0].FailureKind != analysis.FailureNone {
		t.Errorf("attempt kind = %s, want %s", res.Provenance.Attempts[0].FailureKind, analysis.FailureNone)
	}
	if res.Provenance.TotalDuration <= 0 || res.Provenance.CompletedAt.IsZero() {
		t.Errorf("provenance timing not filled: %+v", res.Provenance)
	}
	if offline.calls.Load() != 0 {
		t.Errorf("offline called %d times, want 0", offline.calls.Load())
	}
	if len(jnl.saved) != 1 || jnl.saved[0].RequestID != "req-1" {
		t.Errorf("journal saved = %+v, want one result for req-1", jnl.saved)
	}
	if rec.count() != 1 || rec.tops[0] != 0.9 {
		t.Errorf("recorder got %d attempts tops=%v", rec.count(), rec.tops)
	}
}

func TestExecuteFallsBackOnFailure(t *testing.T) {
	local := &stubProvider{kind: analysis.ProviderLocal, err: provider.ErrModelUnavailable}
	offline := &stubProvider{kind: analysis.ProviderOffline, scores: scoresOf(analysis.LabelNevus, 0.35)}
	o := New(DefaultConfig(), []provider.Provider{local, offline}, nil, nil, nil)

	res, err := o.Execute(context.Background(), testRequest(), chainPlan(analysis.ProviderLocal, analysis.ProviderOffline))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Provenance.ProducedBy != analysis.ProviderOffline {
		t.Errorf("producedBy = %s, want %s", res.Provenance.ProducedBy, analysis.ProviderOffline)
	}
	want := []analysis.FailureKind{analysis.FailureModelUnavailable, analysis.FailureNone}
	got := kindsOf(res.Provenance.Attempts)
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("attempt kinds = %v, want %v", got, want)
	}
}

func TestExecuteTimeoutFallsBack(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LocalDeadline = 50 * time.Millisecond
	local := &stubProvider{kind: analysis.ProviderLocal, delay: 500 * time.Millisecond, scores: scoresOf(analysis.LabelNevus, 0.9)}
	offline := &stubProvider{kind: analysis.ProviderOffline, scores: scoresOf(analysis.LabelNevus, 0.35)}
	o := New(cfg, []provider.Provider{local, offline}, nil, nil, nil)

	res, err := o.Execute(context.Background(), testRequest(), chainPlan(analysis.ProviderLocal, analysis.ProviderOffline))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Provenance.ProducedBy != analysis.ProviderOffline {
		t.Errorf("producedBy = %s, want %s", res.Provenance.ProducedBy, analysis.ProviderOffline)
	}
	if res.Provenance.Attempts[0].FailureKind != analysis.FailureTimeout {
		t.Errorf("first attempt kind = %s, want %s", res.Provenance.Attempts[0].FailureKind, analysis.FailureTimeout)
	}
}

func TestExecuteLowConfidenceSecondOpinion(t *testing.T) {
	tests := []struct {
		name       string
		offlineTop float32
		wantBy     analysis.ProviderKind
	}{
		{"second opinion higher wins", 0.38, analysis.ProviderOffline},
		{"held result stays when higher", 0.12, analysis.ProviderLocal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local := &stubProvider{kind: analysis.ProviderLocal, scores: scoresOf(analysis.LabelNevus, 0.2)}
			offline := &stubProvider{kind: analysis.ProviderOffline, scores: scoresOf(analysis.LabelSeborrheicKeratosis, tt.offlineTop)}
			o := New(DefaultConfig(), []provider.Provider{local, offline}, nil, nil, nil)

			res, err := o.Execute(context.Background(), testRequest(), chainPlan(analysis.ProviderLocal, analysis.ProviderOffline))
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if res.Provenance.ProducedBy != tt.wantBy {
				t.Errorf("producedBy = %s, want %s", res.Provenance.ProducedBy, tt.wantBy)
			}
			if len(res.Provenance.Attempts) != 2 {
				t.Fatalf("attempts = %d, want 2", len(res.Provenance.Attempts))
			}
			if res.Provenance.Attempts[0].FailureKind != analysis.FailureLowConfidence {
				t.Errorf("held attempt kind = %s, want %s",
					res.Provenance.Attempts[0].FailureKind, analysis.FailureLowConfidence)
			}
		})
	}
}

func TestExecuteAllProvidersFail(t *testing.T) {
	local := &stubProvider{kind: analysis.ProviderLocal, err: provider.ErrTransport}
	cloud := &stubProvider{kind: analysis.ProviderCloud, err: provider.ErrModelUnavailable}
	offline := &stubProvider{kind: analysis.ProviderOffline, err: errors.New("boom")}
	rec := &captureRecorder{}
	o := New(DefaultConfig(), []provider.Provider{local, cloud, offline}, nil, rec, nil)

	_, err := o.Execute(context.Background(), testRequest(),
		chainPlan(analysis.ProviderLocal, analysis.ProviderCloud, analysis.ProviderOffline))
	var all *analysis.AllProvidersFailedError
	if !errors.As(err, &all) {
		t.Fatalf("err = %v, want AllProvidersFailedError", err)
	}
	if all.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", all.Attempts)
	}
	if all.LastKind != analysis.FailureUnknown {
		t.Errorf("LastKind = %s, want %s", all.LastKind, analysis.FailureUnknown)
	}
	if rec.count() != 3 {
		t.Errorf("recorder got %d attempts, want 3", rec.count())
	}
}

func TestExecuteRejectsInvalidRequest(t *testing.T) {
	local := &stubProvider{kind: analysis.ProviderLocal, scores: scoresOf(analysis.LabelNevus, 0.9)}
	rec := &captureRecorder{}
	o := New(DefaultConfig(), []provider.Provider{local}, nil, rec, nil)

	req := testRequest()
	req.Image = []byte{0x01, 0x02}
	_, err := o.Execute(context.Background(), req, chainPlan(analysis.ProviderLocal))
	if !errors.Is(err, analysis.ErrInvalidRequest) {
		t.Fatalf("err = %v, want ErrInvalidRequest", err)
	}
	if local.calls.Load() != 0 {
		t.Errorf("provider called %d times on invalid request", local.calls.Load())
	}
	if rec.count() != 0 {
		t.Errorf("recorder got %d attempts on invalid request", rec.count())
	}
}

func TestExecuteCancelledMidChain(t *testing.T) {
	local := &stubProvider{kind: analysis.ProviderLocal, delay: 500 * time.Millisecond, scores: scoresOf(analysis.LabelNevus, 0.9)}
	offline := &stubProvider{kind: analysis.ProviderOffline, scores: scoresOf(analysis.LabelNevus, 0.35)}
	rec := &captureRecorder{}
	o := New(DefaultConfig(), []provider.Provider{local, offline}, nil, rec, nil)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)
	_, err := o.Execute(ctx, testRequest(), chainPlan(analysis.ProviderLocal, analysis.ProviderOffline))
	if !errors.Is(err, analysis.ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
	if offline.calls.Load() != 0 {
		t.Errorf("offline ran after cancellation")
	}
	if rec.count() != 1 || rec.recs[0].FailureKind != analysis.FailureCancelled {
		t.Errorf("recorder = %+v, want one cancelled attempt", rec.recs)
	}
}

func TestExecuteSkipsUnwiredProvider(t *testing.T) {
	offline := &stubProvider{kind: analysis.ProviderOffline, scores: scoresOf(analysis.LabelNevus, 0.35)}
	o := New(DefaultConfig(), []provider.Provider{offline}, nil, nil, nil)

	res, err := o.Execute(context.Background(), testRequest(), chainPlan(analysis.ProviderCloud, analysis.ProviderOffline))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Provenance.ProducedBy != analysis.ProviderOffline {
		t.Errorf("producedBy = %s, want %s", res.Provenance.ProducedBy, analysis.ProviderOffline)
	}
	if len(res.Provenance.Attempts) != 1 {
		t.Errorf("attempts = %d, want 1", len(res.Provenance.Attempts))
	}
}

func TestExecuteEmptyScoresTreatedAsFailure(t *testing.T) {
	local := &stubProvider{kind: analysis.ProviderLocal, scores: analysis.Scores{}}
	offline := &stubProvider{kind: analysis.ProviderOffline, scores: scoresOf(analysis.LabelNevus, 0.35)}
	o := New(DefaultConfig(), []provider.Provider{local, offline}, nil, nil, nil)

	res, err := o.Execute(context.Background(), testRequest(), chainPlan(analysis.ProviderLocal, analysis.ProviderOffline))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Provenance.ProducedBy != analysis.ProviderOffline {
		t.Errorf("producedBy = %s, want %s", res.Provenance.ProducedBy, analysis.ProviderOffline)
	}
	if res.Provenance.Attempts[0].FailureKind != analysis.FailureUnknown {
		t.Errorf("first attempt kind = %s, want %s", res.Provenance.Attempts[0].FailureKind, analysis.FailureUnknown)
	}
}

func TestExecuteJournalFailureDoesNotFailResult(t *testing.T) {
	local := &stubProvider{kind: analysis.ProviderLocal, scores: scoresOf(analysis.LabelNevus, 0.9)}
	jnl := &captureJournal{err: errors.New("disk full")}
	o := New(DefaultConfig(), []provider.Provider{local}, nil, nil, jnl)

	res, err := o.Execute(context.Background(), testRequest(), chainPlan(analysis.ProviderLocal))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Top().Label != analysis.LabelNevus {
		t.Errorf("top = %s, want %s", res.Top().Label, analysis.LabelNevus)
	}
}

func TestExecuteAnnotatorRuns(t *testing.T) {
	local := &stubProvider{kind: analysis.ProviderLocal, scores: scoresOf(analysis.LabelNevus, 0.9)}
	o := New(DefaultConfig(), []provider.Provider{local}, stampAnnotator{}, nil, nil)

	res, err := o.Execute(context.Background(), testRequest(), chainPlan(analysis.ProviderLocal))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Detail != "stamped" {
		t.Errorf("warnings = %+v, want the annotator stamp", res.Warnings)
	}
}

// #endregion
