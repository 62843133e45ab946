package archive

// #region imports
import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/analysis"
)

// #endregion

// #region helpers

func tempStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleResult(requestID string, label analysis.Label, conf float32) analysis.Result {
	now := time.Now()
	return analysis.Result{
		RequestID: requestID,
		Classifications: []analysis.Classification{
			{Label: label, Category: analysis.CategoryOf(label), Confidence: conf},
		},
		Findings: []analysis.Finding{
			{Label: label, Severity: analysis.SeverityModerate, Detail: "sample"},
		},
		Recommendation: analysis.Recommendation{Action: analysis.RecommendMonitor, Text: "monitor"},
		RiskScore:      0.2,
		Provenance: analysis.Provenance{
			ProducedBy:   analysis.ProviderLocal,
			ModelVersion: "panderm-lite/3",
			Attempts: []analysis.AttemptRecord{
				{Provider: analysis.ProviderLocal, StartedAt: now, Duration: 80 * time.Millisecond},
			},
			TotalDuration: 90 * time.Millisecond,
			CompletedAt:   now,
		},
	}
}

func near(a, b, eps float32) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= eps
}

// #endregion

// #region journal

func TestSaveAndPriorResult(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	if err := s.SaveResult(ctx, sampleResult("req-1", analysis.LabelNevus, 0.82)); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	prior, err := s.PriorResult(ctx, "req-1")
	if err != nil {
		t.Fatalf("PriorResult: %v", err)
	}
	if prior == nil {
		t.Fatal("expected a stored prior")
	}
	top := prior.Top()
	if top.Label != analysis.LabelNevus || !near(top.Confidence, 0.82, 0.001) {
		t.Errorf("top = %+v, want nevus at 0.82", top)
	}
	if prior.Provenance.ProducedBy != analysis.ProviderLocal {
		t.Errorf("producedBy = %s, want local", prior.Provenance.ProducedBy)
	}
}

func TestPriorResultMissing(t *testing.T) {
	s := tempStore(t)
	prior, err := s.PriorResult(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("PriorResult: %v", err)
	}
	if prior != nil {
		t.Errorf("prior = %+v, want nil for unknown request", prior)
	}
}

func TestPriorResultReturnsNewest(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	if err := s.SaveResult(ctx, sampleResult("req-1", analysis.LabelNevus, 0.5)); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	if err := s.SaveResult(ctx, sampleResult("req-1", analysis.LabelNevus, 0.9)); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	prior, err := s.PriorResult(ctx, "req-1")
	if err != nil {
		t.Fatalf("PriorResult: %v", err)
	}
	if prior == nil || !near(prior.Top().Confidence, 0.9, 0.001) {
		t.Errorf("prior = %+v, want the newer result at 0.9", prior)
	}
}

func TestRecentOrderAndLimit(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	for i, id := range []string{"req-a", "req-b", "req-c"} {
		if err := s.SaveResult(ctx, sampleResult(id, analysis.LabelNevus, 0.5+float32(i)*0.1)); err != nil {
			t.Fatalf("SaveResult %s: %v", id, err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	entries, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].RequestID != "req-c" || entries[1].RequestID != "req-b" {
		t.Errorf("order = %s, %s, want req-c then req-b", entries[0].RequestID, entries[1].RequestID)
	}
	if entries[0].TopLabel != analysis.LabelNevus || entries[0].Attempts != 1 {
		t.Errorf("entry = %+v, want derived columns filled", entries[0])
	}
}

// #endregion

// #region outcomes

func attempt(kind analysis.ProviderKind, failure analysis.FailureKind, ms int) analysis.AttemptRecord {
	return analysis.AttemptRecord{
		Provider:    kind,
		StartedAt:   time.Now(),
		Duration:    time.Duration(ms) * time.Millisecond,
		FailureKind: failure,
	}
}

func TestOutcomeSummary(t *testing.T) {
	s := tempStore(t)

	s.RecordAttempt(attempt(analysis.ProviderLocal, analysis.FailureNone, 80), 0.8)
	s.RecordAttempt(attempt(analysis.ProviderLocal, analysis.FailureNone, 120), 0.9)
	s.RecordAttempt(attempt(analysis.ProviderLocal, analysis.FailureNone, 100), 0.7)
	s.RecordAttempt(attempt(analysis.ProviderCloud, analysis.FailureTransport, 300), -1)

	rows, err := s.OutcomeSummary(context.Background())
	if err != nil {
		t.Fatalf("OutcomeSummary: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].Provider != analysis.ProviderCloud || rows[1].Provider != analysis.ProviderLocal {
		t.Fatalf("order = %s, %s, want cloud then local", rows[0].Provider, rows[1].Provider)
	}
	local := rows[1]
	if local.Attempts != 3 || local.Successes != 3 {
		t.Errorf("local = %+v, want 3 attempts, 3 successes", local)
	}
	if !near(local.AvgConfidence, 0.8, 0.01) {
		t.Errorf("local avg confidence = %.2f, want 0.80", local.AvgConfidence)
	}
	cloud := rows[0]
	if cloud.Attempts != 1 || cloud.Successes != 0 {
		t.Errorf("cloud = %+v, want 1 attempt, 0 successes", cloud)
	}
}

// #endregion

// #region bias

func TestProviderBiasNeedsSamples(t *testing.T) {
	s := tempStore(t)
	s.RecordAttempt(attempt(analysis.ProviderLocal, analysis.FailureNone, 80), 0.9)
	s.RecordAttempt(attempt(analysis.ProviderLocal, analysis.FailureNone, 80), 0.9)

	bias, err := s.ProviderBias()
	if err != nil {
		t.Fatalf("ProviderBias: %v", err)
	}
	if _, ok := bias[analysis.ProviderLocal]; ok {
		t.Errorf("bias = %v, want local omitted below the sample floor", bias)
	}
}

func TestProviderBiasRewardsQuality(t *testing.T) {
	s := tempStore(t)
	for i := 0; i < 3; i++ {
		s.RecordAttempt(attempt(analysis.ProviderLocal, analysis.FailureNone, 80), 0.9)
	}

	bias, err := s.ProviderBias()
	if err != nil {
		t.Fatalf("ProviderBias: %v", err)
	}
	b, ok := bias[analysis.ProviderLocal]
	if !ok {
		t.Fatal("expected a local bias after three samples")
	}
	if !near(b, 0.08, 0.005) {
		t.Errorf("bias = %.3f, want about +0.08 for 0.9 quality", b)
	}
}

func TestProviderBiasPunishesFailure(t *testing.T) {
	s := tempStore(t)
	for i := 0; i < 4; i++ {
		s.RecordAttempt(attempt(analysis.ProviderCloud, analysis.FailureTimeout, 5000), -1)
	}

	bias, err := s.ProviderBias()
	if err != nil {
		t.Fatalf("ProviderBias: %v", err)
	}
	b, ok := bias[analysis.ProviderCloud]
	if !ok {
		t.Fatal("expected a cloud bias after four samples")
	}
	if !near(b, -0.1, 0.005) {
		t.Errorf("bias = %.3f, want the -0.1 floor for pure failure", b)
	}
}

// #endregion
