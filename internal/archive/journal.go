package archive

// #region imports
import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/analysis"
)

// #endregion

// #region save-result

// SaveResult persists one finished analysis.
func (s *Store) SaveResult(ctx context.Context, res analysis.Result) error {
	top := res.Top()
	resJSON, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO analyses
		 (id, request_id, produced_by, model_version, top_label, top_category,
		  top_confidence, risk_score, attempts, total_ms, warnings, result_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(),
		res.RequestID,
		string(res.Provenance.ProducedBy),
		res.Provenance.ModelVersion,
		string(top.Label),
		string(top.Category),
		top.Confidence,
		res.RiskScore,
		len(res.Provenance.Attempts),
		res.Provenance.TotalDuration.Milliseconds(),
		len(res.Warnings),
		string(resJSON),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// #endregion save-result

// #region prior-result

// PriorResult returns the newest stored result for requestID, or (nil, nil)
// when none exists.
func (s *Store) PriorResult(ctx context.Context, requestID string) (*analysis.Result, error) {
	var resJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT result_json FROM analyses
		 WHERE request_id = ?
		 ORDER BY created_at DESC
		 LIMIT 1`,
		requestID,
	).Scan(&resJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query prior: %w", err)
	}
	var res analysis.Result
	if err := json.Unmarshal([]byte(resJSON), &res); err != nil {
		return nil, fmt.Errorf("unmarshal prior: %w", err)
	}
	return &res, nil
}

// #endregion prior-result

// #region record-attempt

// RecordAttempt persists one provider outcome row. Storage failures are
// logged, never surfaced, so a full disk cannot break analysis.
func (s *Store) RecordAttempt(rec analysis.AttemptRecord, topConfidence float32) {
	success := 0
	if rec.FailureKind == analysis.FailureNone {
		success = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO provider_outcomes
		(provider, failure_kind, success, duration_ms, top_confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(rec.Provider),
		string(rec.FailureKind),
		success,
		rec.Duration.Milliseconds(),
		topConfidence,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		log.Printf("[archive] record attempt: %v", err)
	}
}

// #endregion record-attempt

// #region recent

// Entry is one archived analysis without its full result payload.
type Entry struct {
	ID            string
	RequestID     string
	ProducedBy    analysis.ProviderKind
	ModelVersion  string
	TopLabel      analysis.Label
	TopCategory   analysis.Category
	TopConfidence float32
	RiskScore     float32
	Attempts      int
	TotalMS       int64
	Warnings      int
	CreatedAt     time.Time
}

// Recent returns the latest analyses, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, request_id, produced_by, model_version, top_label, top_category,
		        top_confidence, risk_score, attempts, total_ms, warnings, created_at
		 FROM analyses
		 ORDER BY created_at DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var producedBy, topLabel, topCategory, createdAtStr string
		if err := rows.Scan(&e.ID, &e.RequestID, &producedBy, &e.ModelVersion,
			&topLabel, &topCategory, &e.TopConfidence, &e.RiskScore,
			&e.Attempts, &e.TotalMS, &e.Warnings, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scan recent: %w", err)
		}
		e.ProducedBy = analysis.ProviderKind(producedBy)
		e.TopLabel = analysis.Label(topLabel)
		e.TopCategory = analysis.Category(topCategory)
		if t, err := time.Parse(time.RFC3339Nano, createdAtStr); err == nil {
			e.CreatedAt = t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// #endregion recent

// #region outcome-summary

// OutcomeRow aggregates persisted provider outcomes for one provider.
type OutcomeRow struct {
	Provider      analysis.ProviderKind
	Attempts      int
	Successes     int
	AvgConfidence float32
	AvgDurationMS int64
}

// OutcomeSummary aggregates provider_outcomes per provider, ordered by provider.
func (s *Store) OutcomeSummary(ctx context.Context) ([]OutcomeRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT provider,
		       COUNT(*),
		       COALESCE(SUM(success), 0),
		       COALESCE(AVG(CASE WHEN success = 1 THEN top_confidence END), 0),
		       COALESCE(AVG(duration_ms), 0)
		FROM provider_outcomes
		GROUP BY provider
		ORDER BY provider`)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var out []OutcomeRow
	for rows.Next() {
		var r OutcomeRow
		var provider string
		var avgConf, avgDur float64
		if err := rows.Scan(&provider, &r.Attempts, &r.Successes, &avgConf, &avgDur); err != nil {
			return nil, fmt.Errorf("scan outcomes: %w", err)
		}
		r.Provider = analysis.ProviderKind(provider)
		r.AvgConfidence = float32(avgConf)
		r.AvgDurationMS = int64(avgDur)
		out = append(out, r)
	}
	return out, rows.Err()
}

// #endregion outcome-summary
