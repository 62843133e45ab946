package stats

// #region imports
import (
	"sort"
	"sync"
	"time"

	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/analysis"
)

// #endregion

// #region snapshot-types

// ProviderStats is an immutable per-provider counter snapshot.
type ProviderStats struct {
	Provider         analysis.ProviderKind           `json:"provider"`
	Attempts         int64                           `json:"attempts"`
	Successes        int64                           `json:"successes"`
	Failures         map[analysis.FailureKind]int64  `json:"failures,omitempty"`
	AvgDuration      time.Duration                   `json:"avgDuration"`
	AvgTopConfidence float32                         `json:"avgTopConfidence"`
	LastAttempt      time.Time                       `json:"lastAttempt"`
	LastSuccess      time.Time                       `json:"lastSuccess,omitempty"`
}

// #endregion

// #region recorder

// Recorder accumulates per-provider performance counters. Safe for
// concurrent writers: hybrid execution records two attempts at once.
type Recorder struct {
	mu  sync.Mutex
	per map[analysis.ProviderKind]*counters
}

type counters struct {
	attempts      int64
	successes     int64
	failures      map[analysis.FailureKind]int64
	totalDuration time.Duration
	confidenceSum float64
	lastAttempt   time.Time
	lastSuccess   time.Time
}

// New returns an empty recorder.
func New() *Recorder {
	return &Recorder{per: make(map[analysis.ProviderKind]*counters)}
}

// #endregion

// #region record

// RecordAttempt folds one provider attempt into the counters.
// topConfidence applies to successes only; pass a negative value otherwise.
func (r *Recorder) RecordAttempt(rec analysis.AttemptRecord, topConfidence float32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.per[rec.Provider]
	if !ok {
		c = &counters{failures: make(map[analysis.FailureKind]int64)}
		r.per[rec.Provider] = c
	}

	c.attempts++
	c.totalDuration += rec.Duration
	c.lastAttempt = rec.StartedAt
	if rec.FailureKind == analysis.FailureNone {
		c.successes++
		c.lastSuccess = rec.StartedAt
		if topConfidence >= 0 {
			c.confidenceSum += float64(topConfidence)
		}
	} else {
		c.failures[rec.FailureKind]++
	}
}

// #endregion

// #region snapshot

// Snapshot copies the counters out, sorted by provider for stable output.
func (r *Recorder) Snapshot() []ProviderStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ProviderStats, 0, len(r.per))
	for kind, c := range r.per {
		s := ProviderStats{
			Provider:    kind,
			Attempts:    c.attempts,
			Successes:   c.successes,
			LastAttempt: c.lastAttempt,
			LastSuccess: c.lastSuccess,
		}
		if len(c.failures) > 0 {
			s.Failures = make(map[analysis.FailureKind]int64, len(c.failures))
			for k, v := range c.failures {
				s.Failures[k] = v
			}
		}
		if c.attempts > 0 {
			s.AvgDuration = c.totalDuration / time.Duration(c.attempts)
		}
		if c.successes > 0 {
			s.AvgTopConfidence = float32(c.confidenceSum / float64(c.successes))
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out
}

// Clear drops every counter.
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.per = make(map[analysis.ProviderKind]*counters)
}

// #endregion
