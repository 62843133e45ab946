package archive

// #region imports
import (
	"math"
	"time"

	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/analysis"
)

// #endregion

// #region bias

const (
	biasHalfLifeHours = 7.0 * 24.0
	biasMinSamples    = 3
	biasScale         = 0.2
	biasCap           = 0.1
)

// ProviderBias returns a decay-weighted affinity nudge per provider, derived
// from persisted outcomes. A failed attempt counts as zero quality; a
// successful one counts its top confidence. Providers with fewer than
// biasMinSamples outcomes are omitted so a single lucky call cannot steer
// routing.
func (s *Store) ProviderBias() (map[analysis.ProviderKind]float32, error) {
	rows, err := s.db.Query(`
		SELECT provider, success, top_confidence, created_at
		FROM provider_outcomes`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type accum struct {
		weightedSum float64
		totalWeight float64
		count       int
	}

	now := time.Now()
	byProvider := make(map[analysis.ProviderKind]*accum)

	for rows.Next() {
		var provider string
		var success int
		var conf float64
		var createdAtStr string
		if err := rows.Scan(&provider, &success, &conf, &createdAtStr); err != nil {
			return nil, err
		}
		createdAt, err := time.Parse(time.RFC3339, createdAtStr)
		if err != nil {
			continue
		}
		ageHours := now.Sub(createdAt).Hours()
		weight := math.Exp(-ageHours / biasHalfLifeHours)

		quality := 0.0
		if success == 1 && conf > 0 {
			quality = conf
		}

		kind := analysis.ProviderKind(provider)
		if _, ok := byProvider[kind]; !ok {
			byProvider[kind] = &accum{}
		}
		byProvider[kind].weightedSum += quality * weight
		byProvider[kind].totalWeight += weight
		byProvider[kind].count++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	bias := make(map[analysis.ProviderKind]float32)
	for kind, a := range byProvider {
		if a.count < biasMinSamples || a.totalWeight == 0 {
			continue
		}
		avg := a.weightedSum / a.totalWeight
		b := (avg - 0.5) * biasScale
		if b > biasCap {
			b = biasCap
		}
		if b < -biasCap {
			b = -biasCap
		}
		bias[kind] = float32(b)
	}
	return bias, nil
}

// #endregion
