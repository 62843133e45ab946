package offline

// #region imports
import (
	"context"
	"hash/fnv"

	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/analysis"
)

// #endregion

// #region constants

// ConfidenceCeiling caps every heuristic confidence. The heuristic is a
// last resort and must never look as sure as a real model.
const ConfidenceCeiling = 0.4

const modelVersion = "offline-heuristic/1"

// #endregion

// #region provider

// Provider is the always-available fallback. It grades coarse byte
// statistics of the encoded image: no decoding, no network, no model.
// Same payload in, same scores out.
type Provider struct{}

// New returns the offline heuristic provider.
func New() *Provider {
	return &Provider{}
}

func (p *Provider) Kind() analysis.ProviderKind {
	return analysis.ProviderOffline
}

// Analyze produces a deterministic coarse hypothesis set for the payload.
func (p *Provider) Analyze(ctx context.Context, req analysis.Request) (analysis.Scores, error) {
	if err := ctx.Err(); err != nil {
		return analysis.Scores{}, err
	}

	mean, spread := byteStats(req.Image)
	top := 0.25 + 0.15*jitter(req.Image) // in (0.25, 0.4)

	labels := make(map[analysis.Label]float32, 3)
	switch {
	case mean < 100: // dark payloads lean pigmented
		labels[analysis.LabelNevus] = top
		labels[analysis.LabelPigmentedBenignKeratosis] = top * 0.6
		if spread > 40 {
			// Irregular byte distribution: keep melanoma on the table, faintly.
			labels[analysis.LabelMelanoma] = top * 0.35
		} else {
			labels[analysis.LabelDermatofibroma] = top * 0.35
		}
	case mean >= 160: // light payloads lean keratotic
		labels[analysis.LabelSeborrheicKeratosis] = top
		labels[analysis.LabelActinicKeratosis] = top * 0.6
		labels[analysis.LabelDermatofibroma] = top * 0.35
	default:
		labels[analysis.LabelNevus] = top
		labels[analysis.LabelSeborrheicKeratosis] = top * 0.6
		labels[analysis.LabelVascularLesion] = top * 0.35
	}

	for l, c := range labels {
		if c > ConfidenceCeiling {
			labels[l] = ConfidenceCeiling
		}
	}

	return analysis.Scores{
		Labels:       labels,
		RiskScore:    -1, // let the result builder derive it
		ModelVersion: modelVersion,
	}, nil
}

// #endregion

// #region stats

// byteStats samples the payload and returns mean byte value and mean
// absolute deviation, both in [0,255].
func byteStats(img []byte) (mean, spread float32) {
	if len(img) == 0 {
		return 0, 0
	}
	stride := len(img) / 1024
	if stride < 1 {
		stride = 1
	}

	var sum, n int
	for i := 0; i < len(img); i += stride {
		sum += int(img[i])
		n++
	}
	mean = float32(sum) / float32(n)

	var dev float32
	for i := 0; i < len(img); i += stride {
		d := float32(img[i]) - mean
		if d < 0 {
			d = -d
		}
		dev += d
	}
	return mean, dev / float32(n)
}

// jitter hashes the payload into [0,1) so distinct images spread across
// the confidence band while staying reproducible.
func jitter(img []byte) float32 {
	h := fnv.New32a()
	h.Write(img)
	return float32(h.Sum32()%1000) / 1000
}

// #endregion
