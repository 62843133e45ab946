package analysis

// #region imports
import (
	"fmt"
	"sort"
)

// #endregion

// #region constants

const (
	findingFloor = 0.15 // minimum confidence for a label to surface as a finding
	maxFindings  = 5
)

// #endregion

// #region build-result

// BuildResult derives the full result payload from raw provider scores.
// Classifications come out sorted by confidence descending with label as
// tie-break, so equal inputs always produce equal output.
func BuildResult(requestID string, scores Scores, producedBy ProviderKind) (Result, error) {
	if len(scores.Labels) == 0 {
		return Result{}, fmt.Errorf("empty score map from %s", producedBy)
	}

	classes := make([]Classification, 0, len(scores.Labels))
	for label, conf := range scores.Labels {
		classes = append(classes, Classification{
			Label:      label,
			Category:   CategoryOf(label),
			Confidence: clamp01(conf),
		})
	}
	sort.Slice(classes, func(i, j int) bool {
		if classes[i].Confidence != classes[j].Confidence {
			return classes[i].Confidence > classes[j].Confidence
		}
		return classes[i].Label < classes[j].Label
	})

	risk := scores.RiskScore
	if risk < 0 {
		risk = deriveRisk(classes)
	}
	risk = clamp01(risk)

	res := Result{
		RequestID:       requestID,
		Classifications: classes,
		Findings:        deriveFindings(classes),
		Recommendation:  deriveRecommendation(classes[0], risk),
		RiskScore:       risk,
	}
	res.Provenance.ProducedBy = producedBy
	res.Provenance.ModelVersion = scores.ModelVersion
	return res, nil
}

// #endregion

// #region risk

// deriveRisk estimates overall risk when the provider supplies none:
// the strongest confidence-weighted category risk across all labels.
func deriveRisk(classes []Classification) float32 {
	var risk float32
	for _, c := range classes {
		if w := c.Confidence * RiskWeightOf(c.Label); w > risk {
			risk = w
		}
	}
	return risk
}

// #endregion

// #region findings

// deriveFindings surfaces the strongest labels as graded findings.
func deriveFindings(classes []Classification) []Finding {
	findings := make([]Finding, 0, maxFindings)
	for _, c := range classes {
		if c.Confidence < findingFloor || len(findings) == maxFindings {
			break
		}
		findings = append(findings, Finding{
			Label:    c.Label,
			Severity: severityFor(c.Category, c.Confidence),
			Detail:   fmt.Sprintf("%s at %.0f%% confidence", DisplayNameOf(c.Label), c.Confidence*100),
		})
	}
	return findings
}

// severityFor grades a finding from its category and confidence.
func severityFor(cat Category, conf float32) Severity {
	switch cat {
	case CategoryMalignant:
		if conf >= 0.5 {
			return SeveritySevere
		}
		return SeverityModerate
	case CategoryPremalignant:
		if conf >= 0.5 {
			return SeverityModerate
		}
		return SeverityMild
	case CategoryInflammatory, CategoryVascular:
		if conf >= 0.6 {
			return SeverityMild
		}
		return SeverityLow
	default:
		if conf >= 0.7 {
			return SeverityMild
		}
		return SeverityLow
	}
}

// #endregion

// #region recommendation

// deriveRecommendation maps the top classification and risk to a follow-up action.
func deriveRecommendation(top Classification, risk float32) Recommendation {
	switch {
	case top.Category == CategoryMalignant && top.Confidence >= 0.5, risk >= 0.7:
		return Recommendation{
			Action: RecommendUrgentConsult,
			Text:   fmt.Sprintf("Findings suggest %s. Seek dermatological review promptly.", DisplayNameOf(top.Label)),
		}
	case top.Category == CategoryMalignant, top.Category == CategoryPremalignant:
		return Recommendation{
			Action: RecommendConsult,
			Text:   fmt.Sprintf("Possible %s. Schedule a dermatologist consultation.", DisplayNameOf(top.Label)),
		}
	default:
		return Recommendation{
			Action: RecommendMonitor,
			Text:   fmt.Sprintf("Likely %s. Monitor the lesion and re-photograph if it changes.", DisplayNameOf(top.Label)),
		}
	}
}

// #endregion

// #region helpers

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func sortLabels(labels []Label) {
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })
}

// #endregion
