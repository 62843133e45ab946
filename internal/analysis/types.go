package analysis

// #region imports
import (
	"time"
)

// #endregion

// #region provider-kind

// ProviderKind identifies the execution surface that produces a result.
type ProviderKind string

const (
	ProviderLocal   ProviderKind = "local"
	ProviderCloud   ProviderKind = "cloud"
	ProviderOffline ProviderKind = "offline_heuristic"
)

// #endregion

// #region execution-pref

// ExecutionPref is the caller's routing preference for a request.
type ExecutionPref string

const (
	PrefAutomatic   ExecutionPref = "automatic"
	PrefForceLocal  ExecutionPref = "force_local"
	PrefForceCloud  ExecutionPref = "force_cloud"
	PrefOfflineOnly ExecutionPref = "offline_only"
)

// #endregion

// #region failure-kind

// FailureKind categorizes why a provider attempt failed.
type FailureKind string

const (
	FailureNone             FailureKind = "none"
	FailureTimeout          FailureKind = "timeout"
	FailureTransport        FailureKind = "transport_error"
	FailureModelUnavailable FailureKind = "model_unavailable"
	FailureLowConfidence    FailureKind = "low_confidence"
	FailureCancelled        FailureKind = "cancelled"
	FailureUnknown          FailureKind = "unknown"
)

// #endregion

// #region category

// Category groups labels by clinical meaning.
type Category string

const (
	CategoryMalignant    Category = "malignant"
	CategoryPremalignant Category = "premalignant"
	CategoryBenign       Category = "benign"
	CategoryInflammatory Category = "inflammatory"
	CategoryVascular     Category = "vascular"
	CategoryUnknown      Category = "unknown"
)

// #endregion

// #region severity

// Severity grades a finding's clinical weight.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// #endregion

// #region warning-kind

// WarningKind names a validator annotation. Warnings never reject a result.
type WarningKind string

const (
	WarningLowConfidence           WarningKind = "low_confidence"
	WarningImplausibleCombination  WarningKind = "implausible_combination"
	WarningInconsistentWithHistory WarningKind = "inconsistent_with_history"
)

// #endregion

// #region request

// Request is one image analysis job submitted to the engine.
type Request struct {
	ID             string        `json:"requestId"`
	Image          []byte        `json:"image"`
	CapturedAt     time.Time     `json:"capturedAt"`
	Pref           ExecutionPref `json:"executionPreference"`
	PriorRequestID string        `json:"priorRequestId,omitempty"` // empty = no longitudinal context
}

// #endregion

// #region scores

// Scores is the raw output of one provider invocation.
type Scores struct {
	Labels       map[Label]float32 // label → confidence in [0,1]
	RiskScore    float32           // negative = not supplied by the provider
	ModelVersion string
}

// #endregion

// #region classification

// Classification is one label hypothesis with its confidence.
type Classification struct {
	Label      Label    `json:"label"`
	Category   Category `json:"category"`
	Confidence float32  `json:"confidence"`
}

// #endregion

// #region finding

// Finding is a derived observation tied to a classified label.
type Finding struct {
	Label    Label    `json:"label"`
	Severity Severity `json:"severity"`
	Detail   string   `json:"detail"`
}

// #endregion

// #region recommendation

// RecommendAction is the follow-up ladder for a result.
type RecommendAction string

const (
	RecommendMonitor       RecommendAction = "monitor"
	RecommendConsult       RecommendAction = "consult"
	RecommendUrgentConsult RecommendAction = "urgent_consult"
)

// Recommendation is the engine's suggested next step for the user.
type Recommendation struct {
	Action RecommendAction `json:"action"`
	Text   string          `json:"text"`
}

// #endregion

// #region warning

// Warning is a single validator annotation on a result.
type Warning struct {
	Kind   WarningKind `json:"kind"`
	Detail string      `json:"detail"`
}

// #endregion

// #region attempt-record

// AttemptRecord documents one provider invocation within an execution.
type AttemptRecord struct {
	Provider    ProviderKind  `json:"provider"`
	StartedAt   time.Time     `json:"startedAt"`
	Duration    time.Duration `json:"duration"`
	FailureKind FailureKind   `json:"failureKind"` // FailureNone on success
	Err         string        `json:"error,omitempty"`
}

// #endregion

// #region provenance

// Provenance records how a result was produced.
type Provenance struct {
	ProducedBy    ProviderKind    `json:"producedBy"`
	ModelVersion  string          `json:"modelVersion,omitempty"`
	Attempts      []AttemptRecord `json:"attempts"` // at least one, even on failure paths
	TotalDuration time.Duration   `json:"totalDuration"`
	CompletedAt   time.Time       `json:"completedAt"`
}

// #endregion

// #region result

// Result is the engine's final output for one request.
type Result struct {
	RequestID       string           `json:"requestId"`
	Classifications []Classification `json:"classifications"` // sorted by confidence descending, non-empty
	Findings        []Finding        `json:"findings"`
	Recommendation  Recommendation   `json:"recommendation"`
	RiskScore       float32          `json:"riskScore"`
	Provenance      Provenance       `json:"provenance"`
	Warnings        []Warning        `json:"warnings,omitempty"`
}

// Top returns the highest-confidence classification, or a zero value when empty.
func (r Result) Top() Classification {
	if len(r.Classifications) == 0 {
		return Classification{}
	}
	return r.Classifications[0]
}

// #endregion
