package cloud

// #region imports
import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/analysis"
	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/provider"
)

// #endregion

// #region wire

type analyzeRequest struct {
	RequestID  string `json:"requestId"`
	Image      string `json:"image"` // base64 of the encoded photograph
	CapturedAt string `json:"capturedAt,omitempty"`
}

type analyzeResponse struct {
	Labels       map[string]float32 `json:"labels"`
	RiskScore    *float32           `json:"riskScore"`
	ModelVersion string             `json:"modelVersion"`
}

const maxResponseBytes = 1 << 20

// #endregion

// #region provider

// Provider sends analysis requests to the remote dermatology API.
// Deadlines come from the caller's context; the HTTP client carries no
// timeout of its own.
type Provider struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

// NewProvider creates a provider against baseURL authenticated with apiKey.
func NewProvider(baseURL, apiKey string) *Provider {
	return NewProviderWithHTTP(baseURL, apiKey, &http.Client{})
}

// NewProviderWithHTTP substitutes the HTTP client, for tests.
func NewProviderWithHTTP(baseURL, apiKey string, httpc *http.Client) *Provider {
	return &Provider{baseURL: baseURL, apiKey: apiKey, httpc: httpc}
}

func (p *Provider) Kind() analysis.ProviderKind {
	return analysis.ProviderCloud
}

// Analyze posts the image to the remote API and maps its scores.
func (p *Provider) Analyze(ctx context.Context, req analysis.Request) (analysis.Scores, error) {
	body := analyzeRequest{
		RequestID: req.ID,
		Image:     base64.StdEncoding.EncodeToString(req.Image),
	}
	if !req.CapturedAt.IsZero() {
		body.CapturedAt = req.CapturedAt.Format(time.RFC3339)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return analysis.Scores{}, fmt.Errorf("encode analyze request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/analyze", bytes.NewReader(payload))
	if err != nil {
		return analysis.Scores{}, fmt.Errorf("build analyze request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpc.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return analysis.Scores{}, fmt.Errorf("cloud analyze: %w", ctxErr)
		}
		return analysis.Scores{}, fmt.Errorf("%w: %v", provider.ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return analysis.Scores{}, fmt.Errorf("cloud analyze: %w", ctxErr)
		}
		return analysis.Scores{}, fmt.Errorf("%w: read response: %v", provider.ErrTransport, err)
	}
	if resp.StatusCode != http.StatusOK {
		return analysis.Scores{}, fmt.Errorf("%w: status %d: %s", provider.ErrTransport, resp.StatusCode, snippet(data))
	}

	var out analyzeResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return analysis.Scores{}, fmt.Errorf("decode analyze response: %w", err)
	}

	labels := make(map[analysis.Label]float32, len(out.Labels))
	for name, conf := range out.Labels {
		labels[analysis.Label(name)] = conf
	}
	risk := float32(-1)
	if out.RiskScore != nil {
		risk = *out.RiskScore
	}
	return analysis.Scores{
		Labels:       labels,
		RiskScore:    risk,
		ModelVersion: out.ModelVersion,
	}, nil
}

// #endregion

// #region helpers

func snippet(data []byte) string {
	const limit = 200
	s := string(bytes.TrimSpace(data))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}

// #endregion
