package cloud

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/analysis"
	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/provider"
)

func TestAnalyze_Success(t *testing.T) {
	image := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x01, 0x02}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/analyze" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header = %q", got)
		}
		var req analyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		decoded, err := base64.StdEncoding.DecodeString(req.Image)
		if err != nil || len(decoded) != len(image) {
			t.Errorf("image did not round-trip: %v", err)
		}
		if req.RequestID != "req-9" {
			t.Errorf("request id = %q", req.RequestID)
		}

		risk := float32(0.81)
		json.NewEncoder(w).Encode(analyzeResponse{
			Labels:       map[string]float32{"melanoma": 0.77, "nevus": 0.12},
			RiskScore:    &risk,
			ModelVersion: "panderm-cloud-2026.2",
		})
	}))
	defer srv.Close()

	p := NewProvider(srv.URL, "test-key")
	scores, err := p.Analyze(context.Background(), analysis.Request{
		ID:         "req-9",
		Image:      image,
		CapturedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scores.Labels[analysis.LabelMelanoma] != 0.77 {
		t.Errorf("melanoma = %v", scores.Labels[analysis.LabelMelanoma])
	}
	if scores.RiskScore != 0.81 || scores.ModelVersion != "panderm-cloud-2026.2" {
		t.Errorf("risk=%v version=%q", scores.RiskScore, scores.ModelVersion)
	}
}

func TestAnalyze_NonOKStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"server-error", http.StatusInternalServerError},
		{"throttled", http.StatusTooManyRequests},
		{"unauthorized", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "upstream unhappy", tt.status)
			}))
			defer srv.Close()

			p := NewProvider(srv.URL, "k")
			_, err := p.Analyze(context.Background(), analysis.Request{ID: "r", Image: []byte{1}})
			if !errors.Is(err, provider.ErrTransport) {
				t.Errorf("error %v does not wrap ErrTransport", err)
			}
		})
	}
}

func TestAnalyze_ConnectionRefused(t *testing.T) {
	p := NewProvider("http://127.0.0.1:1", "k")
	_, err := p.Analyze(context.Background(), analysis.Request{ID: "r", Image: []byte{1}})
	if !errors.Is(err, provider.ErrTransport) {
		t.Errorf("error %v does not wrap ErrTransport", err)
	}
}

func TestAnalyze_DeadlineMapsToTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	p := NewProvider(srv.URL, "k")
	_, err := p.Analyze(ctx, analysis.Request{ID: "r", Image: []byte{1}})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error %v does not wrap DeadlineExceeded", err)
	}
}

func TestAnalyze_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	p := NewProvider(srv.URL, "k")
	_, err := p.Analyze(context.Background(), analysis.Request{ID: "r", Image: []byte{1}})
	if err == nil {
		t.Fatal("expected decode error")
	}
	if errors.Is(err, provider.ErrTransport) {
		t.Errorf("decode failure misclassified as transport: %v", err)
	}
}

func TestAnalyze_RiskAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(analyzeResponse{Labels: map[string]float32{"nevus": 0.4}})
	}))
	defer srv.Close()

	p := NewProvider(srv.URL, "k")
	scores, err := p.Analyze(context.Background(), analysis.Request{ID: "r", Image: []byte{1}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scores.RiskScore >= 0 {
		t.Errorf("risk = %v, want negative sentinel", scores.RiskScore)
	}
}
