package main

// #region imports
import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	engine "github.com/GDogMcCoy/PanDerm-IOS-App/go-engine"
	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/analysis"
	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/config"
	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/model"
)

// #endregion

var startTime = time.Now()

// #region serve

func runServe(cmd *cobra.Command, args []string) error {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	cfg, err := config.LoadOrDefault(configFlag)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	eng, err := engine.New(cfg)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	if err := eng.ConnectEvents(); err != nil {
		log.Warn().Err(err).Msg("event broker unreachable, continuing without events")
	}

	// Warm the local runtime in the background. The offline path keeps the
	// API usable while the model loads or when it fails.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(),
			time.Duration(cfg.Model.LoadTimeoutMS)*time.Millisecond)
		defer cancel()
		if err := eng.ReloadModel(ctx); err != nil && !errors.Is(err, engine.ErrNoLocalModel) {
			log.Warn().Err(err).Msg("initial model load failed")
		}
	}()

	var scheduler *cron.Cron
	if cfg.Model.UpdateCheckCron != "" {
		scheduler = cron.New()
		_, err := scheduler.AddFunc(cfg.Model.UpdateCheckCron, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			if err := eng.UpdateModel(ctx); err != nil && !errors.Is(err, engine.ErrNoLocalModel) {
				log.Warn().Err(err).Msg("scheduled model update failed")
			}
		})
		if err != nil {
			return fmt.Errorf("invalid update_check_cron %q: %w", cfg.Model.UpdateCheckCron, err)
		}
		scheduler.Start()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Duration(cfg.Server.RequestTimeoutMS) * time.Millisecond))

	r.Get("/health", handleHealth)
	r.Get("/health/ready", handleReadiness(eng))
	r.Get("/version", handleVersion)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/analyze", handleAnalyze(eng, cfg))
		r.Post("/batch", handleBatch(eng))
		r.Post("/changes", handleChanges(eng))
		r.Get("/stats", handleStats(eng))
		r.Delete("/stats", handleStatsReset(eng))
		r.Get("/model/status", handleModelStatus(eng))
		r.Post("/model/reload", handleModelOp(eng.ReloadModel, eng))
		r.Post("/model/update", handleModelOp(eng.UpdateModel, eng))
	})

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: r}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	log.Info().
		Str("addr", cfg.Server.Addr).
		Str("version", version).
		Str("archive", cfg.Archive.Path).
		Msg("Starting dermengined")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		if scheduler != nil {
			scheduler.Stop()
		}
		eng.Close()
		return fmt.Errorf("serve: %w", err)
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	return eng.Close()
}

// #endregion

// #region health

func handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": "dermengined",
		"version": version,
		"uptime":  time.Since(startTime).String(),
	})
}

// handleReadiness reports not-ready only when a configured local model hit a
// load error; everything else still serves through cloud or offline.
func handleReadiness(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if status, _, loadErr := eng.ModelSnapshot(); status == model.StatusError && loadErr != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"reason": loadErr.Error(),
			})
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("READY"))
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"version": version,
		"service": "dermengined",
	})
}

// #endregion

// #region analysis-handlers

func handleAnalyze(eng *engine.Engine, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// 2x headroom for the base64 encoding of the image payload.
		r.Body = http.MaxBytesReader(w, r.Body, cfg.Server.MaxImageBytes*2)
		var req engine.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}

		res, err := eng.Analyze(r.Context(), req)
		if err != nil {
			respondError(w, statusForError(err), err.Error())
			return
		}
		respondJSON(w, http.StatusOK, res)
	}
}

type batchRequest struct {
	Requests []engine.Request `json:"requests"`
}

type batchItemResponse struct {
	Result *engine.Result `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

type batchResponse struct {
	Items  []batchItemResponse `json:"items"`
	Failed int                 `json:"failed"`
}

func handleBatch(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req batchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		if len(req.Requests) == 0 {
			respondError(w, http.StatusBadRequest, "requests is required")
			return
		}

		items := eng.AnalyzeBatch(r.Context(), req.Requests, nil)
		out := batchResponse{Items: make([]batchItemResponse, len(items))}
		for i, it := range items {
			if it.Err != nil {
				out.Items[i].Error = it.Err.Error()
				out.Failed++
				continue
			}
			res := it.Result
			out.Items[i].Result = &res
		}
		respondJSON(w, http.StatusOK, out)
	}
}

type changesRequest struct {
	Baseline []engine.Request `json:"baseline"`
	Current  []engine.Request `json:"current"`
}

func handleChanges(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req changesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}

		report, err := eng.DetectChanges(r.Context(), req.Baseline, req.Current)
		if err != nil {
			respondError(w, statusForError(err), err.Error())
			return
		}
		respondJSON(w, http.StatusOK, report)
	}
}

// #endregion

// #region stats-handlers

func handleStats(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out := map[string]any{"providers": eng.PerformanceStats()}
		if es, ok := eng.EventStats(); ok {
			out["events"] = es
		}
		respondJSON(w, http.StatusOK, out)
	}
}

func handleStatsReset(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eng.ClearPerformanceData()
		w.WriteHeader(http.StatusNoContent)
	}
}

// #endregion

// #region model-handlers

func modelStatusBody(eng *engine.Engine) map[string]any {
	status, info, loadErr := eng.ModelSnapshot()
	out := map[string]any{
		"status":  status,
		"version": info.Version,
		"labels":  len(info.Labels),
	}
	if loadErr != nil {
		out["lastError"] = loadErr.Error()
	}
	return out
}

func handleModelStatus(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, modelStatusBody(eng))
	}
}

func handleModelOp(op func(context.Context) error, eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := op(r.Context()); err != nil {
			if errors.Is(err, engine.ErrNoLocalModel) {
				respondError(w, http.StatusBadRequest, err.Error())
				return
			}
			respondError(w, http.StatusBadGateway, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, modelStatusBody(eng))
	}
}

// #endregion

// #region responses

func statusForError(err error) int {
	var failed *analysis.AllProvidersFailedError
	switch {
	case errors.Is(err, engine.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrCancelled):
		return http.StatusRequestTimeout
	case errors.As(err, &failed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]any{
		"success": false,
		"error":   message,
	})
}

// #endregion
