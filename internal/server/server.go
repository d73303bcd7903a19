// Package server exposes the corrector over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ingredient-corrector/internal/config"
	"ingredient-corrector/internal/corrector"
)

const requestIDHeader = "X-Request-ID"

type Server struct {
	corrector *corrector.Corrector
	log       logrus.FieldLogger
	timeout   time.Duration
	maxTokens int
}

func New(c *corrector.Corrector, log logrus.FieldLogger, cfg config.HTTPConfig) *Server {
	return &Server{
		corrector: c,
		log:       log,
		timeout:   cfg.RequestTimeout,
		maxTokens: cfg.MaxTokens,
	}
}

type correctRequest struct {
	Ingredients []string `json:"ingredients"`
	Details     bool     `json:"details"`
}

type correctResponse struct {
	CorrectedIngredients []string               `json:"corrected_ingredients"`
	Details              []corrector.Correction `json:"details,omitempty"`
}

// Handler returns the routes wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/correct", s.correct(true))
	mux.HandleFunc("/correct_ingredients/", s.correct(false))
	mux.HandleFunc("/healthz", s.health)
	return s.withRequestID(mux)
}

func (s *Server) correct(allowDetails bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var req correctRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request"})
			return
		}
		if s.maxTokens > 0 && len(req.Ingredients) > s.maxTokens {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
				"error": fmt.Sprintf("too many ingredients: %d > %d", len(req.Ingredients), s.maxTokens),
			})
			return
		}

		ctx := r.Context()
		if s.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}
		start := time.Now()
		res, err := s.corrector.CorrectBatch(ctx, req.Ingredients)
		log := s.log.WithFields(logrus.Fields{
			"request_id": w.Header().Get(requestIDHeader),
			"tokens":     len(req.Ingredients),
			"duration":   time.Since(start),
		})
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			log.Warn("correction timed out")
			writeJSON(w, http.StatusGatewayTimeout, map[string]string{"error": "correction timed out"})
			return
		case err != nil:
			log.WithError(err).Warn("correction aborted")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "request cancelled"})
			return
		}

		failed := 0
		for _, c := range res {
			if c.Stage == corrector.StageFailed {
				failed++
			}
		}
		log.WithField("failed", failed).Info("corrected ingredients")

		resp := correctResponse{CorrectedIngredients: corrector.Strings(res)}
		if allowDetails && req.Details {
			resp.Details = res
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"vocabulary": s.corrector.VocabularySize(),
		"namespace":  s.corrector.Namespace(),
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		s.log.WithFields(logrus.Fields{
			"request_id": id,
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rec.status,
			"duration":   time.Since(start),
		}).Debug("request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
