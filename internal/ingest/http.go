// Package ingest exposes the gateway callback endpoint. It parses the
// flat form-encoded callback body into the field set the settlement
// service consumes and maps processing outcomes to HTTP responses.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/SaiYadav1818/settlement-core/internal/domain/model"
	"github.com/SaiYadav1818/settlement-core/internal/settlement"
	"github.com/SaiYadav1818/settlement-core/internal/verification"
)

// Processor handles one parsed callback. Satisfied by
// *settlement.Service; tests provide a mock.
type Processor interface {
	Process(ctx context.Context, fields model.InboundFields) (*settlement.ProcessResult, error)
}

// Server exposes the callback endpoint.
type Server struct {
	processor Processor
	logger    *slog.Logger
}

func NewServer(processor Processor, logger *slog.Logger) *Server {
	return &Server{
		processor: processor,
		logger:    logger.With("component", "ingest"),
	}
}

// Handler returns the HTTP handler for the callback endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/callback", s.handleCallback)
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	return mux
}

// callbackResponse acknowledges an accepted callback. Gateways retry on
// non-2xx, so anything we recorded gets a 200 even when unverified.
type callbackResponse struct {
	Txnid        string `json:"txnid"`
	Verification string `json:"verification"`
	Outcome      string `json:"outcome,omitempty"`
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "malformed form body")
		return
	}

	fields := make(model.InboundFields, len(r.PostForm))
	for key := range r.PostForm {
		fields[key] = r.PostForm.Get(key)
	}

	result, err := s.processor.Process(r.Context(), fields)

	var invalid *settlement.InvalidCallbackError
	if errors.As(err, &invalid) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":          invalid.Error(),
			"missing_fields": invalid.Missing,
		})
		return
	}
	if err != nil {
		s.logger.Error("callback processing failed",
			"txnid", fields.Txnid(), "error", err)
		writeError(w, http.StatusInternalServerError, "processing failed")
		return
	}

	resp := callbackResponse{
		Txnid:        fields.Txnid(),
		Verification: string(result.Verification.Code),
	}
	if result.Routing != nil {
		resp.Outcome = string(result.Routing.Outcome)
	}

	if result.Verification.Code == verification.CodeHashMismatch {
		s.logger.Warn("acknowledged unverified callback",
			"txnid", fields.Txnid())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
