// Package admin provides the HTTP admin API for operational management:
// triggering an on-demand reconciliation sweep and inspecting
// transactions and the merchant directory.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/SaiYadav1818/settlement-core/internal/store"
	"github.com/SaiYadav1818/settlement-core/internal/sweeper"
)

// SweepRequester triggers an on-demand reconciliation sweep. It runs
// the identical guarded code path as the periodic runner. Satisfied by
// *sweeper.Sweeper; tests provide a mock.
type SweepRequester interface {
	SweepAny(ctx context.Context) (any, error)
}

// Server provides the admin API.
type Server struct {
	sweepReq  SweepRequester
	txns      store.TransactionRepository
	merchants store.MerchantRepository
	logger    *slog.Logger
}

func NewServer(
	sweepReq SweepRequester,
	txns store.TransactionRepository,
	merchants store.MerchantRepository,
	logger *slog.Logger,
) *Server {
	return &Server{
		sweepReq:  sweepReq,
		txns:      txns,
		merchants: merchants,
		logger:    logger.With("component", "admin"),
	}
}

// Handler returns the HTTP handler for the admin API, wrapped with the
// audit and rate-limit middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /admin/v1/sweep", s.handleSweep)
	mux.HandleFunc("GET /admin/v1/transactions", s.handleGetTransaction)
	mux.HandleFunc("GET /admin/v1/merchants", s.handleListMerchants)
	mux.HandleFunc("GET /admin/v1/status", s.handleStatus)

	rl := NewRateLimitMiddleware(s.logger)
	return AuditMiddleware(s.logger, rl.Wrap(mux))
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	result, err := s.sweepReq.SweepAny(r.Context())
	if errors.Is(err, sweeper.ErrSweepInProgress) {
		writeError(w, http.StatusConflict, "sweep already in progress")
		return
	}
	if err != nil {
		s.logger.Error("manual sweep failed", "error", err)
		writeError(w, http.StatusInternalServerError, "sweep failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	txnid := r.URL.Query().Get("txnid")
	if txnid == "" {
		writeError(w, http.StatusBadRequest, "txnid query parameter is required")
		return
	}

	txn, err := s.txns.FindByTxnid(r.Context(), txnid)
	if err != nil {
		s.logger.Error("transaction lookup failed", "txnid", txnid, "error", err)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if txn == nil {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}
	writeJSON(w, http.StatusOK, txn)
}

func (s *Server) handleListMerchants(w http.ResponseWriter, r *http.Request) {
	merchants, err := s.merchants.ListActive(r.Context())
	if err != nil {
		s.logger.Error("merchant listing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "listing failed")
		return
	}

	// Secret material never leaves the process through this API.
	type merchantView struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
		IsActive    bool   `json:"is_active"`
	}
	views := make([]merchantView, 0, len(merchants))
	for _, m := range merchants {
		views = append(views, merchantView{
			ID:          m.ID,
			DisplayName: m.DisplayName,
			IsActive:    m.IsActive,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"merchants": views})
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
