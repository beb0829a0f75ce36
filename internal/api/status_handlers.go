package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"cloud.google.com/go/civil"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/insider-filings-crawler/internal/edgar"
)

const checkpointTimeout = 10 * time.Second

type checkpointDTO struct {
	Date         civil.Date                `json:"date"`
	Count        int                       `json:"count"`
	Transactions []edgar.FilingTransaction `json:"transactions"`
}

// status handles GET /v1/status. It returns 503 when no crawl is attached.
func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	if s.opts.Status == nil {
		writeError(w, http.StatusServiceUnavailable, "no crawl running")
		return
	}
	writeJSON(w, http.StatusOK, s.opts.Status.Status())
}

// checkpoint handles GET /v1/checkpoints/{date} with date as YYYY-MM-DD. It returns
// 400 for a malformed date, 404 when the day has no checkpoint, and 500 when the
// checkpoint cannot be read.
func (s *Server) checkpoint(w http.ResponseWriter, r *http.Request) {
	if s.opts.Checkpoints == nil {
		writeError(w, http.StatusServiceUnavailable, "checkpoint store unavailable")
		return
	}
	day, err := civil.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), checkpointTimeout)
	defer cancel()
	txs, err := s.opts.Checkpoints.Load(ctx, day)
	switch {
	case errors.Is(err, edgar.ErrNotFound):
		writeError(w, http.StatusNotFound, "no checkpoint for "+day.String())
		return
	case err != nil:
		s.logger.Error("load checkpoint failed", zap.Stringer("date", day), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load checkpoint")
		return
	}
	if txs == nil {
		txs = []edgar.FilingTransaction{}
	}
	writeJSON(w, http.StatusOK, checkpointDTO{Date: day, Count: len(txs), Transactions: txs})
}
