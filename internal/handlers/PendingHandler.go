package handlers

import (
	"CopyTradeBot/internal/models"
	"CopyTradeBot/internal/services/pending"
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// FollowerHeader carries the acting follower's id, set by the dashboard
// proxy after it authenticates the session.
const FollowerHeader = "X-Follower-ID"

type PendingActions interface {
	Approve(ctx context.Context, id, followerID uint) (*models.FollowerTrade, error)
	Reject(ctx context.Context, id, followerID uint) error
}

type PendingHandler struct {
	service PendingActions
	logger  *zap.Logger
}

func NewPendingHandler(service *pending.Service, logger *zap.Logger) *PendingHandler {
	return &PendingHandler{service: service, logger: logger.With(zap.String("component", "pending_http"))}
}

type pendingResponse struct {
	ID              uint   `json:"id"`
	Status          string `json:"status"`
	FollowerTradeID uint   `json:"follower_trade_id,omitempty"`
	TradeStatus     string `json:"trade_status,omitempty"`
	Error           string `json:"error,omitempty"`
}

func (h *PendingHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, followerID, ok := parseAction(w, r)
	if !ok {
		return
	}

	trade, err := h.service.Approve(r.Context(), id, followerID)
	if err != nil && trade == nil {
		h.writeServiceError(w, id, err)
		return
	}

	resp := pendingResponse{ID: id, Status: models.PendingTradeStatusApproved}
	if trade != nil {
		resp.FollowerTradeID = trade.ID
		resp.TradeStatus = trade.Status
	}
	if err != nil {
		// approved but the order itself failed; the trade row records why
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *PendingHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, followerID, ok := parseAction(w, r)
	if !ok {
		return
	}
	if err := h.service.Reject(r.Context(), id, followerID); err != nil {
		h.writeServiceError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, pendingResponse{ID: id, Status: models.PendingTradeStatusRejected})
}

func (h *PendingHandler) writeServiceError(w http.ResponseWriter, id uint, err error) {
	switch {
	case errors.Is(err, pending.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, pending.ErrNotPending), errors.Is(err, pending.ErrBusy):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("pending action failed", zap.Uint("pending_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func parseAction(w http.ResponseWriter, r *http.Request) (uint, uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, "invalid pending trade id")
		return 0, 0, false
	}
	followerID, err := strconv.ParseUint(r.Header.Get(FollowerHeader), 10, 64)
	if err != nil || followerID == 0 {
		writeError(w, http.StatusUnauthorized, "missing follower id")
		return 0, 0, false
	}
	return uint(id), uint(followerID), true
}
