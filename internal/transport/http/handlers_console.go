package httptransport

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"backoffice/internal/console"
	"backoffice/internal/console/models"
	"backoffice/pkg/platform/httputil"
)

func (h *Handler) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[console.CreatePaymentRequest](w, r, h.logger)
	if !ok {
		return
	}
	payment, err := h.console.CreatePayment(r.Context(), *req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, payment)
}

func (h *Handler) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	payment, err := h.console.GetPayment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, payment)
}

func (h *Handler) handleRefundPayment(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[RefundRequest](w, r, h.logger)
	if !ok {
		return
	}
	payment, err := h.console.RefundPayment(r.Context(), console.RefundPaymentRequest{
		PaymentID: chi.URLParam(r, "id"),
		Amount:    req.Amount,
		Reason:    req.Reason,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, payment)
}

func (h *Handler) handleRegisterAccount(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[console.RegisterAccountRequest](w, r, h.logger)
	if !ok {
		return
	}
	account, err := h.console.RegisterAccount(r.Context(), *req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, account)
}

func (h *Handler) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.console.GetAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, account)
}

func (h *Handler) handleBlockAccount(w http.ResponseWriter, r *http.Request) {
	h.accountAction(w, r, h.console.BlockAccount)
}

func (h *Handler) handleUnblockAccount(w http.ResponseWriter, r *http.Request) {
	h.accountAction(w, r, h.console.UnblockAccount)
}

// handleDeleteAccount accepts the reason in the body or the reason query
// parameter, since DELETE bodies are often dropped by clients.
func (h *Handler) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	if reason := r.URL.Query().Get("reason"); reason != "" || r.ContentLength == 0 {
		account, err := h.console.DeleteAccount(r.Context(), console.AccountActionRequest{
			AccountID: chi.URLParam(r, "id"),
			Reason:    reason,
		})
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, account)
		return
	}
	h.accountAction(w, r, h.console.DeleteAccount)
}

type accountActionFunc func(ctx context.Context, req console.AccountActionRequest) (*models.Account, error)

func (h *Handler) accountAction(w http.ResponseWriter, r *http.Request, action accountActionFunc) {
	req, ok := httputil.Decode[ReasonRequest](w, r, h.logger)
	if !ok {
		return
	}
	account, err := action(r.Context(), console.AccountActionRequest{
		AccountID: chi.URLParam(r, "id"),
		Reason:    req.Reason,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, account)
}
