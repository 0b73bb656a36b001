package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"backoffice/internal/console"
	"backoffice/internal/featureflag"
	"backoffice/internal/tenant"
	"backoffice/pkg/platform/httputil"
)

func (h *Handler) handleListFlags(w http.ResponseWriter, r *http.Request) {
	if _, err := h.require(r.Context(), "feature_flags", "read"); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"flags": h.flags.Flags()})
}

// handleEvaluateFlag evaluates a flag for the caller's identity. Query
// parameters other than the identity fields become custom attributes.
func (h *Handler) handleEvaluateFlag(w http.ResponseWriter, r *http.Request) {
	ec := evalContextFrom(r)
	id := chi.URLParam(r, "id")
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"flag_id": id,
		"result":  h.flags.Evaluate(id, ec),
	})
}

func (h *Handler) handleUpdateFlag(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[UpdateFlagRequest](w, r, h.logger)
	if !ok {
		return
	}
	flag, err := h.console.UpdateFlag(r.Context(), console.UpdateFlagRequest{
		FlagID: chi.URLParam(r, "id"),
		Update: req.FlagUpdate,
		Reason: req.Reason,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, flag)
}

func evalContextFrom(r *http.Request) featureflag.EvalContext {
	ctx := r.Context()
	var ec featureflag.EvalContext
	if t, ok := tenant.TenantFrom(ctx); ok {
		ec.TenantID = t.ID
		ec.Region = t.Region
		ec.Locale = t.Locale
	}
	if u, ok := tenant.UserFrom(ctx); ok {
		ec.UserID = u.UserID
		ec.Role = u.Role
	}
	for k, v := range r.URL.Query() {
		if len(v) == 0 {
			continue
		}
		if ec.Attributes == nil {
			ec.Attributes = make(map[string]any)
		}
		ec.Attributes[k] = v[0]
	}
	return ec
}
