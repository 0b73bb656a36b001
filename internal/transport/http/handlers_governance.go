package httptransport

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"backoffice/internal/audit"
	"backoffice/internal/decision"
	"backoffice/internal/events"
	"backoffice/internal/tenant"
	dErrors "backoffice/pkg/domain-errors"
	"backoffice/pkg/platform/httputil"
)

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	checks := make(map[string]string, len(h.health))
	for name, check := range h.health {
		if err := check(r.Context()); err != nil {
			status = http.StatusServiceUnavailable
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}
	body := map[string]any{"status": "ok"}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	if len(checks) > 0 {
		body["checks"] = checks
	}
	httputil.WriteJSON(w, status, body)
}

// handleEvaluate answers POST /v1/authz/evaluate for the acting user. A
// denial is a normal 200 response.
func (h *Handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[EvaluateRequest](w, r, h.logger)
	if !ok {
		return
	}

	var user *tenant.UserContext
	if u, ok := tenant.UserFrom(r.Context()); ok {
		user = &u
	}
	d := h.authz.Evaluate(user, req.Resource, req.Action, req.Context)
	httputil.WriteJSON(w, http.StatusOK, EvaluateResponse{
		Decision:       d,
		Explanation:    h.authz.ExplainDecision(d),
		RequiresReason: h.authz.RequiresReason(req.Resource, req.Action),
	})
}

func (h *Handler) handleRequiresReason(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resource, action := q.Get("resource"), q.Get("action")
	if resource == "" || action == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidArgument, "resource and action are required"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, RequiresReasonResponse{
		Resource:       resource,
		Action:         action,
		RequiresReason: h.authz.RequiresReason(resource, action),
	})
}

// handleSearchAudit answers GET /v1/audit. Results are scoped to the active
// tenant; the super admin may pass tenant_id to query another one.
func (h *Handler) handleSearchAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d, err := h.require(ctx, "audit", "read")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	criteria, err := parseCriteria(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	active, _ := tenant.TenantFrom(ctx)
	if criteria.TenantID == "" || !d.SuperAdminBypass {
		criteria.TenantID = active.ID
	}

	entries, err := h.audit.Search(ctx, criteria)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// handleListDeadLetters lists the active tenant's dead letters. The super
// admin sees every tenant's.
func (h *Handler) handleListDeadLetters(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d, err := h.require(ctx, "events", "read")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var letters []events.DeadLetter
	if d.SuperAdminBypass {
		letters = h.dlq.DeadLetterQueue()
	} else {
		active, _ := tenant.TenantFrom(ctx)
		letters = h.dlq.DeadLettersFor(active.ID)
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"dead_letters": toDeadLetterResponses(letters),
	})
}

// handleRetryDeadLetters retries with the same tenant scoping as the list.
func (h *Handler) handleRetryDeadLetters(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d, err := h.require(ctx, "events", "retry")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	active, _ := tenant.TenantFrom(ctx)
	var retried, remaining int
	if d.SuperAdminBypass {
		retried, remaining = h.dlq.RetryDeadLetters(ctx)
	} else {
		retried, remaining = h.dlq.RetryDeadLettersFor(ctx, active.ID)
	}
	if h.logger != nil {
		h.logger.InfoContext(ctx, "dead letters retried",
			"tenant_id", active.ID,
			"retried", retried,
			"remaining", remaining,
		)
	}
	httputil.WriteJSON(w, http.StatusOK, RetryResponse{Retried: retried, Remaining: remaining})
}

// require authorizes the acting user for an administrative read or action.
func (h *Handler) require(ctx context.Context, resource, action string) (decision.Decision, error) {
	user, err := tenant.RequireUser(ctx)
	if err != nil {
		return decision.Decision{}, err
	}
	d := h.authz.Evaluate(&user, resource, action, decision.Context{"tenantId": user.TenantID})
	if !d.Allowed {
		return d, dErrors.New(dErrors.CodeForbidden, h.authz.ExplainDecision(d))
	}
	return d, nil
}

func parseCriteria(r *http.Request) (audit.Criteria, error) {
	q := r.URL.Query()
	c := audit.Criteria{
		TenantID:     q.Get("tenant_id"),
		ActorID:      q.Get("actor_id"),
		Action:       q.Get("action"),
		ResourceType: q.Get("resource_type"),
		ResourceID:   q.Get("resource_id"),
		Status:       q.Get("status"),
	}
	var err error
	if c.From, err = parseTime(q.Get("from"), "from"); err != nil {
		return c, err
	}
	if c.To, err = parseTime(q.Get("to"), "to"); err != nil {
		return c, err
	}
	if c.Offset, err = parseInt(q.Get("offset"), "offset"); err != nil {
		return c, err
	}
	if c.Limit, err = parseInt(q.Get("limit"), "limit"); err != nil {
		return c, err
	}
	return c, nil
}

func parseTime(v, field string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, dErrors.New(dErrors.CodeInvalidArgument, field+" must be an RFC3339 timestamp")
	}
	return t, nil
}

func parseInt(v, field string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, dErrors.New(dErrors.CodeInvalidArgument, field+" must be a non-negative integer")
	}
	return n, nil
}
