package httptransport

import (
	"strings"
	"time"

	"backoffice/internal/decision"
	"backoffice/internal/events"
	"backoffice/internal/featureflag"
	dErrors "backoffice/pkg/domain-errors"
)

type EvaluateRequest struct {
	Resource string           `json:"resource"`
	Action   string           `json:"action"`
	Context  decision.Context `json:"context,omitempty"`
}

func (r *EvaluateRequest) Validate() error {
	r.Resource = strings.TrimSpace(r.Resource)
	r.Action = strings.TrimSpace(r.Action)
	if r.Resource == "" || r.Action == "" {
		return dErrors.New(dErrors.CodeInvalidArgument, "resource and action are required")
	}
	return nil
}

type EvaluateResponse struct {
	Decision       decision.Decision `json:"decision"`
	Explanation    string            `json:"explanation"`
	RequiresReason bool              `json:"requires_reason"`
}

type RequiresReasonResponse struct {
	Resource       string `json:"resource"`
	Action         string `json:"action"`
	RequiresReason bool   `json:"requires_reason"`
}

// UpdateFlagRequest is a shallow patch plus an optional reason.
type UpdateFlagRequest struct {
	featureflag.FlagUpdate
	Reason string `json:"reason,omitempty"`
}

func (r *UpdateFlagRequest) Validate() error {
	if p := r.RolloutPercentage; p != nil && (*p < 0 || *p > 100) {
		return dErrors.New(dErrors.CodeInvalidArgument, "rollout_percentage must be between 0 and 100")
	}
	return nil
}

type RefundRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

type ReasonRequest struct {
	Reason string `json:"reason"`
}

type DeadLetterResponse struct {
	Event        events.Event `json:"event"`
	Subscription uint64       `json:"subscription"`
	Error        string       `json:"error"`
	FailedAt     time.Time    `json:"failed_at"`
	Attempts     int          `json:"attempts"`
}

func toDeadLetterResponses(letters []events.DeadLetter) []DeadLetterResponse {
	out := make([]DeadLetterResponse, 0, len(letters))
	for _, dl := range letters {
		resp := DeadLetterResponse{
			Event:        dl.Event,
			Subscription: uint64(dl.Subscription),
			FailedAt:     dl.FailedAt,
			Attempts:     dl.Attempts,
		}
		if dl.Err != nil {
			resp.Error = dl.Err.Error()
		}
		out = append(out, resp)
	}
	return out
}

type RetryResponse struct {
	Retried   int `json:"retried"`
	Remaining int `json:"remaining"`
}
