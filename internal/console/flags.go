package console

import (
	"context"

	"backoffice/internal/audit"
	"backoffice/internal/decision"
	"backoffice/internal/events"
	"backoffice/internal/featureflag"
	"backoffice/internal/tenant"
	"backoffice/internal/uow"
	dErrors "backoffice/pkg/domain-errors"
)

const aggregateTypeFlag = "feature_flag"

type UpdateFlagRequest struct {
	FlagID string                 `json:"-"`
	Update featureflag.FlagUpdate `json:"update"`
	Reason string                 `json:"reason,omitempty"`
}

// flagChange carries a FlagChanged event through a unit of work. Flags are
// configuration, not aggregates, so it has nothing to validate.
type flagChange struct {
	uow.Root
}

func (*flagChange) Validate() error { return nil }

// UpdateFlag applies a shallow update to a flag and publishes FlagChanged.
func (s *Service) UpdateFlag(ctx context.Context, req UpdateFlagRequest) (featureflag.Flag, error) {
	user, err := tenant.RequireUser(ctx)
	if err != nil {
		return featureflag.Flag{}, err
	}
	op := operation{
		resource:     ResourceFeatureFlags,
		action:       "update",
		resourceType: aggregateTypeFlag,
		resourceID:   req.FlagID,
		reason:       req.Reason,
		dctx: decision.Context{
			"tenantId": user.TenantID,
			"flagId":   req.FlagID,
		},
	}
	if err := s.authorize(ctx, user, op); err != nil {
		return featureflag.Flag{}, err
	}

	current, ok := s.flags.Flag(req.FlagID)
	if !ok {
		return featureflag.Flag{}, dErrors.New(dErrors.CodeNotFound, "flag not found")
	}

	change := &flagChange{Root: uow.NewRoot(req.FlagID, aggregateTypeFlag)}
	var updated featureflag.Flag
	work := s.newUnitOfWork(func(ctx context.Context, _ uow.ChangeSet) error {
		var err error
		updated, err = s.flags.UpdateFlag(req.FlagID, req.Update)
		if err != nil {
			return err
		}
		change.BumpVersion()
		change.Record(ctx, events.FlagChanged{
			FlagID:            updated.ID,
			Enabled:           updated.Enabled,
			WasEnabled:        current.Enabled,
			RolloutPercentage: updated.RolloutPercentage,
			PreviousRollout:   current.RolloutPercentage,
			ChangedBy:         user.UserID,
		})
		return nil
	})
	work.RegisterChanged(change)

	if err := work.Commit(ctx); err != nil {
		s.record(ctx, user, op, audit.StatusFailed, snapshot(current), nil, map[string]any{"error": dErrors.Message(err)})
		return featureflag.Flag{}, err
	}
	s.record(ctx, user, op, audit.StatusSuccess, snapshot(current), snapshot(updated), nil)
	return updated, nil
}
