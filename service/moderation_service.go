package service

import (
	"context"
	"fmt"

	"guildhall/config"
	"guildhall/events"
	"guildhall/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type moderationService struct {
	uowFactory UnitOfWorkFactory
	eco        *config.Economy
	applier    *TxApplier
}

// NewModerationService creates a new moderation service
func NewModerationService(uowFactory UnitOfWorkFactory, eco *config.Economy) ModerationService {
	return &moderationService{
		uowFactory: uowFactory,
		eco:        eco,
		applier:    NewTxApplier(eco.MaxLogEntries),
	}
}

// ApplyWarning increments the warning counter through the applier so the
// warning lands in the transaction log. Reaching the threshold resets the
// counter to zero and flags the event for escalation; the returned count is
// the pre-reset value the member actually reached.
func (s *moderationService) ApplyWarning(ctx context.Context, memberID int64, reason string) (int, error) {
	var count int
	err := s.uowFactory.Execute(ctx, func(ctx context.Context, uow UnitOfWork) error {
		account, err := s.applier.Apply(ctx, uow, memberID, models.FieldWarnings, decimal.NewFromInt(1), fmt.Sprintf("warning: %s", reason))
		if err != nil {
			return err
		}

		count = account.Warnings
		reached := count >= s.eco.WarningThreshold

		// The reset is a plain counter write, not an audited mutation.
		if reached {
			if err := uow.AccountRepository().SetWarnings(ctx, memberID, 0); err != nil {
				return err
			}
		}

		uow.EventBus().Publish(events.WarningIssuedEvent{
			MemberID:         memberID,
			Reason:           reason,
			Count:            count,
			ThresholdReached: reached,
		})
		return nil
	})
	if err != nil {
		return 0, err
	}

	log.WithFields(log.Fields{
		"memberID": memberID,
		"count":    count,
		"reason":   reason,
	}).Info("Warning issued")
	return count, nil
}
