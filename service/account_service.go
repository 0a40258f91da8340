package service

import (
	"context"
	"fmt"

	"guildhall/config"
	"guildhall/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type accountService struct {
	uowFactory  UnitOfWorkFactory
	eco         *config.Economy
	applier     *TxApplier
	progression ProgressionService
}

// NewAccountService creates a new account service
func NewAccountService(uowFactory UnitOfWorkFactory, eco *config.Economy, progression ProgressionService) AccountService {
	return &accountService{
		uowFactory:  uowFactory,
		eco:         eco,
		applier:     NewTxApplier(eco.MaxLogEntries),
		progression: progression,
	}
}

// GetAccount is the read path for display, creating the record on first
// reference
func (s *accountService) GetAccount(ctx context.Context, memberID int64) (*models.Account, error) {
	var account *models.Account
	err := s.uowFactory.Execute(ctx, func(ctx context.Context, uow UnitOfWork) error {
		var err error
		account, err = uow.AccountRepository().GetOrCreate(ctx, memberID)
		return err
	})
	return account, err
}

// RecordReferral stores the referrer and credits the referral count. The
// referrer column is write-once; a second referral attempt changes
// nothing.
func (s *accountService) RecordReferral(ctx context.Context, memberID, referrerID int64, referralName string) error {
	if memberID == referrerID {
		return ErrSelfReferral
	}

	var recorded bool
	err := s.uowFactory.Execute(ctx, func(ctx context.Context, uow UnitOfWork) error {
		if _, err := uow.AccountRepository().GetOrCreate(ctx, memberID); err != nil {
			return err
		}

		set, err := uow.AccountRepository().SetReferrer(ctx, memberID, referrerID)
		if err != nil {
			return err
		}
		recorded = set
		if !set {
			return nil
		}

		_, err = s.applier.Apply(ctx, uow, referrerID, models.FieldReferralCount, decimal.NewFromInt(1), fmt.Sprintf("referral: %s", referralName))
		return err
	})
	if err != nil {
		return err
	}
	if !recorded {
		return nil
	}

	log.WithFields(log.Fields{
		"memberID":   memberID,
		"referrerID": referrerID,
	}).Info("Referral recorded")
	return s.progression.CheckAchievements(ctx, referrerID)
}

// ConfirmVerification rewards the referrer once the referred member passes
// verification
func (s *accountService) ConfirmVerification(ctx context.Context, memberID int64) error {
	var referrer *int64
	err := s.uowFactory.Execute(ctx, func(ctx context.Context, uow UnitOfWork) error {
		account, err := uow.AccountRepository().GetOrCreate(ctx, memberID)
		if err != nil {
			return err
		}
		referrer = account.Referrer
		return nil
	})
	if err != nil {
		return err
	}
	if referrer == nil {
		return nil
	}

	_, err = s.progression.GrantXP(ctx, *referrer, DirectAmount(s.eco.XP.VerifiedInviteXP), fmt.Sprintf("verified invite: member %d", memberID))
	return err
}

// GrantCredits credits an account by administrative fiat. A negative
// amount debits, subject to the non-negative balance rule.
func (s *accountService) GrantCredits(ctx context.Context, memberID int64, amount decimal.Decimal, reason string) error {
	if amount.IsZero() {
		return ErrInvalidAmount
	}
	return s.uowFactory.Execute(ctx, func(ctx context.Context, uow UnitOfWork) error {
		_, err := s.applier.Apply(ctx, uow, memberID, models.FieldStoreCredit, amount, reason)
		return err
	})
}
