package service

import (
	"context"
	"fmt"
	"time"

	"guildhall/config"
	"guildhall/events"
	"guildhall/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type cashoutService struct {
	uowFactory UnitOfWorkFactory
	eco        *config.Economy
	applier    *TxApplier
	affiliate  AffiliateService
	announcer  CashoutAnnouncer
	clock      func() time.Time
}

// NewCashoutService creates a new cashout service
func NewCashoutService(uowFactory UnitOfWorkFactory, eco *config.Economy, affiliate AffiliateService, announcer CashoutAnnouncer) CashoutService {
	return &cashoutService{
		uowFactory: uowFactory,
		eco:        eco,
		applier:    NewTxApplier(eco.MaxLogEntries),
		affiliate:  affiliate,
		announcer:  announcer,
		clock:      time.Now,
	}
}

// RequestCashout validates eligibility, escrows the credits, announces the
// request and files the pending record. The escrow debit commits before
// the announcement goes out; if the announcement fails, a compensating
// refund reverses the debit before the error surfaces.
func (s *cashoutService) RequestCashout(ctx context.Context, memberID int64, amount decimal.Decimal, payoutAddress string) (*CashoutReceipt, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	currency := amount.Mul(decimal.NewFromFloat(s.eco.Cashout.CreditToCurrencyRate))

	err := s.uowFactory.Execute(ctx, func(ctx context.Context, uow UnitOfWork) error {
		account, err := uow.AccountRepository().GetOrCreate(ctx, memberID)
		if err != nil {
			return err
		}

		if account.StoreCredit.LessThan(amount) {
			return ErrInsufficientFunds
		}
		if account.Level < s.eco.Cashout.MinimumLevel {
			return ErrLevelTooLow
		}
		minAge := time.Duration(s.eco.Cashout.MinimumAccountAgeDays) * 24 * time.Hour
		if s.clock().Sub(account.JoinedAt) < minAge {
			return ErrAccountTooYoung
		}
		if amount.LessThan(s.thresholdForLevel(account.Level)) {
			return ErrBelowThreshold
		}

		_, err = s.applier.Apply(ctx, uow, memberID, models.FieldStoreCredit, amount.Neg(), "cashout escrow")
		return err
	})
	if err != nil {
		return nil, err
	}

	messageID, err := s.announcer.AnnounceCashoutRequest(ctx, memberID, amount, currency, payoutAddress)
	if err != nil {
		log.WithFields(log.Fields{
			"memberID": memberID,
			"amount":   amount,
			"error":    err,
		}).Error("Cashout announcement failed, refunding escrow")

		if refundErr := s.refund(ctx, memberID, amount, "cashout refund: announcement failed"); refundErr != nil {
			return nil, fmt.Errorf("failed to refund escrow after announcement failure: %w", refundErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrCollaboratorUnavailable, err)
	}

	err = s.uowFactory.Execute(ctx, func(ctx context.Context, uow UnitOfWork) error {
		if err := uow.CashoutRepository().Create(ctx, &models.PendingCashout{
			MessageID:       messageID,
			MemberID:        memberID,
			CreditsDeducted: amount,
			CurrencyToSend:  currency,
			PayoutAddress:   payoutAddress,
		}); err != nil {
			return err
		}

		uow.EventBus().Publish(events.CashoutRequestedEvent{
			MemberID:       memberID,
			MessageID:      messageID,
			Credits:        amount,
			CurrencyToSend: currency,
		})
		return nil
	})
	if err != nil {
		if refundErr := s.refund(ctx, memberID, amount, "cashout refund: request could not be recorded"); refundErr != nil {
			return nil, fmt.Errorf("failed to refund escrow after record failure: %w", refundErr)
		}
		return nil, err
	}

	return &CashoutReceipt{
		MessageID:      messageID,
		Credits:        amount,
		CurrencyToSend: currency,
	}, nil
}

// thresholdForLevel picks the best-matching level tier's minimum cashout
// amount, falling back to the configured high default.
func (s *cashoutService) thresholdForLevel(level int) decimal.Decimal {
	threshold := decimal.NewFromFloat(s.eco.Cashout.FallbackThreshold)
	bestLevel := -1
	for _, tier := range s.eco.Cashout.Thresholds {
		if level >= tier.Level && tier.Level > bestLevel {
			bestLevel = tier.Level
			threshold = decimal.NewFromFloat(tier.Threshold)
		}
	}
	return threshold
}

// refund is the compensating credit for an escrow that already committed.
func (s *cashoutService) refund(ctx context.Context, memberID int64, amount decimal.Decimal, description string) error {
	return s.uowFactory.Execute(ctx, func(ctx context.Context, uow UnitOfWork) error {
		_, err := s.applier.Apply(ctx, uow, memberID, models.FieldStoreCredit, amount, description)
		return err
	})
}

// Resolve approves or denies a pending cashout. The pending record is
// deleted in the same transaction as the settlement, so resolving twice
// finds no record the second time and returns ErrNotFound without moving
// any funds.
func (s *cashoutService) Resolve(ctx context.Context, messageID int64, approve bool) (*CashoutResolution, error) {
	var resolution *CashoutResolution
	var referrer *int64
	var referralName string
	var cashedOut decimal.Decimal

	err := s.uowFactory.Execute(ctx, func(ctx context.Context, uow UnitOfWork) error {
		resolution = nil
		referrer = nil

		pending, err := uow.CashoutRepository().GetByMessageID(ctx, messageID)
		if err != nil {
			return err
		}
		if pending == nil {
			return ErrNotFound
		}

		res := &CashoutResolution{MemberID: pending.MemberID, Approved: approve}
		if approve {
			account, err := s.applier.Apply(ctx, uow, pending.MemberID, models.FieldCashoutCount, decimal.NewFromInt(1), "cashout approved")
			if err != nil {
				return err
			}
			referrer = account.Referrer
			referralName = fmt.Sprintf("member %d", pending.MemberID)
			cashedOut = pending.CreditsDeducted
		} else {
			if _, err := s.applier.Apply(ctx, uow, pending.MemberID, models.FieldStoreCredit, pending.CreditsDeducted, "cashout denied: refund"); err != nil {
				return err
			}
			res.CreditsRefunded = pending.CreditsDeducted
		}

		if err := uow.CashoutRepository().Delete(ctx, messageID); err != nil {
			return err
		}

		uow.EventBus().Publish(events.CashoutResolvedEvent{
			MemberID:       pending.MemberID,
			Approved:       approve,
			Credits:        pending.CreditsDeducted,
			CurrencyToSend: pending.CurrencyToSend,
			PayoutAddress:  pending.PayoutAddress,
		})

		resolution = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The commission to the referrer is its own transaction; a crash here
	// leaves an approved cashout without its commission rather than
	// rolling the approval back.
	if approve && referrer != nil {
		commission, err := s.affiliate.GrantCashoutCommission(ctx, *referrer, referralName, cashedOut)
		if err != nil {
			return nil, err
		}
		resolution.CommissionPaid = commission
	}

	return resolution, nil
}
