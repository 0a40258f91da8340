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

type affiliateService struct {
	uowFactory UnitOfWorkFactory
	eco        *config.Economy
	applier    *TxApplier
	clock      func() time.Time
}

// NewAffiliateService creates a new affiliate service
func NewAffiliateService(uowFactory UnitOfWorkFactory, eco *config.Economy) AffiliateService {
	return &affiliateService{
		uowFactory: uowFactory,
		eco:        eco,
		applier:    NewTxApplier(eco.MaxLogEntries),
		clock:      time.Now,
	}
}

// CalculateCommission resolves the commission owed to the referrer for a
// sale. Rate arithmetic stays in decimal so configured rates like 0.05
// never pick up float residue.
func (s *affiliateService) CalculateCommission(referrer *models.Account, salePrice decimal.Decimal, product *models.Product, option *models.ProductOption) decimal.Decimal {
	cost := product.PurchaseCost
	if option != nil {
		cost = option.PurchaseCost
	}

	base := salePrice
	if product.MarginType == models.MarginNet {
		base = salePrice.Sub(cost)
	}
	if !base.IsPositive() {
		return decimal.Zero
	}

	// A top-1 guild rank replaces the whole tier-and-boost stack with its
	// flat rate.
	if referrer.GuildBonus != nil && referrer.GuildBonus.Type == models.GuildBonusTop1 {
		return base.Mul(decimal.NewFromFloat(referrer.GuildBonus.CommissionRate))
	}

	now := s.clock()

	rate := decimal.Zero
	for _, tier := range s.eco.Affiliate.CommissionTiers {
		if referrer.Level >= tier.Level {
			tierRate := decimal.NewFromFloat(tier.Rate)
			if tierRate.GreaterThan(rate) {
				rate = tierRate
			}
		}
	}

	if referrer.VIP.Active(now) {
		best := decimal.Zero
		for _, tier := range s.eco.VIP.CommissionBonusTiers {
			if referrer.VIP.ConsecutiveMonths >= tier.ConsecutiveMonths {
				boost := decimal.NewFromFloat(tier.Boost)
				if boost.GreaterThan(best) {
					best = boost
				}
			}
		}
		rate = rate.Add(best)
	}

	if referrer.PermanentAffiliateBonus {
		rate = rate.Add(decimal.NewFromFloat(s.eco.Affiliate.PermanentLoyaltyRate))
	}

	for id, booster := range referrer.ActiveBoosters {
		if models.IsCommissionBooster(id) && booster.Active(now) {
			rate = rate.Add(decimal.NewFromFloat(booster.Bonus))
		}
	}

	if referrer.AffiliateBooster > 0 {
		rate = rate.Add(decimal.NewFromFloat(referrer.AffiliateBooster))
	}

	cap := decimal.NewFromInt(1)
	if gb := referrer.GuildBonus; gb != nil && (gb.Type == models.GuildBonusTop2 || gb.Type == models.GuildBonusTop3) {
		rate = rate.Add(decimal.NewFromFloat(gb.CommissionBoost))
		if gb.MaxCommissionRate > 0 {
			cap = decimal.NewFromFloat(gb.MaxCommissionRate)
		}
	}

	if rate.GreaterThan(cap) {
		rate = cap
	}
	return base.Mul(rate)
}

// GrantSaleCommission credits a sale commission to the referrer: store
// credit plus the lifetime and weekly earnings counters, one transaction.
func (s *affiliateService) GrantSaleCommission(ctx context.Context, referrerID int64, buyerName string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return nil
	}

	description := fmt.Sprintf("sale commission: %s", buyerName)
	err := s.uowFactory.Execute(ctx, func(ctx context.Context, uow UnitOfWork) error {
		if _, err := s.applier.Apply(ctx, uow, referrerID, models.FieldStoreCredit, amount, description); err != nil {
			return err
		}
		if _, err := s.applier.Apply(ctx, uow, referrerID, models.FieldAffiliateEarnings, amount, description); err != nil {
			return err
		}
		if _, err := s.applier.Apply(ctx, uow, referrerID, models.FieldWeeklyAffiliateEarnings, amount, description); err != nil {
			return err
		}
		if _, err := s.applier.Apply(ctx, uow, referrerID, models.FieldAffiliateSaleCount, decimal.NewFromInt(1), description); err != nil {
			return err
		}

		uow.EventBus().Publish(events.CommissionEarnedEvent{
			ReferrerID:   referrerID,
			ReferralName: buyerName,
			Amount:       amount,
		})
		return nil
	})
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"referrerID": referrerID,
		"amount":     amount,
	}).Info("Granted sale commission")
	return nil
}

// GrantCashoutCommission credits the referrer for a referral's cashout
// using the cashout rate table. A zero rate is a no-op.
func (s *affiliateService) GrantCashoutCommission(ctx context.Context, referrerID int64, referralName string, amountCashedOut decimal.Decimal) (decimal.Decimal, error) {
	if !amountCashedOut.IsPositive() {
		return decimal.Zero, nil
	}

	var commission decimal.Decimal
	err := s.uowFactory.Execute(ctx, func(ctx context.Context, uow UnitOfWork) error {
		commission = decimal.Zero

		referrer, err := uow.AccountRepository().GetOrCreate(ctx, referrerID)
		if err != nil {
			return err
		}

		rate := s.cashoutRate(referrer)
		if !rate.IsPositive() {
			return nil
		}
		commission = amountCashedOut.Mul(rate)

		description := fmt.Sprintf("cashout commission: %s", referralName)
		if _, err := s.applier.Apply(ctx, uow, referrerID, models.FieldStoreCredit, commission, description); err != nil {
			return err
		}
		if _, err := s.applier.Apply(ctx, uow, referrerID, models.FieldAffiliateEarnings, commission, description); err != nil {
			return err
		}
		if _, err := s.applier.Apply(ctx, uow, referrerID, models.FieldWeeklyAffiliateEarnings, commission, description); err != nil {
			return err
		}

		uow.EventBus().Publish(events.CommissionEarnedEvent{
			ReferrerID:   referrerID,
			ReferralName: referralName,
			Amount:       commission,
			FromCashout:  true,
		})
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return commission, nil
}

// cashoutRate resolves the cashout commission rate by precedence: a held
// guild-rank bonus dictates the rate outright (even a lower one), the VIP
// rate applies only without a guild bonus, and the base rate is the floor.
func (s *affiliateService) cashoutRate(referrer *models.Account) decimal.Decimal {
	if gb := referrer.GuildBonus; gb != nil {
		if gb.CashoutCommissionRate > 0 {
			return decimal.NewFromFloat(gb.CashoutCommissionRate)
		}
		return decimal.NewFromFloat(s.eco.Affiliate.CashoutBaseRate)
	}

	if referrer.VIP.Active(s.clock()) {
		return decimal.NewFromFloat(s.eco.Affiliate.CashoutVIPRate)
	}
	return decimal.NewFromFloat(s.eco.Affiliate.CashoutBaseRate)
}
