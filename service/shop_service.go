package service

import (
	"context"
	"fmt"
	"time"

	"guildhall/config"
	"guildhall/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type shopService struct {
	uowFactory UnitOfWorkFactory
	eco        *config.Economy
	applier    *TxApplier
	clock      func() time.Time
}

// NewShopService creates a new credit-shop service
func NewShopService(uowFactory UnitOfWorkFactory, eco *config.Economy) ShopService {
	return &shopService{
		uowFactory: uowFactory,
		eco:        eco,
		applier:    NewTxApplier(eco.MaxLogEntries),
		clock:      time.Now,
	}
}

// PurchaseBooster debits the item's cost and activates its booster. Buying
// a booster that is already active extends it from its current expiry.
func (s *shopService) PurchaseBooster(ctx context.Context, memberID int64, itemID string) error {
	var item *config.ShopItem
	for i := range s.eco.ShopItems {
		if s.eco.ShopItems[i].ID == itemID {
			item = &s.eco.ShopItems[i]
			break
		}
	}
	if item == nil {
		return ErrNotFound
	}

	err := s.uowFactory.Execute(ctx, func(ctx context.Context, uow UnitOfWork) error {
		cost := decimal.NewFromFloat(item.Cost)
		account, err := s.applier.Apply(ctx, uow, memberID, models.FieldStoreCredit, cost.Neg(), fmt.Sprintf("shop: %s", item.Name))
		if err != nil {
			return err
		}

		now := s.clock()
		boosters := make(map[string]models.Booster, len(account.ActiveBoosters)+1)
		for id, b := range account.ActiveBoosters {
			if b.Active(now) {
				boosters[id] = b
			}
		}

		start := now
		if existing, ok := boosters[item.BoosterID]; ok {
			start = existing.ExpiresAt
		}
		boosters[item.BoosterID] = models.Booster{
			ExpiresAt:  start.Add(time.Duration(item.DurationHours) * time.Hour),
			Multiplier: item.Multiplier,
			Bonus:      item.Bonus,
		}

		return uow.AccountRepository().SetBoosters(ctx, memberID, boosters)
	})
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"memberID": memberID,
		"item":     item.ID,
	}).Info("Booster purchased")
	return nil
}
