package service

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"guildhall/config"
	"guildhall/events"
	"guildhall/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type purchaseService struct {
	uowFactory  UnitOfWorkFactory
	eco         *config.Economy
	applier     *TxApplier
	catalogue   Catalogue
	describer   Describer
	progression ProgressionService
	affiliate   AffiliateService
	clock       func() time.Time
	newCode     func() string
}

// NewPurchaseService creates a new purchase service
func NewPurchaseService(uowFactory UnitOfWorkFactory, eco *config.Economy, catalogue Catalogue, describer Describer, progression ProgressionService, affiliate AffiliateService) PurchaseService {
	return &purchaseService{
		uowFactory:  uowFactory,
		eco:         eco,
		applier:     NewTxApplier(eco.MaxLogEntries),
		catalogue:   catalogue,
		describer:   describer,
		progression: progression,
		affiliate:   affiliate,
		clock:       time.Now,
		newCode:     newTransactionCode,
	}
}

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// newTransactionCode builds the human-readable correlation token quoted in
// the manual payment.
func newTransactionCode() string {
	buf := make([]byte, 6)
	for i := range buf {
		buf[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
	}
	return "GH-" + string(buf)
}

// resolvePricing returns the product, the chosen option and the effective
// price for a pending purchase.
func (s *purchaseService) resolvePricing(productID string, optionName *string) (*models.Product, *models.ProductOption, decimal.Decimal, error) {
	product, ok := s.catalogue.Product(productID)
	if !ok {
		return nil, nil, decimal.Zero, ErrNotFound
	}

	price := product.Price
	var option *models.ProductOption
	if optionName != nil && *optionName != "" {
		option = product.Option(*optionName)
		if option == nil {
			return nil, nil, decimal.Zero, ErrNotFound
		}
		price = option.Price
	}
	return product, option, price, nil
}

// BeginPurchase files an in-flight purchase awaiting manual payment
// confirmation
func (s *purchaseService) BeginPurchase(ctx context.Context, memberID int64, productID, optionName string, creditToApply decimal.Decimal) (*models.PendingPurchase, error) {
	var optName *string
	if optionName != "" {
		optName = &optionName
	}

	_, _, price, err := s.resolvePricing(productID, optName)
	if err != nil {
		return nil, err
	}
	if creditToApply.IsNegative() || creditToApply.GreaterThan(price) {
		return nil, ErrInvalidAmount
	}

	pending := &models.PendingPurchase{
		ID:              uuid.New(),
		MemberID:        memberID,
		ProductID:       productID,
		OptionName:      optName,
		CreditApplied:   creditToApply,
		TransactionCode: s.newCode(),
	}

	err = s.uowFactory.Execute(ctx, func(ctx context.Context, uow UnitOfWork) error {
		if creditToApply.IsPositive() {
			account, err := uow.AccountRepository().GetOrCreate(ctx, memberID)
			if err != nil {
				return err
			}
			if account.StoreCredit.LessThan(creditToApply) {
				return ErrInsufficientFunds
			}
		}
		return uow.PurchaseRepository().CreatePending(ctx, pending)
	})
	if err != nil {
		return nil, err
	}
	return pending, nil
}

// ConfirmPurchase settles a pending purchase once the manual payment is
// verified: burns the applied credit, bumps the purchase counters,
// activates or extends a subscription, then grants the buyer's XP and the
// referrer's commission in follow-up transactions.
func (s *purchaseService) ConfirmPurchase(ctx context.Context, purchaseID uuid.UUID) (*PurchaseReceipt, error) {
	var receipt *PurchaseReceipt
	var buyerID int64
	var referrer *int64
	var product *models.Product
	var option *models.ProductOption
	var price decimal.Decimal

	err := s.uowFactory.Execute(ctx, func(ctx context.Context, uow UnitOfWork) error {
		receipt = nil
		referrer = nil

		pending, err := uow.PurchaseRepository().GetPending(ctx, purchaseID)
		if err != nil {
			return err
		}
		if pending == nil {
			return ErrNotFound
		}
		buyerID = pending.MemberID

		product, option, price, err = s.resolvePricing(pending.ProductID, pending.OptionName)
		if err != nil {
			return err
		}

		description := fmt.Sprintf("purchase: %s", product.Name)
		if _, err := s.applier.Apply(ctx, uow, buyerID, models.FieldPurchaseCount, decimal.NewFromInt(1), description); err != nil {
			return err
		}
		account, err := s.applier.Apply(ctx, uow, buyerID, models.FieldPurchaseTotalValue, price, description)
		if err != nil {
			return err
		}
		referrer = account.Referrer

		if pending.CreditApplied.IsPositive() {
			if _, err := s.applier.Apply(ctx, uow, buyerID, models.FieldStoreCredit, pending.CreditApplied.Neg(), fmt.Sprintf("credit applied to %s", product.Name)); err != nil {
				return err
			}
		}

		vipActivated := false
		if product.Type == models.ProductTypeSubscription {
			if err := s.extendVIP(ctx, uow, account); err != nil {
				return err
			}
			vipActivated = true
		}

		if err := uow.PurchaseRepository().DeletePending(ctx, purchaseID); err != nil {
			return err
		}

		receipt = &PurchaseReceipt{
			MemberID:     buyerID,
			ProductName:  product.Name,
			Price:        price,
			VIPActivated: vipActivated,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	xp := price.Mul(decimal.NewFromInt(s.eco.XP.PerCurrencySpent)).IntPart()
	if xp > 0 {
		if _, err := s.progression.GrantXP(ctx, buyerID, DirectAmount(xp), fmt.Sprintf("purchase: %s", product.Name)); err != nil {
			return nil, err
		}
	}

	if referrer != nil {
		commission, err := s.paySaleCommission(ctx, *referrer, buyerID, price, product, option)
		if err != nil {
			return nil, err
		}
		receipt.CommissionPaid = commission
	}

	log.WithFields(log.Fields{
		"memberID": buyerID,
		"product":  product.Name,
		"price":    price,
	}).Info("Purchase confirmed")
	return receipt, nil
}

// extendVIP bumps an active subscription's consecutive-months streak or
// starts a fresh one.
func (s *purchaseService) extendVIP(ctx context.Context, uow UnitOfWork, account *models.Account) error {
	now := s.clock()
	duration := time.Duration(s.eco.VIP.DurationDays) * 24 * time.Hour

	vip := &models.VIPStatus{StartsAt: now, ExpiresAt: now.Add(duration), ConsecutiveMonths: 1}
	if account.VIP.Active(now) {
		vip.StartsAt = account.VIP.StartsAt
		vip.ExpiresAt = account.VIP.ExpiresAt.Add(duration)
		vip.ConsecutiveMonths = account.VIP.ConsecutiveMonths + 1
	}
	return uow.AccountRepository().SetVIP(ctx, account.MemberID, vip)
}

// paySaleCommission reads the referrer, computes the commission and grants
// it. Runs after the sale committed; the sale and the commission are two
// transactions by design.
func (s *purchaseService) paySaleCommission(ctx context.Context, referrerID, buyerID int64, price decimal.Decimal, product *models.Product, option *models.ProductOption) (decimal.Decimal, error) {
	var referrerAccount *models.Account
	err := s.uowFactory.Execute(ctx, func(ctx context.Context, uow UnitOfWork) error {
		var err error
		referrerAccount, err = uow.AccountRepository().GetOrCreate(ctx, referrerID)
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}

	commission := s.affiliate.CalculateCommission(referrerAccount, price, product, option)
	if !commission.IsPositive() {
		return decimal.Zero, nil
	}

	buyerName := fmt.Sprintf("member %d", buyerID)
	if err := s.affiliate.GrantSaleCommission(ctx, referrerID, buyerName, commission); err != nil {
		return decimal.Zero, err
	}
	if err := s.progression.CheckAchievements(ctx, referrerID); err != nil {
		return decimal.Zero, err
	}
	return commission, nil
}

// DenyPurchase discards a pending purchase. Denying one that is already
// settled is a no-op.
func (s *purchaseService) DenyPurchase(ctx context.Context, purchaseID uuid.UUID) error {
	return s.uowFactory.Execute(ctx, func(ctx context.Context, uow UnitOfWork) error {
		pending, err := uow.PurchaseRepository().GetPending(ctx, purchaseID)
		if err != nil {
			return err
		}
		if pending == nil {
			return nil
		}
		return uow.PurchaseRepository().DeletePending(ctx, purchaseID)
	})
}

// CreateFlashPromo stores a promo with a generated sales description,
// falling back to the short hint verbatim when generation fails.
func (s *purchaseService) CreateFlashPromo(ctx context.Context, name, shortHint string, price, purchaseCost decimal.Decimal) (*models.Promo, error) {
	description, err := s.describer.Describe(ctx, name, shortHint)
	if err != nil || description == "" {
		log.WithFields(log.Fields{
			"promo": name,
			"error": err,
		}).Warn("Description generation failed, using hint")
		description = shortHint
	}

	promo := &models.Promo{
		ID:           uuid.New(),
		Name:         name,
		Description:  description,
		Price:        price,
		PurchaseCost: purchaseCost,
	}

	err = s.uowFactory.Execute(ctx, func(ctx context.Context, uow UnitOfWork) error {
		if err := uow.PurchaseRepository().CreatePromo(ctx, promo); err != nil {
			return err
		}
		uow.EventBus().Publish(events.PromoCreatedEvent{Promo: *promo})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return promo, nil
}
