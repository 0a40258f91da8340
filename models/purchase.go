package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MarginType selects the commissionable base for a sale.
type MarginType string

const (
	// MarginTotal commissions the full sale price.
	MarginTotal MarginType = "total"
	// MarginNet commissions the sale price minus the purchase cost.
	MarginNet MarginType = "net"
)

// ProductType distinguishes one-off products from recurring subscriptions.
type ProductType string

const (
	ProductTypeProduct      ProductType = "product"
	ProductTypeSubscription ProductType = "subscription"
)

// Product is a catalogue entry. The catalogue itself is loaded by an
// external collaborator; the engine only reads these records.
type Product struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Type         ProductType     `json:"type"`
	Price        decimal.Decimal `json:"price"`
	PurchaseCost decimal.Decimal `json:"purchase_cost"`
	MarginType   MarginType      `json:"margin_type"`
	Currency     string          `json:"currency"`
	Options      []ProductOption `json:"options,omitempty"`
}

// ProductOption is a purchasable variant with its own price and cost.
type ProductOption struct {
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	PurchaseCost decimal.Decimal `json:"purchase_cost"`
}

// Option returns the named option, or nil.
func (p *Product) Option(name string) *ProductOption {
	for i := range p.Options {
		if p.Options[i].Name == name {
			return &p.Options[i]
		}
	}
	return nil
}

// PendingPurchase is an in-flight product purchase awaiting manual payment
// confirmation, correlated to the payment by a human-readable code.
// Deleted on confirm or deny.
type PendingPurchase struct {
	ID              uuid.UUID       `db:"id"`
	MemberID        int64           `db:"member_id"`
	ProductID       string          `db:"product_id"`
	OptionName      *string         `db:"option_name"`
	CreditApplied   decimal.Decimal `db:"credit_applied"`
	TransactionCode string          `db:"transaction_code"`
	CreatedAt       time.Time       `db:"created_at"`
}

// Promo is a flash promotion with a generated sales description.
type Promo struct {
	ID           uuid.UUID       `db:"id"`
	Name         string          `db:"name"`
	Description  string          `db:"description"`
	Price        decimal.Decimal `db:"price"`
	PurchaseCost decimal.Decimal `db:"purchase_cost"`
	CreatedAt    time.Time       `db:"created_at"`
}
