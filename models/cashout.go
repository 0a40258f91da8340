package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PendingCashout is an outstanding withdrawal request, keyed by the
// announcement message that the staff resolves it from. Escrowed credits
// have already left the account when this record exists; resolution
// (approve or deny) deletes it, which is the terminal state.
type PendingCashout struct {
	MessageID       int64           `db:"message_id"`
	MemberID        int64           `db:"member_id"`
	CreditsDeducted decimal.Decimal `db:"credits_deducted"`
	CurrencyToSend  decimal.Decimal `db:"currency_to_send"`
	PayoutAddress   string          `db:"payout_address"`
	CreatedAt       time.Time       `db:"created_at"`
}
