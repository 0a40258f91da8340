package service

import "errors"

// Validation failures: reported to the caller as a user-facing rejection,
// no state change has occurred.
var (
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInsufficientFunds = errors.New("insufficient store credit")
	ErrLevelTooLow       = errors.New("level too low")
	ErrAccountTooYoung   = errors.New("account does not meet the minimum age")
	ErrBelowThreshold    = errors.New("amount is below the withdrawal threshold for this level")
	ErrAlreadyEntered    = errors.New("already entered")
	ErrAlreadyInGuild    = errors.New("already in a guild")
	ErrGuildFull         = errors.New("guild is full")
	ErrGuildNameTaken    = errors.New("a guild with this name already exists")
	ErrInvalidColor      = errors.New("invalid hex color")
	ErrOnCooldown        = errors.New("on cooldown")
	ErrSelfReferral      = errors.New("cannot refer yourself")
)

// Already-settled state: treated as an idempotent no-op.
var ErrNotFound = errors.New("not found")

// ErrCollaboratorUnavailable means an external collaborator (announcement
// channel, text generation) could not complete; any escrow already
// committed has been reversed by the time this surfaces.
var ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
