package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidArgument = errors.New("invalid argument")

	// Initiation errors. Surfaced to the operator before any session
	// transition happens; the prior session state stays intact.
	ErrAuthRequired            = errors.New("auth token missing")
	ErrWalletUnavailable       = errors.New("wallet unavailable")
	ErrTransactionCreateFailed = errors.New("transaction create failed")
	ErrQrGenerationFailed      = errors.New("qr generation failed")
	ErrVoucherInvalid          = errors.New("voucher code not valid")
	ErrInsufficientBalance     = errors.New("wallet balance insufficient")

	// Settlement and session errors.
	ErrSettlementNotFound   = errors.New("transaction not found on settlement stream")
	ErrSessionBusy          = errors.New("a payment session is already pending")
	ErrConfirmationRequired = errors.New("closing a pending payment requires confirmation")
	ErrUpstream             = errors.New("billing backend error")
)
