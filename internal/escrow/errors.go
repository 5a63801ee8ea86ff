package escrow

import (
	"errors"
	"fmt"
)

// Rejection errors. None of these leave any local or on-chain state
// behind; the caller may correct the request and resubmit.
var (
	ErrValidation          = errors.New("escrow: validation failed")
	ErrNotFound            = errors.New("escrow: record not found")
	ErrDeadlinePassed      = errors.New("escrow: project deadline has passed")
	ErrInsufficientFunds   = errors.New("escrow: insufficient funds in escrow")
	ErrAssociationRequired = errors.New("escrow: investor account not associated with project token")
	ErrAlreadyPaid         = errors.New("escrow: milestone already paid")
	ErrNotCreator          = errors.New("escrow: caller is not the project creator")
)

// ErrPayoutPending marks the distinguishable half-complete state of a
// milestone payout or refund: the local ledger moved the funds but the
// on-chain leg has not confirmed. Retry or reconciliation completes the
// on-chain leg only; the local leg is never re-applied.
var ErrPayoutPending = errors.New("escrow: funds released locally, on-chain payout pending")

// ErrConsistency marks a ledger invariant violation. The operation
// aborts without committing and the condition is logged for an
// operator; balances are never clamped.
var ErrConsistency = errors.New("escrow: ledger invariant violated")

// SettlementErrorKind classifies failures reported by the settlement
// network so callers can branch on them.
type SettlementErrorKind int

const (
	// SettlementRejected is a definitive network rejection. The
	// transfer did not happen and will not happen; resubmitting the
	// same request is safe.
	SettlementRejected SettlementErrorKind = iota
	// SettlementUnknown is an ambiguous outcome (timeout, transport
	// failure after submission). The transfer may have succeeded;
	// the outcome must be resolved by transaction id before any
	// resubmission.
	SettlementUnknown
	// SettlementInsufficientBalance means the paying account cannot
	// cover the transfer.
	SettlementInsufficientBalance
	// SettlementInvalidAccount means an account or token identifier
	// was not accepted by the network.
	SettlementInvalidAccount
)

func (k SettlementErrorKind) String() string {
	switch k {
	case SettlementRejected:
		return "rejected"
	case SettlementUnknown:
		return "unknown"
	case SettlementInsufficientBalance:
		return "insufficient_balance"
	case SettlementInvalidAccount:
		return "invalid_account"
	}
	return "unknown"
}

// SettlementError is returned by SettlementClient implementations.
type SettlementError struct {
	Kind SettlementErrorKind
	Op   string
	TxID string
	Err  error
}

func (e *SettlementError) Error() string {
	if e.TxID != "" {
		return fmt.Sprintf("settlement %s (%s, tx %s): %v", e.Op, e.Kind, e.TxID, e.Err)
	}
	return fmt.Sprintf("settlement %s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *SettlementError) Unwrap() error {
	return e.Err
}

// Ambiguous reports whether the outcome of the failed operation is
// unknown and must be reconciled before resubmitting.
func (e *SettlementError) Ambiguous() bool {
	return e.Kind == SettlementUnknown
}

// Operation phases reported by PhaseError.
const (
	PhaseSettlement = "settlement"
	PhaseRecord     = "record"
	PhasePayout     = "payout"
)

// PhaseError tells the caller which phase of a two-system operation
// failed, together with the transaction id when the on-chain leg
// already confirmed. "record" failures mean real money moved with no
// matching local row; the message must surface the transaction id so
// the gap can be reconciled.
type PhaseError struct {
	Phase string
	TxID  string
	Err   error
}

func (e *PhaseError) Error() string {
	if e.Phase == PhaseRecord && e.TxID != "" {
		return fmt.Sprintf("on-chain transfer confirmed (tx %s) but recording failed: %v", e.TxID, e.Err)
	}
	return fmt.Sprintf("%s phase failed: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}
