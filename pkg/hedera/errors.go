package hedera

import (
	"errors"

	"hashfund/internal/escrow"

	hiero "github.com/hashgraph/hedera-sdk-go/v2"
)

// mapError classifies SDK failures into the settlement error kinds the
// escrow engine branches on. Precheck and receipt statuses are
// definitive network answers; anything else (transport failure,
// timeout) is ambiguous and must be reconciled by transaction id
// before resubmitting.
func mapError(op, txID string, err error) error {
	var pre hiero.ErrHederaPreCheckStatus
	if errors.As(err, &pre) {
		return &escrow.SettlementError{Kind: kindForStatus(pre.Status), Op: op, TxID: txID, Err: err}
	}
	var receipt hiero.ErrHederaReceiptStatus
	if errors.As(err, &receipt) {
		return &escrow.SettlementError{Kind: kindForStatus(receipt.Status), Op: op, TxID: txID, Err: err}
	}
	return &escrow.SettlementError{Kind: escrow.SettlementUnknown, Op: op, TxID: txID, Err: err}
}

func kindForStatus(status hiero.Status) escrow.SettlementErrorKind {
	switch status {
	case hiero.StatusInsufficientAccountBalance,
		hiero.StatusInsufficientPayerBalance,
		hiero.StatusInsufficientTokenBalance:
		return escrow.SettlementInsufficientBalance
	case hiero.StatusInvalidAccountID,
		hiero.StatusInvalidTokenID:
		return escrow.SettlementInvalidAccount
	}
	return escrow.SettlementRejected
}

// alreadyAssociated reports the benign self-healing case of
// TokenAssociateTransaction.
func alreadyAssociated(err error) bool {
	var pre hiero.ErrHederaPreCheckStatus
	if errors.As(err, &pre) && pre.Status == hiero.StatusTokenAlreadyAssociatedToAccount {
		return true
	}
	var receipt hiero.ErrHederaReceiptStatus
	if errors.As(err, &receipt) && receipt.Status == hiero.StatusTokenAlreadyAssociatedToAccount {
		return true
	}
	return false
}
