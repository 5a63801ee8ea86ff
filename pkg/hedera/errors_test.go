package hedera

import (
	"errors"
	"testing"

	"hashfund/internal/escrow"

	hiero "github.com/hashgraph/hedera-sdk-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapErrorClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want escrow.SettlementErrorKind
	}{
		{
			name: "payer balance precheck",
			err:  hiero.ErrHederaPreCheckStatus{Status: hiero.StatusInsufficientPayerBalance},
			want: escrow.SettlementInsufficientBalance,
		},
		{
			name: "token balance at receipt",
			err:  hiero.ErrHederaReceiptStatus{Status: hiero.StatusInsufficientTokenBalance},
			want: escrow.SettlementInsufficientBalance,
		},
		{
			name: "invalid account",
			err:  hiero.ErrHederaPreCheckStatus{Status: hiero.StatusInvalidAccountID},
			want: escrow.SettlementInvalidAccount,
		},
		{
			name: "other network rejection",
			err:  hiero.ErrHederaReceiptStatus{Status: hiero.StatusInvalidSignature},
			want: escrow.SettlementRejected,
		},
		{
			name: "transport failure is ambiguous",
			err:  errors.New("rpc error: context deadline exceeded"),
			want: escrow.SettlementUnknown,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mapped := mapError("transfer", "0.0.1@1.2", tc.err)
			var settleErr *escrow.SettlementError
			require.ErrorAs(t, mapped, &settleErr)
			assert.Equal(t, tc.want, settleErr.Kind)
			assert.Equal(t, "0.0.1@1.2", settleErr.TxID)
		})
	}
}

func TestAlreadyAssociated(t *testing.T) {
	assert.True(t, alreadyAssociated(hiero.ErrHederaPreCheckStatus{Status: hiero.StatusTokenAlreadyAssociatedToAccount}))
	assert.True(t, alreadyAssociated(hiero.ErrHederaReceiptStatus{Status: hiero.StatusTokenAlreadyAssociatedToAccount}))
	assert.False(t, alreadyAssociated(hiero.ErrHederaPreCheckStatus{Status: hiero.StatusInvalidTokenID}))
	assert.False(t, alreadyAssociated(errors.New("timeout")))
}
