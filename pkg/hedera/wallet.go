package hedera

import (
	"context"
	"fmt"

	"hashfund/internal/escrow"

	hiero "github.com/hashgraph/hedera-sdk-go/v2"
)

// Wallet is a freshly created network account. The private key is
// returned to the caller and never persisted here; custody is the
// caller's problem.
type Wallet struct {
	AccountID  string
	PublicKey  string
	PrivateKey string
}

// CreateAccount generates an ed25519 key pair and creates a funded
// account, paying from the operator.
func (c *Client) CreateAccount(ctx context.Context, initialHbar int64) (*Wallet, error) {
	const op = "create-account"
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key, err := hiero.PrivateKeyGenerateEd25519()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	c.operatorMu.Lock()
	defer c.operatorMu.Unlock()

	resp, err := hiero.NewAccountCreateTransaction().
		SetKey(key.PublicKey()).
		SetInitialBalance(hiero.HbarFromTinybar(ToTinybar(initialHbar))).
		Execute(c.operator)
	if err != nil {
		return nil, mapError(op, "", err)
	}
	receipt, err := resp.GetReceipt(c.operator)
	if err != nil {
		return nil, mapError(op, resp.TransactionID.String(), err)
	}
	if receipt.AccountID == nil {
		return nil, &escrow.SettlementError{Kind: escrow.SettlementRejected, Op: op, Err: fmt.Errorf("no account id in receipt")}
	}

	return &Wallet{
		AccountID:  receipt.AccountID.String(),
		PublicKey:  key.PublicKey().String(),
		PrivateKey: key.String(),
	}, nil
}

// CreateProjectToken creates a fungible project token with the creator
// account as treasury, signed by the creator's own key.
func (c *Client) CreateProjectToken(ctx context.Context, creator escrow.Account, name, symbol string) (tokenID, treasuryAccountID string, err error) {
	const op = "create-token"
	if err := ctx.Err(); err != nil {
		return "", "", err
	}

	creatorID, err := hiero.AccountIDFromString(creator.ID)
	if err != nil {
		return "", "", &escrow.SettlementError{Kind: escrow.SettlementInvalidAccount, Op: op, Err: err}
	}
	creatorKey, err := hiero.PrivateKeyFromString(creator.Key)
	if err != nil {
		return "", "", &escrow.SettlementError{Kind: escrow.SettlementInvalidAccount, Op: op, Err: err}
	}

	signer, temporary, err := c.clientFor(creator)
	if err != nil {
		return "", "", err
	}
	if temporary {
		defer signer.Close()
	}

	frozen, err := hiero.NewTokenCreateTransaction().
		SetTokenName(name).
		SetTokenSymbol(symbol).
		SetTokenType(hiero.TokenTypeFungibleCommon).
		SetDecimals(0).
		SetInitialSupply(1_000_000).
		SetTreasuryAccountID(creatorID).
		SetSupplyType(hiero.TokenSupplyTypeInfinite).
		SetAdminKey(creatorKey.PublicKey()).
		SetSupplyKey(creatorKey.PublicKey()).
		FreezeWith(signer)
	if err != nil {
		return "", "", mapError(op, "", err)
	}

	resp, err := frozen.Sign(creatorKey).Execute(signer)
	if err != nil {
		return "", "", mapError(op, "", err)
	}
	receipt, err := resp.GetReceipt(signer)
	if err != nil {
		return "", "", mapError(op, resp.TransactionID.String(), err)
	}
	if receipt.TokenID == nil {
		return "", "", &escrow.SettlementError{Kind: escrow.SettlementRejected, Op: op, Err: fmt.Errorf("no token id in receipt")}
	}

	return receipt.TokenID.String(), creatorID.String(), nil
}
