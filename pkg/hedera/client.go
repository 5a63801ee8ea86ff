package hedera

import (
	"context"
	"fmt"
	"os"
	"sync"

	"hashfund/internal/escrow"

	hiero "github.com/hashgraph/hedera-sdk-go/v2"
	logrus "github.com/sirupsen/logrus"
)

// Client implements escrow.SettlementClient against the Hedera network.
// Transfers block until a receipt is returned, which is the network's
// finality point. The operator account is the platform's holding
// account; submissions it signs are serialized so concurrent payouts
// never race on its transaction state.
type Client struct {
	network    string
	operatorID hiero.AccountID
	operator   *hiero.Client

	// Serializes submissions signed by the operator identity.
	operatorMu sync.Mutex
}

// NewClient builds a client for the named network ("mainnet",
// "testnet", "previewnet") with the given operator credentials.
func NewClient(network, operatorID, operatorKey string) (*Client, error) {
	id, err := hiero.AccountIDFromString(operatorID)
	if err != nil {
		return nil, fmt.Errorf("invalid operator account id: %w", err)
	}
	key, err := hiero.PrivateKeyFromString(operatorKey)
	if err != nil {
		return nil, fmt.Errorf("invalid operator key: %w", err)
	}

	c, err := hiero.ClientForName(network)
	if err != nil {
		return nil, fmt.Errorf("unknown network %q: %w", network, err)
	}
	c.SetOperator(id, key)
	c.SetDefaultMaxTransactionFee(hiero.NewHbar(100))

	return &Client{
		network:    network,
		operatorID: id,
		operator:   c,
	}, nil
}

// NewClientFromEnv reads HEDERA_NETWORK, HEDERA_OPERATOR_ID and
// HEDERA_OPERATOR_KEY. HEDERA_NETWORK defaults to testnet.
func NewClientFromEnv() (*Client, error) {
	network := os.Getenv("HEDERA_NETWORK")
	if network == "" {
		network = "testnet"
	}
	return NewClient(network, os.Getenv("HEDERA_OPERATOR_ID"), os.Getenv("HEDERA_OPERATOR_KEY"))
}

// OperatorAccountID returns the platform holding account id.
func (c *Client) OperatorAccountID() string {
	return c.operatorID.String()
}

// Close releases the underlying network channels.
func (c *Client) Close() error {
	return c.operator.Close()
}

// clientFor returns the client that signs for the given account: the
// shared operator client for the operator itself, or a throwaway
// client set up with the account's own key. The caller owns closing
// throwaway clients.
func (c *Client) clientFor(account escrow.Account) (*hiero.Client, bool, error) {
	if account.ID == c.operatorID.String() || account.Key == "" {
		return c.operator, false, nil
	}
	id, err := hiero.AccountIDFromString(account.ID)
	if err != nil {
		return nil, false, &escrow.SettlementError{Kind: escrow.SettlementInvalidAccount, Op: "client", Err: err}
	}
	key, err := hiero.PrivateKeyFromString(account.Key)
	if err != nil {
		return nil, false, &escrow.SettlementError{Kind: escrow.SettlementInvalidAccount, Op: "client", Err: err}
	}
	userClient, err := hiero.ClientForName(c.network)
	if err != nil {
		return nil, false, err
	}
	userClient.SetOperator(id, key)
	return userClient, true, nil
}

// Transfer moves amount (whole HBAR, or whole token units when tokenID
// is set) from one account to another and blocks until the receipt
// confirms finality.
func (c *Client) Transfer(ctx context.Context, from, to escrow.Account, tokenID string, amount int64) (string, error) {
	const op = "transfer"
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if amount <= 0 {
		return "", &escrow.SettlementError{Kind: escrow.SettlementRejected, Op: op, Err: fmt.Errorf("amount must be positive, got %d", amount)}
	}

	fromID, err := hiero.AccountIDFromString(from.ID)
	if err != nil {
		return "", &escrow.SettlementError{Kind: escrow.SettlementInvalidAccount, Op: op, Err: err}
	}
	toID, err := hiero.AccountIDFromString(to.ID)
	if err != nil {
		return "", &escrow.SettlementError{Kind: escrow.SettlementInvalidAccount, Op: op, Err: err}
	}

	signer, temporary, err := c.clientFor(from)
	if err != nil {
		return "", err
	}
	if temporary {
		defer signer.Close()
	}

	tx := hiero.NewTransferTransaction()
	if tokenID == "" {
		tx.AddHbarTransfer(fromID, hiero.HbarFromTinybar(-ToTinybar(amount))).
			AddHbarTransfer(toID, hiero.HbarFromTinybar(ToTinybar(amount)))
	} else {
		tid, err := hiero.TokenIDFromString(tokenID)
		if err != nil {
			return "", &escrow.SettlementError{Kind: escrow.SettlementInvalidAccount, Op: op, Err: err}
		}
		tx.AddTokenTransfer(tid, fromID, -amount).
			AddTokenTransfer(tid, toID, amount)
	}

	if from.ID == c.operatorID.String() {
		tx.SetTransactionMemo("Milestone Payout")
		c.operatorMu.Lock()
		defer c.operatorMu.Unlock()
	}

	resp, err := tx.Execute(signer)
	if err != nil {
		return "", mapError(op, "", err)
	}
	txID := resp.TransactionID.String()

	receipt, err := resp.GetReceipt(signer)
	if err != nil {
		return "", mapError(op, txID, err)
	}
	if receipt.Status != hiero.StatusSuccess {
		return "", &escrow.SettlementError{
			Kind: escrow.SettlementRejected,
			Op:   op,
			TxID: txID,
			Err:  fmt.Errorf("receipt status %s", receipt.Status),
		}
	}

	logrus.WithFields(logrus.Fields{
		"from":   from.ID,
		"to":     to.ID,
		"amount": amount,
		"token":  tokenID,
		"tx":     txID,
	}).Info("Transfer finalized")
	return txID, nil
}

// AssociateToken associates the account with the token, signing with
// the account's own key. Already-associated accounts report success
// with an empty transaction id.
func (c *Client) AssociateToken(ctx context.Context, account escrow.Account, tokenID string) (string, error) {
	const op = "associate"
	if err := ctx.Err(); err != nil {
		return "", err
	}

	accountID, err := hiero.AccountIDFromString(account.ID)
	if err != nil {
		return "", &escrow.SettlementError{Kind: escrow.SettlementInvalidAccount, Op: op, Err: err}
	}
	tid, err := hiero.TokenIDFromString(tokenID)
	if err != nil {
		return "", &escrow.SettlementError{Kind: escrow.SettlementInvalidAccount, Op: op, Err: err}
	}

	signer, temporary, err := c.clientFor(account)
	if err != nil {
		return "", err
	}
	if temporary {
		defer signer.Close()
	}

	frozen, err := hiero.NewTokenAssociateTransaction().
		SetAccountID(accountID).
		SetTokenIDs(tid).
		FreezeWith(signer)
	if err != nil {
		return "", mapError(op, "", err)
	}

	resp, err := frozen.Execute(signer)
	if err != nil {
		if alreadyAssociated(err) {
			return "", nil
		}
		return "", mapError(op, "", err)
	}
	txID := resp.TransactionID.String()

	if _, err := resp.GetReceipt(signer); err != nil {
		if alreadyAssociated(err) {
			return "", nil
		}
		return "", mapError(op, txID, err)
	}
	return txID, nil
}

// CheckAssociation reports whether the account has a token
// relationship for the token. The relationship only exists after an
// association transaction, so a zero balance still reports true.
func (c *Client) CheckAssociation(ctx context.Context, accountID, tokenID string) (bool, error) {
	const op = "check-association"
	if err := ctx.Err(); err != nil {
		return false, err
	}

	id, err := hiero.AccountIDFromString(accountID)
	if err != nil {
		return false, &escrow.SettlementError{Kind: escrow.SettlementInvalidAccount, Op: op, Err: err}
	}
	tid, err := hiero.TokenIDFromString(tokenID)
	if err != nil {
		return false, &escrow.SettlementError{Kind: escrow.SettlementInvalidAccount, Op: op, Err: err}
	}

	info, err := hiero.NewAccountInfoQuery().
		SetAccountID(id).
		Execute(c.operator)
	if err != nil {
		return false, mapError(op, "", err)
	}

	for _, rel := range info.TokenRelationships {
		if rel.TokenID == tid {
			return true, nil
		}
	}
	return false, nil
}

// GetBalance returns the native balance plus the balance of each
// requested token, in whole units.
func (c *Client) GetBalance(ctx context.Context, accountID string, tokenIDs ...string) (*escrow.Balance, error) {
	const op = "balance"
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id, err := hiero.AccountIDFromString(accountID)
	if err != nil {
		return nil, &escrow.SettlementError{Kind: escrow.SettlementInvalidAccount, Op: op, Err: err}
	}

	balance, err := hiero.NewAccountBalanceQuery().
		SetAccountID(id).
		Execute(c.operator)
	if err != nil {
		return nil, mapError(op, "", err)
	}

	result := &escrow.Balance{
		Hbar:   FromTinybar(balance.Hbars.AsTinybar()),
		Tokens: make(map[string]int64, len(tokenIDs)),
	}
	for _, tokenID := range tokenIDs {
		tid, err := hiero.TokenIDFromString(tokenID)
		if err != nil {
			return nil, &escrow.SettlementError{Kind: escrow.SettlementInvalidAccount, Op: op, Err: err}
		}
		result.Tokens[tokenID] = int64(balance.Tokens.Get(tid))
	}
	return result, nil
}
