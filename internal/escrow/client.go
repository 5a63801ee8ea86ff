package escrow

import "context"

// Account identifies a party on the settlement network. Key is an
// opaque signing capability handed through to the adapter; the engine
// never inspects it. Accounts that only receive funds need no key.
type Account struct {
	ID  string
	Key string
}

// Balance is an account's holdings as reported by the network, in
// whole HBAR and whole token units.
type Balance struct {
	Hbar   int64
	Tokens map[string]int64
}

// SettlementClient is the contract the escrow engine consumes for all
// on-chain movement. Implementations must block until network finality
// and return a transaction id only for confirmed transfers; failures
// are reported as *SettlementError so the engine can branch on the
// kind. Amounts are whole units; any smallest-unit conversion belongs
// inside the implementation.
type SettlementClient interface {
	// Transfer moves amount from one account to another and blocks
	// until the network finalizes it. An empty tokenID transfers the
	// native asset; otherwise the named token is transferred.
	Transfer(ctx context.Context, from, to Account, tokenID string, amount int64) (string, error)

	// AssociateToken associates an account with a token. Calling it
	// for an already-associated account is a benign no-op reported as
	// success with an empty transaction id.
	AssociateToken(ctx context.Context, account Account, tokenID string) (string, error)

	// CheckAssociation reports whether the account is associated with
	// the token.
	CheckAssociation(ctx context.Context, accountID, tokenID string) (bool, error)

	// GetBalance returns the native balance plus the balance of each
	// requested token.
	GetBalance(ctx context.Context, accountID string, tokenIDs ...string) (*Balance, error)

	// OperatorAccountID is the platform's holding account, the
	// intermediary for investments and payouts.
	OperatorAccountID() string
}
