package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"hashfund/internal/escrow"
)

// Client queries a Hedera mirror node's REST API. The reconciler uses
// it to resolve the outcome of transactions whose submission ended
// ambiguously, which is the only safe alternative to resubmitting.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a mirror node client. baseURL "" selects the
// public testnet mirror node.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://testnet.mirrornode.hedera.com"
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				IdleConnTimeout:       10 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
	}
}

// Transaction is one record in the mirror node's transaction listing.
type Transaction struct {
	TransactionID string `json:"transaction_id"`
	Result        string `json:"result"`
	ConsensusAt   string `json:"consensus_timestamp"`
	Name          string `json:"name"`
}

type transactionsResponse struct {
	Transactions []Transaction `json:"transactions"`
}

// TransactionStatus resolves what became of a submitted transaction.
// Not-found past the transaction's validity window means it never
// executed.
func (c *Client) TransactionStatus(ctx context.Context, txID string) (escrow.TransactionOutcome, error) {
	txns, err := c.GetTransaction(ctx, txID)
	if err != nil {
		return escrow.OutcomeUnknown, err
	}
	if len(txns) == 0 {
		return escrow.OutcomeNotFound, nil
	}
	// Duplicate submissions share a transaction id; one SUCCESS among
	// them means the transfer happened.
	for _, txn := range txns {
		if txn.Result == "SUCCESS" {
			return escrow.OutcomeSuccess, nil
		}
	}
	return escrow.OutcomeFailed, nil
}

// GetTransaction fetches all records for a transaction id.
func (c *Client) GetTransaction(ctx context.Context, txID string) ([]Transaction, error) {
	url := fmt.Sprintf("%s/api/v1/transactions/%s", c.baseURL, FormatTransactionID(txID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mirror node request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mirror node returned status %d", resp.StatusCode)
	}

	var out transactionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode mirror node response: %w", err)
	}
	return out.Transactions, nil
}

// FormatTransactionID converts the SDK's "0.0.x@seconds.nanos" form to
// the mirror node's "0.0.x-seconds-nanos" path form. Ids already in
// mirror form pass through unchanged.
func FormatTransactionID(txID string) string {
	if !strings.Contains(txID, "@") {
		return txID
	}
	parts := strings.SplitN(txID, "@", 2)
	return parts[0] + "-" + strings.Replace(parts[1], ".", "-", 1)
}
