package models

import (
	"time"
)

// Investment status values
const (
	InvestmentStatusEscrowed = "escrowed"
	InvestmentStatusReleased = "released"
	InvestmentStatusRefunded = "refunded"
)

// CurrencyHBAR marks investments settled in the network's native asset.
// Any other Currency value is a project token symbol.
const CurrencyHBAR = "HBAR"

// Investment records a confirmed deposit from an investor. A row is only
// inserted after the on-chain transfer has a finalized receipt, so
// TransactionID is always present and carries a unique index: replaying
// the local leg of an interrupted investment by transaction id cannot
// produce a duplicate row.
type Investment struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	ProjectID     uint      `gorm:"not null;index" json:"project_id"`
	InvestorID    string    `gorm:"size:100;not null;index" json:"investor_id"`
	InvestorName  string    `gorm:"size:100" json:"investor_name"`
	Amount        int64     `gorm:"not null" json:"amount"`
	Currency      string    `gorm:"size:16;not null;default:'HBAR'" json:"currency"`
	TokenID       string    `gorm:"size:32" json:"token_id,omitempty"`
	TransactionID string    `gorm:"size:100;not null;uniqueIndex" json:"transaction_id"`
	Status        string    `gorm:"size:20;not null;default:'escrowed'" json:"status"`
	RefundTxID    string    `gorm:"size:100" json:"refund_tx_id,omitempty"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Investment) TableName() string {
	return "investments"
}

// PendingSettlement kinds
const (
	SettlementKindInvestment     = "investment"
	SettlementKindMilestonePayout = "milestone_payout"
	SettlementKindRefund          = "refund"
)

// PendingSettlement phases. The phase records which leg of a two-system
// operation has completed, so recovery knows which leg to replay:
//
//	submitted          intent written, on-chain leg not yet confirmed
//	transfer_confirmed on-chain leg confirmed, local leg not committed
//	local_committed    local leg committed, on-chain leg not confirmed
//	submitting         payout leg claimed by one worker, transfer in flight
//	resolved           both legs done
//	failed             rejected before any money moved
//	operator_hold      outcome cannot be proven, parked for an operator
const (
	SettlementPhaseSubmitted         = "submitted"
	SettlementPhaseTransferConfirmed = "transfer_confirmed"
	SettlementPhaseLocalCommitted    = "local_committed"
	SettlementPhaseSubmitting        = "submitting"
	SettlementPhaseResolved          = "resolved"
	SettlementPhaseFailed            = "failed"
	SettlementPhaseOperatorHold      = "operator_hold"
)

// PendingSettlement is the durable intent record written before the
// risky external call of every escrow operation. Rows that are neither
// resolved nor failed are the reconciliation backlog.
type PendingSettlement struct {
	ID             uint      `gorm:"primarykey" json:"id"`
	IdempotencyKey string    `gorm:"size:40;not null;uniqueIndex" json:"idempotency_key"`
	Kind           string    `gorm:"size:20;not null;index" json:"kind"`
	Phase          string    `gorm:"size:20;not null;index" json:"phase"`
	ProjectID      uint      `gorm:"not null;index" json:"project_id"`
	MilestoneID    uint      `gorm:"index" json:"milestone_id,omitempty"`
	InvestmentID   uint      `json:"investment_id,omitempty"`
	InvestorID     string    `gorm:"size:100" json:"investor_id,omitempty"`
	InvestorName   string    `gorm:"size:100" json:"investor_name,omitempty"`
	Amount         int64     `gorm:"not null" json:"amount"`
	Currency       string    `gorm:"size:16;not null;default:'HBAR'" json:"currency"`
	TokenID        string    `gorm:"size:32" json:"token_id,omitempty"`
	TransactionID  string    `gorm:"size:100" json:"transaction_id,omitempty"`
	LastError      string    `gorm:"type:text" json:"last_error,omitempty"`
	Attempts       int       `gorm:"not null;default:0" json:"attempts"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (PendingSettlement) TableName() string {
	return "pending_settlements"
}
