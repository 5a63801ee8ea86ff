package models

import (
	"time"
)

// MilestoneStatus values for Milestone.Status
const (
	MilestoneStatusPending    = "pending"
	MilestoneStatusInProgress = "in-progress"
	MilestoneStatusCompleted  = "completed"
)

// Project is the authoritative funding record for a campaign. The two
// balance columns are written only by the escrow engine, inside a
// row-locked transaction: FundsInEscrow holds confirmed investor
// deposits not yet released, TreasuryBalance holds amounts already paid
// out to the creator's on-chain treasury. Amounts are whole HBAR.
type Project struct {
	ID                uint      `gorm:"primarykey" json:"id"`
	CreatorID         string    `gorm:"size:100;not null;index" json:"creator_id"`
	CreatorName       string    `gorm:"size:100" json:"creator_name"`
	Title             string    `gorm:"size:200;not null" json:"title"`
	Description       string    `gorm:"type:text" json:"description"`
	Category          string    `gorm:"size:32" json:"category"`
	ImageURL          string    `gorm:"size:500" json:"image_url"`
	TargetAmount      int64     `gorm:"not null" json:"target_amount"`
	FundsInEscrow     int64     `gorm:"not null;default:0" json:"funds_in_escrow"`
	TreasuryBalance   int64     `gorm:"not null;default:0" json:"treasury_balance"`
	Deadline          time.Time `gorm:"not null" json:"deadline"`
	TokenID           string    `gorm:"size:32" json:"token_id"`
	TokenSymbol       string    `gorm:"size:16" json:"token_symbol"`
	TreasuryAccountID string    `gorm:"size:32;not null" json:"treasury_account_id"`
	CreatedAt         time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt         time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	Milestones []Milestone `gorm:"foreignKey:ProjectID" json:"milestones,omitempty"`
}

func (Project) TableName() string {
	return "projects"
}

// Milestone is a creator-defined payout checkpoint owned by its project.
// Status and IsPaid are mutated only by the payout orchestrator; IsPaid
// implies Status == completed and a milestone pays out at most once.
type Milestone struct {
	ID           uint       `gorm:"primarykey" json:"id"`
	ProjectID    uint       `gorm:"not null;index" json:"project_id"`
	Title        string     `gorm:"size:200;not null" json:"title"`
	Description  string     `gorm:"type:text" json:"description"`
	TargetAmount int64      `gorm:"not null" json:"target_amount"`
	Status       string     `gorm:"size:20;not null;default:'pending'" json:"status"`
	IsPaid       bool       `gorm:"not null;default:false" json:"is_paid"`
	PaidTxID     string     `gorm:"size:100" json:"paid_tx_id,omitempty"`
	PaidAt       *time.Time `json:"paid_at,omitempty"`
	Deadline     *time.Time `json:"deadline,omitempty"`
	CreatedAt    time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Milestone) TableName() string {
	return "milestones"
}
