package escrow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hashfund/internal/models"

	"github.com/google/uuid"
	logrus "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Engine is the escrow ledger: the single writer of a project's
// FundsInEscrow and TreasuryBalance columns and the owner of the
// invariant between them and the project's Investment and Milestone
// records. All dependencies are injected; there is no package-level
// network client.
type Engine struct {
	db     *gorm.DB
	settle SettlementClient
	events EventPublisher
	now    func() time.Time
}

// New builds an engine. events may be nil when no broker is configured;
// fund events are then dropped.
func New(db *gorm.DB, settle SettlementClient, events EventPublisher) *Engine {
	return &Engine{
		db:     db,
		settle: settle,
		events: events,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// RecordInvestmentInput carries one investment request. Currency is
// CurrencyHBAR for native investments; any other value must equal the
// project's token symbol and settles in the project token.
type RecordInvestmentInput struct {
	ProjectID    uint
	Investor     Account
	InvestorName string
	Amount       int64
	Currency     string
}

// RecordInvestment confirms an on-chain transfer from the investor and
// records it, crediting the project's escrow for native-asset
// investments. The returned Investment's amount is backed by a
// finalized transfer.
//
// Ordering: a durable intent row is written first, then the on-chain
// leg runs, then the local leg commits in one transaction. If the local
// leg fails after the transfer confirmed, the intent row keeps the
// transaction id and the error names the record phase; the reconciler
// replays the local leg keyed by transaction id.
func (e *Engine) RecordInvestment(ctx context.Context, in RecordInvestmentInput) (*models.Investment, error) {
	if in.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if strings.TrimSpace(in.Investor.ID) == "" {
		return nil, fmt.Errorf("%w: investor account id required", ErrValidation)
	}
	if in.Currency == "" {
		in.Currency = models.CurrencyHBAR
	}

	var project models.Project
	if err := e.db.First(&project, in.ProjectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: project %d", ErrNotFound, in.ProjectID)
		}
		return nil, err
	}
	if !e.now().Before(project.Deadline) {
		return nil, fmt.Errorf("%w: project %d closed at %s", ErrDeadlinePassed, project.ID, project.Deadline.Format(time.RFC3339))
	}

	tokenID := ""
	if in.Currency != models.CurrencyHBAR {
		if project.TokenSymbol == "" || in.Currency != project.TokenSymbol {
			return nil, fmt.Errorf("%w: unknown currency %q for project %d", ErrValidation, in.Currency, project.ID)
		}
		tokenID = project.TokenID
		associated, err := e.settle.CheckAssociation(ctx, in.Investor.ID, tokenID)
		if err != nil {
			return nil, fmt.Errorf("check association: %w", err)
		}
		if !associated {
			return nil, fmt.Errorf("%w: account %s, token %s", ErrAssociationRequired, in.Investor.ID, tokenID)
		}
	}

	intent := models.PendingSettlement{
		IdempotencyKey: uuid.NewString(),
		Kind:           models.SettlementKindInvestment,
		Phase:          models.SettlementPhaseSubmitted,
		ProjectID:      project.ID,
		InvestorID:     in.Investor.ID,
		InvestorName:   in.InvestorName,
		Amount:         in.Amount,
		Currency:       in.Currency,
		TokenID:        tokenID,
	}
	if err := e.db.Create(&intent).Error; err != nil {
		return nil, fmt.Errorf("write settlement intent: %w", err)
	}

	// Native investments settle into the platform's holding account;
	// token investments settle directly into the project treasury, as
	// token supply never passes through the operator.
	to := Account{ID: e.settle.OperatorAccountID()}
	if tokenID != "" {
		to = Account{ID: project.TreasuryAccountID}
	}

	txID, err := e.settle.Transfer(ctx, in.Investor, to, tokenID, in.Amount)
	if err != nil {
		e.recordIntentFailure(&intent, err)
		return nil, &PhaseError{Phase: PhaseSettlement, Err: err}
	}

	intent.Phase = models.SettlementPhaseTransferConfirmed
	intent.TransactionID = txID
	if err := e.db.Save(&intent).Error; err != nil {
		// The transfer confirmed; losing the intent row here would
		// leave the gap invisible, so the caller gets the tx id.
		return nil, &PhaseError{Phase: PhaseRecord, TxID: txID, Err: err}
	}

	investment, err := e.applyInvestmentRecord(&intent)
	if err != nil {
		return nil, &PhaseError{Phase: PhaseRecord, TxID: txID, Err: err}
	}

	e.emit(FundEvent{
		Kind:         EventInvestmentRecorded,
		ProjectID:    project.ID,
		ProjectTitle: project.Title,
		InvestmentID: investment.ID,
		Amount:       in.Amount,
		Currency:     in.Currency,
		RecipientIDs: dedupe([]string{in.Investor.ID, project.CreatorID}),
	})

	return investment, nil
}

// applyInvestmentRecord commits the local leg of an investment whose
// on-chain transfer has already confirmed. Idempotent on transaction
// id: replaying a committed intent finds the existing row and resolves
// the intent instead of double-crediting escrow.
func (e *Engine) applyInvestmentRecord(intent *models.PendingSettlement) (*models.Investment, error) {
	var existing models.Investment
	err := e.db.Where("transaction_id = ?", intent.TransactionID).First(&existing).Error
	if err == nil {
		if markErr := e.db.Model(intent).Updates(map[string]interface{}{
			"phase":         models.SettlementPhaseResolved,
			"investment_id": existing.ID,
		}).Error; markErr != nil {
			return nil, markErr
		}
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	investment := models.Investment{
		ProjectID:     intent.ProjectID,
		InvestorID:    intent.InvestorID,
		InvestorName:  intent.InvestorName,
		Amount:        intent.Amount,
		Currency:      intent.Currency,
		TokenID:       intent.TokenID,
		TransactionID: intent.TransactionID,
		Status:        models.InvestmentStatusEscrowed,
	}

	err = e.db.Transaction(func(tx *gorm.DB) error {
		var project models.Project
		if err := lockForUpdate(tx).First(&project, intent.ProjectID).Error; err != nil {
			return err
		}
		if intent.Currency == models.CurrencyHBAR {
			if err := tx.Model(&models.Project{}).Where("id = ?", project.ID).
				Update("funds_in_escrow", project.FundsInEscrow+intent.Amount).Error; err != nil {
				return err
			}
		}
		if err := tx.Create(&investment).Error; err != nil {
			return err
		}
		return tx.Model(&models.PendingSettlement{}).Where("id = ?", intent.ID).Updates(map[string]interface{}{
			"phase":         models.SettlementPhaseResolved,
			"investment_id": investment.ID,
		}).Error
	})
	if err != nil {
		e.db.Model(intent).Update("last_error", err.Error())
		return nil, err
	}

	intent.Phase = models.SettlementPhaseResolved
	intent.InvestmentID = investment.ID
	return &investment, nil
}

// EnsureAssociation associates the account with the token unless it
// already is. Already-associated is a benign outcome, not an error.
func (e *Engine) EnsureAssociation(ctx context.Context, account Account, tokenID string) (string, error) {
	if strings.TrimSpace(tokenID) == "" {
		return "", fmt.Errorf("%w: token id required", ErrValidation)
	}
	associated, err := e.settle.CheckAssociation(ctx, account.ID, tokenID)
	if err != nil {
		return "", err
	}
	if associated {
		return "", nil
	}
	return e.settle.AssociateToken(ctx, account, tokenID)
}

// AccountBalances returns the on-chain balances for an account.
func (e *Engine) AccountBalances(ctx context.Context, accountID string, tokenIDs ...string) (*Balance, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, fmt.Errorf("%w: account id required", ErrValidation)
	}
	return e.settle.GetBalance(ctx, accountID, tokenIDs...)
}

// recordIntentFailure classifies a settlement failure on the intent
// row. Definitive rejections close the intent; ambiguous outcomes stay
// open for the reconciler, keeping the transaction id when one exists.
func (e *Engine) recordIntentFailure(intent *models.PendingSettlement, cause error) {
	updates := map[string]interface{}{
		"last_error": cause.Error(),
		"attempts":   intent.Attempts + 1,
	}
	var settleErr *SettlementError
	if errors.As(cause, &settleErr) && settleErr.Ambiguous() {
		if settleErr.TxID != "" {
			updates["transaction_id"] = settleErr.TxID
		}
	} else {
		updates["phase"] = models.SettlementPhaseFailed
	}
	if err := e.db.Model(intent).Updates(updates).Error; err != nil {
		logrus.Errorf("Failed to record settlement failure on intent %s: %v", intent.IdempotencyKey, err)
	}
}

func (e *Engine) projectInvestorIDs(projectID uint) []string {
	var ids []string
	if err := e.db.Model(&models.Investment{}).
		Where("project_id = ?", projectID).
		Distinct().
		Pluck("investor_id", &ids).Error; err != nil {
		logrus.Warnf("Failed to load investor ids for project %d: %v", projectID, err)
	}
	return ids
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	var out []string
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
