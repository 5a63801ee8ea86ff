package escrow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hashfund/internal/models"

	"github.com/google/uuid"
	logrus "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ReleaseMilestone pays a completed milestone out of escrow into the
// project's on-chain treasury. Strict order: one local transaction
// marks the milestone paid, moves escrow to treasury and writes a
// local_committed intent; only then does the on-chain payout run. If
// the on-chain leg fails the local state stands and ErrPayoutPending is
// returned; retry and reconciliation re-run the on-chain leg only,
// keyed by milestone id, never the local leg.
//
// Rejections (non-creator, unknown milestone, already paid, escrow
// short) change no state.
func (e *Engine) ReleaseMilestone(ctx context.Context, projectID, milestoneID uint, callerID string) (string, error) {
	var project models.Project
	if err := e.db.First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("%w: project %d", ErrNotFound, projectID)
		}
		return "", err
	}
	if project.CreatorID != callerID {
		return "", fmt.Errorf("%w: project %d", ErrNotCreator, projectID)
	}

	var intent models.PendingSettlement

	err := e.db.Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&project, projectID).Error; err != nil {
			return err
		}

		var milestone models.Milestone
		if err := lockForUpdate(tx).
			Where("id = ? AND project_id = ?", milestoneID, projectID).
			First(&milestone).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: milestone %d on project %d", ErrNotFound, milestoneID, projectID)
			}
			return err
		}
		if milestone.IsPaid {
			return fmt.Errorf("%w: milestone %d", ErrAlreadyPaid, milestoneID)
		}
		if milestone.TargetAmount <= 0 {
			return fmt.Errorf("%w: milestone %d has no payout amount", ErrValidation, milestoneID)
		}
		if project.FundsInEscrow < milestone.TargetAmount {
			return fmt.Errorf("%w: escrow %d, milestone target %d", ErrInsufficientFunds, project.FundsInEscrow, milestone.TargetAmount)
		}
		remaining := project.FundsInEscrow - milestone.TargetAmount
		if remaining < 0 {
			return fmt.Errorf("%w: escrow would go negative on project %d", ErrConsistency, projectID)
		}

		now := e.now()
		if err := tx.Model(&models.Milestone{}).Where("id = ?", milestone.ID).Updates(map[string]interface{}{
			"status":  models.MilestoneStatusCompleted,
			"is_paid": true,
			"paid_at": now,
		}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Project{}).Where("id = ?", project.ID).Updates(map[string]interface{}{
			"funds_in_escrow":  remaining,
			"treasury_balance": project.TreasuryBalance + milestone.TargetAmount,
		}).Error; err != nil {
			return err
		}

		intent = models.PendingSettlement{
			IdempotencyKey: uuid.NewString(),
			Kind:           models.SettlementKindMilestonePayout,
			Phase:          models.SettlementPhaseLocalCommitted,
			ProjectID:      project.ID,
			MilestoneID:    milestone.ID,
			Amount:         milestone.TargetAmount,
			Currency:       models.CurrencyHBAR,
		}
		return tx.Create(&intent).Error
	})
	if err != nil {
		return "", err
	}

	return e.executePayout(ctx, &intent, &project)
}

// RetryPayout re-runs the on-chain leg of a milestone payout left in
// the "payout pending settlement" state. If a previous attempt has an
// unresolved transaction id the retry is refused: the outcome must be
// reconciled against the network first, or the escrow could pay twice.
func (e *Engine) RetryPayout(ctx context.Context, milestoneID uint) (string, error) {
	var intent models.PendingSettlement
	err := e.db.Where("kind = ? AND milestone_id = ? AND phase IN ?",
		models.SettlementKindMilestonePayout, milestoneID,
		[]string{models.SettlementPhaseLocalCommitted, models.SettlementPhaseSubmitting}).
		First(&intent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("%w: no pending payout for milestone %d", ErrNotFound, milestoneID)
		}
		return "", err
	}
	if intent.Phase == models.SettlementPhaseSubmitting {
		return "", fmt.Errorf("%w: another attempt is in flight", ErrPayoutPending)
	}
	if intent.TransactionID != "" {
		return "", fmt.Errorf("%w: attempt %s unresolved, reconcile before retrying", ErrPayoutPending, intent.TransactionID)
	}

	var project models.Project
	if err := e.db.First(&project, intent.ProjectID).Error; err != nil {
		return "", err
	}
	return e.executePayout(ctx, &intent, &project)
}

// claimPayout takes exclusive ownership of the on-chain leg of an open
// payout intent. The conditional update is the arbiter between
// concurrent claimants (API retry, startup scan, cron reconciler, which
// may be separate processes on the same database): exactly one sees the
// row flip to submitting, everyone else gets ErrPayoutPending.
func (e *Engine) claimPayout(intent *models.PendingSettlement) error {
	res := e.db.Model(&models.PendingSettlement{}).
		Where("id = ? AND phase = ? AND transaction_id = ''",
			intent.ID, models.SettlementPhaseLocalCommitted).
		Update("phase", models.SettlementPhaseSubmitting)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return fmt.Errorf("%w: another attempt is in flight", ErrPayoutPending)
	}
	intent.Phase = models.SettlementPhaseSubmitting
	return nil
}

// executePayout runs the on-chain leg of a local_committed intent and
// finalizes it. The local ledger is already committed when this runs.
// The intent is claimed first so that concurrent callers cannot submit
// the same transfer twice.
func (e *Engine) executePayout(ctx context.Context, intent *models.PendingSettlement, project *models.Project) (string, error) {
	if err := e.claimPayout(intent); err != nil {
		return "", err
	}

	operator := Account{ID: e.settle.OperatorAccountID()}
	dest := Account{ID: project.TreasuryAccountID}
	if intent.Kind == models.SettlementKindRefund {
		dest = Account{ID: intent.InvestorID}
	}

	txID, err := e.settle.Transfer(ctx, operator, dest, "", intent.Amount)
	if err != nil {
		e.recordPayoutFailure(intent, err)
		return "", fmt.Errorf("%w: %v", ErrPayoutPending, err)
	}

	if intent.Kind == models.SettlementKindRefund {
		if err := e.finalizeRefund(intent, txID); err != nil {
			return txID, err
		}
	} else {
		if err := e.finalizePayout(intent, txID); err != nil {
			return txID, err
		}
	}

	e.emitForIntent(intent, project, txID)
	return txID, nil
}

// finalizePayout marks a milestone payout intent resolved and stamps
// the milestone with its settlement proof.
func (e *Engine) finalizePayout(intent *models.PendingSettlement, txID string) error {
	return e.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.PendingSettlement{}).Where("id = ?", intent.ID).Updates(map[string]interface{}{
			"phase":          models.SettlementPhaseResolved,
			"transaction_id": txID,
		}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Milestone{}).Where("id = ?", intent.MilestoneID).
			Update("paid_tx_id", txID).Error; err != nil {
			return err
		}
		intent.Phase = models.SettlementPhaseResolved
		intent.TransactionID = txID
		return nil
	})
}

func (e *Engine) finalizeRefund(intent *models.PendingSettlement, txID string) error {
	return e.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.PendingSettlement{}).Where("id = ?", intent.ID).Updates(map[string]interface{}{
			"phase":          models.SettlementPhaseResolved,
			"transaction_id": txID,
		}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Investment{}).Where("id = ?", intent.InvestmentID).
			Update("refund_tx_id", txID).Error; err != nil {
			return err
		}
		intent.Phase = models.SettlementPhaseResolved
		intent.TransactionID = txID
		return nil
	})
}

// recordPayoutFailure releases the submitting claim back to
// local_committed. An ambiguous failure also stores the transaction id,
// which blocks further claims until reconciliation proves the outcome.
func (e *Engine) recordPayoutFailure(intent *models.PendingSettlement, cause error) {
	updates := map[string]interface{}{
		"phase":      models.SettlementPhaseLocalCommitted,
		"last_error": cause.Error(),
		"attempts":   intent.Attempts + 1,
	}
	var settleErr *SettlementError
	if errors.As(cause, &settleErr) && settleErr.Ambiguous() && settleErr.TxID != "" {
		updates["transaction_id"] = settleErr.TxID
		intent.TransactionID = settleErr.TxID
	}
	if err := e.db.Model(intent).Updates(updates).Error; err != nil {
		logrus.Errorf("Failed to record payout failure on intent %s: %v", intent.IdempotencyKey, err)
	}
	intent.Phase = models.SettlementPhaseLocalCommitted
	intent.Attempts++
	logrus.WithFields(logrus.Fields{
		"intent":       intent.IdempotencyKey,
		"kind":         intent.Kind,
		"project_id":   intent.ProjectID,
		"milestone_id": intent.MilestoneID,
	}).Warnf("Payout pending settlement: %v", cause)
}

func (e *Engine) emitForIntent(intent *models.PendingSettlement, project *models.Project, txID string) {
	switch intent.Kind {
	case models.SettlementKindMilestonePayout:
		recipients := append(e.projectInvestorIDs(project.ID), project.CreatorID)
		e.emit(FundEvent{
			Kind:         EventMilestonePaid,
			ProjectID:    project.ID,
			ProjectTitle: project.Title,
			MilestoneID:  intent.MilestoneID,
			Amount:       intent.Amount,
			Currency:     intent.Currency,
			RecipientIDs: dedupe(recipients),
		})
	case models.SettlementKindRefund:
		e.emit(FundEvent{
			Kind:         EventInvestmentRefunded,
			ProjectID:    project.ID,
			ProjectTitle: project.Title,
			InvestmentID: intent.InvestmentID,
			Amount:       intent.Amount,
			Currency:     intent.Currency,
			RecipientIDs: dedupe([]string{intent.InvestorID, project.CreatorID}),
		})
	}
	_ = txID
}

// RefundInvestment returns an escrowed native-asset investment to the
// investor. Allowed only after the project deadline when the funding
// goal was not reached. Token investments settle into the project
// treasury and cannot be refunded by the platform's holding account.
func (e *Engine) RefundInvestment(ctx context.Context, investmentID uint, callerID string) (string, error) {
	var investment models.Investment
	if err := e.db.First(&investment, investmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("%w: investment %d", ErrNotFound, investmentID)
		}
		return "", err
	}
	if callerID != "" && callerID != investment.InvestorID {
		return "", fmt.Errorf("%w: investment %d belongs to another investor", ErrValidation, investmentID)
	}
	if investment.Status != models.InvestmentStatusEscrowed {
		return "", fmt.Errorf("%w: investment %d is %s", ErrValidation, investmentID, investment.Status)
	}
	if investment.Currency != models.CurrencyHBAR {
		return "", fmt.Errorf("%w: token investments are not refundable through the platform account", ErrValidation)
	}

	var project models.Project
	if err := e.db.First(&project, investment.ProjectID).Error; err != nil {
		return "", err
	}
	if e.now().Before(project.Deadline) {
		return "", fmt.Errorf("%w: project %d still open until %s", ErrValidation, project.ID, project.Deadline.Format(time.RFC3339))
	}
	if project.FundsInEscrow+project.TreasuryBalance >= project.TargetAmount {
		return "", fmt.Errorf("%w: project %d reached its funding goal", ErrValidation, project.ID)
	}

	var intent models.PendingSettlement

	err := e.db.Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&project, project.ID).Error; err != nil {
			return err
		}
		if project.FundsInEscrow < investment.Amount {
			return fmt.Errorf("%w: escrow %d cannot cover refund of %d", ErrConsistency, project.FundsInEscrow, investment.Amount)
		}
		if err := tx.Model(&models.Investment{}).Where("id = ? AND status = ?", investment.ID, models.InvestmentStatusEscrowed).
			Update("status", models.InvestmentStatusRefunded).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Project{}).Where("id = ?", project.ID).
			Update("funds_in_escrow", project.FundsInEscrow-investment.Amount).Error; err != nil {
			return err
		}
		intent = models.PendingSettlement{
			IdempotencyKey: uuid.NewString(),
			Kind:           models.SettlementKindRefund,
			Phase:          models.SettlementPhaseLocalCommitted,
			ProjectID:      project.ID,
			InvestmentID:   investment.ID,
			InvestorID:     investment.InvestorID,
			Amount:         investment.Amount,
			Currency:       models.CurrencyHBAR,
		}
		return tx.Create(&intent).Error
	})
	if err != nil {
		return "", err
	}

	return e.executePayout(ctx, &intent, &project)
}
