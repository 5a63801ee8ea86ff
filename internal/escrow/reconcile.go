package escrow

import (
	"context"
	"fmt"
	"time"

	"hashfund/internal/models"

	logrus "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// TransactionOutcome is a settled transaction's state as reported by
// the mirror record store.
type TransactionOutcome int

const (
	// OutcomeUnknown means the lookup itself failed; try again later.
	OutcomeUnknown TransactionOutcome = iota
	// OutcomeSuccess means the transaction reached consensus and
	// succeeded.
	OutcomeSuccess
	// OutcomeFailed means the transaction reached consensus and failed;
	// no funds moved.
	OutcomeFailed
	// OutcomeNotFound means the network has no record of the
	// transaction past its validity window; it never executed.
	OutcomeNotFound
)

// TransactionStatusResolver answers what became of a previously
// submitted transaction. The mirror-node client implements it.
type TransactionStatusResolver interface {
	TransactionStatus(ctx context.Context, txID string) (TransactionOutcome, error)
}

// Reconciler closes the gaps interrupted operations leave behind:
// confirmed transfers with no local record, and locally released funds
// whose on-chain leg never confirmed. It never blindly resubmits after
// an ambiguous failure; outcomes are resolved by transaction id first.
type Reconciler struct {
	db       *gorm.DB
	engine   *Engine
	resolver TransactionStatusResolver
}

// NewReconciler builds a reconciler sharing the engine's database.
// resolver may be nil; intents with unresolved transaction ids are then
// left alone and logged.
func NewReconciler(engine *Engine, resolver TransactionStatusResolver) *Reconciler {
	return &Reconciler{db: engine.db, engine: engine, resolver: resolver}
}

// Run processes the open settlement-intent backlog once. Errors on
// individual intents are logged and do not stop the scan.
func (r *Reconciler) Run(ctx context.Context) error {
	var intents []models.PendingSettlement
	err := r.db.Where("phase IN ?", []string{
		models.SettlementPhaseSubmitted,
		models.SettlementPhaseTransferConfirmed,
		models.SettlementPhaseLocalCommitted,
		models.SettlementPhaseSubmitting,
	}).Order("id asc").Find(&intents).Error
	if err != nil {
		return err
	}

	for i := range intents {
		intent := &intents[i]
		if err := r.reconcileIntent(ctx, intent); err != nil {
			logrus.WithFields(logrus.Fields{
				"intent":     intent.IdempotencyKey,
				"kind":       intent.Kind,
				"phase":      intent.Phase,
				"project_id": intent.ProjectID,
			}).Errorf("Reconciliation failed: %v", err)
		}
	}
	return nil
}

func (r *Reconciler) reconcileIntent(ctx context.Context, intent *models.PendingSettlement) error {
	switch {
	case intent.Kind == models.SettlementKindInvestment && intent.Phase == models.SettlementPhaseTransferConfirmed:
		// Money arrived on-chain with no ledger record: replay the
		// local leg. The unique transaction id makes this idempotent.
		_, err := r.engine.applyInvestmentRecord(intent)
		if err == nil {
			logrus.Infof("Reconciled investment intent %s (tx %s)", intent.IdempotencyKey, intent.TransactionID)
		}
		return err

	case intent.Kind == models.SettlementKindInvestment && intent.Phase == models.SettlementPhaseSubmitted:
		return r.resolveSubmittedInvestment(ctx, intent)

	case intent.Phase == models.SettlementPhaseLocalCommitted:
		return r.resolvePendingPayout(ctx, intent)

	case intent.Phase == models.SettlementPhaseSubmitting:
		return r.resolveStalledSubmission(intent)
	}
	return nil
}

// resolveSubmittedInvestment handles investment intents whose on-chain
// leg ended ambiguously. With a transaction id the outcome is resolved
// against the mirror record; without one nothing can be proven and the
// intent is surfaced for an operator.
func (r *Reconciler) resolveSubmittedInvestment(ctx context.Context, intent *models.PendingSettlement) error {
	if intent.TransactionID == "" {
		return r.holdForOperator(intent, "investment intent has no transaction id; cannot prove outcome")
	}
	if r.resolver == nil {
		logrus.Warnf("No transaction resolver configured; intent %s left pending", intent.IdempotencyKey)
		return nil
	}

	outcome, err := r.resolver.TransactionStatus(ctx, intent.TransactionID)
	if err != nil {
		return fmt.Errorf("resolve tx %s: %w", intent.TransactionID, err)
	}
	switch outcome {
	case OutcomeSuccess:
		if err := r.db.Model(intent).Update("phase", models.SettlementPhaseTransferConfirmed).Error; err != nil {
			return err
		}
		intent.Phase = models.SettlementPhaseTransferConfirmed
		_, err := r.engine.applyInvestmentRecord(intent)
		return err
	case OutcomeFailed, OutcomeNotFound:
		return r.db.Model(intent).Update("phase", models.SettlementPhaseFailed).Error
	}
	return nil
}

// resolvePendingPayout completes the on-chain leg of a payout or refund
// whose local ledger already committed. A recorded transaction id is
// checked against the mirror record before any resubmission.
func (r *Reconciler) resolvePendingPayout(ctx context.Context, intent *models.PendingSettlement) error {
	var project models.Project
	if err := r.db.First(&project, intent.ProjectID).Error; err != nil {
		return err
	}

	if intent.TransactionID != "" {
		if r.resolver == nil {
			logrus.Warnf("No transaction resolver configured; payout intent %s left pending", intent.IdempotencyKey)
			return nil
		}
		outcome, err := r.resolver.TransactionStatus(ctx, intent.TransactionID)
		if err != nil {
			return fmt.Errorf("resolve tx %s: %w", intent.TransactionID, err)
		}
		switch outcome {
		case OutcomeSuccess:
			// The earlier attempt actually went through.
			if intent.Kind == models.SettlementKindRefund {
				return r.engine.finalizeRefund(intent, intent.TransactionID)
			}
			return r.engine.finalizePayout(intent, intent.TransactionID)
		case OutcomeFailed, OutcomeNotFound:
			if err := r.db.Model(intent).Update("transaction_id", "").Error; err != nil {
				return err
			}
			intent.TransactionID = ""
		default:
			return nil
		}
	}

	_, err := r.engine.executePayout(ctx, intent, &project)
	if err == nil {
		logrus.Infof("Reconciled %s intent %s for project %d", intent.Kind, intent.IdempotencyKey, intent.ProjectID)
	}
	return err
}

// submittingGrace is how long a claimed payout may sit in flight before
// the reconciler treats the claiming process as dead.
const submittingGrace = 10 * time.Minute

// resolveStalledSubmission handles payout intents another worker claimed
// but never released. A fresh claim is a transfer in flight and is left
// alone. Past the grace period the claiming process is gone, and with no
// transaction id recorded the transfer may or may not have reached the
// network, so the intent is parked instead of resubmitted.
func (r *Reconciler) resolveStalledSubmission(intent *models.PendingSettlement) error {
	if r.engine.now().Sub(intent.UpdatedAt) < submittingGrace {
		return nil
	}
	return r.holdForOperator(intent, "payout claim went stale mid-submission; cannot prove outcome")
}

// holdForOperator parks an intent whose outcome cannot be proven
// automatically. The phase change takes it out of the reconciliation
// backlog, so the system log entry is written exactly once.
func (r *Reconciler) holdForOperator(intent *models.PendingSettlement, msg string) error {
	if err := r.db.Model(intent).Update("phase", models.SettlementPhaseOperatorHold).Error; err != nil {
		return err
	}
	prior := intent.Phase
	intent.Phase = models.SettlementPhaseOperatorHold
	return r.db.Create(&models.SystemLog{
		ProjectID: intent.ProjectID,
		Level:     "ERROR",
		Module:    "Reconciler",
		Message:   msg,
		Meta: models.JSONMap{
			"idempotency_key": intent.IdempotencyKey,
			"kind":            intent.Kind,
			"phase":           prior,
			"amount":          intent.Amount,
		},
	}).Error
}

// Audit verifies the escrow invariants for every project and logs
// violations to the system log. Balances are never corrected here;
// a violation means a code path broke its contract and an operator has
// to look.
func (r *Reconciler) Audit(ctx context.Context) error {
	var projects []models.Project
	if err := r.db.Find(&projects).Error; err != nil {
		return err
	}

	for i := range projects {
		project := &projects[i]
		if err := ctx.Err(); err != nil {
			return err
		}

		var escrowedSum int64
		if err := r.db.Model(&models.Investment{}).
			Where("project_id = ? AND currency = ? AND status = ?", project.ID, models.CurrencyHBAR, models.InvestmentStatusEscrowed).
			Select("COALESCE(SUM(amount), 0)").Scan(&escrowedSum).Error; err != nil {
			return err
		}

		var paidMilestoneSum int64
		if err := r.db.Model(&models.Milestone{}).
			Where("project_id = ? AND is_paid = ?", project.ID, true).
			Select("COALESCE(SUM(target_amount), 0)").Scan(&paidMilestoneSum).Error; err != nil {
			return err
		}

		if project.FundsInEscrow+project.TreasuryBalance != escrowedSum {
			r.logViolation(project, "escrow + treasury diverges from escrowed investments", models.JSONMap{
				"funds_in_escrow":  project.FundsInEscrow,
				"treasury_balance": project.TreasuryBalance,
				"escrowed_sum":     escrowedSum,
			})
		}
		if project.TreasuryBalance > paidMilestoneSum {
			r.logViolation(project, "treasury balance exceeds paid milestone total", models.JSONMap{
				"treasury_balance":   project.TreasuryBalance,
				"paid_milestone_sum": paidMilestoneSum,
			})
		}
		if project.FundsInEscrow < 0 || project.TreasuryBalance < 0 {
			r.logViolation(project, "negative balance column", models.JSONMap{
				"funds_in_escrow":  project.FundsInEscrow,
				"treasury_balance": project.TreasuryBalance,
			})
		}
	}
	return nil
}

func (r *Reconciler) logViolation(project *models.Project, msg string, meta models.JSONMap) {
	logrus.WithField("project_id", project.ID).Error("Escrow invariant violation: " + msg)
	if err := r.db.Create(&models.SystemLog{
		ProjectID: project.ID,
		Level:     "ERROR",
		Module:    "EscrowAudit",
		Message:   msg,
		Meta:      meta,
	}).Error; err != nil {
		logrus.Errorf("Failed to write audit log for project %d: %v", project.ID, err)
	}
}
