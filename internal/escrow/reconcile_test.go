package escrow

import (
	"context"
	"errors"
	"testing"
	"time"

	"hashfund/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcileConfirmedInvestment(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	project := seedProject(t, engine.db)

	// Transfer confirmed, local leg lost to a crash
	intent := models.PendingSettlement{
		IdempotencyKey: "idem-confirmed",
		Kind:           models.SettlementKindInvestment,
		Phase:          models.SettlementPhaseTransferConfirmed,
		ProjectID:      project.ID,
		InvestorID:     "0.0.1234",
		Amount:         150,
		Currency:       models.CurrencyHBAR,
		TransactionID:  "0.0.1234@1700000000.000000007",
	}
	require.NoError(t, engine.db.Create(&intent).Error)

	reconciler := NewReconciler(engine, &fakeResolver{})
	require.NoError(t, reconciler.Run(context.Background()))

	var investment models.Investment
	require.NoError(t, engine.db.Where("transaction_id = ?", intent.TransactionID).First(&investment).Error)
	assert.Equal(t, int64(150), investment.Amount)

	reloaded := reloadProject(t, engine.db, project.ID)
	assert.Equal(t, int64(150), reloaded.FundsInEscrow)
	assert.Empty(t, openIntents(t, engine.db))
}

func TestReconcileSubmittedInvestment(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	project := seedProject(t, engine.db)

	seedIntent := func(key, txID string) *models.PendingSettlement {
		intent := &models.PendingSettlement{
			IdempotencyKey: key,
			Kind:           models.SettlementKindInvestment,
			Phase:          models.SettlementPhaseSubmitted,
			ProjectID:      project.ID,
			InvestorID:     "0.0.1234",
			Amount:         100,
			Currency:       models.CurrencyHBAR,
			TransactionID:  txID,
		}
		require.NoError(t, engine.db.Create(intent).Error)
		return intent
	}

	succeeded := seedIntent("idem-success", "0.0.1234@1700000000.000000001")
	failed := seedIntent("idem-failed", "0.0.1234@1700000000.000000002")
	vanished := seedIntent("idem-vanished", "0.0.1234@1700000000.000000003")

	resolver := &fakeResolver{outcomes: map[string]TransactionOutcome{
		succeeded.TransactionID: OutcomeSuccess,
		failed.TransactionID:    OutcomeFailed,
		vanished.TransactionID:  OutcomeNotFound,
	}}

	reconciler := NewReconciler(engine, resolver)
	require.NoError(t, reconciler.Run(context.Background()))

	// Only the transfer the network confirmed becomes a record
	var count int64
	require.NoError(t, engine.db.Model(&models.Investment{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	reloaded := reloadProject(t, engine.db, project.ID)
	assert.Equal(t, int64(100), reloaded.FundsInEscrow)

	var resolved models.PendingSettlement
	require.NoError(t, engine.db.First(&resolved, succeeded.ID).Error)
	assert.Equal(t, models.SettlementPhaseResolved, resolved.Phase)

	for _, id := range []uint{failed.ID, vanished.ID} {
		var closed models.PendingSettlement
		require.NoError(t, engine.db.First(&closed, id).Error)
		assert.Equal(t, models.SettlementPhaseFailed, closed.Phase)
	}
}

func TestReconcileSubmittedInvestmentWithoutTxID(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	project := seedProject(t, engine.db)

	intent := models.PendingSettlement{
		IdempotencyKey: "idem-no-tx",
		Kind:           models.SettlementKindInvestment,
		Phase:          models.SettlementPhaseSubmitted,
		ProjectID:      project.ID,
		InvestorID:     "0.0.1234",
		Amount:         100,
		Currency:       models.CurrencyHBAR,
	}
	require.NoError(t, engine.db.Create(&intent).Error)

	reconciler := NewReconciler(engine, &fakeResolver{})
	require.NoError(t, reconciler.Run(context.Background()))

	// Nothing can be proven without a transaction id: the intent is
	// parked for an operator and leaves the backlog
	assert.Empty(t, openIntents(t, engine.db))

	var held models.PendingSettlement
	require.NoError(t, engine.db.First(&held, intent.ID).Error)
	assert.Equal(t, models.SettlementPhaseOperatorHold, held.Phase)

	// A second scan must not page the operator again
	require.NoError(t, reconciler.Run(context.Background()))

	var logs []models.SystemLog
	require.NoError(t, engine.db.Where("module = ?", "Reconciler").Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, "ERROR", logs[0].Level)
}

func TestReconcileStalledPayoutClaim(t *testing.T) {
	engine, settle, _ := newTestEngine(t)
	project := seedProject(t, engine.db)
	milestone := seedMilestone(t, engine.db, project.ID, 300)
	fundProject(t, engine, project.ID, "0.0.1234", 500)

	intent := models.PendingSettlement{
		IdempotencyKey: "idem-stalled-claim",
		Kind:           models.SettlementKindMilestonePayout,
		Phase:          models.SettlementPhaseSubmitting,
		ProjectID:      project.ID,
		MilestoneID:    milestone.ID,
		Amount:         300,
		Currency:       models.CurrencyHBAR,
	}
	require.NoError(t, engine.db.Create(&intent).Error)

	transfersBefore := settle.transferCount()
	reconciler := NewReconciler(engine, &fakeResolver{})

	// A fresh claim is another worker's transfer in flight
	require.NoError(t, reconciler.Run(context.Background()))
	var fresh models.PendingSettlement
	require.NoError(t, engine.db.First(&fresh, intent.ID).Error)
	assert.Equal(t, models.SettlementPhaseSubmitting, fresh.Phase)
	assert.Equal(t, transfersBefore, settle.transferCount())

	// Past the grace period the claim is stale. The transfer may still
	// have reached the network, so the intent is parked, not resubmitted.
	engine.now = func() time.Time { return fresh.UpdatedAt.Add(submittingGrace + time.Minute) }
	require.NoError(t, reconciler.Run(context.Background()))
	require.NoError(t, reconciler.Run(context.Background()))

	assert.Equal(t, transfersBefore, settle.transferCount())

	var held models.PendingSettlement
	require.NoError(t, engine.db.First(&held, intent.ID).Error)
	assert.Equal(t, models.SettlementPhaseOperatorHold, held.Phase)

	var logs []models.SystemLog
	require.NoError(t, engine.db.Where("module = ?", "Reconciler").Find(&logs).Error)
	require.Len(t, logs, 1)
}

func TestReconcilePendingPayout(t *testing.T) {
	engine, settle, _ := newTestEngine(t)
	project := seedProject(t, engine.db)
	milestone := seedMilestone(t, engine.db, project.ID, 300)
	fundProject(t, engine, project.ID, "0.0.1234", 500)

	settle.failWith(&SettlementError{
		Kind: SettlementRejected,
		Op:   "transfer",
		Err:  errors.New("node unavailable"),
	})
	_, err := engine.ReleaseMilestone(context.Background(), project.ID, milestone.ID, "creator-1")
	require.ErrorIs(t, err, ErrPayoutPending)

	reconciler := NewReconciler(engine, &fakeResolver{})
	require.NoError(t, reconciler.Run(context.Background()))

	// The reconciler re-ran only the on-chain leg
	assert.Empty(t, openIntents(t, engine.db))

	var paid models.Milestone
	require.NoError(t, engine.db.First(&paid, milestone.ID).Error)
	assert.NotEmpty(t, paid.PaidTxID)

	reloaded := reloadProject(t, engine.db, project.ID)
	assert.Equal(t, int64(200), reloaded.FundsInEscrow)
	assert.Equal(t, int64(300), reloaded.TreasuryBalance)
}

func TestReconcilePendingPayoutWithConfirmedAttempt(t *testing.T) {
	engine, settle, _ := newTestEngine(t)
	project := seedProject(t, engine.db)
	milestone := seedMilestone(t, engine.db, project.ID, 300)
	fundProject(t, engine, project.ID, "0.0.1234", 500)

	attemptTx := "0.0.9000@1700000000.000000042"
	settle.failWith(&SettlementError{
		Kind: SettlementUnknown,
		Op:   "transfer",
		TxID: attemptTx,
		Err:  errors.New("timeout awaiting receipt"),
	})
	_, err := engine.ReleaseMilestone(context.Background(), project.ID, milestone.ID, "creator-1")
	require.ErrorIs(t, err, ErrPayoutPending)

	transfersBefore := settle.transferCount()

	// The mirror record shows the lost attempt actually succeeded:
	// finalize with its id, never resubmit
	resolver := &fakeResolver{outcomes: map[string]TransactionOutcome{
		attemptTx: OutcomeSuccess,
	}}
	reconciler := NewReconciler(engine, resolver)
	require.NoError(t, reconciler.Run(context.Background()))

	assert.Equal(t, transfersBefore, settle.transferCount())
	assert.Empty(t, openIntents(t, engine.db))

	var paid models.Milestone
	require.NoError(t, engine.db.First(&paid, milestone.ID).Error)
	assert.Equal(t, attemptTx, paid.PaidTxID)
}

func TestReconcilePendingPayoutWithVanishedAttempt(t *testing.T) {
	engine, settle, _ := newTestEngine(t)
	project := seedProject(t, engine.db)
	milestone := seedMilestone(t, engine.db, project.ID, 300)
	fundProject(t, engine, project.ID, "0.0.1234", 500)

	attemptTx := "0.0.9000@1700000000.000000043"
	settle.failWith(&SettlementError{
		Kind: SettlementUnknown,
		Op:   "transfer",
		TxID: attemptTx,
		Err:  errors.New("timeout awaiting receipt"),
	})
	_, err := engine.ReleaseMilestone(context.Background(), project.ID, milestone.ID, "creator-1")
	require.ErrorIs(t, err, ErrPayoutPending)

	transfersBefore := settle.transferCount()

	// The network never saw the attempt: safe to submit a fresh one
	reconciler := NewReconciler(engine, &fakeResolver{})
	require.NoError(t, reconciler.Run(context.Background()))

	assert.Equal(t, transfersBefore+1, settle.transferCount())
	assert.Empty(t, openIntents(t, engine.db))

	var paid models.Milestone
	require.NoError(t, engine.db.First(&paid, milestone.ID).Error)
	assert.NotEmpty(t, paid.PaidTxID)
	assert.NotEqual(t, attemptTx, paid.PaidTxID)
}

func TestAuditFlagsDivergence(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	project := seedProject(t, engine.db)
	fundProject(t, engine, project.ID, "0.0.1234", 200)

	reconciler := NewReconciler(engine, &fakeResolver{})

	// A consistent ledger produces no findings
	require.NoError(t, reconciler.Audit(context.Background()))
	var count int64
	require.NoError(t, engine.db.Model(&models.SystemLog{}).Where("module = ?", "EscrowAudit").Count(&count).Error)
	assert.Zero(t, count)

	// Corrupt the balance column behind the engine's back
	require.NoError(t, engine.db.Model(&models.Project{}).Where("id = ?", project.ID).
		Update("funds_in_escrow", 175).Error)

	require.NoError(t, reconciler.Audit(context.Background()))
	var logs []models.SystemLog
	require.NoError(t, engine.db.Where("module = ?", "EscrowAudit").Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, project.ID, logs[0].ProjectID)
	assert.Equal(t, "ERROR", logs[0].Level)
}
