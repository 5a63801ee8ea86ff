package escrow

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"hashfund/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// One connection keeps the in-memory database alive for the test.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.Project{},
		&models.Milestone{},
		&models.Investment{},
		&models.PendingSettlement{},
		&models.Notification{},
		&models.SystemLog{},
	))
	return db
}

type transferCall struct {
	From    Account
	To      Account
	TokenID string
	Amount  int64
}

// fakeSettlement is an in-memory SettlementClient. Each call's outcome
// is programmable per invocation through the fail queue.
type fakeSettlement struct {
	mu         sync.Mutex
	operatorID string
	txSeq      int
	transfers  []transferCall
	failNext   []error
	associated map[string]bool
	balances   map[string]*Balance
}

func newFakeSettlement() *fakeSettlement {
	return &fakeSettlement{
		operatorID: "0.0.9000",
		associated: make(map[string]bool),
		balances:   make(map[string]*Balance),
	}
}

// failWith queues errors consumed by subsequent Transfer calls, in order.
func (f *fakeSettlement) failWith(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext = append(f.failNext, errs...)
}

func (f *fakeSettlement) Transfer(ctx context.Context, from, to Account, tokenID string, amount int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.transfers = append(f.transfers, transferCall{From: from, To: to, TokenID: tokenID, Amount: amount})
	if len(f.failNext) > 0 {
		err := f.failNext[0]
		f.failNext = f.failNext[1:]
		if err != nil {
			return "", err
		}
	}
	f.txSeq++
	return fmt.Sprintf("0.0.9000@1700000000.%09d", f.txSeq), nil
}

func (f *fakeSettlement) AssociateToken(ctx context.Context, account Account, tokenID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := account.ID + "/" + tokenID
	if f.associated[key] {
		return "", nil
	}
	f.associated[key] = true
	f.txSeq++
	return fmt.Sprintf("0.0.9000@1700000000.%09d", f.txSeq), nil
}

func (f *fakeSettlement) CheckAssociation(ctx context.Context, accountID, tokenID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.associated[accountID+"/"+tokenID], nil
}

func (f *fakeSettlement) GetBalance(ctx context.Context, accountID string, tokenIDs ...string) (*Balance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.balances[accountID]; ok {
		return b, nil
	}
	return &Balance{Tokens: map[string]int64{}}, nil
}

func (f *fakeSettlement) OperatorAccountID() string {
	return f.operatorID
}

func (f *fakeSettlement) transferCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.transfers)
}

func (f *fakeSettlement) lastTransfer() transferCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transfers[len(f.transfers)-1]
}

// fakeResolver answers transaction status lookups from a fixed map.
type fakeResolver struct {
	outcomes map[string]TransactionOutcome
}

func (r *fakeResolver) TransactionStatus(ctx context.Context, txID string) (TransactionOutcome, error) {
	if outcome, ok := r.outcomes[txID]; ok {
		return outcome, nil
	}
	return OutcomeNotFound, nil
}

// capturePublisher records emitted fund events.
type capturePublisher struct {
	mu     sync.Mutex
	events []FundEvent
}

func (p *capturePublisher) Publish(queueName string, message interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ev, ok := message.(FundEvent); ok {
		p.events = append(p.events, ev)
	}
	return nil
}

func newTestEngine(t *testing.T) (*Engine, *fakeSettlement, *capturePublisher) {
	t.Helper()
	db := newTestDB(t)
	settle := newFakeSettlement()
	events := &capturePublisher{}
	return New(db, settle, events), settle, events
}

func seedProject(t *testing.T, db *gorm.DB, mutate ...func(*models.Project)) *models.Project {
	t.Helper()
	project := &models.Project{
		CreatorID:         "creator-1",
		CreatorName:       "Ada",
		Title:             "Open Hardware Synth",
		TargetAmount:      1000,
		Deadline:          time.Now().UTC().Add(30 * 24 * time.Hour),
		TreasuryAccountID: "0.0.5005",
	}
	for _, m := range mutate {
		m(project)
	}
	require.NoError(t, db.Create(project).Error)
	return project
}

func seedMilestone(t *testing.T, db *gorm.DB, projectID uint, target int64) *models.Milestone {
	t.Helper()
	milestone := &models.Milestone{
		ProjectID:    projectID,
		Title:        "Prototype",
		TargetAmount: target,
		Status:       models.MilestoneStatusPending,
	}
	require.NoError(t, db.Create(milestone).Error)
	return milestone
}

func reloadProject(t *testing.T, db *gorm.DB, id uint) *models.Project {
	t.Helper()
	var project models.Project
	require.NoError(t, db.First(&project, id).Error)
	return &project
}

func openIntents(t *testing.T, db *gorm.DB) []models.PendingSettlement {
	t.Helper()
	var intents []models.PendingSettlement
	require.NoError(t, db.Where("phase IN ?", []string{
		models.SettlementPhaseSubmitted,
		models.SettlementPhaseTransferConfirmed,
		models.SettlementPhaseLocalCommitted,
		models.SettlementPhaseSubmitting,
	}).Order("id asc").Find(&intents).Error)
	return intents
}
