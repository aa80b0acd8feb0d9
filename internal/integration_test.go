package internal

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"library-backend/config"
	"library-backend/internal/engine"
	"library-backend/internal/model"
)

// noteRecorder captures dispatched notifications per reader.
type noteRecorder struct {
	mu   sync.Mutex
	msgs map[int64][]string
}

func newNoteRecorder() *noteRecorder {
	return &noteRecorder{msgs: make(map[int64][]string)}
}

func (r *noteRecorder) Notify(readerID int64, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs[readerID] = append(r.msgs[readerID], message)
}

func (r *noteRecorder) forReader(readerID int64) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.msgs[readerID]...)
}

// TestLendingLifecycle walks a single copy through the whole circulation
// cycle: loan, queue, overdue sweep, late return with promotion, pickup,
// final return and penalty settlement, verifying state at each step.
func TestLendingLifecycle(t *testing.T) {
	testDB, err := gorm.Open(sqlite.Open("file:lifecycle?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, _ := testDB.DB()
	defer sqlDB.Close()

	require.NoError(t, testDB.AutoMigrate(
		&model.Book{},
		&model.Reader{},
		&model.Loan{},
		&model.Reservation{},
		&model.Penalty{},
		&model.PushSubscription{},
	))

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)

	eng := engine.New(testDB, cfg.Policy)
	recorder := newNoteRecorder()
	eng.SetNotifier(recorder)

	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	book, err := eng.CreateBook(ctx, "The Go Programming Language", "Donovan & Kernighan", "978-0134190440", 1)
	require.NoError(t, err)
	alice, err := eng.CreateReader(ctx, "alice", "alice@example.com")
	require.NoError(t, err)
	bob, err := eng.CreateReader(ctx, "bob", "bob@example.com")
	require.NoError(t, err)

	// Alice takes the only copy; bob queues behind her.
	aliceOutcome, err := eng.RequestLoan(ctx, alice.ID, book.ID, now)
	require.NoError(t, err)
	require.NotNil(t, aliceOutcome.Loan)
	assert.Equal(t, now.Add(cfg.Policy.LoanPeriod()), aliceOutcome.Loan.DueDate)

	bobOutcome, err := eng.RequestLoan(ctx, bob.ID, book.ID, now)
	require.NoError(t, err)
	require.NotNil(t, bobOutcome.Reservation)
	assert.Equal(t, 1, bobOutcome.Reservation.QueuePosition)

	// Five days past due, the sweep flips the loan and fines alice once.
	sweepAt := now.Add(cfg.Policy.LoanPeriod()).Add(5 * 24 * time.Hour)
	report, err := eng.RunMaintenanceSweep(ctx, sweepAt)
	require.NoError(t, err)
	assert.Equal(t, 1, report.OverdueTransitions)

	penalties, err := eng.ListPenalties(ctx, alice.ID, true)
	require.NoError(t, err)
	require.Len(t, penalties, 1)
	assert.Equal(t, model.CauseOverdue, penalties[0].Cause)
	assert.Equal(t, 5*cfg.Policy.OverdueDailyFineCents, penalties[0].AmountCents)
	assert.Contains(t, recorder.forReader(alice.ID)[0], "overdue")

	// The late return does not fine alice again, and bob's reservation
	// becomes a ready hold on the freed copy.
	returnOutcome, err := eng.ReturnBook(ctx, aliceOutcome.Loan.ID, model.ConditionGood, sweepAt)
	require.NoError(t, err)
	assert.Equal(t, model.LoanReturned, returnOutcome.Loan.Status)
	require.NotNil(t, returnOutcome.Promoted)
	assert.Equal(t, bob.ID, returnOutcome.Promoted.ReaderID)
	assert.Equal(t, model.ReservationReady, returnOutcome.Promoted.Status)

	penalties, err = eng.ListPenalties(ctx, alice.ID, true)
	require.NoError(t, err)
	assert.Len(t, penalties, 1)

	current, err := eng.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, current.AvailableCopies, "the freed copy is held for the ready pickup")
	require.NotEmpty(t, recorder.forReader(bob.ID))
	assert.Contains(t, recorder.forReader(bob.ID)[0], "ready")

	// Bob collects within the window; the hold turns into a loan.
	pickupAt := sweepAt.Add(24 * time.Hour)
	bobLoan, err := eng.CompletePickup(ctx, bobOutcome.Reservation.ID, pickupAt)
	require.NoError(t, err)
	assert.Equal(t, model.LoanActive, bobLoan.Status)

	current, err = eng.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, current.AvailableCopies)

	reservation := &model.Reservation{}
	require.NoError(t, testDB.First(reservation, bobOutcome.Reservation.ID).Error)
	assert.Equal(t, model.ReservationCompleted, reservation.Status)

	// Bob returns on time and the copy goes back on the shelf.
	_, err = eng.ReturnBook(ctx, bobLoan.ID, model.ConditionGood, pickupAt.Add(24*time.Hour))
	require.NoError(t, err)

	current, err = eng.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, current.AvailableCopies)

	// Alice settles her fine.
	require.NoError(t, eng.MarkPenaltyPaid(ctx, penalties[0].ID))
	unpaid, err := eng.ListPenalties(ctx, alice.ID, true)
	require.NoError(t, err)
	assert.Empty(t, unpaid)

	// A follow-up sweep finds nothing left to do.
	final, err := eng.RunMaintenanceSweep(ctx, pickupAt.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, final.OverdueTransitions)
	assert.Zero(t, final.ExpiredPickups)
	assert.Zero(t, final.Promotions)
}
