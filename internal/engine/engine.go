package engine

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"library-backend/config"
	"library-backend/internal/model"
)

// Notifier delivers best-effort messages to readers. Dispatch happens
// after the guarded transaction commits; delivery failure never rolls back
// or retries an engine state transition.
type Notifier interface {
	Notify(readerID int64, message string)
}

// Engine is the lending and reservation lifecycle coordinator. It is the
// only writer of books' copy counts and of loan/reservation/penalty state;
// everything else reads through its query methods or the underlying DB.
type Engine struct {
	db       *gorm.DB
	policy   config.PolicyConfig
	locks    *titleLocks
	notifier Notifier
}

// New creates an engine over the given database and circulation policy.
func New(db *gorm.DB, policy config.PolicyConfig) *Engine {
	return &Engine{
		db:     db,
		policy: policy,
		locks:  newTitleLocks(),
	}
}

// SetNotifier attaches a best-effort notification dispatcher.
func (e *Engine) SetNotifier(n Notifier) {
	e.notifier = n
}

// DB exposes the underlying gorm handle for read-only catalog queries.
func (e *Engine) DB() *gorm.DB {
	return e.db
}

// Policy returns the circulation policy the engine was built with.
func (e *Engine) Policy() config.PolicyConfig {
	return e.policy
}

// event is a notification queued during a transaction and dispatched only
// after it commits.
type event struct {
	readerID int64
	message  string
}

func (e *Engine) dispatchAll(events []event) {
	if e.notifier == nil {
		return
	}
	for _, ev := range events {
		e.notifier.Notify(ev.readerID, ev.message)
	}
}

func newUID() string {
	return uuid.NewString()
}

// loadBook fetches a book inside the transaction and rejects writes to
// frozen titles.
func loadBook(tx *gorm.DB, bookID int64) (*model.Book, error) {
	var book model.Book
	if err := tx.First(&book, bookID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, err
	}
	if book.Frozen {
		return nil, ErrBookFrozen
	}
	return &book, nil
}

// handleBreach freezes the affected title outside the rolled-back
// transaction so no further writes can touch it, and logs loudly. The
// breach indicates a bug in the engine; it is never silently corrected.
func (e *Engine) handleBreach(ctx context.Context, err error) {
	var breach *InvariantBreachError
	if !errors.As(err, &breach) {
		return
	}
	log.Printf("FATAL INVARIANT BREACH: %v; freezing book %d", breach, breach.BookID)
	if ferr := e.db.WithContext(ctx).Model(&model.Book{}).
		Where("id = ?", breach.BookID).
		UpdateColumn("frozen", true).Error; ferr != nil {
		log.Printf("failed to freeze book %d after invariant breach: %v", breach.BookID, ferr)
	}
}

// GetBook returns a book by id.
func (e *Engine) GetBook(ctx context.Context, bookID int64) (*model.Book, error) {
	var book model.Book
	if err := e.db.WithContext(ctx).First(&book, bookID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, err
	}
	return &book, nil
}

// ListQueue returns the waiting reservations for a book in queue order.
func (e *Engine) ListQueue(ctx context.Context, bookID int64) ([]model.Reservation, error) {
	var waiting []model.Reservation
	err := e.db.WithContext(ctx).
		Where("book_id = ? AND status = ?", bookID, model.ReservationWaiting).
		Order("queue_position ASC").
		Find(&waiting).Error
	return waiting, err
}

// ListLoans returns loans, optionally filtered by reader.
func (e *Engine) ListLoans(ctx context.Context, readerID int64) ([]model.Loan, error) {
	q := e.db.WithContext(ctx).Order("id ASC")
	if readerID != 0 {
		q = q.Where("reader_id = ?", readerID)
	}
	var loans []model.Loan
	err := q.Find(&loans).Error
	return loans, err
}

// ListPenalties returns penalties, optionally filtered by reader and
// payment status.
func (e *Engine) ListPenalties(ctx context.Context, readerID int64, unpaidOnly bool) ([]model.Penalty, error) {
	q := e.db.WithContext(ctx).Model(&model.Penalty{}).Order("penalties.id ASC")
	if readerID != 0 {
		q = q.Joins("JOIN loans ON loans.id = penalties.loan_id").
			Where("loans.reader_id = ?", readerID)
	}
	if unpaidOnly {
		q = q.Where("penalties.paid = ?", false)
	}
	var penalties []model.Penalty
	err := q.Find(&penalties).Error
	return penalties, err
}
