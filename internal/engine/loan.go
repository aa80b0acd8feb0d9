package engine

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"library-backend/internal/model"
)

// Loan state machine: active -> overdue -> returned, with a direct
// active -> returned edge for on-time returns. Overdue is detected by the
// maintenance sweep, or lazily when a renewal touches a past-due loan.

// createLoan inserts a new active loan for a copy the caller has already
// taken out of inventory (or holds via a ready reservation).
func createLoan(tx *gorm.DB, book *model.Book, readerID int64, now time.Time, period time.Duration) (*model.Loan, error) {
	dup, err := hasActiveLoan(tx, book.ID, readerID)
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, ErrDuplicateActiveLoan
	}

	loan := model.Loan{
		Uid:      newUID(),
		BookID:   book.ID,
		ReaderID: readerID,
		LoanDate: now,
		DueDate:  now.Add(period),
		Status:   model.LoanActive,
	}
	if err := tx.Create(&loan).Error; err != nil {
		return nil, fmt.Errorf("create loan for book %d: %w", book.ID, err)
	}
	return &loan, nil
}

// hasActiveLoan reports whether the reader currently holds this title.
// At most one active-or-overdue loan may exist per (reader, book) pair.
func hasActiveLoan(tx *gorm.DB, bookID, readerID int64) (bool, error) {
	var count int64
	err := tx.Model(&model.Loan{}).
		Where("book_id = ? AND reader_id = ? AND status IN ?",
			bookID, readerID, []model.LoanStatus{model.LoanActive, model.LoanOverdue}).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("count active loans: %w", err)
	}
	return count > 0, nil
}

// markOverdueLoans flips past-due active loans for one title to overdue
// and charges the overdue fine. Loans already flipped (by an earlier sweep
// or a lazy renewal check) are still re-examined so a missing fine gets
// charged exactly once; the (loan, cause) dedupe makes repeated sweeps
// no-ops.
func (e *Engine) markOverdueLoans(tx *gorm.DB, bookID int64, now time.Time) (int, []event, error) {
	var loans []model.Loan
	err := tx.
		Where("book_id = ? AND status IN ? AND due_date < ?",
			bookID, []model.LoanStatus{model.LoanActive, model.LoanOverdue}, now).
		Order("id ASC").
		Find(&loans).Error
	if err != nil {
		return 0, nil, fmt.Errorf("find past-due loans for book %d: %w", bookID, err)
	}

	transitions := 0
	var events []event
	for i := range loans {
		loan := &loans[i]
		if loan.Status == model.LoanActive {
			if err := tx.Model(loan).UpdateColumn("status", model.LoanOverdue).Error; err != nil {
				return 0, nil, fmt.Errorf("mark loan %d overdue: %w", loan.ID, err)
			}
			transitions++
			events = append(events, event{
				readerID: loan.ReaderID,
				message:  "Your loan is overdue. Please return the book; a fine has been applied.",
			})
		}
		if _, err := e.chargeOverdue(tx, loan, now); err != nil && err != ErrDuplicatePenalty {
			return 0, nil, err
		}
	}
	return transitions, events, nil
}
