package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"library-backend/internal/model"
)

// Lifecycle coordinator: the only entry points external callers use. Each
// write operation locks the affected title, runs as one transaction, and
// dispatches notifications only after the transaction commits. Partial
// application of a flow is never observable.

// LoanOutcome is the result of RequestLoan: either a created loan or a
// queued reservation, never both.
type LoanOutcome struct {
	Loan        *model.Loan        `json:"loan,omitempty"`
	Reservation *model.Reservation `json:"reservation,omitempty"`
}

// ReturnOutcome reports the finalized loan, whether the copy went back
// into circulation, any penalty the return produced, and the reservation
// promoted onto the freed copy, if any.
type ReturnOutcome struct {
	Loan     *model.Loan        `json:"loan"`
	Released bool               `json:"released"`
	Penalty  *model.Penalty     `json:"penalty,omitempty"`
	Promoted *model.Reservation `json:"promoted,omitempty"`
}

// SweepReport summarizes one maintenance sweep.
type SweepReport struct {
	OverdueTransitions int `json:"overdueTransitions"`
	ExpiredPickups     int `json:"expiredPickups"`
	Promotions         int `json:"promotions"`
}

func readerExists(tx *gorm.DB, readerID int64) error {
	var count int64
	if err := tx.Model(&model.Reader{}).Where("id = ?", readerID).Count(&count).Error; err != nil {
		return fmt.Errorf("look up reader %d: %w", readerID, err)
	}
	if count == 0 {
		return ErrReaderNotFound
	}
	return nil
}

// RequestLoan lends a copy to the reader if one is available; otherwise it
// enqueues a reservation and reports the queue position. It never waits
// for a copy to free up. A reader who already holds a ready pickup for the
// title gets the held copy as their loan instead of a second one; a hold
// whose window has lapsed is expired first and the request proceeds
// normally.
func (e *Engine) RequestLoan(ctx context.Context, readerID, bookID int64, now time.Time) (*LoanOutcome, error) {
	var outcome LoanOutcome
	var events []event
	err := e.locks.withTitle(bookID, func() error {
		return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			book, err := loadBook(tx, bookID)
			if err != nil {
				return err
			}
			if err := readerExists(tx, readerID); err != nil {
				return err
			}
			dup, err := hasActiveLoan(tx, bookID, readerID)
			if err != nil {
				return err
			}
			if dup {
				return ErrDuplicateActiveLoan
			}

			var held model.Reservation
			err = tx.Where("book_id = ? AND reader_id = ? AND status = ?",
				bookID, readerID, model.ReservationReady).
				First(&held).Error
			switch {
			case err == nil:
				if held.PickupDeadline != nil && now.After(*held.PickupDeadline) {
					// Stale hold: expire it so the copy moves on before
					// the request is considered.
					promoted, err := e.expireOne(tx, &held, now)
					if err != nil {
						return err
					}
					if promoted != nil {
						events = append(events, readyEvent(promoted))
					}
				} else {
					// The hold already owns a copy; this request is the
					// pickup.
					loan, err := createLoan(tx, book, readerID, now, e.policy.LoanPeriod())
					if err != nil {
						return err
					}
					held.Status = model.ReservationCompleted
					if err := tx.Save(&held).Error; err != nil {
						return fmt.Errorf("complete reservation %d: %w", held.ID, err)
					}
					outcome.Loan = loan
					return nil
				}
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return fmt.Errorf("find ready hold for reader %d: %w", readerID, err)
			}

			allocated, err := tryAllocate(tx, bookID)
			if err != nil {
				return err
			}
			if allocated {
				loan, err := createLoan(tx, book, readerID, now, e.policy.LoanPeriod())
				if err != nil {
					return err
				}
				outcome.Loan = loan
				return nil
			}

			reservation, err := enqueue(tx, bookID, readerID, now)
			if err != nil {
				return err
			}
			outcome.Reservation = reservation
			return nil
		})
	})
	if err != nil {
		e.handleBreach(ctx, err)
		return nil, err
	}
	e.dispatchAll(events)
	return &outcome, nil
}

// ReturnBook finalizes a loan. Good and damaged copies go back into
// circulation (the next waiter, if any, immediately takes the copy as a
// pickup hold); a lost copy is removed from the total. Damaged, lost, and
// late returns produce penalties.
func (e *Engine) ReturnBook(ctx context.Context, loanID int64, condition model.ReturnCondition, now time.Time) (*ReturnOutcome, error) {
	if !model.ValidReturnConditions[condition] {
		return nil, ErrInvalidReturnCondition
	}
	loan, err := e.getLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	var outcome ReturnOutcome
	var events []event
	err = e.locks.withTitle(loan.BookID, func() error {
		return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if _, err := loadBook(tx, loan.BookID); err != nil {
				return err
			}
			if err := tx.First(loan, loan.ID).Error; err != nil {
				return err
			}
			if loan.Status == model.LoanReturned {
				return ErrLoanAlreadyReturned
			}

			returnDate := now
			loan.ReturnDate = &returnDate
			loan.ReturnCondition = condition
			loan.Status = model.LoanReturned
			if err := tx.Save(loan).Error; err != nil {
				return fmt.Errorf("finalize loan %d: %w", loan.ID, err)
			}

			switch condition {
			case model.ConditionGood, model.ConditionDamaged:
				if err := release(tx, loan.BookID); err != nil {
					return err
				}
				outcome.Released = true
				if condition == model.ConditionDamaged {
					penalty, err := e.chargeDamageOrLoss(tx, loan, condition, now)
					if err != nil && err != ErrDuplicatePenalty {
						return err
					}
					outcome.Penalty = penalty
				}
			case model.ConditionLost:
				if err := removeCopy(tx, loan.BookID); err != nil {
					return err
				}
				penalty, err := e.chargeDamageOrLoss(tx, loan, condition, now)
				if err != nil && err != ErrDuplicatePenalty {
					return err
				}
				outcome.Penalty = penalty
			}

			if now.After(loan.DueDate) {
				penalty, err := e.chargeOverdue(tx, loan, now)
				if err != nil && err != ErrDuplicatePenalty {
					return err
				}
				if outcome.Penalty == nil {
					outcome.Penalty = penalty
				}
			}

			if outcome.Released {
				promoted, err := e.promoteNext(tx, loan.BookID, now)
				if err != nil {
					return err
				}
				if promoted != nil {
					outcome.Promoted = promoted
					events = append(events, readyEvent(promoted))
				}
			}
			outcome.Loan = loan
			return nil
		})
	})
	if err != nil {
		e.handleBreach(ctx, err)
		return nil, err
	}
	e.dispatchAll(events)
	return &outcome, nil
}

// RenewLoan extends an active loan by the renewal period, up to the
// renewal limit. A past-due loan is flipped to overdue on the spot and the
// renewal is refused; the fine stays the sweep's job.
func (e *Engine) RenewLoan(ctx context.Context, loanID int64, now time.Time) (*model.Loan, error) {
	loan, err := e.getLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	err = e.locks.withTitle(loan.BookID, func() error {
		if _, err := loadBook(e.db.WithContext(ctx), loan.BookID); err != nil {
			return err
		}
		if err := e.db.WithContext(ctx).First(loan, loan.ID).Error; err != nil {
			return err
		}
		switch {
		case loan.Status == model.LoanReturned:
			return ErrLoanAlreadyReturned
		case loan.Status == model.LoanOverdue:
			return ErrLoanNotRenewable
		case now.After(loan.DueDate):
			// Lazy overdue detection: persist the flip even though the
			// renewal itself is refused.
			if err := e.db.WithContext(ctx).Model(loan).
				UpdateColumn("status", model.LoanOverdue).Error; err != nil {
				return fmt.Errorf("mark loan %d overdue: %w", loan.ID, err)
			}
			loan.Status = model.LoanOverdue
			return ErrLoanNotRenewable
		case loan.RenewalCount >= e.policy.MaxRenewals:
			return ErrRenewalLimitExceeded
		}

		return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			loan.DueDate = loan.DueDate.Add(e.policy.RenewalPeriod())
			loan.RenewalCount++
			return tx.Save(loan).Error
		})
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// ReserveBook places a reservation for the reader. With a free copy and an
// empty queue the reservation goes straight to ready with an open pickup
// window; otherwise it joins the back of the waiting queue.
func (e *Engine) ReserveBook(ctx context.Context, readerID, bookID int64, now time.Time) (*model.Reservation, error) {
	var reservation *model.Reservation
	var events []event
	err := e.locks.withTitle(bookID, func() error {
		return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if _, err := loadBook(tx, bookID); err != nil {
				return err
			}
			if err := readerExists(tx, readerID); err != nil {
				return err
			}
			dup, err := hasOpenReservation(tx, bookID, readerID)
			if err != nil {
				return err
			}
			if dup {
				return ErrDuplicateReservation
			}

			var waiting int64
			err = tx.Model(&model.Reservation{}).
				Where("book_id = ? AND status = ?", bookID, model.ReservationWaiting).
				Count(&waiting).Error
			if err != nil {
				return err
			}

			if waiting == 0 {
				allocated, err := tryAllocate(tx, bookID)
				if err != nil {
					return err
				}
				if allocated {
					ready := model.Reservation{
						Uid:         newUID(),
						BookID:      bookID,
						ReaderID:    readerID,
						RequestedAt: now,
					}
					openPickupWindow(&ready, now, e.policy.PickupWindow())
					if err := tx.Create(&ready).Error; err != nil {
						return fmt.Errorf("create ready reservation for book %d: %w", bookID, err)
					}
					reservation = &ready
					events = append(events, readyEvent(&ready))
					return nil
				}
			}

			queued, err := enqueue(tx, bookID, readerID, now)
			if err != nil {
				return err
			}
			reservation = queued
			return nil
		})
	})
	if err != nil {
		e.handleBreach(ctx, err)
		return nil, err
	}
	e.dispatchAll(events)
	return reservation, nil
}

// CancelReservation withdraws a waiting or ready reservation. Cancelling a
// ready reservation releases its hold and cascades to the next waiter.
func (e *Engine) CancelReservation(ctx context.Context, reservationID int64, now time.Time) error {
	reservation, err := e.getReservation(ctx, reservationID)
	if err != nil {
		return err
	}

	var events []event
	err = e.locks.withTitle(reservation.BookID, func() error {
		return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if _, err := loadBook(tx, reservation.BookID); err != nil {
				return err
			}
			if err := tx.First(reservation, reservation.ID).Error; err != nil {
				return err
			}

			switch reservation.Status {
			case model.ReservationWaiting:
				return removeFromQueue(tx, reservation, model.ReservationCancelled)
			case model.ReservationReady:
				reservation.Status = model.ReservationCancelled
				if err := tx.Save(reservation).Error; err != nil {
					return fmt.Errorf("cancel reservation %d: %w", reservation.ID, err)
				}
				if err := release(tx, reservation.BookID); err != nil {
					return err
				}
				promoted, err := e.promoteNext(tx, reservation.BookID, now)
				if err != nil {
					return err
				}
				if promoted != nil {
					events = append(events, readyEvent(promoted))
				}
				return nil
			default:
				return ErrReservationNotCancellable
			}
		})
	})
	if err != nil {
		e.handleBreach(ctx, err)
		return err
	}
	e.dispatchAll(events)
	return nil
}

// CompletePickup converts a ready reservation into a loan. The copy is
// already held by the reservation, so inventory is bypassed. A pickup past
// its deadline is expired on the spot and the call fails.
func (e *Engine) CompletePickup(ctx context.Context, reservationID int64, now time.Time) (*model.Loan, error) {
	reservation, err := e.getReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}

	var loan *model.Loan
	var events []event
	err = e.locks.withTitle(reservation.BookID, func() error {
		if _, err := loadBook(e.db.WithContext(ctx), reservation.BookID); err != nil {
			return err
		}
		if err := e.db.WithContext(ctx).First(reservation, reservation.ID).Error; err != nil {
			return err
		}
		if reservation.Status != model.ReservationReady {
			return ErrPickupExpiredOrMissing
		}

		if reservation.PickupDeadline != nil && now.After(*reservation.PickupDeadline) {
			// Lazy expiry: the window elapsed before the sweep noticed.
			// The expiration commits even though the pickup fails.
			txErr := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				if _, err := loadBook(tx, reservation.BookID); err != nil {
					return err
				}
				promoted, err := e.expireOne(tx, reservation, now)
				if err != nil {
					return err
				}
				if promoted != nil {
					events = append(events, readyEvent(promoted))
				}
				return nil
			})
			if txErr != nil {
				return txErr
			}
			return ErrPickupExpiredOrMissing
		}

		return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			book, err := loadBook(tx, reservation.BookID)
			if err != nil {
				return err
			}
			created, err := createLoan(tx, book, reservation.ReaderID, now, e.policy.LoanPeriod())
			if err != nil {
				return err
			}
			reservation.Status = model.ReservationCompleted
			if err := tx.Save(reservation).Error; err != nil {
				return fmt.Errorf("complete reservation %d: %w", reservation.ID, err)
			}
			loan = created
			return nil
		})
	})
	if err != nil {
		e.handleBreach(ctx, err)
		e.dispatchAll(events)
		return nil, err
	}
	e.dispatchAll(events)
	return loan, nil
}

// RunMaintenanceSweep applies all time-based transitions as of now:
// past-due loans flip to overdue (with their fine), elapsed pickup windows
// expire (cascading to the next waiter), and any title left with free
// copies and a non-empty queue promotes until one side runs out. Titles
// are processed independently, each under its own guard. Running the same
// sweep twice produces no additional state changes.
func (e *Engine) RunMaintenanceSweep(ctx context.Context, now time.Time) (*SweepReport, error) {
	bookIDs, err := e.sweepCandidates(ctx, now)
	if err != nil {
		return nil, err
	}

	report := &SweepReport{}
	for _, bookID := range bookIDs {
		var events []event
		err := e.locks.withTitle(bookID, func() error {
			return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				var book model.Book
				if err := tx.First(&book, bookID).Error; err != nil {
					return err
				}
				if book.Frozen {
					// Skip frozen titles; they need an operator, not a sweep.
					return nil
				}

				transitions, overdueEvents, err := e.markOverdueLoans(tx, bookID, now)
				if err != nil {
					return err
				}
				report.OverdueTransitions += transitions
				events = append(events, overdueEvents...)

				expired, promotions, expiryEvents, err := e.expirePickups(tx, bookID, now)
				if err != nil {
					return err
				}
				report.ExpiredPickups += expired
				report.Promotions += promotions
				events = append(events, expiryEvents...)

				// Drain: a copy freed outside the usual cascades should
				// still move the queue.
				for {
					promoted, err := e.promoteNext(tx, bookID, now)
					if err != nil {
						return err
					}
					if promoted == nil {
						break
					}
					report.Promotions++
					events = append(events, readyEvent(promoted))
				}
				return nil
			})
		})
		if err != nil {
			e.handleBreach(ctx, err)
			return report, err
		}
		e.dispatchAll(events)
	}
	return report, nil
}

// sweepCandidates returns the ids of every title with work for the sweep,
// sorted for deterministic processing.
func (e *Engine) sweepCandidates(ctx context.Context, now time.Time) ([]int64, error) {
	seen := make(map[int64]bool)

	var ids []int64
	err := e.db.WithContext(ctx).Model(&model.Loan{}).
		Where("status IN ? AND due_date < ?",
			[]model.LoanStatus{model.LoanActive, model.LoanOverdue}, now).
		Distinct("book_id").Pluck("book_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("find titles with past-due loans: %w", err)
	}
	for _, id := range ids {
		seen[id] = true
	}

	ids = ids[:0]
	err = e.db.WithContext(ctx).Model(&model.Reservation{}).
		Where("status = ? AND pickup_deadline < ?", model.ReservationReady, now).
		Distinct("book_id").Pluck("book_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("find titles with expired pickups: %w", err)
	}
	for _, id := range ids {
		seen[id] = true
	}

	ids = ids[:0]
	err = e.db.WithContext(ctx).Model(&model.Reservation{}).
		Joins("JOIN books ON books.id = reservations.book_id").
		Where("reservations.status = ? AND books.available_copies > 0", model.ReservationWaiting).
		Distinct("reservations.book_id").Pluck("reservations.book_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("find titles with stranded waiters: %w", err)
	}
	for _, id := range ids {
		seen[id] = true
	}

	candidates := make([]int64, 0, len(seen))
	for id := range seen {
		candidates = append(candidates, id)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })
	return candidates, nil
}

func (e *Engine) getLoan(ctx context.Context, loanID int64) (*model.Loan, error) {
	var loan model.Loan
	if err := e.db.WithContext(ctx).First(&loan, loanID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLoanNotFound
		}
		return nil, err
	}
	return &loan, nil
}

func (e *Engine) getReservation(ctx context.Context, reservationID int64) (*model.Reservation, error) {
	var reservation model.Reservation
	if err := e.db.WithContext(ctx).First(&reservation, reservationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	return &reservation, nil
}
