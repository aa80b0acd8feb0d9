package engine

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"library-backend/internal/model"
)

// Reservation queue manager. Waiting reservations for a title carry a
// dense 1-based queue position; enqueue appends at max+1 and every dequeue
// renumbers the remainder in the same transaction, so the positions always
// form a contiguous 1..N sequence.

// hasOpenReservation reports whether the reader already has a waiting or
// ready reservation for this title.
func hasOpenReservation(tx *gorm.DB, bookID, readerID int64) (bool, error) {
	var count int64
	err := tx.Model(&model.Reservation{}).
		Where("book_id = ? AND reader_id = ? AND status IN ?",
			bookID, readerID,
			[]model.ReservationStatus{model.ReservationWaiting, model.ReservationReady}).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("count open reservations: %w", err)
	}
	return count > 0, nil
}

// enqueue appends the reader at the back of the waiting queue.
func enqueue(tx *gorm.DB, bookID, readerID int64, now time.Time) (*model.Reservation, error) {
	dup, err := hasOpenReservation(tx, bookID, readerID)
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, ErrDuplicateReservation
	}

	var maxPosition int
	err = tx.Model(&model.Reservation{}).
		Where("book_id = ? AND status = ?", bookID, model.ReservationWaiting).
		Select("COALESCE(MAX(queue_position), 0)").
		Scan(&maxPosition).Error
	if err != nil {
		return nil, fmt.Errorf("find queue tail for book %d: %w", bookID, err)
	}

	reservation := model.Reservation{
		Uid:           newUID(),
		BookID:        bookID,
		ReaderID:      readerID,
		Status:        model.ReservationWaiting,
		QueuePosition: maxPosition + 1,
		RequestedAt:   now,
	}
	if err := tx.Create(&reservation).Error; err != nil {
		return nil, fmt.Errorf("enqueue reservation for book %d: %w", bookID, err)
	}
	return &reservation, nil
}

// promoteNext pops the head of the waiting queue, takes a copy out of
// general circulation as its hold, opens the pickup window, and renumbers
// the remaining waiters. Returns nil when there is no waiter or no free
// copy; the pop and the renumbering commit together.
func (e *Engine) promoteNext(tx *gorm.DB, bookID int64, now time.Time) (*model.Reservation, error) {
	var head model.Reservation
	err := tx.Where("book_id = ? AND status = ? AND queue_position = 1",
		bookID, model.ReservationWaiting).
		First(&head).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find queue head for book %d: %w", bookID, err)
	}

	ok, err := tryAllocate(tx, bookID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	openPickupWindow(&head, now, e.policy.PickupWindow())
	if err := tx.Save(&head).Error; err != nil {
		return nil, fmt.Errorf("promote reservation %d: %w", head.ID, err)
	}

	err = tx.Model(&model.Reservation{}).
		Where("book_id = ? AND status = ?", bookID, model.ReservationWaiting).
		UpdateColumn("queue_position", gorm.Expr("queue_position - 1")).Error
	if err != nil {
		return nil, fmt.Errorf("renumber queue for book %d: %w", bookID, err)
	}
	return &head, nil
}

// removeFromQueue takes a waiting reservation out of the queue and closes
// the gap behind it.
func removeFromQueue(tx *gorm.DB, reservation *model.Reservation, status model.ReservationStatus) error {
	position := reservation.QueuePosition
	reservation.Status = status
	reservation.QueuePosition = 0
	if err := tx.Save(reservation).Error; err != nil {
		return fmt.Errorf("dequeue reservation %d: %w", reservation.ID, err)
	}

	err := tx.Model(&model.Reservation{}).
		Where("book_id = ? AND status = ? AND queue_position > ?",
			reservation.BookID, model.ReservationWaiting, position).
		UpdateColumn("queue_position", gorm.Expr("queue_position - 1")).Error
	if err != nil {
		return fmt.Errorf("renumber queue for book %d: %w", reservation.BookID, err)
	}
	return nil
}
