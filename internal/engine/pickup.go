package engine

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"library-backend/internal/model"
)

// Pickup scheduling. A ready reservation holds one copy out of general
// circulation until the reader claims it or the window elapses. Expiry
// releases the hold and cascades to the next waiter, which keeps the queue
// moving even when readers never show up.

// openPickupWindow marks a reservation ready and stamps its window.
func openPickupWindow(reservation *model.Reservation, now time.Time, window time.Duration) {
	readyAt := now
	deadline := now.Add(window)
	reservation.Status = model.ReservationReady
	reservation.QueuePosition = 0
	reservation.ReadyAt = &readyAt
	reservation.PickupDeadline = &deadline
}

// expireOne transitions a ready reservation past its deadline to expired,
// releases its hold, and promotes the next waiter (who takes over the
// just-released copy). Returns the promoted reservation, if any.
func (e *Engine) expireOne(tx *gorm.DB, reservation *model.Reservation, now time.Time) (*model.Reservation, error) {
	reservation.Status = model.ReservationExpired
	if err := tx.Save(reservation).Error; err != nil {
		return nil, fmt.Errorf("expire reservation %d: %w", reservation.ID, err)
	}
	if err := release(tx, reservation.BookID); err != nil {
		return nil, err
	}
	return e.promoteNext(tx, reservation.BookID, now)
}

// expirePickups sweeps all ready reservations for one title whose deadline
// has passed. Repeated sweeps are no-ops: an expired reservation never
// comes back, and the cascaded promotions move state forward, not in
// circles.
func (e *Engine) expirePickups(tx *gorm.DB, bookID int64, now time.Time) (expired int, promotions int, events []event, err error) {
	var overdueReady []model.Reservation
	err = tx.Where("book_id = ? AND status = ? AND pickup_deadline < ?",
		bookID, model.ReservationReady, now).
		Order("id ASC").
		Find(&overdueReady).Error
	if err != nil {
		return 0, 0, nil, fmt.Errorf("find expired pickups for book %d: %w", bookID, err)
	}

	for i := range overdueReady {
		reservation := &overdueReady[i]
		promoted, err := e.expireOne(tx, reservation, now)
		if err != nil {
			return 0, 0, nil, err
		}
		expired++
		events = append(events, event{
			readerID: reservation.ReaderID,
			message:  "Your pickup window has expired and the copy was released. You can reserve the title again.",
		})
		if promoted != nil {
			promotions++
			events = append(events, readyEvent(promoted))
		}
	}
	return expired, promotions, events, nil
}

func readyEvent(reservation *model.Reservation) event {
	deadline := ""
	if reservation.PickupDeadline != nil {
		deadline = reservation.PickupDeadline.Format("Jan 2")
	}
	return event{
		readerID: reservation.ReaderID,
		message:  fmt.Sprintf("A copy you reserved is ready for pickup until %s.", deadline),
	}
}
