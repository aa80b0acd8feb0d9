package model

import "time"

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	ReservationWaiting   ReservationStatus = "waiting"
	ReservationReady     ReservationStatus = "ready"
	ReservationExpired   ReservationStatus = "expired"
	ReservationCancelled ReservationStatus = "cancelled"
	ReservationCompleted ReservationStatus = "completed"
)

// Reservation is a reader's place in line for a title. While waiting,
// QueuePosition is a dense 1-based rank among all waiting reservations for
// the same book, FIFO by RequestedAt with the reservation id as tie-break.
// Once the reservation leaves the waiting state the position drops to 0.
type Reservation struct {
	ID             int64             `gorm:"primaryKey" json:"id"`
	Uid            string            `gorm:"uniqueIndex;size:36;not null" json:"uid"`
	BookID         int64             `gorm:"index;not null" json:"bookId"`
	ReaderID       int64             `gorm:"index;not null" json:"readerId"`
	Status         ReservationStatus `gorm:"size:16;index;not null" json:"status"`
	QueuePosition  int               `gorm:"not null" json:"queuePosition"`
	RequestedAt    time.Time         `gorm:"not null" json:"requestedAt"`
	ReadyAt        *time.Time        `json:"readyAt,omitempty"`
	PickupDeadline *time.Time        `json:"pickupDeadline,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`

	// Associations
	Book   Book   `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Reader Reader `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
