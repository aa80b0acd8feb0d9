package model

import "time"

// PushSubscription holds the information for a reader's browser push
// subscription. A reader may have several (one per device).
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	ReaderID  int64     `gorm:"index;not null"`
	CreatedAt time.Time `gorm:"not null"`

	// Associations
	Reader Reader `gorm:"constraint:OnDelete:CASCADE"`
}
