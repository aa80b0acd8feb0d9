package model

import "time"

// Reader represents a registered library member.
type Reader struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Uid       string    `gorm:"uniqueIndex;size:36;not null" json:"uid"`
	Name      string    `gorm:"size:256;not null" json:"name"`
	Email     string    `gorm:"uniqueIndex;size:256;not null" json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
